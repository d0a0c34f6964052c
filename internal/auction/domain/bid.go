package domain

import (
	"time"

	"github.com/google/uuid"
)

type BidKind string

const (
	BidKindBid    BidKind = "bid"
	BidKindBuyNow BidKind = "buy_now"
)

// Bid is an immutable ledger entry, superseded bids stay in the ledger
type Bid struct {
	ID             uuid.UUID
	AuctionID      uuid.UUID
	BidderID       uuid.UUID
	Amount         int64
	PlacedAt       time.Time
	IdempotencyKey string
	Kind           BidKind
}

// NewBid creates a new Bid instance
func NewBid(id, auctionID, bidderID uuid.UUID, amount int64, placedAt time.Time, key string, kind BidKind) *Bid {
	return &Bid{
		ID:             id,
		AuctionID:      auctionID,
		BidderID:       bidderID,
		Amount:         amount,
		PlacedAt:       placedAt,
		IdempotencyKey: key,
		Kind:           kind,
	}
}

// BidResult is the outcome of an accepted bid, recorded for idempotent replay
type BidResult struct {
	Accepted      bool       `json:"accepted"`
	BidID         uuid.UUID  `json:"bid_id"`
	AuctionID     uuid.UUID  `json:"auction_id"`
	NewCurrentBid int64      `json:"new_current_bid"`
	NewEndAt      *time.Time `json:"new_end_at,omitempty"`
	EndAt         time.Time  `json:"end_at"`
	MinNextBid    int64      `json:"min_next_bid"`
	Status        Status     `json:"status"`
}

// BidReceipt binds (auction, bidder, idempotency key) to the first recorded result
type BidReceipt struct {
	AuctionID      uuid.UUID
	BidderID       uuid.UUID
	IdempotencyKey string
	Result         BidResult
	CreatedAt      time.Time
}
