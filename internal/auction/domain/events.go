package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChangeKind string

const (
	ChangeBidPlaced     ChangeKind = "bid_placed"
	ChangeBuyNow        ChangeKind = "buy_now"
	ChangeStatusChanged ChangeKind = "status_changed"
)

// AuctionChanged is the notify-only fan-out event, viewers re-query state on reconnect
type AuctionChanged struct {
	AuctionID  uuid.UUID  `json:"auction_id"`
	Kind       ChangeKind `json:"kind"`
	Status     Status     `json:"status"`
	CurrentBid *int64     `json:"current_bid,omitempty"`
	MinNextBid int64      `json:"min_next_bid"`
	EndAt      time.Time  `json:"end_at"`
	WinnerID   *uuid.UUID `json:"winner_id,omitempty"`
	BidCount   int        `json:"bid_count"`
	Version    int64      `json:"version"`
	At         time.Time  `json:"at"`
}

// ChangeEvent snapshots the record for viewers
func (a *Auction) ChangeEvent(kind ChangeKind, policy IncrementPolicy, at time.Time) AuctionChanged {
	return AuctionChanged{
		AuctionID:  a.ID,
		Kind:       kind,
		Status:     a.Status,
		CurrentBid: copyInt64(a.CurrentBid),
		MinNextBid: a.MinNextBid(policy),
		EndAt:      a.EndAt,
		WinnerID:   copyUUID(a.WinnerID),
		BidCount:   a.BidCount,
		Version:    a.Version,
		At:         at,
	}
}

// OrderHandoff is the "auction won" event, delivered once per auction to order creation
type OrderHandoff struct {
	AuctionID     uuid.UUID  `json:"auction_id"`
	SellerID      uuid.UUID  `json:"seller_id"`
	WinnerID      uuid.UUID  `json:"winner_id"`
	Amount        int64      `json:"amount"`
	SoldViaBuyNow bool       `json:"sold_via_buy_now"`
	EndedAt       time.Time  `json:"ended_at"`
	PublishedAt   *time.Time `json:"-"`
}
