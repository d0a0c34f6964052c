package application

import (
	"errors"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/google/uuid"
)

// AuctionStateDTO is the output DTO for exposing auction state to the API and WS viewers
type AuctionStateDTO struct {
	AuctionID       uuid.UUID     `json:"auction_id"`
	SellerID        uuid.UUID     `json:"seller_id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Status          domain.Status `json:"status"`
	StartAt         time.Time     `json:"start_at"`
	EndAt           time.Time     `json:"end_at"`
	StartingPrice   int64         `json:"starting_price"`
	CurrentBid      *int64        `json:"current_bid"`
	LeadingBidderID *uuid.UUID    `json:"leading_bidder_id,omitempty"`
	MinIncrement    int64         `json:"min_increment"`
	MinNextBid      int64         `json:"min_next_bid"`
	BuyNowPrice     *int64        `json:"buy_now_price,omitempty"`
	WinnerID        *uuid.UUID    `json:"winner_id,omitempty"`
	SoldViaBuyNow   bool          `json:"sold_via_buy_now"`
	BidCount        int           `json:"bid_count"`
	Version         int64         `json:"version"`
	ServerTime      time.Time     `json:"server_time"`
	LastBid         *BidDTO       `json:"last_bid,omitempty"`
}

type BidDTO struct {
	BidID    uuid.UUID      `json:"bid_id"`
	BidderID uuid.UUID      `json:"bidder_id"`
	Amount   int64          `json:"amount"`
	PlacedAt time.Time      `json:"placed_at"`
	Kind     domain.BidKind `json:"kind"`
}

// IncrementHintDTO is advisory, placement re-validates server side
type IncrementHintDTO struct {
	Price        int64 `json:"price"`
	MinIncrement int64 `json:"min_increment"`
	MinNextBid   int64 `json:"min_next_bid"`
}

func toStateDTO(a *domain.Auction, policy Policy, now time.Time) *AuctionStateDTO {
	return &AuctionStateDTO{
		AuctionID:       a.ID,
		SellerID:        a.SellerID,
		Title:           a.Title,
		Description:     a.Description,
		Status:          a.Status,
		StartAt:         a.StartAt,
		EndAt:           a.EndAt,
		StartingPrice:   a.StartingPrice,
		CurrentBid:      a.CurrentBid,
		LeadingBidderID: a.LeadingBidderID,
		MinIncrement:    a.MinIncrement(policy.Increment),
		MinNextBid:      a.MinNextBid(policy.Increment),
		BuyNowPrice:     a.BuyNowPrice,
		WinnerID:        a.WinnerID,
		SoldViaBuyNow:   a.SoldViaBuyNow,
		BidCount:        a.BidCount,
		Version:         a.Version,
		ServerTime:      now,
	}
}

func toBidDTO(b *domain.Bid) BidDTO {
	return BidDTO{
		BidID:    b.ID,
		BidderID: b.BidderID,
		Amount:   b.Amount,
		PlacedAt: b.PlacedAt,
		Kind:     b.Kind,
	}
}

// OutcomeDTO is the wire shape of a bid or buy-now outcome. Rejections carry the state
// the client needs to tell "outbid" from "too late" from "already sold".
type OutcomeDTO struct {
	Accepted      bool          `json:"accepted"`
	Reason        string        `json:"reason,omitempty"`
	Message       string        `json:"message,omitempty"`
	BidID         *uuid.UUID    `json:"bid_id,omitempty"`
	NewCurrentBid *int64        `json:"new_current_bid,omitempty"`
	CurrentBid    *int64        `json:"current_bid"`
	MinNextBid    int64         `json:"min_next_bid,omitempty"`
	EndAt         *time.Time    `json:"end_at,omitempty"`
	NewEndAt      *time.Time    `json:"new_end_at,omitempty"`
	Status        domain.Status `json:"status,omitempty"`
}

// NewOutcome maps a use case return to its wire shape
func NewOutcome(res *domain.BidResult, err error) OutcomeDTO {
	if err == nil && res != nil {
		bidID := res.BidID
		current := res.NewCurrentBid
		endAt := res.EndAt
		return OutcomeDTO{
			Accepted:      true,
			BidID:         &bidID,
			NewCurrentBid: &current,
			CurrentBid:    &current,
			MinNextBid:    res.MinNextBid,
			EndAt:         &endAt,
			NewEndAt:      res.NewEndAt,
			Status:        res.Status,
		}
	}

	out := OutcomeDTO{Reason: domain.ReasonCode(err)}
	if err != nil {
		out.Message = err.Error()
	}
	var rej *domain.Rejection
	if errors.As(err, &rej) {
		endAt := rej.EndAt
		out.CurrentBid = rej.CurrentBid
		out.MinNextBid = rej.MinNextBid
		out.EndAt = &endAt
		out.Status = rej.Status
	}
	return out
}
