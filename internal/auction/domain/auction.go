package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// MaxAmount is the largest price, increment or bid accepted, in minor units.
// It keeps every price sum far below the int64 range.
const MaxAmount int64 = 1_000_000_000_000_000

// Status is the lifecycle state of an auction
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// Auction is the mutable projection of a product sold in auction mode.
// It is never mutated in place by callers: transitions run on a Clone and
// are persisted through a versioned Commit.
type Auction struct {
	ID              uuid.UUID
	SellerID        uuid.UUID
	Title           string
	Description     string
	Status          Status
	StartAt         time.Time
	EndAt           time.Time
	StartingPrice   int64
	CurrentBid      *int64
	LeadingBidderID *uuid.UUID
	MinBidIncrement *int64 // explicit override of the increment policy
	BuyNowPrice     *int64
	WinnerID        *uuid.UUID
	SoldViaBuyNow   bool
	BidCount        int
	Version         int64
	EndedAt         *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewAuctionParams are the seller/admin provided fields of a new auction
type NewAuctionParams struct {
	SellerID        uuid.UUID
	Title           string
	Description     string
	StartAt         time.Time
	EndAt           time.Time
	StartingPrice   int64
	MinBidIncrement *int64
	BuyNowPrice     *int64
}

// NewAuction validates the schedule and prices and returns a scheduled auction
func NewAuction(p NewAuctionParams, now time.Time) (*Auction, error) {
	switch {
	case p.SellerID == uuid.Nil:
		return nil, fmt.Errorf("%w: seller is required", ErrInvalidSchedule)
	case p.StartingPrice <= 0:
		return nil, fmt.Errorf("%w: starting price must be positive", ErrInvalidSchedule)
	case p.StartingPrice > MaxAmount:
		return nil, fmt.Errorf("%w: starting price exceeds %d", ErrInvalidSchedule, MaxAmount)
	case !p.EndAt.After(p.StartAt):
		return nil, fmt.Errorf("%w: end_at must be after start_at", ErrInvalidSchedule)
	case !p.EndAt.After(now):
		return nil, fmt.Errorf("%w: end_at is in the past", ErrInvalidSchedule)
	case p.MinBidIncrement != nil && *p.MinBidIncrement <= 0:
		return nil, fmt.Errorf("%w: min bid increment must be positive", ErrInvalidSchedule)
	case p.MinBidIncrement != nil && *p.MinBidIncrement > MaxAmount:
		return nil, fmt.Errorf("%w: min bid increment exceeds %d", ErrInvalidSchedule, MaxAmount)
	case p.BuyNowPrice != nil && *p.BuyNowPrice <= p.StartingPrice:
		return nil, fmt.Errorf("%w: buy-now price must exceed the starting price", ErrInvalidSchedule)
	case p.BuyNowPrice != nil && *p.BuyNowPrice > MaxAmount:
		return nil, fmt.Errorf("%w: buy-now price exceeds %d", ErrInvalidSchedule, MaxAmount)
	}

	return &Auction{
		ID:              uuid.New(),
		SellerID:        p.SellerID,
		Title:           p.Title,
		Description:     p.Description,
		Status:          StatusScheduled,
		StartAt:         p.StartAt.UTC(),
		EndAt:           p.EndAt.UTC(),
		StartingPrice:   p.StartingPrice,
		MinBidIncrement: copyInt64(p.MinBidIncrement),
		BuyNowPrice:     copyInt64(p.BuyNowPrice),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Clone returns a deep copy, transitions are applied to the copy and committed
func (a *Auction) Clone() *Auction {
	c := *a
	c.CurrentBid = copyInt64(a.CurrentBid)
	c.LeadingBidderID = copyUUID(a.LeadingBidderID)
	c.MinBidIncrement = copyInt64(a.MinBidIncrement)
	c.BuyNowPrice = copyInt64(a.BuyNowPrice)
	c.WinnerID = copyUUID(a.WinnerID)
	if a.EndedAt != nil {
		t := *a.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// Promote moves a scheduled auction to active once start_at <= cutoff.
// Idempotent: any other status is a no-op.
func (a *Auction) Promote(cutoff time.Time) bool {
	if a.Status != StatusScheduled || a.StartAt.After(cutoff) {
		return false
	}
	a.Status = StatusActive
	return true
}

// Expire closes an active auction whose end_at <= now, the leading bidder (if any) wins.
// Idempotent: any other status is a no-op.
func (a *Auction) Expire(now time.Time) bool {
	if a.Status != StatusActive || a.EndAt.After(now) {
		return false
	}
	a.Status = StatusEnded
	a.WinnerID = copyUUID(a.LeadingBidderID)
	a.EndedAt = &now
	a.UpdatedAt = now
	return true
}

// Advance is the lazy lifecycle evaluation run before every bid or read:
// promotion at start_at followed by closure at end_at
func (a *Auction) Advance(now time.Time) bool {
	promoted := a.Promote(now)
	expired := a.Expire(now)
	if promoted {
		a.UpdatedAt = now
	}
	return promoted || expired
}

// MinIncrement is the explicit increment if set, otherwise the policy step for the current price
func (a *Auction) MinIncrement(policy IncrementPolicy) int64 {
	if a.MinBidIncrement != nil {
		return *a.MinBidIncrement
	}
	return policy.MinIncrement(a.basePrice())
}

// MinNextBid is the smallest amount the next bid must reach, saturating at MaxInt64
func (a *Auction) MinNextBid(policy IncrementPolicy) int64 {
	base, inc := a.basePrice(), a.MinIncrement(policy)
	if inc > math.MaxInt64-base {
		return math.MaxInt64
	}
	return base + inc
}

func (a *Auction) basePrice() int64 {
	if a.CurrentBid != nil {
		return *a.CurrentBid
	}
	return a.StartingPrice
}

// BidOutcome is what ApplyBid changed on the record
type BidOutcome struct {
	Bid      *Bid
	Extended bool
}

// ApplyBid validates and applies an incremental bid. Callers run Advance first.
func (a *Auction) ApplyBid(bidderID uuid.UUID, amount int64, key string, now time.Time,
	policy IncrementPolicy, sniping SnipingPolicy) (*BidOutcome, error) {

	minNext := a.MinNextBid(policy)
	if bidderID == a.SellerID {
		return nil, reject(ErrSellerBid, a, minNext)
	}
	if err := a.ensureOpen(now); err != nil {
		return nil, reject(err, a, minNext)
	}
	if amount > MaxAmount {
		return nil, reject(fmt.Errorf("%w: amount exceeds %d", ErrInvalidAmount, MaxAmount), a, minNext)
	}
	if amount < minNext {
		return nil, reject(ErrBidTooLow, a, minNext)
	}

	newEnd, extended := sniping.Extend(a.EndAt, now)
	if extended {
		a.EndAt = newEnd
	}
	a.CurrentBid = &amount
	a.LeadingBidderID = &bidderID
	a.BidCount++
	a.UpdatedAt = now

	return &BidOutcome{
		Bid:      NewBid(uuid.New(), a.ID, bidderID, amount, now, key, BidKindBid),
		Extended: extended,
	}, nil
}

// ApplyBuyNow ends the auction immediately at the buy-now price. Callers run Advance first.
func (a *Auction) ApplyBuyNow(buyerID uuid.UUID, now time.Time, policy IncrementPolicy) (*Bid, error) {
	minNext := a.MinNextBid(policy)
	if buyerID == a.SellerID {
		return nil, reject(ErrSellerBid, a, minNext)
	}
	if err := a.ensureOpen(now); err != nil {
		return nil, reject(err, a, minNext)
	}
	if a.BuyNowPrice == nil {
		return nil, reject(fmt.Errorf("%w: buy-now is not offered", ErrInvalidState), a, minNext)
	}
	if a.CurrentBid != nil && *a.CurrentBid > *a.BuyNowPrice {
		return nil, reject(fmt.Errorf("%w: bidding already passed the buy-now price", ErrInvalidState), a, minNext)
	}

	price := *a.BuyNowPrice
	a.Status = StatusEnded
	a.CurrentBid = &price
	a.LeadingBidderID = &buyerID
	a.WinnerID = &buyerID
	a.SoldViaBuyNow = true
	a.BidCount++
	a.EndedAt = &now
	a.UpdatedAt = now

	return NewBid(uuid.New(), a.ID, buyerID, price, now, "", BidKindBuyNow), nil
}

// Cancel is the seller/admin transition out of scheduled or active
func (a *Auction) Cancel(now time.Time) error {
	if a.Status.Terminal() {
		return &Rejection{
			Err:        fmt.Errorf("%w: auction is already %s", ErrInvalidState, a.Status),
			CurrentBid: copyInt64(a.CurrentBid),
			EndAt:      a.EndAt,
			Status:     a.Status,
		}
	}
	a.Status = StatusCancelled
	a.EndedAt = &now
	a.UpdatedAt = now
	return nil
}

// ensureOpen maps the status to the rejection a caller should see
func (a *Auction) ensureOpen(now time.Time) error {
	switch a.Status {
	case StatusActive:
		if !now.Before(a.EndAt) {
			return ErrAuctionEnded
		}
		return nil
	case StatusEnded:
		if a.SoldViaBuyNow {
			return ErrAlreadySold
		}
		return ErrAuctionEnded
	case StatusScheduled:
		return fmt.Errorf("%w: auction has not started", ErrInvalidState)
	default:
		return fmt.Errorf("%w: auction is %s", ErrInvalidState, a.Status)
	}
}

// Handoff returns the order handoff for an auction that ended with a winner
func (a *Auction) Handoff() *OrderHandoff {
	if a.Status != StatusEnded || a.WinnerID == nil || a.CurrentBid == nil {
		return nil
	}
	endedAt := a.UpdatedAt
	if a.EndedAt != nil {
		endedAt = *a.EndedAt
	}
	return &OrderHandoff{
		AuctionID:     a.ID,
		SellerID:      a.SellerID,
		WinnerID:      *a.WinnerID,
		Amount:        *a.CurrentBid,
		SoldViaBuyNow: a.SoldViaBuyNow,
		EndedAt:       endedAt,
	}
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyUUID(v *uuid.UUID) *uuid.UUID {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
