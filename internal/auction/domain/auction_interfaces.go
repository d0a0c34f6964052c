package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Commit is one atomic write: the new record guarded by ExpectedVersion plus
// the optional ledger entry, idempotency receipt and order handoff row
type Commit struct {
	Auction         *Auction
	ExpectedVersion int64
	Bid             *Bid
	Receipt         *BidReceipt
	Handoff         *OrderHandoff
}

// NewCommit prepares a commit of next over prev, bumping the version
func NewCommit(prev, next *Auction) Commit {
	next.Version = prev.Version + 1
	c := Commit{
		Auction:         next,
		ExpectedVersion: prev.Version,
	}
	if prev.Status != StatusEnded {
		c.Handoff = next.Handoff()
	}
	return c
}

type AuctionRepository interface {
	Create(ctx context.Context, a *Auction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)
	// Commit fails with ErrVersionConflict when the stored version differs from ExpectedVersion
	Commit(ctx context.Context, c Commit) error
	// PromoteScheduled moves every scheduled auction with start_at <= cutoff to active
	PromoteScheduled(ctx context.Context, cutoff, now time.Time) ([]*Auction, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*Auction, error)
	// FindReceipt returns nil, nil when the key was never recorded
	FindReceipt(ctx context.Context, auctionID, bidderID uuid.UUID, key string) (*BidReceipt, error)
}

type BidRepository interface {
	ListByAuction(ctx context.Context, auctionID uuid.UUID, limit int) ([]*Bid, error)
	GetLatestByAuction(ctx context.Context, auctionID uuid.UUID) (*Bid, error)
}

type HandoffRepository interface {
	ListPendingHandoffs(ctx context.Context, limit int) ([]*OrderHandoff, error)
	MarkHandoffPublished(ctx context.Context, auctionID uuid.UUID, at time.Time) error
}
