package application

import (
	"context"
	"errors"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/shared/clock"
	"github.com/cristianortiz/bidEngine/internal/shared/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transitioner commits the lazy lifecycle transitions (promotion at start_at, closure at end_at).
// Bid placement, buy-now, reads and the sweep all go through the same domain.Auction.Advance.
type Transitioner struct {
	auctions  domain.AuctionRepository
	clock     clock.Clock
	policy    Policy
	publisher ChangePublisher
	metrics   *metrics.Recorder
}

func NewTransitioner(auctions domain.AuctionRepository, clk clock.Clock, policy Policy,
	publisher ChangePublisher, recorder *metrics.Recorder) *Transitioner {

	return &Transitioner{
		auctions:  auctions,
		clock:     clk,
		policy:    policy,
		publisher: publisher,
		metrics:   recorder,
	}
}

// EnsureNotExpired returns the auction after committing any transition that is due
func (t *Transitioner) EnsureNotExpired(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	a, _, err := t.ensure(ctx, auctionID)
	return a, err
}

func (t *Transitioner) ensure(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, bool, error) {
	for attempt := 1; attempt <= t.policy.attempts(); attempt++ {
		a, err := t.auctions.GetByID(ctx, auctionID)
		if err != nil {
			if errors.Is(err, domain.ErrAuctionNotFound) {
				return nil, false, err
			}
			return nil, false, unavailable("ensure not expired", err)
		}

		next := a.Clone()
		if !next.Advance(t.clock.Now()) {
			return a, false, nil
		}
		err = t.commit(ctx, a, next)
		if err == nil {
			return next, true, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, false, err
		}
	}
	return nil, false, unavailable("ensure not expired", domain.ErrVersionConflict)
}

// commit persists a transition-only change of prev into next
func (t *Transitioner) commit(ctx context.Context, prev, next *domain.Auction) error {
	started := time.Now()
	err := t.auctions.Commit(ctx, domain.NewCommit(prev, next))
	t.metrics.ObserveCommit("transition", started)
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			t.metrics.Conflict("transition")
			return err
		}
		log.Error("Transitioner: Failed to commit lifecycle transition",
			zap.String("auctionID", prev.ID.String()),
			zap.Error(err),
		)
		return unavailable("commit transition", err)
	}
	t.transitioned(ctx, prev, next)
	return nil
}

// transitioned records and announces a committed status change
func (t *Transitioner) transitioned(ctx context.Context, prev, next *domain.Auction) {
	if t.record(prev, next) {
		notify(ctx, t.publisher, next.ChangeEvent(domain.ChangeStatusChanged, t.policy.Increment, t.clock.Now()))
	}
}

func (t *Transitioner) record(prev, next *domain.Auction) bool {
	if prev.Status == next.Status {
		return false
	}
	t.metrics.Transition(string(prev.Status), string(next.Status))
	log.Info("Auction status changed",
		zap.String("auctionID", next.ID.String()),
		zap.String("from", string(prev.Status)),
		zap.String("to", string(next.Status)),
	)
	return true
}
