package application

import (
	"context"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/shared/clock"
	"github.com/cristianortiz/bidEngine/internal/shared/metrics"
	"go.uber.org/zap"
)

// SweepResult is what one scheduler run changed
type SweepResult struct {
	Promoted int `json:"promoted"`
	Closed   int `json:"closed"`
	Handoffs int `json:"handoffs"`
}

// SweepUseCase is the periodic status scheduler. Lazy transitions on the request path
// remain the correctness backstop between runs.
type SweepUseCase struct {
	auctions     domain.AuctionRepository
	transitioner *Transitioner
	handoffs     *DispatchHandoffsUseCase
	clock        clock.Clock
	policy       Policy
	publisher    ChangePublisher
	metrics      *metrics.Recorder
	horizon      time.Duration
	closeBatch   int
}

func NewSweepUseCase(auctions domain.AuctionRepository, transitioner *Transitioner, handoffs *DispatchHandoffsUseCase,
	clk clock.Clock, policy Policy, publisher ChangePublisher, recorder *metrics.Recorder,
	horizon time.Duration, closeBatch int) *SweepUseCase {

	return &SweepUseCase{
		auctions:     auctions,
		transitioner: transitioner,
		handoffs:     handoffs,
		clock:        clk,
		policy:       policy,
		publisher:    publisher,
		metrics:      recorder,
		horizon:      horizon,
		closeBatch:   closeBatch,
	}
}

// Execute promotes, closes and then hands off the auctions won so far.
// Each step is idempotent, so overlapping runs are safe.
func (uc *SweepUseCase) Execute(ctx context.Context) (*SweepResult, error) {
	promoted, err := uc.PromoteScheduled(ctx)
	if err != nil {
		return nil, err
	}
	closed, err := uc.CloseExpired(ctx)
	if err != nil {
		return &SweepResult{Promoted: promoted}, err
	}
	res := &SweepResult{Promoted: promoted, Closed: closed}
	if uc.handoffs != nil {
		res.Handoffs, err = uc.handoffs.Execute(ctx)
		if err != nil {
			return res, err
		}
	}
	log.Info("SweepUseCase: sweep finished",
		zap.Int("promoted", res.Promoted),
		zap.Int("closed", res.Closed),
		zap.Int("handoffs", res.Handoffs),
	)
	return res, nil
}

// PromoteScheduled activates every scheduled auction starting before now + horizon
func (uc *SweepUseCase) PromoteScheduled(ctx context.Context) (int, error) {
	now := uc.clock.Now()
	cutoff := now.Add(uc.horizon)

	promoted, err := uc.auctions.PromoteScheduled(ctx, cutoff, now)
	if err != nil {
		log.Error("SweepUseCase: Failed to promote scheduled auctions", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, unavailable("promote scheduled", err)
	}

	uc.metrics.Promoted(len(promoted))
	for _, a := range promoted {
		uc.metrics.Transition(string(domain.StatusScheduled), string(domain.StatusActive))
		notify(ctx, uc.publisher, a.ChangeEvent(domain.ChangeStatusChanged, uc.policy.Increment, now))
	}
	return len(promoted), nil
}

// CloseExpired ends active auctions past their deadline so winners are handed off without a read
func (uc *SweepUseCase) CloseExpired(ctx context.Context) (int, error) {
	expired, err := uc.auctions.ListExpired(ctx, uc.clock.Now(), uc.closeBatch)
	if err != nil {
		log.Error("SweepUseCase: Failed to list expired auctions", zap.Error(err))
		return 0, unavailable("close expired", err)
	}

	closed := 0
	for _, a := range expired {
		_, changed, err := uc.transitioner.ensure(ctx, a.ID)
		if err != nil {
			log.Warn("SweepUseCase: Failed to close auction", zap.String("auctionID", a.ID.String()), zap.Error(err))
			continue
		}
		if changed {
			closed++
		}
	}
	return closed, nil
}
