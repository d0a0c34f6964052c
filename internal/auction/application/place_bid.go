package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/shared/clock"
	"github.com/cristianortiz/bidEngine/internal/shared/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlaceBidDTO is DTO input for PlaceBid useCase, contains the necesary data to make a bid
type PlaceBidDTO struct {
	AuctionID      uuid.UUID
	BidderID       uuid.UUID
	Amount         int64
	IdempotencyKey string
}

// PlaceBidUseCase validates and commits a bid with an optimistic compare-and-swap on the
// auction version. A loser of a concurrent commit re-validates against the new state.
type PlaceBidUseCase struct {
	auctions     domain.AuctionRepository
	transitioner *Transitioner
	clock        clock.Clock
	policy       Policy
	publisher    ChangePublisher
	metrics      *metrics.Recorder
}

// NewPlaceBidUseCase creates a new instace of PlaceBidUseCase struct, it receives dependency through injection
func NewPlaceBidUseCase(auctions domain.AuctionRepository, transitioner *Transitioner, clk clock.Clock,
	policy Policy, publisher ChangePublisher, recorder *metrics.Recorder) *PlaceBidUseCase {

	return &PlaceBidUseCase{
		auctions:     auctions,
		transitioner: transitioner,
		clock:        clk,
		policy:       policy,
		publisher:    publisher,
		metrics:      recorder,
	}
}

func (uc *PlaceBidUseCase) Execute(ctx context.Context, cmd PlaceBidDTO) (*domain.BidResult, error) {
	log.Debug("Executing PlaceBidUseCase",
		zap.String("auctionID", cmd.AuctionID.String()),
		zap.String("bidderID", cmd.BidderID.String()),
		zap.Int64("amount", cmd.Amount),
	)
	// 1. input validation, nothing here depends on the auction state
	if cmd.Amount <= 0 {
		uc.metrics.Bid(domain.ReasonInvalidInput)
		return nil, domain.ErrInvalidAmount
	}
	if cmd.Amount > domain.MaxAmount {
		uc.metrics.Bid(domain.ReasonInvalidInput)
		return nil, fmt.Errorf("%w: amount exceeds %d", domain.ErrInvalidAmount, domain.MaxAmount)
	}
	if cmd.IdempotencyKey == "" {
		uc.metrics.Bid(domain.ReasonInvalidInput)
		return nil, domain.ErrMissingIdempotencyKey
	}

	for attempt := 1; attempt <= uc.policy.attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, unavailable("place bid", err)
		}
		result, err := uc.attempt(ctx, cmd)
		if errors.Is(err, domain.ErrVersionConflict) {
			log.Debug("PlaceBidUseCase: concurrent commit, re-validating",
				zap.String("auctionID", cmd.AuctionID.String()),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			uc.metrics.Bid(domain.ReasonCode(err))
		}
		return result, err
	}

	uc.metrics.Bid(domain.ReasonUnavailable)
	log.Warn("PlaceBidUseCase: retry budget exhausted",
		zap.String("auctionID", cmd.AuctionID.String()),
		zap.Int("attempts", uc.policy.attempts()),
	)
	return nil, unavailable("place bid", domain.ErrVersionConflict)
}

// attempt runs one read-validate-commit cycle, ErrVersionConflict means "start over"
func (uc *PlaceBidUseCase) attempt(ctx context.Context, cmd PlaceBidDTO) (*domain.BidResult, error) {
	// 2. load the record: exists, then seller exclusion
	a, err := uc.auctions.GetByID(ctx, cmd.AuctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return nil, err
		}
		log.Error("PlaceBidUseCase: Failed to get auction", zap.String("auctionID", cmd.AuctionID.String()), zap.Error(err))
		return nil, unavailable("place bid", err)
	}
	if cmd.BidderID == a.SellerID {
		return nil, a.Reject(domain.ErrSellerBid, uc.policy.Increment)
	}

	// 3. a key seen before returns the recorded result without re-validating
	receipt, err := uc.auctions.FindReceipt(ctx, cmd.AuctionID, cmd.BidderID, cmd.IdempotencyKey)
	if err != nil {
		return nil, unavailable("place bid", err)
	}
	if receipt != nil {
		uc.metrics.Bid("replay")
		log.Info("PlaceBidUseCase: idempotent replay",
			zap.String("auctionID", cmd.AuctionID.String()),
			zap.String("bidderID", cmd.BidderID.String()),
		)
		result := receipt.Result
		return &result, nil
	}

	// 4. lazy promotion/closure and the bid itself are validated against the same snapshot
	now := uc.clock.Now()
	next := a.Clone()
	advanced := next.Advance(now)

	outcome, err := next.ApplyBid(cmd.BidderID, cmd.Amount, cmd.IdempotencyKey, now, uc.policy.Increment, uc.policy.Sniping)
	if err != nil {
		if advanced {
			// persist the closure (or promotion) even though this bid is refused
			if cerr := uc.transitioner.commit(ctx, a, next); cerr != nil {
				return nil, cerr
			}
		}
		return nil, err
	}

	// 5. single atomic commit: record, ledger entry and receipt
	result := domain.BidResult{
		Accepted:      true,
		BidID:         outcome.Bid.ID,
		AuctionID:     next.ID,
		NewCurrentBid: cmd.Amount,
		EndAt:         next.EndAt,
		MinNextBid:    next.MinNextBid(uc.policy.Increment),
		Status:        next.Status,
	}
	if outcome.Extended {
		endAt := next.EndAt
		result.NewEndAt = &endAt
	}

	commit := domain.NewCommit(a, next)
	commit.Bid = outcome.Bid
	commit.Receipt = &domain.BidReceipt{
		AuctionID:      next.ID,
		BidderID:       cmd.BidderID,
		IdempotencyKey: cmd.IdempotencyKey,
		Result:         result,
		CreatedAt:      now,
	}

	started := time.Now()
	err = uc.auctions.Commit(ctx, commit)
	uc.metrics.ObserveCommit("place_bid", started)
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			uc.metrics.Conflict("place_bid")
			return nil, err
		}
		log.Error("PlaceBidUseCase: Failed to commit bid",
			zap.String("auctionID", cmd.AuctionID.String()),
			zap.String("bidderID", cmd.BidderID.String()),
			zap.Error(err),
		)
		return nil, unavailable("place bid", err)
	}

	// 6. after commit: metrics, logs and fan-out
	uc.metrics.Bid("accepted")
	uc.transitioner.record(a, next)
	log.Info("PlaceBidUseCase: bid accepted",
		zap.String("auctionID", next.ID.String()),
		zap.String("bidderID", cmd.BidderID.String()),
		zap.Int64("amount", cmd.Amount),
		zap.Bool("extended", outcome.Extended),
		zap.Time("endAt", next.EndAt),
	)
	notify(ctx, uc.publisher, next.ChangeEvent(domain.ChangeBidPlaced, uc.policy.Increment, now))
	return &result, nil
}
