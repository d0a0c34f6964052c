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

type BuyNowDTO struct {
	AuctionID uuid.UUID
	BuyerID   uuid.UUID
}

// BuyNowUseCase ends an auction at its buy-now price, racing bids through the same versioned commit
type BuyNowUseCase struct {
	auctions     domain.AuctionRepository
	bids         domain.BidRepository
	transitioner *Transitioner
	clock        clock.Clock
	policy       Policy
	publisher    ChangePublisher
	metrics      *metrics.Recorder
}

func NewBuyNowUseCase(auctions domain.AuctionRepository, bids domain.BidRepository, transitioner *Transitioner,
	clk clock.Clock, policy Policy, publisher ChangePublisher, recorder *metrics.Recorder) *BuyNowUseCase {

	return &BuyNowUseCase{
		auctions:     auctions,
		bids:         bids,
		transitioner: transitioner,
		clock:        clk,
		policy:       policy,
		publisher:    publisher,
		metrics:      recorder,
	}
}

func (uc *BuyNowUseCase) Execute(ctx context.Context, cmd BuyNowDTO) (*domain.BidResult, error) {
	log.Debug("Executing BuyNowUseCase",
		zap.String("auctionID", cmd.AuctionID.String()),
		zap.String("buyerID", cmd.BuyerID.String()),
	)

	for attempt := 1; attempt <= uc.policy.attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, unavailable("buy now", err)
		}
		result, err := uc.attempt(ctx, cmd)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			uc.metrics.BuyNow(domain.ReasonCode(err))
		}
		return result, err
	}

	uc.metrics.BuyNow(domain.ReasonUnavailable)
	return nil, unavailable("buy now", domain.ErrVersionConflict)
}

func (uc *BuyNowUseCase) attempt(ctx context.Context, cmd BuyNowDTO) (*domain.BidResult, error) {
	a, err := uc.auctions.GetByID(ctx, cmd.AuctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return nil, err
		}
		return nil, unavailable("buy now", err)
	}
	if cmd.BuyerID == a.SellerID {
		return nil, a.Reject(domain.ErrSellerBid, uc.policy.Increment)
	}

	// the winning buyer retrying gets its original outcome, everyone else AlreadySold
	if a.SoldViaBuyNow && a.WinnerID != nil && *a.WinnerID == cmd.BuyerID {
		return uc.replay(ctx, a)
	}

	now := uc.clock.Now()
	next := a.Clone()
	advanced := next.Advance(now)

	bid, err := next.ApplyBuyNow(cmd.BuyerID, now, uc.policy.Increment)
	if err != nil {
		if advanced {
			if cerr := uc.transitioner.commit(ctx, a, next); cerr != nil {
				return nil, cerr
			}
		}
		return nil, err
	}

	commit := domain.NewCommit(a, next)
	commit.Bid = bid

	started := time.Now()
	err = uc.auctions.Commit(ctx, commit)
	uc.metrics.ObserveCommit("buy_now", started)
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			uc.metrics.Conflict("buy_now")
			return nil, err
		}
		log.Error("BuyNowUseCase: Failed to commit buy-now",
			zap.String("auctionID", cmd.AuctionID.String()),
			zap.String("buyerID", cmd.BuyerID.String()),
			zap.Error(err),
		)
		return nil, unavailable("buy now", err)
	}

	uc.metrics.BuyNow("accepted")
	uc.transitioner.record(a, next)
	log.Info("BuyNowUseCase: auction sold via buy-now",
		zap.String("auctionID", next.ID.String()),
		zap.String("buyerID", cmd.BuyerID.String()),
		zap.Int64("price", bid.Amount),
	)
	notify(ctx, uc.publisher, next.ChangeEvent(domain.ChangeBuyNow, uc.policy.Increment, now))
	return buyNowResult(next, bid.ID, uc.policy), nil
}

func (uc *BuyNowUseCase) replay(ctx context.Context, a *domain.Auction) (*domain.BidResult, error) {
	latest, err := uc.bids.GetLatestByAuction(ctx, a.ID)
	if err != nil {
		return nil, unavailable("buy now", err)
	}
	var bidID uuid.UUID
	if latest != nil && latest.Kind == domain.BidKindBuyNow {
		bidID = latest.ID
	}
	uc.metrics.BuyNow("replay")
	return buyNowResult(a, bidID, uc.policy), nil
}

func buyNowResult(a *domain.Auction, bidID uuid.UUID, policy Policy) *domain.BidResult {
	return &domain.BidResult{
		Accepted:      true,
		BidID:         bidID,
		AuctionID:     a.ID,
		NewCurrentBid: *a.CurrentBid,
		EndAt:         a.EndAt,
		MinNextBid:    a.MinNextBid(policy.Increment),
		Status:        a.Status,
	}
}
