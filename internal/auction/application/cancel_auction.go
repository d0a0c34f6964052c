package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/shared/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CancelAuctionDTO struct {
	AuctionID uuid.UUID
	ActorID   uuid.UUID
	// Admin is set for the internal credential, which may cancel any auction
	Admin bool
}

// CancelAuctionUseCase is the seller/admin transition to cancelled
type CancelAuctionUseCase struct {
	auctions     domain.AuctionRepository
	transitioner *Transitioner
	clock        clock.Clock
	policy       Policy
}

func NewCancelAuctionUseCase(auctions domain.AuctionRepository, transitioner *Transitioner, clk clock.Clock,
	policy Policy) *CancelAuctionUseCase {

	return &CancelAuctionUseCase{auctions: auctions, transitioner: transitioner, clock: clk, policy: policy}
}

func (uc *CancelAuctionUseCase) Execute(ctx context.Context, cmd CancelAuctionDTO) (*AuctionStateDTO, error) {
	for attempt := 1; attempt <= uc.policy.attempts(); attempt++ {
		a, err := uc.auctions.GetByID(ctx, cmd.AuctionID)
		if err != nil {
			if errors.Is(err, domain.ErrAuctionNotFound) {
				return nil, err
			}
			return nil, unavailable("cancel auction", err)
		}
		if !cmd.Admin && cmd.ActorID != a.SellerID {
			return nil, a.Reject(fmt.Errorf("%w: only the seller may cancel", domain.ErrForbidden), uc.policy.Increment)
		}

		now := uc.clock.Now()
		next := a.Clone()
		advanced := next.Advance(now)
		if err := next.Cancel(now); err != nil {
			if advanced {
				// an auction past its deadline closes instead
				if cerr := uc.transitioner.commit(ctx, a, next); cerr != nil {
					if errors.Is(cerr, domain.ErrVersionConflict) {
						continue
					}
					return nil, cerr
				}
			}
			return nil, err
		}

		err = uc.transitioner.commit(ctx, a, next)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		log.Info("CancelAuctionUseCase: auction cancelled",
			zap.String("auctionID", next.ID.String()),
			zap.String("actorID", cmd.ActorID.String()),
			zap.Bool("admin", cmd.Admin),
		)
		return toStateDTO(next, uc.policy, now), nil
	}
	return nil, unavailable("cancel auction", domain.ErrVersionConflict)
}
