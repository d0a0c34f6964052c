package application

import (
	"context"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/shared/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GetAuctionStateUseCase retrieves the current state of an auction, closing it first if its deadline passed
type GetAuctionStateUseCase struct {
	transitioner *Transitioner
	bids         domain.BidRepository
	clock        clock.Clock
	policy       Policy
}

// NewGetAuctionStateUseCase creates a new instance of GetAuctionStateUseCase.
func NewGetAuctionStateUseCase(transitioner *Transitioner, bids domain.BidRepository, clk clock.Clock,
	policy Policy) *GetAuctionStateUseCase {

	return &GetAuctionStateUseCase{
		transitioner: transitioner,
		bids:         bids,
		clock:        clk,
		policy:       policy,
	}
}

func (uc *GetAuctionStateUseCase) Execute(ctx context.Context, auctionID uuid.UUID) (*AuctionStateDTO, error) {
	a, err := uc.transitioner.EnsureNotExpired(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	dto := toStateDTO(a, uc.policy, uc.clock.Now())

	// the latest ledger entry is a convenience for viewers, the record stays authoritative
	bid, err := uc.bids.GetLatestByAuction(ctx, auctionID)
	if err != nil {
		log.Warn("GetAuctionStateUseCase: Failed to load latest bid", zap.String("auctionID", auctionID.String()), zap.Error(err))
	} else if bid != nil {
		last := toBidDTO(bid)
		dto.LastBid = &last
	}
	return dto, nil
}
