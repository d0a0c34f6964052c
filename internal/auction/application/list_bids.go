package application

import (
	"context"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/google/uuid"
)

const (
	defaultBidPage = 50
	maxBidPage     = 500
)

type ListBidsDTO struct {
	AuctionID uuid.UUID
	Limit     int
}

// ListBidsUseCase reads the append-only ledger, newest first
type ListBidsUseCase struct {
	transitioner *Transitioner
	bids         domain.BidRepository
}

func NewListBidsUseCase(transitioner *Transitioner, bids domain.BidRepository) *ListBidsUseCase {
	return &ListBidsUseCase{transitioner: transitioner, bids: bids}
}

func (uc *ListBidsUseCase) Execute(ctx context.Context, q ListBidsDTO) ([]BidDTO, error) {
	if _, err := uc.transitioner.EnsureNotExpired(ctx, q.AuctionID); err != nil {
		return nil, err
	}

	limit := q.Limit
	switch {
	case limit <= 0:
		limit = defaultBidPage
	case limit > maxBidPage:
		limit = maxBidPage
	}

	bids, err := uc.bids.ListByAuction(ctx, q.AuctionID, limit)
	if err != nil {
		return nil, unavailable("list bids", err)
	}
	out := make([]BidDTO, 0, len(bids))
	for _, b := range bids {
		out = append(out, toBidDTO(b))
	}
	return out, nil
}
