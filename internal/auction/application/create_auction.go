package application

import (
	"context"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/shared/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateAuctionDTO struct {
	SellerID        uuid.UUID
	Title           string
	Description     string
	StartAt         time.Time
	EndAt           time.Time
	StartingPrice   int64
	MinBidIncrement *int64
	BuyNowPrice     *int64
}

// CreateAuctionUseCase schedules a new auction for a seller
type CreateAuctionUseCase struct {
	auctions domain.AuctionRepository
	clock    clock.Clock
	policy   Policy
}

func NewCreateAuctionUseCase(auctions domain.AuctionRepository, clk clock.Clock, policy Policy) *CreateAuctionUseCase {
	return &CreateAuctionUseCase{auctions: auctions, clock: clk, policy: policy}
}

func (uc *CreateAuctionUseCase) Execute(ctx context.Context, cmd CreateAuctionDTO) (*AuctionStateDTO, error) {
	now := uc.clock.Now()
	a, err := domain.NewAuction(domain.NewAuctionParams{
		SellerID:        cmd.SellerID,
		Title:           cmd.Title,
		Description:     cmd.Description,
		StartAt:         cmd.StartAt,
		EndAt:           cmd.EndAt,
		StartingPrice:   cmd.StartingPrice,
		MinBidIncrement: cmd.MinBidIncrement,
		BuyNowPrice:     cmd.BuyNowPrice,
	}, now)
	if err != nil {
		return nil, err
	}
	// an auction whose start is already due opens right away
	a.Advance(now)

	if err := uc.auctions.Create(ctx, a); err != nil {
		log.Error("CreateAuctionUseCase: Failed to create auction", zap.String("sellerID", cmd.SellerID.String()), zap.Error(err))
		return nil, unavailable("create auction", err)
	}
	log.Info("CreateAuctionUseCase: auction created",
		zap.String("auctionID", a.ID.String()),
		zap.String("sellerID", a.SellerID.String()),
		zap.String("status", string(a.Status)),
		zap.Time("startAt", a.StartAt),
		zap.Time("endAt", a.EndAt),
	)
	return toStateDTO(a, uc.policy, now), nil
}
