package application

import (
	"context"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/shared/clock"
	"github.com/cristianortiz/bidEngine/internal/shared/logger"
	"github.com/cristianortiz/bidEngine/internal/shared/metrics"
	"github.com/google/uuid"
)

var log = logger.GetLogger()

// AuctionService defines application interface layer of auction module
// exposes uses cases to external layer, aka infra
type AuctionService interface {
	// PlaceBid handles logic when a user makes a bid on an auction, replays the recorded
	// result when the idempotency key was already accepted
	PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*domain.BidResult, error)
	BuyNow(ctx context.Context, cmd BuyNowDTO) (*domain.BidResult, error)
	GetAuctionState(ctx context.Context, auctionID uuid.UUID) (*AuctionStateDTO, error)
	ListBids(ctx context.Context, q ListBidsDTO) ([]BidDTO, error)
	CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*AuctionStateDTO, error)
	CancelAuction(ctx context.Context, cmd CancelAuctionDTO) (*AuctionStateDTO, error)
	Sweep(ctx context.Context) (*SweepResult, error)
	DispatchHandoffs(ctx context.Context) (int, error)
	IncrementHint(price int64) IncrementHintDTO
}

// Deps are the collaborators needed to build every use case
type Deps struct {
	Auctions     domain.AuctionRepository
	Bids         domain.BidRepository
	Handoffs     domain.HandoffRepository
	Clock        clock.Clock
	Policy       Policy
	Changes      ChangePublisher
	Won          HandoffPublisher
	Metrics      *metrics.Recorder
	Horizon      time.Duration
	CloseBatch   int
	HandoffBatch int
}

// concret implementation of AuctionService (struct)
type auctionService struct {
	policy     Policy
	placeBidUC *PlaceBidUseCase
	buyNowUC   *BuyNowUseCase
	getStateUC *GetAuctionStateUseCase
	listBidsUC *ListBidsUseCase
	createUC   *CreateAuctionUseCase
	cancelUC   *CancelAuctionUseCase
	sweepUC    *SweepUseCase
	dispatchUC *DispatchHandoffsUseCase
}

// NewAuctionService wires the use cases around a single Transitioner
func NewAuctionService(d Deps) AuctionService {
	transitioner := NewTransitioner(d.Auctions, d.Clock, d.Policy, d.Changes, d.Metrics)
	dispatch := NewDispatchHandoffsUseCase(d.Handoffs, d.Won, d.Clock, d.Metrics, d.HandoffBatch)

	return &auctionService{
		policy:     d.Policy,
		placeBidUC: NewPlaceBidUseCase(d.Auctions, transitioner, d.Clock, d.Policy, d.Changes, d.Metrics),
		buyNowUC:   NewBuyNowUseCase(d.Auctions, d.Bids, transitioner, d.Clock, d.Policy, d.Changes, d.Metrics),
		getStateUC: NewGetAuctionStateUseCase(transitioner, d.Bids, d.Clock, d.Policy),
		listBidsUC: NewListBidsUseCase(transitioner, d.Bids),
		createUC:   NewCreateAuctionUseCase(d.Auctions, d.Clock, d.Policy),
		cancelUC:   NewCancelAuctionUseCase(d.Auctions, transitioner, d.Clock, d.Policy),
		sweepUC: NewSweepUseCase(d.Auctions, transitioner, dispatch, d.Clock, d.Policy, d.Changes, d.Metrics,
			d.Horizon, d.CloseBatch),
		dispatchUC: dispatch,
	}
}

// PlaceBid implements AuctionService.
func (as *auctionService) PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*domain.BidResult, error) {
	return as.placeBidUC.Execute(ctx, cmd)
}

func (as *auctionService) BuyNow(ctx context.Context, cmd BuyNowDTO) (*domain.BidResult, error) {
	return as.buyNowUC.Execute(ctx, cmd)
}

// GetAuctionState to implementss AuctionService
func (as *auctionService) GetAuctionState(ctx context.Context, auctionID uuid.UUID) (*AuctionStateDTO, error) {
	return as.getStateUC.Execute(ctx, auctionID)
}

func (as *auctionService) ListBids(ctx context.Context, q ListBidsDTO) ([]BidDTO, error) {
	return as.listBidsUC.Execute(ctx, q)
}

func (as *auctionService) CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*AuctionStateDTO, error) {
	return as.createUC.Execute(ctx, cmd)
}

func (as *auctionService) CancelAuction(ctx context.Context, cmd CancelAuctionDTO) (*AuctionStateDTO, error) {
	return as.cancelUC.Execute(ctx, cmd)
}

func (as *auctionService) Sweep(ctx context.Context) (*SweepResult, error) {
	return as.sweepUC.Execute(ctx)
}

func (as *auctionService) DispatchHandoffs(ctx context.Context) (int, error) {
	return as.dispatchUC.Execute(ctx)
}

// IncrementHint is the pure policy lookup used for client-side suggestions
func (as *auctionService) IncrementHint(price int64) IncrementHintDTO {
	step := as.policy.Increment.MinIncrement(price)
	return IncrementHintDTO{Price: price, MinIncrement: step, MinNextBid: price + step}
}
