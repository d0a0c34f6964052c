// Package apptest provides a testify mock of application.AuctionService for adapter tests
package apptest

import (
	"context"

	"github.com/cristianortiz/bidEngine/internal/auction/application"
	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockAuctionService struct{ mock.Mock }

var _ application.AuctionService = (*MockAuctionService)(nil)

func (m *MockAuctionService) PlaceBid(ctx context.Context, cmd application.PlaceBidDTO) (*domain.BidResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BidResult), args.Error(1)
}

func (m *MockAuctionService) BuyNow(ctx context.Context, cmd application.BuyNowDTO) (*domain.BidResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BidResult), args.Error(1)
}

func (m *MockAuctionService) GetAuctionState(ctx context.Context, auctionID uuid.UUID) (*application.AuctionStateDTO, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.AuctionStateDTO), args.Error(1)
}

func (m *MockAuctionService) ListBids(ctx context.Context, q application.ListBidsDTO) ([]application.BidDTO, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]application.BidDTO), args.Error(1)
}

func (m *MockAuctionService) CreateAuction(ctx context.Context, cmd application.CreateAuctionDTO) (*application.AuctionStateDTO, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.AuctionStateDTO), args.Error(1)
}

func (m *MockAuctionService) CancelAuction(ctx context.Context, cmd application.CancelAuctionDTO) (*application.AuctionStateDTO, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.AuctionStateDTO), args.Error(1)
}

func (m *MockAuctionService) Sweep(ctx context.Context) (*application.SweepResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.SweepResult), args.Error(1)
}

func (m *MockAuctionService) DispatchHandoffs(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockAuctionService) IncrementHint(price int64) application.IncrementHintDTO {
	args := m.Called(price)
	return args.Get(0).(application.IncrementHintDTO)
}
