package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSweep_PromotesClosesAndHandsOff(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	expiring := h.createActive(t, 100_000, nil, nil)
	winner := uuid.New()
	_, err := h.bid(expiring.AuctionID, winner, 105_000)
	require.NoError(t, err)
	unsold := h.createActive(t, 100_000, nil, nil)

	now := h.clock.Advance(2 * time.Hour)

	create := func(start time.Duration) uuid.UUID {
		s, err := h.svc.CreateAuction(ctx, CreateAuctionDTO{
			SellerID:      uuid.New(),
			StartAt:       now.Add(start),
			EndAt:         now.Add(start + time.Hour),
			StartingPrice: 1_000,
		})
		require.NoError(t, err)
		return s.AuctionID
	}
	withinHorizon := create(3 * time.Minute)
	beyondHorizon := create(10 * time.Minute)

	h.won.On("PublishAuctionWon", mock.Anything, mock.MatchedBy(func(ho *domain.OrderHandoff) bool {
		return ho.AuctionID == expiring.AuctionID && ho.WinnerID == winner && ho.Amount == 105_000
	})).Return(nil).Once()

	res, err := h.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, &SweepResult{Promoted: 1, Closed: 2, Handoffs: 1}, res)
	h.won.AssertExpectations(t)

	statusOf := func(id uuid.UUID) domain.Status {
		a, err := h.store.GetByID(ctx, id)
		require.NoError(t, err)
		return a.Status
	}
	assert.Equal(t, domain.StatusActive, statusOf(withinHorizon))
	assert.Equal(t, domain.StatusScheduled, statusOf(beyondHorizon))
	assert.Equal(t, domain.StatusEnded, statusOf(expiring.AuctionID))

	closed, err := h.store.GetByID(ctx, unsold.AuctionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, closed.Status)
	assert.Nil(t, closed.WinnerID)

	// rerunning is a no-op
	res, err = h.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, &SweepResult{}, res)
	h.won.AssertNumberOfCalls(t, "PublishAuctionWon", 1)
}

func TestSweep_FailedHandoffStaysPending(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.createActive(t, 100_000, nil, ptr(200_000))
	_, err := h.svc.BuyNow(ctx, BuyNowDTO{AuctionID: a.AuctionID, BuyerID: uuid.New()})
	require.NoError(t, err)

	h.won.On("PublishAuctionWon", mock.Anything, mock.Anything).Return(errors.New("nats down")).Once()
	n, err := h.svc.DispatchHandoffs(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.won.On("PublishAuctionWon", mock.Anything, mock.Anything).Return(nil).Once()
	n, err = h.svc.DispatchHandoffs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := h.store.ListPendingHandoffs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSweep_WithoutHandoffPublisher(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Won = nil })
	ctx := context.Background()
	a := h.createActive(t, 100_000, nil, nil)
	_, err := h.bid(a.AuctionID, uuid.New(), 105_000)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Hour)

	res, err := h.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Closed)
	assert.Zero(t, res.Handoffs)

	pending, err := h.store.ListPendingHandoffs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
