package application

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/auction/infra/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceBid_InputValidation(t *testing.T) {
	h := newHarness(t, nil)
	a := h.createActive(t, 100_000, nil, nil)

	_, err := h.svc.PlaceBid(context.Background(), PlaceBidDTO{AuctionID: a.AuctionID, BidderID: uuid.New(), Amount: 0, IdempotencyKey: "k"})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = h.svc.PlaceBid(context.Background(), PlaceBidDTO{AuctionID: a.AuctionID, BidderID: uuid.New(), Amount: 200_000})
	assert.ErrorIs(t, err, domain.ErrMissingIdempotencyKey)

	_, err = h.bid(uuid.New(), uuid.New(), 200_000)
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestPlaceBid_AmountCeiling(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		wantErr bool
	}{
		{"at ceiling", domain.MaxAmount, false},
		{"above ceiling", domain.MaxAmount + 1, true},
		{"int64 max", math.MaxInt64, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			a := h.createActive(t, 100_000, ptr(5_000), nil)

			_, err := h.bid(a.AuctionID, uuid.New(), tt.amount)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidAmount)
				assert.Equal(t, domain.ReasonInvalidInput, domain.ReasonCode(err))
				state, err := h.svc.GetAuctionState(context.Background(), a.AuctionID)
				require.NoError(t, err)
				assert.Nil(t, state.CurrentBid)
				return
			}
			require.NoError(t, err)

			// the price never goes back down after a ceiling bid
			_, err = h.bid(a.AuctionID, uuid.New(), 200_000)
			assert.ErrorIs(t, err, domain.ErrBidTooLow)
			state, err := h.svc.GetAuctionState(context.Background(), a.AuctionID)
			require.NoError(t, err)
			assert.Equal(t, domain.MaxAmount, *state.CurrentBid)
		})
	}
}

func TestCreateAuction_StartingPriceNearInt64Max(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.CreateAuction(context.Background(), CreateAuctionDTO{
		SellerID:      uuid.New(),
		Title:         "Overpriced",
		StartAt:       t0,
		EndAt:         t0.Add(time.Hour),
		StartingPrice: math.MaxInt64 - 10,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
}

func TestPlaceBid_StartingPriceScenario(t *testing.T) {
	h := newHarness(t, nil)
	a := h.createActive(t, 100_000, ptr(5_000), nil)
	alice, bob := uuid.New(), uuid.New()

	_, err := h.bid(a.AuctionID, alice, 100_000)
	var rej *domain.Rejection
	require.ErrorAs(t, err, &rej)
	assert.ErrorIs(t, err, domain.ErrBidTooLow)
	assert.Nil(t, rej.CurrentBid)
	assert.Equal(t, int64(105_000), rej.MinNextBid)

	res, err := h.bid(a.AuctionID, alice, 105_000)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, int64(105_000), res.NewCurrentBid)
	assert.Equal(t, int64(110_000), res.MinNextBid)
	assert.Nil(t, res.NewEndAt)

	// 115000 lands first, 110000 is then an outbid with the new price attached
	_, err = h.bid(a.AuctionID, bob, 115_000)
	require.NoError(t, err)
	_, err = h.bid(a.AuctionID, alice, 110_000)
	require.ErrorAs(t, err, &rej)
	assert.ErrorIs(t, err, domain.ErrBidTooLow)
	require.NotNil(t, rej.CurrentBid)
	assert.Equal(t, int64(115_000), *rej.CurrentBid)
	assert.Equal(t, int64(120_000), rej.MinNextBid)

	state, err := h.svc.GetAuctionState(context.Background(), a.AuctionID)
	require.NoError(t, err)
	assert.Equal(t, int64(115_000), *state.CurrentBid)
	assert.Equal(t, bob, *state.LeadingBidderID)
	assert.Equal(t, 2, state.BidCount)
	require.NotNil(t, state.LastBid)
	assert.Equal(t, int64(115_000), state.LastBid.Amount)
}

func TestPlaceBid_NearSimultaneousPair(t *testing.T) {
	h := newHarness(t, nil)
	a := h.createActive(t, 100_000, ptr(5_000), nil)
	_, err := h.bid(a.AuctionID, uuid.New(), 105_000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(map[int64]error)
	var mu sync.Mutex
	for _, amount := range []int64{110_000, 115_000} {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			_, err := h.bid(a.AuctionID, uuid.New(), amount)
			mu.Lock()
			errs[amount] = err
			mu.Unlock()
		}(amount)
	}
	wg.Wait()

	require.NoError(t, errs[115_000])
	if errs[110_000] != nil {
		var rej *domain.Rejection
		require.ErrorAs(t, errs[110_000], &rej)
		assert.ErrorIs(t, rej, domain.ErrBidTooLow)
		assert.Equal(t, int64(115_000), *rej.CurrentBid)
	}

	state, err := h.svc.GetAuctionState(context.Background(), a.AuctionID)
	require.NoError(t, err)
	assert.Equal(t, int64(115_000), *state.CurrentBid)
}

func TestPlaceBid_ConcurrentBidsKeepLedgerMonotonic(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Policy.MaxAttempts = 64 })
	a := h.createActive(t, 100_000, ptr(5_000), nil)

	const bidders = 40
	var wg sync.WaitGroup
	var mu sync.Mutex
	var accepted []int64
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := int64(105_000 + (i*7919)%bidders*2_500)
			res, err := h.bid(a.AuctionID, uuid.New(), amount)
			if err != nil {
				assert.True(t, errors.Is(err, domain.ErrBidTooLow) || errors.Is(err, domain.ErrUnavailable), err.Error())
				return
			}
			mu.Lock()
			accepted = append(accepted, res.NewCurrentBid)
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	require.NotEmpty(t, accepted)

	bids, err := h.svc.ListBids(context.Background(), ListBidsDTO{AuctionID: a.AuctionID, Limit: maxBidPage})
	require.NoError(t, err)
	require.Len(t, bids, len(accepted))

	// ledger is newest first
	for i := len(bids) - 2; i >= 0; i-- {
		assert.GreaterOrEqual(t, bids[i].Amount, bids[i+1].Amount+5_000)
	}

	var highest int64
	for _, v := range accepted {
		highest = max(highest, v)
	}
	state, err := h.svc.GetAuctionState(context.Background(), a.AuctionID)
	require.NoError(t, err)
	assert.Equal(t, highest, *state.CurrentBid)
	assert.Equal(t, bids[0].Amount, *state.CurrentBid)
}

func TestPlaceBid_IdempotentReplay(t *testing.T) {
	h := newHarness(t, nil)
	a := h.createActive(t, 100_000, ptr(5_000), nil)
	bidder := uuid.New()
	ctx := context.Background()
	cmd := PlaceBidDTO{AuctionID: a.AuctionID, BidderID: bidder, Amount: 105_000, IdempotencyKey: "retry-me"}

	first, err := h.svc.PlaceBid(ctx, cmd)
	require.NoError(t, err)

	// an outbid in between does not change what the retry sees
	_, err = h.bid(a.AuctionID, uuid.New(), 150_000)
	require.NoError(t, err)

	second, err := h.svc.PlaceBid(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	cmd.Amount = 999_999
	third, err := h.svc.PlaceBid(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, first, third)

	bids, err := h.svc.ListBids(ctx, ListBidsDTO{AuctionID: a.AuctionID})
	require.NoError(t, err)
	assert.Len(t, bids, 2)
}

func TestPlaceBid_ConcurrentReplayWritesOnce(t *testing.T) {
	h := newHarness(t, nil)
	a := h.createActive(t, 100_000, ptr(5_000), nil)
	cmd := PlaceBidDTO{AuctionID: a.AuctionID, BidderID: uuid.New(), Amount: 120_000, IdempotencyKey: "double-click"}

	const callers = 10
	results := make([]*domain.BidResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.svc.PlaceBid(context.Background(), cmd)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
	bids, err := h.svc.ListBids(context.Background(), ListBidsDTO{AuctionID: a.AuctionID})
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestPlaceBid_RejectedKeyCanBeRetried(t *testing.T) {
	h := newHarness(t, nil)
	a := h.createActive(t, 100_000, ptr(5_000), nil)
	cmd := PlaceBidDTO{AuctionID: a.AuctionID, BidderID: uuid.New(), Amount: 101_000, IdempotencyKey: "k"}

	_, err := h.svc.PlaceBid(context.Background(), cmd)
	require.ErrorIs(t, err, domain.ErrBidTooLow)

	cmd.Amount = 105_000
	res, err := h.svc.PlaceBid(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, int64(105_000), res.NewCurrentBid)
}

func TestPlaceBid_AntiSniping(t *testing.T) {
	h := newHarness(t, nil)
	a := h.createActive(t, 100_000, ptr(5_000), nil)
	end := a.EndAt

	h.clock.Set(end.Add(-10 * time.Minute))
	res, err := h.bid(a.AuctionID, uuid.New(), 105_000)
	require.NoError(t, err)
	assert.Nil(t, res.NewEndAt)
	assert.Equal(t, end, res.EndAt)

	h.clock.Set(end.Add(-60 * time.Second))
	res, err = h.bid(a.AuctionID, uuid.New(), 110_000)
	require.NoError(t, err)
	require.NotNil(t, res.NewEndAt)
	assert.Equal(t, end.Add(60*time.Second), *res.NewEndAt)

	// past the original deadline but inside the extended one
	h.clock.Set(end.Add(30 * time.Second))
	res, err = h.bid(a.AuctionID, uuid.New(), 115_000)
	require.NoError(t, err)
	require.NotNil(t, res.NewEndAt)
	assert.Equal(t, end.Add(150*time.Second), *res.NewEndAt)

	assert.Contains(t, h.changes.kinds(), domain.ChangeBidPlaced)
}

func TestPlaceBid_LazyClosureRejectsLateBid(t *testing.T) {
	h := newHarness(t, nil)
	a := h.createActive(t, 100_000, ptr(5_000), nil)
	leader := uuid.New()
	_, err := h.bid(a.AuctionID, leader, 105_000)
	require.NoError(t, err)

	// no sweep has run
	h.clock.Set(a.EndAt.Add(time.Millisecond))
	_, err = h.bid(a.AuctionID, uuid.New(), 500_000)
	var rej *domain.Rejection
	require.ErrorAs(t, err, &rej)
	assert.ErrorIs(t, err, domain.ErrAuctionEnded)
	assert.Equal(t, domain.StatusEnded, rej.Status)
	assert.Equal(t, int64(105_000), *rej.CurrentBid)

	stored, err := h.store.GetByID(context.Background(), a.AuctionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, stored.Status)
	assert.Equal(t, int64(105_000), *stored.CurrentBid)
	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, leader, *stored.WinnerID)

	pending, err := h.store.ListPendingHandoffs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, leader, pending[0].WinnerID)
	assert.Contains(t, h.changes.kinds(), domain.ChangeStatusChanged)
}

func TestPlaceBid_ScheduledAuction(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a, err := h.svc.CreateAuction(ctx, CreateAuctionDTO{
		SellerID:      uuid.New(),
		StartAt:       t0.Add(time.Hour),
		EndAt:         t0.Add(2 * time.Hour),
		StartingPrice: 1_000,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusScheduled, a.Status)

	_, err = h.bid(a.AuctionID, uuid.New(), 5_000)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	// start reached, the bid path promotes before validating
	h.clock.Set(t0.Add(time.Hour))
	res, err := h.bid(a.AuctionID, uuid.New(), 5_000)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, res.Status)
}

func TestPlaceBid_SellerExcludedInEveryState(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	seller := uuid.New()
	a, err := h.svc.CreateAuction(ctx, CreateAuctionDTO{
		SellerID:      seller,
		StartAt:       t0.Add(time.Minute),
		EndAt:         t0.Add(time.Hour),
		StartingPrice: 1_000,
		BuyNowPrice:   ptr(50_000),
	})
	require.NoError(t, err)

	check := func(label string) {
		_, err := h.bid(a.AuctionID, seller, 10_000)
		assert.ErrorIs(t, err, domain.ErrForbidden, label)
		_, err = h.svc.BuyNow(ctx, BuyNowDTO{AuctionID: a.AuctionID, BuyerID: seller})
		assert.ErrorIs(t, err, domain.ErrForbidden, label)
	}

	check("scheduled")
	h.clock.Set(t0.Add(2 * time.Minute))
	check("active")
	h.clock.Set(t0.Add(2 * time.Hour))
	check("ended")
}

type failingStore struct {
	*memory.Store
	err     error
	commits int
	mu      sync.Mutex
}

func (s *failingStore) Commit(context.Context, domain.Commit) error {
	s.mu.Lock()
	s.commits++
	s.mu.Unlock()
	return s.err
}

func TestPlaceBid_StoreFailures(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCommits int
	}{
		{name: "store down", err: errors.New("connection refused"), wantCommits: 1},
		{name: "conflict every time", err: domain.ErrVersionConflict, wantCommits: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &failingStore{Store: memory.NewStore(), err: tt.err}
			h := newHarness(t, func(d *Deps) {
				d.Auctions = store
				d.Policy.MaxAttempts = 3
			})
			a := h.createActive(t, 100_000, nil, nil)

			_, err := h.bid(a.AuctionID, uuid.New(), 200_000)
			assert.ErrorIs(t, err, domain.ErrUnavailable)
			assert.Equal(t, domain.ReasonUnavailable, domain.ReasonCode(err))
			assert.Equal(t, tt.wantCommits, store.commits)
		})
	}
}

func TestPlaceBid_PublishFailureDoesNotUndoBid(t *testing.T) {
	h := newHarness(t, nil)
	h.changes.err = errors.New("redis down")
	a := h.createActive(t, 100_000, nil, nil)

	res, err := h.bid(a.AuctionID, uuid.New(), 105_000)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}
