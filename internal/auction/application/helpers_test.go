package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/auction/infra/repository/memory"
	"github.com/cristianortiz/bidEngine/internal/shared/clock"
	"github.com/cristianortiz/bidEngine/internal/shared/metrics"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.AuctionChanged
	err    error
}

func (p *recordingPublisher) PublishAuctionChanged(_ context.Context, event domain.AuctionChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) kinds() []domain.ChangeKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ChangeKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

type MockHandoffPublisher struct{ mock.Mock }

func (m *MockHandoffPublisher) PublishAuctionWon(ctx context.Context, handoff *domain.OrderHandoff) error {
	args := m.Called(ctx, handoff)
	return args.Error(0)
}

type harness struct {
	svc     AuctionService
	store   *memory.Store
	clock   *clock.Fake
	changes *recordingPublisher
	won     *MockHandoffPublisher
}

func newHarness(t *testing.T, mutate func(d *Deps)) *harness {
	t.Helper()
	h := &harness{
		store:   memory.NewStore(),
		clock:   clock.NewFake(t0),
		changes: &recordingPublisher{},
		won:     new(MockHandoffPublisher),
	}
	d := Deps{
		Auctions:     h.store,
		Bids:         h.store,
		Handoffs:     h.store,
		Clock:        h.clock,
		Policy:       DefaultPolicy(),
		Changes:      h.changes,
		Won:          h.won,
		Metrics:      metrics.New("test"),
		Horizon:      4 * time.Minute,
		CloseBatch:   100,
		HandoffBatch: 100,
	}
	if mutate != nil {
		mutate(&d)
	}
	h.svc = NewAuctionService(d)
	return h
}

// createActive opens an auction that started an hour ago and ends in an hour
func (h *harness) createActive(t *testing.T, startingPrice int64, increment, buyNow *int64) *AuctionStateDTO {
	t.Helper()
	now := h.clock.Now()
	state, err := h.svc.CreateAuction(context.Background(), CreateAuctionDTO{
		SellerID:        uuid.New(),
		Title:           "Vintage road bike",
		StartAt:         now.Add(-time.Hour),
		EndAt:           now.Add(time.Hour),
		StartingPrice:   startingPrice,
		MinBidIncrement: increment,
		BuyNowPrice:     buyNow,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, state.Status)
	return state
}

func (h *harness) bid(auctionID, bidder uuid.UUID, amount int64) (*domain.BidResult, error) {
	return h.svc.PlaceBid(context.Background(), PlaceBidDTO{
		AuctionID:      auctionID,
		BidderID:       bidder,
		Amount:         amount,
		IdempotencyKey: uuid.NewString(),
	})
}

func ptr(v int64) *int64 { return &v }
