package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/google/uuid"
)

// Store is an in-process implementation of the auction repositories.
// Each auction has its own lock, so commits on different auctions never contend.
type Store struct {
	mu      sync.RWMutex // guards the entries map only
	entries map[uuid.UUID]*entry
}

type entry struct {
	mu       sync.RWMutex
	auction  *domain.Auction
	bids     []*domain.Bid
	receipts map[receiptKey]*domain.BidReceipt
	handoff  *domain.OrderHandoff
}

type receiptKey struct {
	bidderID uuid.UUID
	key      string
}

func NewStore() *Store {
	return &Store{entries: make(map[uuid.UUID]*entry)}
}

func (s *Store) lookup(id uuid.UUID) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

func (s *Store) snapshot() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

func (s *Store) Create(_ context.Context, a *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[a.ID] = &entry{
		auction:  a.Clone(),
		receipts: make(map[receiptKey]*domain.BidReceipt),
	}
	return nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*domain.Auction, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.auction.Clone(), nil
}

func (s *Store) Commit(_ context.Context, c domain.Commit) error {
	e, ok := s.lookup(c.Auction.ID)
	if !ok {
		return domain.ErrAuctionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.auction.Version != c.ExpectedVersion {
		return domain.ErrVersionConflict
	}
	if c.Receipt != nil {
		if _, seen := e.receipts[receiptKey{c.Receipt.BidderID, c.Receipt.IdempotencyKey}]; seen {
			return domain.ErrVersionConflict
		}
	}

	e.auction = c.Auction.Clone()
	if c.Bid != nil {
		b := *c.Bid
		e.bids = append(e.bids, &b)
	}
	if c.Receipt != nil {
		r := *c.Receipt
		e.receipts[receiptKey{r.BidderID, r.IdempotencyKey}] = &r
	}
	if c.Handoff != nil && e.handoff == nil {
		h := *c.Handoff
		e.handoff = &h
	}
	return nil
}

func (s *Store) PromoteScheduled(_ context.Context, cutoff, now time.Time) ([]*domain.Auction, error) {
	var promoted []*domain.Auction
	for _, e := range s.snapshot() {
		e.mu.Lock()
		if e.auction.Promote(cutoff) {
			e.auction.Version++
			e.auction.UpdatedAt = now
			promoted = append(promoted, e.auction.Clone())
		}
		e.mu.Unlock()
	}
	return promoted, nil
}

func (s *Store) ListExpired(_ context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	var expired []*domain.Auction
	for _, e := range s.snapshot() {
		e.mu.RLock()
		if e.auction.Status == domain.StatusActive && !e.auction.EndAt.After(now) {
			expired = append(expired, e.auction.Clone())
		}
		e.mu.RUnlock()
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].EndAt.Before(expired[j].EndAt) })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (s *Store) FindReceipt(_ context.Context, auctionID, bidderID uuid.UUID, key string) (*domain.BidReceipt, error) {
	e, ok := s.lookup(auctionID)
	if !ok {
		return nil, nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.receipts[receiptKey{bidderID, key}]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

// ListByAuction returns the newest bids first
func (s *Store) ListByAuction(_ context.Context, auctionID uuid.UUID, limit int) ([]*domain.Bid, error) {
	e, ok := s.lookup(auctionID)
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	e.mu.RLock()
	bids := e.bids[:len(e.bids):len(e.bids)]
	e.mu.RUnlock()

	out := make([]*domain.Bid, 0, len(bids))
	for i := len(bids) - 1; i >= 0; i-- {
		b := *bids[i]
		out = append(out, &b)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetLatestByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Bid, error) {
	bids, err := s.ListByAuction(ctx, auctionID, 1)
	if err != nil || len(bids) == 0 {
		return nil, err
	}
	return bids[0], nil
}

func (s *Store) ListPendingHandoffs(_ context.Context, limit int) ([]*domain.OrderHandoff, error) {
	var pending []*domain.OrderHandoff
	for _, e := range s.snapshot() {
		e.mu.RLock()
		if e.handoff != nil && e.handoff.PublishedAt == nil {
			h := *e.handoff
			pending = append(pending, &h)
		}
		e.mu.RUnlock()
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].EndedAt.Before(pending[j].EndedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *Store) MarkHandoffPublished(_ context.Context, auctionID uuid.UUID, at time.Time) error {
	e, ok := s.lookup(auctionID)
	if !ok {
		return domain.ErrAuctionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handoff != nil && e.handoff.PublishedAt == nil {
		e.handoff.PublishedAt = &at
	}
	return nil
}
