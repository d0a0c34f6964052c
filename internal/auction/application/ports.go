package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"go.uber.org/zap"
)

// ChangePublisher fans out notify-only change events to live viewers
type ChangePublisher interface {
	PublishAuctionChanged(ctx context.Context, event domain.AuctionChanged) error
}

// HandoffPublisher delivers "auction won" events to order creation
type HandoffPublisher interface {
	PublishAuctionWon(ctx context.Context, handoff *domain.OrderHandoff) error
}

// Policy groups the tunables shared by the bidding use cases
type Policy struct {
	Increment   domain.IncrementPolicy
	Sniping     domain.SnipingPolicy
	MaxAttempts int
}

// DefaultPolicy is a 2m/2m anti-sniping window with the tiered increment table
func DefaultPolicy() Policy {
	return Policy{
		Increment:   domain.DefaultIncrementPolicy(),
		Sniping:     domain.SnipingPolicy{Window: 2 * time.Minute, Extension: 2 * time.Minute},
		MaxAttempts: 8,
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// notify publishes after commit, failures never affect the committed outcome
func notify(ctx context.Context, publisher ChangePublisher, event domain.AuctionChanged) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishAuctionChanged(ctx, event); err != nil {
		log.Warn("Failed to publish auction change",
			zap.String("auctionID", event.AuctionID.String()),
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
	}
}

// unavailable marks a store failure as safe to retry
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrUnavailable, err)
}
