package application

import (
	"context"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/shared/clock"
	"github.com/cristianortiz/bidEngine/internal/shared/metrics"
	"go.uber.org/zap"
)

// DispatchHandoffsUseCase relays the "auction won" outbox to order creation.
// A row is marked published only after the publisher acknowledged it, the consumer
// side deduplicates on the auction id.
type DispatchHandoffsUseCase struct {
	handoffs  domain.HandoffRepository
	publisher HandoffPublisher
	clock     clock.Clock
	metrics   *metrics.Recorder
	batch     int
}

func NewDispatchHandoffsUseCase(handoffs domain.HandoffRepository, publisher HandoffPublisher, clk clock.Clock,
	recorder *metrics.Recorder, batch int) *DispatchHandoffsUseCase {

	return &DispatchHandoffsUseCase{
		handoffs:  handoffs,
		publisher: publisher,
		clock:     clk,
		metrics:   recorder,
		batch:     batch,
	}
}

// Execute returns how many handoffs were published. Without a publisher rows stay pending.
func (uc *DispatchHandoffsUseCase) Execute(ctx context.Context) (int, error) {
	if uc.publisher == nil {
		return 0, nil
	}
	pending, err := uc.handoffs.ListPendingHandoffs(ctx, uc.batch)
	if err != nil {
		return 0, unavailable("dispatch handoffs", err)
	}

	published := 0
	for _, h := range pending {
		if err := uc.publisher.PublishAuctionWon(ctx, h); err != nil {
			uc.metrics.Handoff("failed")
			log.Warn("DispatchHandoffsUseCase: Failed to publish auction won",
				zap.String("auctionID", h.AuctionID.String()),
				zap.Error(err),
			)
			continue
		}
		if err := uc.handoffs.MarkHandoffPublished(ctx, h.AuctionID, uc.clock.Now()); err != nil {
			// republished next run, the duplicate is collapsed downstream
			log.Warn("DispatchHandoffsUseCase: Failed to mark handoff published",
				zap.String("auctionID", h.AuctionID.String()),
				zap.Error(err),
			)
			continue
		}
		uc.metrics.Handoff("published")
		published++
	}
	return published, nil
}
