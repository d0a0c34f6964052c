package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/shared/config"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

const wonSubjectPrefix = "auction.won."

// dedupWindow bounds how long jetstream remembers a handoff msg id
const dedupWindow = 24 * time.Hour

// WonSubject is the subject carrying the order handoff of one auction
func WonSubject(auctionID uuid.UUID) string {
	return wonSubjectPrefix + auctionID.String()
}

// ConnectNATS dials the server, reconnecting forever once connected
func ConnectNATS(cfg config.NATSConfig) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("bid-engine"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// HandoffPublisher delivers "auction won" events to order creation through jetstream
type HandoffPublisher struct {
	js      jetstream.JetStream
	timeout time.Duration
}

// NewHandoffPublisher creates or updates the stream backing the handoffs
func NewHandoffPublisher(ctx context.Context, nc *nats.Conn, cfg config.NATSConfig) (*HandoffPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "Won auctions awaiting order creation",
		Subjects:    []string{wonSubjectPrefix + "*"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		Duplicates:  dedupWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create stream %s: %w", cfg.Stream, err)
	}
	log.Info("jetstream stream ready", zap.String("stream", cfg.Stream))
	return newHandoffPublisher(js, cfg.PublishTimeout), nil
}

func newHandoffPublisher(js jetstream.JetStream, timeout time.Duration) *HandoffPublisher {
	return &HandoffPublisher{js: js, timeout: timeout}
}

// PublishAuctionWon implements application.HandoffPublisher. The auction id is the
// msg id so a republish after a crash before MarkHandoffPublished is dropped by the server
func (p *HandoffPublisher) PublishAuctionWon(ctx context.Context, h *domain.OrderHandoff) error {
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ack, err := p.js.Publish(ctx, WonSubject(h.AuctionID), data, jetstream.WithMsgID(h.AuctionID.String()))
	if err != nil {
		return fmt.Errorf("jetstream publish %s: %w", WonSubject(h.AuctionID), err)
	}
	log.Debug("order handoff published",
		zap.String("auction_id", h.AuctionID.String()),
		zap.Uint64("seq", ack.Sequence),
		zap.Bool("duplicate", ack.Duplicate),
	)
	return nil
}
