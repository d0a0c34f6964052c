package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cristianortiz/bidEngine/internal/auction/application"
	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/shared/config"
	"github.com/cristianortiz/bidEngine/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// channel format: "auction_events:{auctionID}"
const channelPrefix = "auction_events:"

// Channel is the redis pub/sub channel carrying changes of one auction
func Channel(auctionID uuid.UUID) string {
	return channelPrefix + auctionID.String()
}

// NewRedisClient connects and pings, a failed ping is returned to the caller
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("connected to redis", zap.String("addr", cfg.Addr))
	return rdb, nil
}

// RedisPublisher fans auction changes out to every engine instance
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// PublishAuctionChanged implements application.ChangePublisher
func (p *RedisPublisher) PublishAuctionChanged(ctx context.Context, event domain.AuctionChanged) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, Channel(event.AuctionID), data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", Channel(event.AuctionID), err)
	}
	return nil
}

// Relay subscribes to every auction channel and hands each event to the local viewers
type Relay struct {
	client *redis.Client
	local  application.ChangePublisher
}

func NewRelay(client *redis.Client, local application.ChangePublisher) *Relay {
	return &Relay{client: client, local: local}
}

// Run blocks until ctx is done or the subscription closes
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	// Receive confirms the subscription before we report readiness
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	log.Info("relaying auction events from redis", zap.String("pattern", channelPrefix+"*"))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			event, err := decode(msg.Channel, msg.Payload)
			if err != nil {
				log.Warn("dropping malformed auction event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			if err := r.local.PublishAuctionChanged(ctx, event); err != nil {
				log.Warn("local fan-out failed", zap.String("auction_id", event.AuctionID.String()), zap.Error(err))
			}
		}
	}
}

// decode parses a payload and checks it belongs to the channel it arrived on
func decode(channel, payload string) (domain.AuctionChanged, error) {
	var event domain.AuctionChanged
	id, found := strings.CutPrefix(channel, channelPrefix)
	if !found {
		return event, fmt.Errorf("unexpected channel %q", channel)
	}
	auctionID, err := uuid.Parse(id)
	if err != nil {
		return event, fmt.Errorf("channel %q: %w", channel, err)
	}
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return event, err
	}
	if event.AuctionID != auctionID {
		return event, fmt.Errorf("event for %s published on %s", event.AuctionID, channel)
	}
	return event, nil
}
