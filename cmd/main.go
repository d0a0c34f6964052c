package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/application"
	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/auction/infra/api"
	"github.com/cristianortiz/bidEngine/internal/auction/infra/events"
	"github.com/cristianortiz/bidEngine/internal/auction/infra/repository/memory"
	"github.com/cristianortiz/bidEngine/internal/auction/infra/repository/postgres"
	auctionws "github.com/cristianortiz/bidEngine/internal/auction/infra/websocket"
	"github.com/cristianortiz/bidEngine/internal/shared/clock"
	"github.com/cristianortiz/bidEngine/internal/shared/config"
	"github.com/cristianortiz/bidEngine/internal/shared/db"
	"github.com/cristianortiz/bidEngine/internal/shared/db/migrations"
	"github.com/cristianortiz/bidEngine/internal/shared/httpserver"
	"github.com/cristianortiz/bidEngine/internal/shared/logger"
	"github.com/cristianortiz/bidEngine/internal/shared/metrics"
	"github.com/cristianortiz/bidEngine/internal/shared/websocket"
	userdomain "github.com/cristianortiz/bidEngine/internal/user/domain"
	"github.com/cristianortiz/bidEngine/internal/user/infra/identity"
	userpostgres "github.com/cristianortiz/bidEngine/internal/user/infra/repository/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// clockResync keeps the engine clock aligned with the database server
const clockResync = 5 * time.Minute

type stores struct {
	auctions domain.AuctionRepository
	bids     domain.BidRepository
	handoffs domain.HandoffRepository
	users    userdomain.UserRepository
	pool     *pgxpool.Pool
}

func main() {
	// logger init
	log := logger.GetLogger()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}
	logger.SetLevel(cfg.Log.Level)
	log.Info("Starting BidEngine server...", zap.String("env", cfg.Env), zap.String("store", cfg.Store.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.NewSystem()
	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal("Store setup failed", zap.Error(err))
	}
	if st.pool != nil {
		defer st.pool.Close()
		syncClock(ctx, st.pool, clk)
	}

	recorder := metrics.New("bid_engine")
	hub := websocket.NewHub()

	// fan-out: redis when configured so every instance reaches its own viewers, else the local hub
	var changes application.ChangePublisher = auctionws.NewHubPublisher(hub)
	var relay *events.Relay
	if cfg.Redis.Addr != "" {
		rdb, err := events.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Redis setup failed", zap.Error(err))
		}
		defer rdb.Close()
		relay = events.NewRelay(rdb, changes)
		changes = events.NewRedisPublisher(rdb)
	}

	var won application.HandoffPublisher
	if cfg.NATS.URL != "" {
		nc, err := events.ConnectNATS(cfg.NATS)
		if err != nil {
			log.Fatal("NATS setup failed", zap.Error(err))
		}
		defer nc.Drain()
		publisher, err := events.NewHandoffPublisher(ctx, nc, cfg.NATS)
		if err != nil {
			log.Fatal("JetStream setup failed", zap.Error(err))
		}
		won = publisher
	} else {
		log.Warn("NATS_URL not set, order handoffs stay pending in the outbox")
	}

	policy := application.DefaultPolicy()
	policy.Sniping = domain.SnipingPolicy{Window: cfg.Auction.SnipingWindow, Extension: cfg.Auction.SnipingExtension}
	policy.MaxAttempts = cfg.Auction.BidMaxAttempts

	svc := application.NewAuctionService(application.Deps{
		Auctions:     st.auctions,
		Bids:         st.bids,
		Handoffs:     st.handoffs,
		Clock:        clk,
		Policy:       policy,
		Changes:      changes,
		Won:          won,
		Metrics:      recorder,
		Horizon:      cfg.Scheduler.Horizon,
		CloseBatch:   cfg.Scheduler.CloseBatch,
		HandoffBatch: cfg.Scheduler.HandoffBatch,
	})

	server := httpserver.NewServer(recorder.Registry, cfg.HTTP.ShutdownTimeout)
	app := server.App()
	if cfg.HTTP.VerifyUsers && st.users != nil {
		app.Use(identity.Middleware(st.users))
	} else {
		app.Use(identity.Middleware(nil))
	}
	api.NewAuctionHandler(svc, cfg.Scheduler.Token).Register(app)
	wsHandler := auctionws.NewAuctionWSHandler(svc, hub)
	wsHandler.Register(ctx, app)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		wsHandler.ListenForMessages(gctx)
		return nil
	})
	g.Go(func() error {
		return server.Start(gctx, cfg.HTTP.Addr)
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	if cfg.Scheduler.Interval > 0 {
		g.Go(func() error {
			runScheduler(gctx, svc, cfg.Scheduler.Interval)
			return nil
		})
	}
	if st.pool != nil {
		g.Go(func() error {
			ticker := time.NewTicker(clockResync)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					syncClock(gctx, st.pool, clk)
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatal("BidEngine stopped with error", zap.Error(err))
	}
	log.Info("BidEngine stopped")
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	log := logger.GetLogger()
	if cfg.Store.Driver == "memory" {
		log.Warn("Using in-memory store, state is lost on restart")
		store := memory.NewStore()
		return &stores{auctions: store, bids: store, handoffs: store}, nil
	}

	log.Info("Running database migrations...")
	if err := migrations.RunMigrations(cfg.DB); err != nil {
		return nil, err
	}
	log.Info("Database migrations completed successfully.")

	pool, err := db.GetPostgresDBPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &stores{
		auctions: postgres.NewAuctionRepository(pool),
		bids:     postgres.NewBidRepository(pool),
		handoffs: postgres.NewHandoffRepository(pool),
		users:    userpostgres.NewUserRepository(pool),
		pool:     pool,
	}, nil
}

// syncClock aligns deadline comparisons with the database clock shared by every instance
func syncClock(ctx context.Context, pool *pgxpool.Pool, clk *clock.System) {
	log := logger.GetLogger()
	ref, err := db.ServerTime(ctx, pool)
	if err != nil {
		log.Warn("Clock sync failed, keeping previous offset", zap.Duration("offset", clk.Offset()), zap.Error(err))
		return
	}
	offset := clk.Sync(ref)
	log.Debug("Clock synchronized with database", zap.Duration("offset", offset))
}

// runScheduler triggers the sweep in-process on top of the external scheduler
func runScheduler(ctx context.Context, svc application.AuctionService, interval time.Duration) {
	log := logger.GetLogger()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := svc.Sweep(ctx)
			if err != nil {
				log.Warn("Scheduled sweep failed", zap.Error(err))
				continue
			}
			if res.Promoted+res.Closed+res.Handoffs > 0 {
				log.Info("Scheduled sweep",
					zap.Int("promoted", res.Promoted),
					zap.Int("closed", res.Closed),
					zap.Int("handoffs", res.Handoffs),
				)
			}
		}
	}
}
