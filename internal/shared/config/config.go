package config

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env       string          `env:"APP_ENV" env-default:"local"`
	HTTP      HTTPConfig      `env-prefix:"HTTP_"`
	Store     StoreConfig     `env-prefix:"STORE_"`
	DB        DBConfig        `env-prefix:"DB_"`
	Redis     RedisConfig     `env-prefix:"REDIS_"`
	NATS      NATSConfig      `env-prefix:"NATS_"`
	Auction   AuctionConfig   `env-prefix:"AUCTION_"`
	Scheduler SchedulerConfig `env-prefix:"SCHEDULER_"`
	Log       LogConfig       `env-prefix:"LOG_"`
}

type HTTPConfig struct {
	Addr            string        `env:"ADDR" env-default:":9000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"5s"`
	// VerifyUsers checks X-User-ID against the users table (postgres store only)
	VerifyUsers bool `env:"VERIFY_USERS" env-default:"false"`
}

type StoreConfig struct {
	// Driver is "postgres" or "memory"
	Driver string `env:"DRIVER" env-default:"postgres"`
}

// DBConfig keeps the DB_* variable names used since the first migration
type DBConfig struct {
	Host           string `env:"HOST" env-default:"localhost"`
	Port           string `env:"PORT" env-default:"5432"`
	User           string `env:"USER" env-default:"postgres"`
	Password       string `env:"PASSWORD"`
	Name           string `env:"NAME" env-default:"auction_engine"`
	SSLMode        string `env:"SSLMODE" env-default:"disable"`
	MaxConns       int32  `env:"MAX_CONNS" env-default:"20"`
	MigrationsPath string `env:"MIGRATIONS_PATH" env-default:"file://internal/shared/db/migrations/sql"`
}

type RedisConfig struct {
	// Addr empty disables the redis fan-out, events go straight to the local hub
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" env-default:"0"`
}

type NATSConfig struct {
	// URL empty disables order handoff publishing, rows stay pending in the outbox
	URL            string        `env:"URL"`
	Stream         string        `env:"STREAM" env-default:"AUCTION_WON"`
	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" env-default:"5s"`
}

type AuctionConfig struct {
	SnipingWindow    time.Duration `env:"SNIPING_WINDOW" env-default:"2m"`
	SnipingExtension time.Duration `env:"SNIPING_EXTENSION" env-default:"2m"`
	BidMaxAttempts   int           `env:"BID_MAX_ATTEMPTS" env-default:"8"`
}

type SchedulerConfig struct {
	Token string `env:"TOKEN"`
	// Horizon absorbs trigger latency and clock skew between callers when promoting
	Horizon time.Duration `env:"HORIZON" env-default:"4m"`
	// Interval > 0 also runs the sweep in-process, on top of the external trigger
	Interval     time.Duration `env:"INTERVAL" env-default:"0s"`
	CloseBatch   int           `env:"CLOSE_BATCH" env-default:"200"`
	HandoffBatch int           `env:"HANDOFF_BATCH" env-default:"100"`
}

type LogConfig struct {
	Level string `env:"LEVEL" env-default:"debug"`
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Auction.BidMaxAttempts < 1 {
		return fmt.Errorf("config: AUCTION_BID_MAX_ATTEMPTS must be positive, got %d", c.Auction.BidMaxAttempts)
	}
	if c.Auction.SnipingWindow < 0 || c.Auction.SnipingExtension < 0 || c.Scheduler.Horizon < 0 {
		return fmt.Errorf("config: durations must not be negative")
	}
	return nil
}

// PostgresDSN builds the connection url for pgx and golang-migrate
func (d DBConfig) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
