// Package config loads ticketd settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/checkin"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/database"
)

type Config struct {
	Port string

	RPCURL           string
	ContractAddress  common.Address
	ChainID          int64 // 0 uses the node's chain id
	WalletPrivateKey string

	// Database is nil when no database is configured; state is then kept
	// in memory.
	Database *database.Config

	RabbitMQURL string

	PollInterval    time.Duration
	RefreshDelay    time.Duration
	ConfirmTimeout  time.Duration
	ReadConcurrency int
	ReadTimeout     time.Duration

	PublicBaseURL string
	CheckInSource checkin.Source
	GuardOrder    checkin.GuardOrder

	LogLevel slog.Level
}

// Load reads envFile (if it exists) into the environment without
// overriding variables that are already set, then builds the Config. An
// empty envFile means ".env".
func Load(envFile string) (*Config, error) {
	explicit := envFile != ""
	if !explicit {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv()
}

// FromEnv builds the Config from the current environment.
func FromEnv() (*Config, error) {
	p := parser{}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		RPCURL:           getEnv("RPC_URL", "https://data-seed-prebsc-1-s1.bnbchain.org:8545"),
		ChainID:          p.int64("CHAIN_ID", 0),
		WalletPrivateKey: strings.TrimPrefix(os.Getenv("WALLET_PRIVATE_KEY"), "0x"),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		PollInterval:     p.duration("POLL_INTERVAL", 15*time.Second),
		RefreshDelay:     p.duration("REFRESH_DELAY", 2*time.Second),
		ConfirmTimeout:   p.duration("CONFIRM_TIMEOUT", 0),
		ReadConcurrency:  int(p.int64("READ_CONCURRENCY", 8)),
		ReadTimeout:      p.duration("READ_TIMEOUT", 10*time.Second),
		PublicBaseURL:    getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
	}

	addr, ok := chain.ParseAddress(os.Getenv("CONTRACT_ADDRESS"))
	if !ok {
		p.fail("CONTRACT_ADDRESS", "must be a 0x-prefixed 20-byte address")
	}
	cfg.ContractAddress = addr

	var err error
	if cfg.CheckInSource, err = checkin.ParseSource(os.Getenv("CHECKIN_SOURCE")); err != nil {
		p.fail("CHECKIN_SOURCE", err.Error())
	}
	if cfg.GuardOrder, err = checkin.ParseGuardOrder(os.Getenv("CHECKIN_GUARD_ORDER")); err != nil {
		p.fail("CHECKIN_GUARD_ORDER", err.Error())
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		p.fail("LOG_LEVEL", err.Error())
	}

	if cfg.PollInterval <= 0 {
		p.fail("POLL_INTERVAL", "must be positive")
	}
	if cfg.ReadConcurrency <= 0 {
		p.fail("READ_CONCURRENCY", "must be positive")
	}

	cfg.Database = databaseFromEnv()

	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	return cfg, nil
}

// databaseFromEnv returns nil unless DATABASE_URL or DB_HOST is set.
func databaseFromEnv() *database.Config {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return &database.Config{URL: url}
	}
	if os.Getenv("DB_HOST") == "" {
		return nil
	}
	return &database.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "ticketing"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

// NewLogger returns the process logger: JSON on stderr at level.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser collects every malformed variable so they can be reported at once.
type parser struct {
	errs []error
}

func (p *parser) fail(key, msg string) {
	p.errs = append(p.errs, fmt.Errorf("%s: %s", key, msg))
}

func (p *parser) int64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, "must be an integer")
		return fallback
	}
	return n
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, "must be a duration such as 2s or 500ms")
		return fallback
	}
	if d < 0 {
		p.fail(key, "must not be negative")
		return fallback
	}
	return d
}
