// Package config loads runtime settings for the exchange and market maker
// binaries. Priority: environment > .env file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Agent struct {
	InitialBase     decimal.Decimal
	InitialQuote    decimal.Decimal
	LadderSize      int
	RefreshInterval time.Duration
	ReportInterval  time.Duration
	Seed            int64
}

// Market describes the simulated book and its noise traders.
type Market struct {
	Symbol        string
	TickSize      decimal.Decimal
	MaxDepth      int
	MidPrice      decimal.Decimal
	SeedLevels    int
	NoiseInterval time.Duration
	NoiseLifetime time.Duration
	OrderInterval time.Duration
}

type Server struct {
	// ExchangeURL points the market maker at a remote exchange; empty runs
	// an in-process book.
	ExchangeURL string
	ListenAddr  string
	AuthToken   string
	CORSOrigin  string
	// MetricsAddr serves /metrics when set.
	MetricsAddr string
}

type Log struct {
	Level string
	File  string
}

type Config struct {
	Agent  Agent
	Market Market
	Server Server
	Log    Log
}

// Default is the configuration used when no environment is set.
func Default() Config {
	return Config{
		Agent: Agent{
			InitialBase:     decimal.NewFromInt(10),
			InitialQuote:    decimal.NewFromInt(2000),
			LadderSize:      5,
			RefreshInterval: 5 * time.Second,
			ReportInterval:  30 * time.Second,
			Seed:            time.Now().UnixNano(),
		},
		Market: Market{
			Symbol:        "ETH-USD",
			TickSize:      decimal.New(1, -1),
			MaxDepth:      200,
			MidPrice:      decimal.NewFromInt(200),
			SeedLevels:    20,
			NoiseInterval: 200 * time.Millisecond,
			NoiseLifetime: 2 * time.Second,
			OrderInterval: 20 * time.Millisecond,
		},
		Server: Server{
			ListenAddr: ":8080",
			CORSOrigin: "*",
		},
		Log: Log{Level: "info"},
	}
}

// LoadFromEnv reads an optional .env file (envPath, or ./.env when empty) and
// applies environment overrides to Default(). Unparseable values keep their
// default and are returned as warnings for the caller to log, as is an
// explicit envPath that cannot be loaded.
func LoadFromEnv(envPath string) (Config, []error) {
	cfg := Default()

	var warnings []error
	warn := func(err error) {
		if err != nil {
			warnings = append(warnings, err)
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			warn(fmt.Errorf("env file %s: %w, keeping process environment only", envPath, err))
		}
	} else {
		_ = godotenv.Load()
	}

	warn(decimalEnv("INITIAL_BASE", &cfg.Agent.InitialBase))
	warn(decimalEnv("INITIAL_QUOTE", &cfg.Agent.InitialQuote))
	warn(intEnv("LADDER_SIZE", &cfg.Agent.LadderSize))
	warn(durationEnv("REFRESH_INTERVAL", &cfg.Agent.RefreshInterval))
	warn(durationEnv("REPORT_INTERVAL", &cfg.Agent.ReportInterval))
	warn(int64Env("SEED", &cfg.Agent.Seed))

	stringEnv("SYMBOL", &cfg.Market.Symbol)
	warn(decimalEnv("TICK_SIZE", &cfg.Market.TickSize))
	warn(intEnv("MAX_DEPTH", &cfg.Market.MaxDepth))
	warn(decimalEnv("MID_PRICE", &cfg.Market.MidPrice))
	warn(intEnv("SEED_LEVELS", &cfg.Market.SeedLevels))
	warn(durationEnv("NOISE_INTERVAL", &cfg.Market.NoiseInterval))
	warn(durationEnv("NOISE_LIFETIME", &cfg.Market.NoiseLifetime))
	warn(durationEnv("ORDER_INTERVAL", &cfg.Market.OrderInterval))

	stringEnv("EXCHANGE_URL", &cfg.Server.ExchangeURL)
	stringEnv("LISTEN_ADDR", &cfg.Server.ListenAddr)
	stringEnv("AUTH_TOKEN", &cfg.Server.AuthToken)
	stringEnv("CORS_ORIGIN", &cfg.Server.CORSOrigin)
	stringEnv("METRICS_ADDR", &cfg.Server.MetricsAddr)

	stringEnv("LOG_LEVEL", &cfg.Log.Level)
	stringEnv("LOG_FILE", &cfg.Log.File)

	return cfg, warnings
}

// Validate rejects settings a session or book cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Agent.InitialBase.IsNegative() || c.Agent.InitialQuote.IsNegative() {
		errs = append(errs, errors.New("initial holdings must not be negative"))
	}
	if c.Agent.LadderSize < 1 {
		errs = append(errs, fmt.Errorf("ladder size must be positive, got %d", c.Agent.LadderSize))
	}
	if c.Agent.RefreshInterval <= 0 || c.Agent.ReportInterval <= 0 {
		errs = append(errs, errors.New("refresh and report intervals must be positive"))
	}
	if c.Market.Symbol == "" {
		errs = append(errs, errors.New("symbol is required"))
	}
	if c.Market.TickSize.Sign() <= 0 {
		errs = append(errs, fmt.Errorf("tick size must be positive, got %s", c.Market.TickSize))
	}
	if c.Market.MidPrice.Sign() <= 0 {
		errs = append(errs, fmt.Errorf("mid price must be positive, got %s", c.Market.MidPrice))
	}
	if c.Market.SeedLevels < 1 {
		errs = append(errs, fmt.Errorf("seed levels must be positive, got %d", c.Market.SeedLevels))
	}
	if c.Market.NoiseInterval <= 0 || c.Market.NoiseLifetime <= 0 || c.Market.OrderInterval <= 0 {
		errs = append(errs, errors.New("noise and order intervals must be positive"))
	}
	return errors.Join(errs...)
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func stringEnv(key string, dst *string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func decimalEnv(key string, dst *decimal.Decimal) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	parsed, err := decimal.NewFromString(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q, keeping %s: %w", key, v, dst.String(), err)
	}
	*dst = parsed
	return nil
}

func intEnv(key string, dst *int) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q, keeping %d: %w", key, v, *dst, err)
	}
	*dst = parsed
	return nil
}

func int64Env(key string, dst *int64) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s value %q, keeping %d: %w", key, v, *dst, err)
	}
	*dst = parsed
	return nil
}

func durationEnv(key string, dst *time.Duration) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q, keeping %s: %w", key, v, *dst, err)
	}
	*dst = parsed
	return nil
}
