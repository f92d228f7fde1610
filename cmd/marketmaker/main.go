// Command marketmaker runs one ladder session against either a remote
// exchange (EXCHANGE_URL) or an in-process simulated book, and exits non-zero
// when the session cannot start or is aborted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ladderbot/agent"
	"ladderbot/bots"
	"ladderbot/config"
	"ladderbot/engine"
	"ladderbot/logging"
	"ladderbot/remote"
	"ladderbot/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "marketmaker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envPath := flag.String("env", "", "path to a .env file")
	exchangeURL := flag.String("exchange", "", "exchange base URL, overrides EXCHANGE_URL")
	ladderSize := flag.Int("ladder", 0, "buy/sell pairs to place, overrides LADDER_SIZE")
	flag.Parse()

	cfg, warnings := config.LoadFromEnv(*envPath)
	if *exchangeURL != "" {
		cfg.Server.ExchangeURL = *exchangeURL
	}
	if *ladderSize > 0 {
		cfg.Agent.LadderSize = *ladderSize
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range warnings {
		logger.Warn("config value ignored", zap.Error(w))
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Ends the noise traders and metrics endpoint once the session is over.
	runCtx, finish := context.WithCancel(ctx)
	defer finish()
	g, gctx := errgroup.WithContext(runCtx)

	var market agent.Market
	if cfg.Server.ExchangeURL != "" {
		market = remote.New(cfg.Server.ExchangeURL, remote.Options{
			AuthToken: cfg.Server.AuthToken,
			Logger:    logger.Named("remote"),
		})
		logger.Info("trading against remote exchange", zap.String("url", cfg.Server.ExchangeURL))
	} else {
		book, err := simulatedBook(cfg)
		if err != nil {
			return err
		}
		defer book.Stop()
		sup := bots.NewSupervisor(book, book.Trades(), bots.SupervisorConfig{
			OrderInterval: cfg.Market.OrderInterval,
			QuoteInterval: cfg.Market.NoiseInterval,
			Lifetime:      cfg.Market.NoiseLifetime,
			Seed:          cfg.Agent.Seed,
		}, logger.Named("noise"))
		g.Go(func() error {
			sup.Start(gctx)
			return nil
		})
		market = bots.NewEngineMarket(bots.NewThrottledClient(book, nil, nil))
		logger.Info("trading against in-process book", zap.String("symbol", cfg.Market.Symbol))
	}

	metrics := telemetry.NewMetrics()
	metrics.Registry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if cfg.Server.MetricsAddr != "" {
		serveMetrics(gctx, g, cfg.Server.MetricsAddr, metrics.Handler(), logger)
	}

	session := agent.NewSession(market,
		agent.Holdings{Base: cfg.Agent.InitialBase, Quote: cfg.Agent.InitialQuote},
		agent.WithLogger(logger.Named("session")),
		agent.WithObserver(metrics),
		agent.WithIntervals(cfg.Agent.RefreshInterval, cfg.Agent.ReportInterval),
		agent.WithQuantizer(agent.NewQuantizer(rand.New(rand.NewSource(cfg.Agent.Seed)))),
	)

	g.Go(func() error {
		defer finish()
		if err := session.PlaceInitialLadder(gctx, cfg.Agent.LadderSize); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		out := session.Run(gctx)
		logger.Info("session finished",
			zap.Stringer("state", out.State),
			zap.Object("wallet", out.Holdings),
			zap.Int("outstanding", len(out.Outstanding)))
		if out.CancelErr != nil {
			logger.Warn("some cancellations failed", zap.Error(out.CancelErr))
		}
		if out.State == agent.Aborted {
			return fmt.Errorf("session aborted: %w", out.Reason)
		}
		return nil
	})

	return g.Wait()
}

func simulatedBook(cfg config.Config) (*engine.OrderBook, error) {
	book := engine.NewOrderBook(engine.OrderBookConfig{
		Symbol:        cfg.Market.Symbol,
		TickSize:      cfg.Market.TickSize,
		MaxDepth:      cfg.Market.MaxDepth,
		RequestBuffer: 1024,
	})
	rng := rand.New(rand.NewSource(cfg.Agent.Seed))
	if err := bots.SeedBook(book, rng, bots.SeedConfig{Mid: cfg.Market.MidPrice, Levels: cfg.Market.SeedLevels}); err != nil {
		book.Stop()
		return nil, err
	}
	return book, nil
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, handler http.Handler, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
