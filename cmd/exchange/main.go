// Command exchange serves a simulated single-symbol order book over HTTP,
// seeded with resting liquidity and kept moving by noise traders.
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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ladderbot/bots"
	"ladderbot/config"
	"ladderbot/engine"
	"ladderbot/logging"
	"ladderbot/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "exchange: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envPath := flag.String("env", "", "path to a .env file")
	listen := flag.String("listen", "", "listen address, overrides LISTEN_ADDR")
	noNoise := flag.Bool("no-noise", false, "serve the seeded book without noise traders")
	flag.Parse()

	cfg, warnings := config.LoadFromEnv(*envPath)
	if *listen != "" {
		cfg.Server.ListenAddr = *listen
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

	book := engine.NewOrderBook(engine.OrderBookConfig{
		Symbol:        cfg.Market.Symbol,
		TickSize:      cfg.Market.TickSize,
		MaxDepth:      cfg.Market.MaxDepth,
		RequestBuffer: 1024,
	})
	defer book.Stop()

	rng := rand.New(rand.NewSource(cfg.Agent.Seed))
	if err := bots.SeedBook(book, rng, bots.SeedConfig{Mid: cfg.Market.MidPrice, Levels: cfg.Market.SeedLevels}); err != nil {
		return err
	}

	srv := server.New(book, server.Options{
		AuthToken:  cfg.Server.AuthToken,
		CORSOrigin: cfg.Server.CORSOrigin,
		Logger:     logger.Named("http"),
	})
	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if !*noNoise {
		trades, unsubscribe := srv.SubscribeTrades(256)
		defer unsubscribe()
		sup := bots.NewSupervisor(book, trades, bots.SupervisorConfig{
			OrderInterval: cfg.Market.OrderInterval,
			QuoteInterval: cfg.Market.NoiseInterval,
			Lifetime:      cfg.Market.NoiseLifetime,
			Seed:          cfg.Agent.Seed,
		}, logger.Named("noise"))
		g.Go(func() error {
			sup.Start(gctx)
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("exchange listening",
			zap.String("addr", cfg.Server.ListenAddr),
			zap.String("symbol", cfg.Market.Symbol),
			zap.String("tick", cfg.Market.TickSize.String()))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("exchange stopped")
	return err
}
