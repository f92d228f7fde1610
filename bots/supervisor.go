package bots

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ladderbot/engine"
)

// SupervisorConfig tunes the noise swarm.
type SupervisorConfig struct {
	// OrderInterval is the minimum gap between two submissions of the swarm.
	OrderInterval time.Duration
	// QuoteInterval and Lifetime override every bot's defaults when set.
	QuoteInterval time.Duration
	Lifetime      time.Duration
	PnLInterval   time.Duration
	Seed          int64
}

// Supervisor runs the bot swarm over a shared throttled client and tracks the
// swarm's position and cash from the trade stream.
type Supervisor struct {
	bots     []Bot
	client   *ThrottledClient
	pnl      *pnlTracker
	throttle *time.Ticker
	every    time.Duration
	logger   *zap.Logger
}

// NewSupervisor builds two bid bots, two ask bots and one spread capture bot.
// trades must carry every trade of book; the supervisor drains it for as long
// as it runs.
func NewSupervisor(book *engine.OrderBook, trades <-chan engine.MatchResult, cfg SupervisorConfig, logger *zap.Logger) *Supervisor {
	if cfg.OrderInterval <= 0 {
		cfg.OrderInterval = 20 * time.Millisecond
	}
	if cfg.PnLInterval <= 0 {
		cfg.PnLInterval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	throttle := time.NewTicker(cfg.OrderInterval)
	client := NewThrottledClient(book, trades, throttle.C)

	var bots []Bot
	for i := int64(0); i < 4; i++ {
		rng := rand.New(rand.NewSource(cfg.Seed + i))
		bot := NewRandomBidBot(rng)
		if i%2 == 1 {
			bot = NewRandomAskBot(rng)
		}
		if cfg.QuoteInterval > 0 {
			bot.Interval = cfg.QuoteInterval
		}
		if cfg.Lifetime > 0 {
			bot.Lifetime = cfg.Lifetime
		}
		bots = append(bots, bot)
	}
	bots = append(bots, NewSpreadCaptureBot())

	return &Supervisor{
		bots:     bots,
		client:   client,
		pnl:      &pnlTracker{},
		throttle: throttle,
		every:    cfg.PnLInterval,
		logger:   logger,
	}
}

// Start launches all bots and PnL monitoring until the context is canceled.
func (s *Supervisor) Start(ctx context.Context) {
	logTicker := time.NewTicker(s.every)
	defer logTicker.Stop()
	defer s.throttle.Stop()

	var wg sync.WaitGroup
	for _, bot := range s.bots {
		wg.Add(1)
		go func(b Bot) {
			defer wg.Done()
			b.Start(ctx, s.client)
		}(bot)
	}

	go s.consumeTrades(ctx)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			pos, cash := s.PnL()
			s.logger.Info("noise pnl final", zap.String("position", pos.String()), zap.String("cash", cash.String()))
			return
		case <-logTicker.C:
			pos, cash := s.PnL()
			s.logger.Debug("noise pnl", zap.String("position", pos.String()), zap.String("cash", cash.String()))
		}
	}
}

// PnL returns the swarm's net base position and cash.
func (s *Supervisor) PnL() (decimal.Decimal, decimal.Decimal) {
	return s.pnl.Snapshot()
}

func (s *Supervisor) consumeTrades(ctx context.Context) {
	trades := s.client.Trades()
	if trades == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case trade, ok := <-trades:
			if !ok {
				return
			}
			s.pnl.Record(trade, s.client)
		}
	}
}

type pnlTracker struct {
	mu       sync.Mutex
	position decimal.Decimal
	cash     decimal.Decimal
}

func (p *pnlTracker) Record(trade engine.MatchResult, client EngineClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	notional := trade.Price.Mul(trade.Quantity)
	if client.OwnsOrder(trade.BuyOrderID) {
		p.position = p.position.Add(trade.Quantity)
		p.cash = p.cash.Sub(notional)
	}
	if client.OwnsOrder(trade.SellOrderID) {
		p.position = p.position.Sub(trade.Quantity)
		p.cash = p.cash.Add(notional)
	}
}

func (p *pnlTracker) Snapshot() (decimal.Decimal, decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, p.cash
}
