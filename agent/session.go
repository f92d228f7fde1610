package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// State is the lifecycle stage of a Session.
type State int

const (
	AwaitingInitialPlacement State = iota
	Polling
	Drained
	Aborted
)

func (s State) String() string {
	switch s {
	case AwaitingInitialPlacement:
		return "awaiting_initial_placement"
	case Polling:
		return "polling"
	case Drained:
		return "drained"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the terminal result of a session.
type Outcome struct {
	State State
	// Reason is nil for Drained sessions.
	Reason error
	// CancelErr joins every cancellation failure during abort cleanup.
	CancelErr   error
	Holdings    Holdings
	Outstanding []Order
}

// Observer receives session events. Metrics exporters implement it.
type Observer interface {
	LadderPlaced(placed, rejected int)
	OrdersFilled(filled []Order)
	AssetsReported(h Holdings, outstanding []Order)
	OrderCancelled(id OrderID, err error)
	SessionFinished(outcome Outcome)
}

type nopObserver struct{}

func (nopObserver) LadderPlaced(int, int)            {}
func (nopObserver) OrdersFilled([]Order)             {}
func (nopObserver) AssetsReported(Holdings, []Order) {}
func (nopObserver) OrderCancelled(OrderID, error)    {}
func (nopObserver) SessionFinished(Outcome)          {}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the wall clock, typically with a manual one in tests.
func WithClock(c Clock) Option { return func(s *Session) { s.clock = c } }

// WithLogger sets the session logger. The default discards everything.
func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.logger = l } }

// WithObserver receives session events alongside the logs.
func WithObserver(o Observer) Option { return func(s *Session) { s.observer = o } }

// WithQuantizer fixes the random draws behind ladder prices and volumes.
func WithQuantizer(q *Quantizer) Option { return func(s *Session) { s.quantizer = q } }

// WithIntervals overrides the market refresh and asset report cadences.
func WithIntervals(refresh, report time.Duration) Option {
	return func(s *Session) {
		s.refreshInterval = refresh
		s.reportInterval = report
	}
}

// Session places an initial ladder and then polls the market until every
// order has been filled or the market can no longer be read. It is not safe
// for concurrent use.
type Session struct {
	market      Market
	holdings    Holdings
	outstanding *OrderSet
	state       State
	reason      error
	cancelErr   error

	clock           Clock
	quantizer       *Quantizer
	refreshInterval time.Duration
	reportInterval  time.Duration
	logger          *zap.Logger
	observer        Observer
}

// NewSession starts in AwaitingInitialPlacement with the given holdings. Without
// WithQuantizer the draws come from a time-seeded generator.
func NewSession(market Market, initial Holdings, opts ...Option) *Session {
	s := &Session{
		market:          market,
		holdings:        initial,
		outstanding:     NewOrderSet(),
		state:           AwaitingInitialPlacement,
		clock:           RealClock{},
		refreshInterval: DefaultRefreshInterval,
		reportInterval:  DefaultReportInterval,
		logger:          zap.NewNop(),
		observer:        nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.quantizer == nil {
		s.quantizer = NewQuantizer(rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Holdings returns the wallet as adjusted by the fills seen so far.
func (s *Session) Holdings() Holdings { return s.holdings }

// Outstanding returns the orders not yet seen as filled, ascending by price.
func (s *Session) Outstanding() []Order { return s.outstanding.Orders() }

// PlaceInitialLadder reads the book once and places ladderSize buy/sell
// pairs. If no best bid/ask is available the session is aborted, nothing is
// placed and the returned error wraps ErrMarketUnavailable.
func (s *Session) PlaceInitialLadder(ctx context.Context, ladderSize int) error {
	if s.state != AwaitingInitialPlacement {
		return fmt.Errorf("initial ladder already handled, session is %s", s.state)
	}

	best, err := s.fetchBest(ctx)
	if err != nil {
		s.state = Aborted
		s.reason = err
		s.logger.Error("initial best bid/ask unavailable", zap.Error(err))
		return err
	}

	rejected := 0
	place := func(price, signedVolume decimal.Decimal) (OrderID, bool) {
		id, ok := s.market.PlaceOrder(ctx, price, signedVolume)
		if !ok {
			rejected++
			s.logger.Debug("placement rejected",
				zap.String("price", price.String()),
				zap.String("volume", signedVolume.String()))
		}
		return id, ok
	}
	s.outstanding = PlaceLadder(s.holdings, best, ladderSize, s.quantizer, place)
	s.state = Polling

	s.logger.Info("ladder placed",
		zap.String("best_bid", best.Bid.String()),
		zap.String("best_ask", best.Ask.String()),
		zap.Int("ladder_size", ladderSize),
		zap.Int("placed", s.outstanding.Len()),
		zap.Int("rejected", rejected))
	s.observer.LadderPlaced(s.outstanding.Len(), rejected)
	return nil
}

// Run polls the market until the session reaches a terminal state. Calling
// Run outside the Polling state returns the current outcome untouched.
func (s *Session) Run(ctx context.Context) Outcome {
	if s.state != Polling {
		return s.outcome()
	}

	sched := newScheduler(s.clock, s.refreshInterval, s.reportInterval)
	for s.outstanding.Len() > 0 {
		report, err := sched.wait(ctx)
		if err != nil {
			return s.abort(ctx, err)
		}

		best, err := s.fetchBest(ctx)
		if err != nil {
			return s.abort(ctx, err)
		}

		fills := Reconcile(s.outstanding, best)
		if len(fills) > 0 {
			s.holdings.Apply(fills)
			for _, o := range fills {
				s.logger.Info("order filled", zap.Object("order", o))
			}
			s.observer.OrdersFilled(fills)
		}

		if report {
			s.reportAssets()
		}
	}

	s.state = Drained
	s.reportAssets()
	s.logger.Info("all pending orders filled, closing session")
	return s.finish()
}

func (s *Session) fetchBest(ctx context.Context) (BestPrice, error) {
	book, err := s.market.OrderBook(ctx)
	if err != nil {
		return BestPrice{}, fmt.Errorf("%w: read order book: %w", ErrMarketUnavailable, err)
	}
	best, ok := ExtractBest(book)
	if !ok {
		return BestPrice{}, fmt.Errorf("%w: no adjacent bid/ask among %d entries", ErrMarketUnavailable, len(book))
	}
	return best, nil
}

// abort cancels every outstanding order. Cancellation failures are logged and
// collected but never stop the remaining cancellations.
func (s *Session) abort(ctx context.Context, reason error) Outcome {
	s.state = Aborted
	s.reason = reason
	s.logger.Error("session aborted, cancelling pending orders",
		zap.Error(reason),
		zap.Int("pending", s.outstanding.Len()))
	s.reportAssets()

	cancelCtx := context.WithoutCancel(ctx)
	var errs []error
	for _, o := range s.outstanding.Orders() {
		err := s.market.CancelOrder(cancelCtx, o.ID)
		if err != nil {
			s.logger.Warn("cancel failed", zap.String("id", string(o.ID)), zap.Error(err))
			errs = append(errs, fmt.Errorf("cancel %s: %w", o.ID, err))
		}
		s.observer.OrderCancelled(o.ID, err)
	}
	s.cancelErr = errors.Join(errs...)
	return s.finish()
}

func (s *Session) reportAssets() {
	pending := s.outstanding.Orders()
	s.logger.Info("assets",
		zap.Object("wallet", s.holdings),
		zap.Array("pending", orderList(pending)))
	s.observer.AssetsReported(s.holdings, pending)
}

func (s *Session) finish() Outcome {
	out := s.outcome()
	s.observer.SessionFinished(out)
	return out
}

func (s *Session) outcome() Outcome {
	return Outcome{
		State:       s.state,
		Reason:      s.reason,
		CancelErr:   s.cancelErr,
		Holdings:    s.holdings,
		Outstanding: s.outstanding.Orders(),
	}
}
