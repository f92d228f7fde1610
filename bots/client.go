package bots

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ladderbot/engine"
)

// ThrottledClient submits orders to an in-process book, at most one per
// throttle tick, and remembers which orders it placed.
type ThrottledClient struct {
	book     *engine.OrderBook
	symbol   string
	tickSize decimal.Decimal
	throttle <-chan time.Time
	trades   <-chan engine.MatchResult
	mu       sync.Mutex
	orderSeq int64
	owned    map[string]struct{}
}

// NewThrottledClient wraps book. trades is the stream the client's owner
// reads fills from and may be nil; a nil throttle disables rate limiting.
func NewThrottledClient(book *engine.OrderBook, trades <-chan engine.MatchResult, throttle <-chan time.Time) *ThrottledClient {
	cfg := book.Config()
	return &ThrottledClient{
		book:     book,
		symbol:   cfg.Symbol,
		tickSize: cfg.TickSize,
		throttle: throttle,
		trades:   trades,
		owned:    make(map[string]struct{}),
	}
}

func (c *ThrottledClient) waitThrottle(ctx context.Context) error {
	if c.throttle == nil {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.throttle:
		return nil
	}
}

func (c *ThrottledClient) SubmitOrder(ctx context.Context, order engine.Order) error {
	if err := c.waitThrottle(ctx); err != nil {
		return err
	}
	if order.Symbol == "" {
		order.Symbol = c.symbol
	}
	if order.Type == engine.Limit {
		order.Price = floorToTick(order.Price, c.tickSize)
	}
	if err := c.book.SubmitOrder(order); err != nil {
		return err
	}
	c.mu.Lock()
	c.owned[order.ID] = struct{}{}
	c.mu.Unlock()
	return nil
}

func (c *ThrottledClient) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.book.CancelOrder(orderID)
}

func (c *ThrottledClient) Snapshot(ctx context.Context) (engine.BookView, error) {
	return await(ctx, c.book.Snapshot)
}

func (c *ThrottledClient) Depth(ctx context.Context) ([]engine.Level, error) {
	return await(ctx, c.book.Depth)
}

// await runs a book query without letting a busy worker loop outlive ctx.
func await[T any](ctx context.Context, query func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := query()
		done <- result{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-done:
		return res.val, res.err
	}
}

func (c *ThrottledClient) Trades() <-chan engine.MatchResult {
	return c.trades
}

func (c *ThrottledClient) Symbol() string {
	return c.symbol
}

func (c *ThrottledClient) TickSize() decimal.Decimal {
	return c.tickSize
}

func (c *ThrottledClient) NextID(prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orderSeq++
	return fmt.Sprintf("%s-%d", prefix, c.orderSeq)
}

func (c *ThrottledClient) OwnsOrder(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.owned[id]
	return ok
}
