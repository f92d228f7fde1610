package bots

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"ladderbot/engine"
)

// NoiseBot places short-lived limit orders on one side around the mid price.
// Offsets are drawn in ticks from [-CrossTicks, RangeTicks] away from the mid,
// so a negative draw prices the order through the mid and may trade.
type NoiseBot struct {
	Side       engine.Side
	Interval   time.Duration
	Lifetime   time.Duration
	Quantity   decimal.Decimal
	RangeTicks int64
	CrossTicks int64
	rand       *rand.Rand
}

func newNoiseBot(side engine.Side, rng *rand.Rand) *NoiseBot {
	return &NoiseBot{
		Side:       side,
		Interval:   200 * time.Millisecond,
		Lifetime:   2 * time.Second,
		Quantity:   decimal.NewFromInt(1),
		RangeTicks: 5,
		CrossTicks: 2,
		rand:       rng,
	}
}

// NewRandomBidBot quotes bids at or below the mid, occasionally lifting asks.
func NewRandomBidBot(rng *rand.Rand) *NoiseBot { return newNoiseBot(engine.Buy, rng) }

// NewRandomAskBot quotes asks at or above the mid, occasionally hitting bids.
func NewRandomAskBot(rng *rand.Rand) *NoiseBot { return newNoiseBot(engine.Sell, rng) }

func (b *NoiseBot) Start(ctx context.Context, client EngineClient) {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.quote(ctx, client)
		}
	}
}

func (b *NoiseBot) quote(ctx context.Context, client EngineClient) {
	view, err := client.Snapshot(ctx)
	if err != nil {
		return
	}
	order, ok := b.nextOrder(view, client)
	if !ok {
		return
	}
	if err := client.SubmitOrder(ctx, order); err != nil {
		return
	}

	go b.cancelAfter(ctx, client, order.ID)
}

// nextOrder prices one order against view. It reports false when the book is
// empty or the drawn price is not positive.
func (b *NoiseBot) nextOrder(view engine.BookView, client EngineClient) (engine.Order, bool) {
	tick := client.TickSize()
	mid := floorToTick(midPrice(view), tick)
	if mid.Sign() <= 0 {
		return engine.Order{}, false
	}

	offset := b.rand.Int63n(b.RangeTicks+b.CrossTicks+1) - b.CrossTicks
	delta := tick.Mul(decimal.NewFromInt(offset))

	price := mid.Add(delta)
	prefix := "ask"
	if b.Side == engine.Buy {
		price = mid.Sub(delta)
		prefix = "bid"
	}
	if price.Sign() <= 0 {
		return engine.Order{}, false
	}

	return engine.Order{
		ID:       client.NextID(prefix),
		Symbol:   client.Symbol(),
		Side:     b.Side,
		Type:     engine.Limit,
		Price:    price,
		Quantity: b.Quantity,
	}, true
}

func (b *NoiseBot) cancelAfter(ctx context.Context, client EngineClient, orderID string) {
	timer := time.NewTimer(b.Lifetime)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		_ = client.CancelOrder(context.Background(), orderID)
	}
}
