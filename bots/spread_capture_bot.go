package bots

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"ladderbot/engine"
)

// SpreadCaptureBot keeps one bid and one ask a tick inside the top of book and
// re-quotes when the mid drifts by ThresholdTicks or the pair goes stale. It
// keeps the simulated book two-sided while noise bots churn the seeded levels.
type SpreadCaptureBot struct {
	Interval       time.Duration
	Lifetime       time.Duration
	ThresholdTicks int64
	Quantity       decimal.Decimal
	now            func() time.Time
}

type pairedOrders struct {
	buyID     string
	sellID    string
	anchorMid decimal.Decimal
	placedAt  time.Time
}

func NewSpreadCaptureBot() *SpreadCaptureBot {
	return &SpreadCaptureBot{
		Interval:       300 * time.Millisecond,
		Lifetime:       3 * time.Second,
		ThresholdTicks: 3,
		Quantity:       decimal.NewFromInt(1),
		now:            time.Now,
	}
}

func (b *SpreadCaptureBot) Start(ctx context.Context, client EngineClient) {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	var pair *pairedOrders
	for {
		select {
		case <-ctx.Done():
			b.cancelPair(context.Background(), client, pair)
			return
		case <-ticker.C:
			view, err := client.Snapshot(ctx)
			if err != nil {
				continue
			}
			pair = b.refreshPair(ctx, client, view, pair)
		}
	}
}

func (b *SpreadCaptureBot) refreshPair(ctx context.Context, client EngineClient, view engine.BookView, pair *pairedOrders) *pairedOrders {
	bid := view.BestBid
	ask := view.BestAsk
	if bid == nil || ask == nil {
		return b.cancelPair(ctx, client, pair)
	}
	tick := client.TickSize()
	mid := floorToTick(midPrice(view), tick)
	threshold := tick.Mul(decimal.NewFromInt(b.ThresholdTicks))

	if pair != nil {
		if b.now().Sub(pair.placedAt) > b.Lifetime {
			return b.cancelPair(ctx, client, pair)
		}
		if mid.Sub(pair.anchorMid).Abs().GreaterThanOrEqual(threshold) {
			pair = b.cancelPair(ctx, client, pair)
		}
	}

	if pair != nil {
		return pair
	}

	buyPrice, sellPrice := b.pairPrices(bid.Price, ask.Price, mid, tick)

	buyID := client.NextID("spread-bid")
	sellID := client.NextID("spread-ask")

	buyOrder := engine.Order{ID: buyID, Symbol: client.Symbol(), Side: engine.Buy, Type: engine.Limit, Price: buyPrice, Quantity: b.Quantity}
	sellOrder := engine.Order{ID: sellID, Symbol: client.Symbol(), Side: engine.Sell, Type: engine.Limit, Price: sellPrice, Quantity: b.Quantity}

	if err := client.SubmitOrder(ctx, buyOrder); err != nil {
		return nil
	}
	if err := client.SubmitOrder(ctx, sellOrder); err != nil {
		_ = client.CancelOrder(ctx, buyID)
		return nil
	}

	return &pairedOrders{buyID: buyID, sellID: sellID, anchorMid: mid, placedAt: b.now()}
}

// pairPrices quotes one tick under the mid, never below the best bid, and
// at the best ask, never at or under the bid quote.
func (b *SpreadCaptureBot) pairPrices(bestBid, bestAsk, mid, tick decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	buyPrice := bestBid
	if inside := mid.Sub(tick); inside.Sign() > 0 && inside.GreaterThan(bestBid) {
		buyPrice = inside
	}
	sellPrice := bestAsk
	if sellPrice.LessThanOrEqual(buyPrice) {
		sellPrice = buyPrice.Add(tick)
	}
	return buyPrice, sellPrice
}

func (b *SpreadCaptureBot) cancelPair(ctx context.Context, client EngineClient, pair *pairedOrders) *pairedOrders {
	if pair == nil {
		return nil
	}
	_ = client.CancelOrder(ctx, pair.buyID)
	_ = client.CancelOrder(ctx, pair.sellID)
	return nil
}
