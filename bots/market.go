package bots

import (
	"context"

	"github.com/shopspring/decimal"

	"ladderbot/agent"
	"ladderbot/engine"
)

// EngineMarket exposes an EngineClient as an agent.Market. Depth levels
// become signed book entries: bids positive, asks negative.
type EngineMarket struct {
	client EngineClient
	prefix string
}

var _ agent.Market = (*EngineMarket)(nil)

// NewEngineMarket names its orders "mm-<n>" through the client's id sequence.
func NewEngineMarket(client EngineClient) *EngineMarket {
	return &EngineMarket{client: client, prefix: "mm"}
}

// OrderBook aggregates the engine depth into signed entries.
func (m *EngineMarket) OrderBook(ctx context.Context) ([]agent.BookEntry, error) {
	levels, err := m.client.Depth(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]agent.BookEntry, 0, len(levels))
	for _, lvl := range levels {
		volume := lvl.Quantity
		if lvl.Side == engine.Sell {
			volume = volume.Neg()
		}
		entries = append(entries, agent.BookEntry{Price: lvl.Price, Volume: volume})
	}
	return entries, nil
}

// PlaceOrder submits a limit order; positive volume buys, negative sells.
// Zero volume, off-tick prices and engine rejections all report false. The
// client would floor an off-tick price, leaving the order resting somewhere
// other than where the caller recorded it.
func (m *EngineMarket) PlaceOrder(ctx context.Context, price, signedVolume decimal.Decimal) (agent.OrderID, bool) {
	if signedVolume.IsZero() {
		return "", false
	}
	if !floorToTick(price, m.client.TickSize()).Equal(price) {
		return "", false
	}
	side := engine.Buy
	if signedVolume.Sign() < 0 {
		side = engine.Sell
	}
	order := engine.Order{
		ID:       m.client.NextID(m.prefix),
		Symbol:   m.client.Symbol(),
		Side:     side,
		Type:     engine.Limit,
		Price:    price,
		Quantity: signedVolume.Abs(),
	}
	if err := m.client.SubmitOrder(ctx, order); err != nil {
		return "", false
	}
	return agent.OrderID(order.ID), true
}

func (m *EngineMarket) CancelOrder(ctx context.Context, id agent.OrderID) error {
	return m.client.CancelOrder(ctx, string(id))
}
