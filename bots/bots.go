// Package bots holds the simulated market participants that trade against an
// in-process engine.OrderBook, plus the adapter that lets the ladder agent use
// the same book as its market.
package bots

import (
	"context"

	"github.com/shopspring/decimal"

	"ladderbot/engine"
)

// Bot represents a trading agent that can be run under a supervisor.
type Bot interface {
	Start(ctx context.Context, client EngineClient)
}

// EngineClient abstracts the minimal surface bots need from the matching engine.
type EngineClient interface {
	SubmitOrder(ctx context.Context, order engine.Order) error
	CancelOrder(ctx context.Context, orderID string) error
	Snapshot(ctx context.Context) (engine.BookView, error)
	Depth(ctx context.Context) ([]engine.Level, error)
	Trades() <-chan engine.MatchResult
	Symbol() string
	TickSize() decimal.Decimal
	NextID(prefix string) string
	OwnsOrder(id string) bool
}
