package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of an order.
type Side int

const (
	// Buy indicates a bid order.
	Buy Side = iota
	// Sell indicates an ask order.
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// OrderType represents the execution style for an order.
type OrderType int

const (
	// Limit orders rest on the book until filled or canceled.
	Limit OrderType = iota
	// Market orders consume available liquidity immediately.
	Market
)

func (t OrderType) String() string {
	if t == Limit {
		return "limit"
	}
	return "market"
}

// Order describes a request to trade the book's symbol.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Type      OrderType
	Price     decimal.Decimal // multiple of the book tick size for limits
	Quantity  decimal.Decimal
	Remaining decimal.Decimal
	Timestamp time.Time
	Sequence  int64
}

// BookView summarizes top-of-book information for a symbol.
type BookView struct {
	BestBid *Order
	BestAsk *Order
}

// Level aggregates every resting order at one price on one side.
type Level struct {
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Orders   int
}

// MatchResult captures a completed trade.
type MatchResult struct {
	Symbol      string
	BuyOrderID  string
	SellOrderID string
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	Timestamp   time.Time
}

// OrderBookConfig controls book parameters.
type OrderBookConfig struct {
	Symbol        string
	TickSize      decimal.Decimal
	MaxDepth      int
	RequestBuffer int
}
