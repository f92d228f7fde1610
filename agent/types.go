// Package agent implements the ladder market maker: best-price extraction,
// prudent ladder placement, fill reconciliation against a refreshed book, the
// wallet ledger and the polling session that ties them together.
package agent

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zapcore"
)

// ErrMarketUnavailable is returned when no best bid/ask can be derived from
// the market, either because the book could not be read or because it has no
// adjacent bid/ask pair.
var ErrMarketUnavailable = errors.New("best-price-unavailable")

// Side is the direction of an order placed by the agent.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// OrderID is the opaque identifier assigned by the exchange at placement time.
type OrderID string

// Order is an accepted placement. Volume is always a positive magnitude.
type Order struct {
	Side   Side
	ID     OrderID
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// Equal reports whether both orders carry the same side, id, price and volume.
func (o Order) Equal(other Order) bool {
	return o.Side == other.Side && o.ID == other.ID &&
		o.Price.Equal(other.Price) && o.Volume.Equal(other.Volume)
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (o Order) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", string(o.ID))
	enc.AddString("side", o.Side.String())
	enc.AddString("price", o.Price.String())
	enc.AddString("volume", o.Volume.String())
	return nil
}

type orderList []Order

func (l orderList) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, o := range l {
		if err := enc.AppendObject(o); err != nil {
			return err
		}
	}
	return nil
}

// BestPrice is the top of book: the highest resting bid immediately followed
// by the lowest resting ask. Bid < Ask always holds for extracted values.
type BestPrice struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// BookEntry is one raw order book row. Positive volume is a resting bid,
// negative volume a resting ask.
type BookEntry struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// Holdings is the wallet: base asset (e.g. ETH) and quote asset (e.g. USD).
type Holdings struct {
	Base  decimal.Decimal
	Quote decimal.Decimal
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (h Holdings) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("base", h.Base.String())
	enc.AddString("quote", h.Quote.String())
	return nil
}

// Market is the exchange the agent trades against.
//
// PlaceOrder takes a signed volume: positive requests a buy, negative a sell.
// A false result means the exchange rejected the placement.
type Market interface {
	OrderBook(ctx context.Context) ([]BookEntry, error)
	PlaceOrder(ctx context.Context, price, signedVolume decimal.Decimal) (OrderID, bool)
	CancelOrder(ctx context.Context, id OrderID) error
}
