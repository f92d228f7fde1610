package bots

import (
	"github.com/shopspring/decimal"

	"ladderbot/engine"
)

var two = decimal.NewFromInt(2)

// midPrice is the midpoint of the top of book, or the only side present.
// It returns zero for an empty book.
func midPrice(view engine.BookView) decimal.Decimal {
	switch {
	case view.BestBid != nil && view.BestAsk != nil:
		return view.BestBid.Price.Add(view.BestAsk.Price).Div(two)
	case view.BestBid != nil:
		return view.BestBid.Price
	case view.BestAsk != nil:
		return view.BestAsk.Price
	default:
		return decimal.Zero
	}
}

func floorToTick(price, tick decimal.Decimal) decimal.Decimal {
	if tick.Sign() <= 0 {
		return price
	}
	return price.Div(tick).Floor().Mul(tick)
}
