package agent

import "github.com/shopspring/decimal"

// PlaceFunc submits one order with a signed volume and returns the exchange
// id, or false when the placement was rejected.
type PlaceFunc func(price, signedVolume decimal.Decimal) (OrderID, bool)

var (
	bidFloor   = decimal.RequireFromString("0.95")
	askCeiling = decimal.RequireFromString("1.05")
	minVolume  = decimal.RequireFromString("0.1")
)

// PlaceLadder places count buy/sell pairs around best and returns the accepted
// orders. Each order is capped at holdings.Base/count so the whole ladder never
// commits more base asset than is held at the time of the call.
func PlaceLadder(holdings Holdings, best BestPrice, count int, q *Quantizer, place PlaceFunc) *OrderSet {
	orders := NewOrderSet()
	if count < 1 {
		return orders
	}

	maxVolume := holdings.Base.Div(decimal.NewFromInt(int64(count)))

	for i := 0; i < count; i++ {
		bidPrice := q.Quantize(best.Bid.Mul(bidFloor), best.Bid)
		bidVolume := q.Quantize(minVolume, maxVolume)
		if id, ok := place(bidPrice, bidVolume); ok {
			orders.Insert(Order{Side: Buy, ID: id, Price: bidPrice, Volume: bidVolume})
		}

		askPrice := q.Quantize(best.Ask, best.Ask.Mul(askCeiling))
		askVolume := q.Quantize(minVolume, maxVolume)
		if id, ok := place(askPrice, askVolume.Neg()); ok {
			orders.Insert(Order{Side: Sell, ID: id, Price: askPrice, Volume: askVolume})
		}
	}

	return orders
}
