package agent

// isFilled reports whether an order has crossed the market: a buy resting above
// the best bid or a sell resting below the best ask would already have traded.
func isFilled(o Order, best BestPrice) bool {
	switch o.Side {
	case Buy:
		return o.Price.GreaterThan(best.Bid)
	case Sell:
		return o.Price.LessThan(best.Ask)
	}
	return false
}

// Reconcile removes every filled order from outstanding and returns them in
// ascending price order. Holdings are not touched.
func Reconcile(outstanding *OrderSet, best BestPrice) []Order {
	var filled []Order
	for _, o := range outstanding.Orders() {
		if isFilled(o, best) {
			filled = append(filled, o)
		}
	}

	for _, o := range filled {
		outstanding.Remove(o)
	}
	return filled
}
