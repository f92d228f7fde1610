package agent

// Apply books filled orders into the wallet. A buy adds base and spends
// quote, a sell does the opposite. Balances are allowed to go negative.
func (h *Holdings) Apply(filled []Order) {
	for _, o := range filled {
		notional := o.Volume.Mul(o.Price)
		switch o.Side {
		case Buy:
			h.Base = h.Base.Add(o.Volume)
			h.Quote = h.Quote.Sub(notional)
		case Sell:
			h.Base = h.Base.Sub(o.Volume)
			h.Quote = h.Quote.Add(notional)
		}
	}
}
