package agent

import "sort"

// ExtractBest derives the best bid/ask from a raw book. Entries are sorted by
// price and the first adjacent (bid, ask) pair wins. The input is not modified.
func ExtractBest(book []BookEntry) (BestPrice, bool) {
	if len(book) < 2 {
		return BestPrice{}, false
	}

	sorted := make([]BookEntry, len(book))
	copy(sorted, book)
	sort.Slice(sorted, func(i, j int) bool {
		if c := sorted[i].Price.Cmp(sorted[j].Price); c != 0 {
			return c < 0
		}
		// asks before bids on a shared price, so a pair never has bid == ask
		return sorted[i].Volume.LessThan(sorted[j].Volume)
	})

	for i := 0; i < len(sorted)-1; i++ {
		if sorted[i].Volume.Sign() > 0 && sorted[i+1].Volume.Sign() < 0 {
			return BestPrice{Bid: sorted[i].Price, Ask: sorted[i+1].Price}, true
		}
	}
	return BestPrice{}, false
}
