package engine

import "container/heap"

// orderEntry wraps an order for heap operations.
type orderEntry struct {
	order *Order
	index int
	isBid bool
}

// priceTimeQueue implements a price-time priority queue.
type priceTimeQueue []*orderEntry

func (q priceTimeQueue) Len() int { return len(q) }

func (q priceTimeQueue) Less(i, j int) bool {
	// Bids: higher price first. Asks: lower price first. Ties go to the older sequence.
	a, b := q[i], q[j]
	if c := a.order.Price.Cmp(b.order.Price); c != 0 {
		if a.isBid {
			return c > 0
		}
		return c < 0
	}
	if !a.order.Timestamp.Equal(b.order.Timestamp) {
		return a.order.Timestamp.Before(b.order.Timestamp)
	}
	return a.order.Sequence < b.order.Sequence
}

func (q priceTimeQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *priceTimeQueue) Push(x any) {
	entry := x.(*orderEntry)
	entry.index = len(*q)
	*q = append(*q, entry)
}

func (q *priceTimeQueue) Pop() any {
	old := *q
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*q = old[0 : n-1]
	return entry
}

func (q priceTimeQueue) peek() *orderEntry {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

func (q *priceTimeQueue) remove(entry *orderEntry) *orderEntry {
	return heap.Remove(q, entry.index).(*orderEntry)
}

// worstIndex finds the entry with the lowest priority: the furthest price from
// the top of book, newest first among equal prices.
func (q priceTimeQueue) worstIndex() int {
	if len(q) == 0 {
		return -1
	}
	worst := 0
	for i := 1; i < len(q); i++ {
		if q.Less(worst, i) {
			worst = i
		}
	}
	return worst
}

func trimDepth(q *priceTimeQueue, maxDepth int, orderIndex map[string]*orderEntry) {
	for maxDepth > 0 && q.Len() > maxDepth {
		idx := q.worstIndex()
		if idx < 0 {
			return
		}
		entry := heap.Remove(q, idx).(*orderEntry)
		delete(orderIndex, entry.order.ID)
	}
}
