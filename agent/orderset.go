package agent

import "github.com/google/btree"

type setItem struct {
	order Order
	seq   uint64
}

func lessItem(a, b setItem) bool {
	if c := a.order.Price.Cmp(b.order.Price); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

// OrderSet is a multiset of orders ordered by price. Orders sharing a price
// are all kept, in insertion order.
type OrderSet struct {
	tree *btree.BTreeG[setItem]
	seq  uint64
}

// NewOrderSet returns an empty set.
func NewOrderSet() *OrderSet {
	return &OrderSet{tree: btree.NewG(16, lessItem)}
}

// Insert adds an order. Duplicates are allowed.
func (s *OrderSet) Insert(o Order) {
	s.seq++
	s.tree.ReplaceOrInsert(setItem{order: o, seq: s.seq})
}

// Len returns the number of orders held, duplicates included.
func (s *OrderSet) Len() int {
	return s.tree.Len()
}

// Orders returns a snapshot of the set in ascending price order.
func (s *OrderSet) Orders() []Order {
	out := make([]Order, 0, s.tree.Len())
	s.tree.Ascend(func(it setItem) bool {
		out = append(out, it.order)
		return true
	})
	return out
}

// Remove deletes one occurrence of o and reports whether it was present.
func (s *OrderSet) Remove(o Order) bool {
	var found *setItem
	s.tree.AscendGreaterOrEqual(setItem{order: Order{Price: o.Price}}, func(it setItem) bool {
		if !it.order.Price.Equal(o.Price) {
			return false
		}
		if it.order.Equal(o) {
			found = &it
			return false
		}
		return true
	})
	if found == nil {
		return false
	}
	_, ok := s.tree.Delete(*found)
	return ok
}
