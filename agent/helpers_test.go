package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func entry(price string, volume string) BookEntry {
	return BookEntry{Price: d(price), Volume: d(volume)}
}

// manualClock advances virtual time by the requested duration whenever After
// is called, so sessions run without real waits.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) After(dur time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(dur)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

type placement struct {
	Price        decimal.Decimal
	SignedVolume decimal.Decimal
}

// fakeMarket serves scripted books, one per OrderBook call; the last book is
// repeated once the script runs out.
type fakeMarket struct {
	books     [][]BookEntry
	bookErr   error
	reject    bool
	cancelErr map[OrderID]error

	clock      Clock
	bookCalls  []time.Time
	placements []placement
	cancels    []OrderID
	nextID     int
}

func (m *fakeMarket) OrderBook(context.Context) ([]BookEntry, error) {
	if m.clock != nil {
		m.bookCalls = append(m.bookCalls, m.clock.Now())
	} else {
		m.bookCalls = append(m.bookCalls, time.Time{})
	}
	if m.bookErr != nil {
		return nil, m.bookErr
	}
	if len(m.books) == 0 {
		return nil, nil
	}
	book := m.books[0]
	if len(m.books) > 1 {
		m.books = m.books[1:]
	}
	return book, nil
}

func (m *fakeMarket) PlaceOrder(_ context.Context, price, signedVolume decimal.Decimal) (OrderID, bool) {
	m.placements = append(m.placements, placement{Price: price, SignedVolume: signedVolume})
	if m.reject {
		return "", false
	}
	m.nextID++
	return OrderID(fmt.Sprintf("ord-%d", m.nextID)), true
}

func (m *fakeMarket) CancelOrder(_ context.Context, id OrderID) error {
	m.cancels = append(m.cancels, id)
	if err, ok := m.cancelErr[id]; ok {
		return err
	}
	return nil
}

var errFeedDown = errors.New("feed down")

// recordingObserver counts session events.
type recordingObserver struct {
	placed, rejected int
	fills            []Order
	reports          []Holdings
	cancelled        []OrderID
	finished         []Outcome
}

func (o *recordingObserver) LadderPlaced(placed, rejected int) {
	o.placed, o.rejected = placed, rejected
}
func (o *recordingObserver) OrdersFilled(filled []Order) { o.fills = append(o.fills, filled...) }
func (o *recordingObserver) AssetsReported(h Holdings, _ []Order) {
	o.reports = append(o.reports, h)
}
func (o *recordingObserver) OrderCancelled(id OrderID, _ error) { o.cancelled = append(o.cancelled, id) }
func (o *recordingObserver) SessionFinished(out Outcome)        { o.finished = append(o.finished, out) }

// constSource always yields the same draw.
type constSource float64

func (c constSource) Float64() float64 { return float64(c) }
