package engine

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ErrOrderNotFound is returned when cancelling or amending an order that is no longer resting.
var ErrOrderNotFound = errors.New("order not found")

type requestType int

const (
	requestAdd requestType = iota
	requestCancel
	requestAmend
	requestSnapshot
	requestDepth
	requestStop
)

type bookRequest struct {
	typ        requestType
	order      Order
	amendPrice *decimal.Decimal
	amendQty   *decimal.Decimal
	resp       chan error
	view       chan BookView
	levels     chan []Level
}

// OrderBook maintains bids and asks for a single symbol using price-time priority.
type OrderBook struct {
	cfg     OrderBookConfig
	bids    priceTimeQueue
	asks    priceTimeQueue
	orders  map[string]*orderEntry
	seq     int64
	reqCh   chan bookRequest
	trades  chan MatchResult
	updates chan BookView
	now     func() time.Time
}

// NewOrderBook builds an order book and launches the worker loop.
func NewOrderBook(cfg OrderBookConfig) *OrderBook {
	tradeBuffer := 16
	if cfg.RequestBuffer > tradeBuffer {
		tradeBuffer = cfg.RequestBuffer
	}
	ob := &OrderBook{
		cfg:     cfg,
		bids:    priceTimeQueue{},
		asks:    priceTimeQueue{},
		orders:  make(map[string]*orderEntry),
		reqCh:   make(chan bookRequest, cfg.RequestBuffer),
		trades:  make(chan MatchResult, tradeBuffer),
		updates: make(chan BookView, 16),
		now:     time.Now,
	}
	heap.Init(&ob.bids)
	heap.Init(&ob.asks)
	go ob.run()
	return ob
}

// Config returns the parameters the book was built with.
func (ob *OrderBook) Config() OrderBookConfig {
	return ob.cfg
}

// SubmitOrder enqueues a new order for processing.
func (ob *OrderBook) SubmitOrder(order Order) error {
	resp := make(chan error, 1)
	ob.reqCh <- bookRequest{typ: requestAdd, order: order, resp: resp}
	return <-resp
}

// CancelOrder cancels an active order by ID.
func (ob *OrderBook) CancelOrder(id string) error {
	resp := make(chan error, 1)
	ob.reqCh <- bookRequest{typ: requestCancel, order: Order{ID: id}, resp: resp}
	return <-resp
}

// AmendOrder updates price and/or quantity for an existing resting order.
func (ob *OrderBook) AmendOrder(id string, price *decimal.Decimal, qty *decimal.Decimal) error {
	resp := make(chan error, 1)
	ob.reqCh <- bookRequest{typ: requestAmend, order: Order{ID: id}, amendPrice: price, amendQty: qty, resp: resp}
	return <-resp
}

// Snapshot returns a view of the best bid and ask for the book.
func (ob *OrderBook) Snapshot() (BookView, error) {
	resp := make(chan error, 1)
	view := make(chan BookView, 1)
	ob.reqCh <- bookRequest{typ: requestSnapshot, resp: resp, view: view}
	return <-view, <-resp
}

// Depth returns every resting price level, bids from the highest price down
// followed by asks from the lowest price up.
func (ob *OrderBook) Depth() ([]Level, error) {
	resp := make(chan error, 1)
	levels := make(chan []Level, 1)
	ob.reqCh <- bookRequest{typ: requestDepth, resp: resp, levels: levels}
	return <-levels, <-resp
}

// Trades exposes the stream of executed trades.
func (ob *OrderBook) Trades() <-chan MatchResult {
	return ob.trades
}

// BookUpdates exposes the stream of top-of-book updates.
func (ob *OrderBook) BookUpdates() <-chan BookView {
	return ob.updates
}

// Stop gracefully terminates the worker loop.
func (ob *OrderBook) Stop() {
	ob.reqCh <- bookRequest{typ: requestStop}
}

func (ob *OrderBook) run() {
	for req := range ob.reqCh {
		switch req.typ {
		case requestAdd:
			err := ob.processAdd(req.order)
			req.resp <- err
			if err == nil {
				ob.publishView()
			}
		case requestCancel:
			err := ob.processCancel(req.order.ID)
			req.resp <- err
			if err == nil {
				ob.publishView()
			}
		case requestAmend:
			err := ob.processAmend(req.order.ID, req.amendPrice, req.amendQty)
			req.resp <- err
			if err == nil {
				ob.publishView()
			}
		case requestSnapshot:
			req.view <- ob.snapshotView()
			req.resp <- nil
		case requestDepth:
			req.levels <- ob.depthLevels()
			req.resp <- nil
		case requestStop:
			close(ob.trades)
			close(ob.updates)
			return
		}
	}
}

func (ob *OrderBook) processAdd(order Order) error {
	if order.Symbol != ob.cfg.Symbol {
		return fmt.Errorf("order symbol %s does not match book %s", order.Symbol, ob.cfg.Symbol)
	}
	if order.ID == "" {
		return errors.New("order id is required")
	}
	if _, exists := ob.orders[order.ID]; exists {
		return fmt.Errorf("order %s already resting", order.ID)
	}
	if order.Quantity.Sign() <= 0 {
		return errors.New("order quantity must be positive")
	}
	if order.Type == Limit {
		if err := ob.checkTick(order.Price); err != nil {
			return err
		}
	}

	ob.seq++
	order.Sequence = ob.seq
	order.Timestamp = ob.now()
	order.Remaining = order.Quantity

	if order.Side == Buy {
		ob.match(&order, &ob.asks, &ob.bids)
	} else {
		ob.match(&order, &ob.bids, &ob.asks)
	}

	return nil
}

func (ob *OrderBook) checkTick(price decimal.Decimal) error {
	if ob.cfg.TickSize.Sign() <= 0 {
		return errors.New("tick size must be positive for limit orders")
	}
	if price.Sign() <= 0 || !price.Mod(ob.cfg.TickSize).IsZero() {
		return fmt.Errorf("price must align to tick size %s", ob.cfg.TickSize)
	}
	return nil
}

func (ob *OrderBook) match(incoming *Order, opposing *priceTimeQueue, resting *priceTimeQueue) {
	for incoming.Remaining.Sign() > 0 {
		best := opposing.peek()
		if best == nil {
			break
		}
		if incoming.Type == Limit {
			if incoming.Side == Buy && incoming.Price.LessThan(best.order.Price) {
				break
			}
			if incoming.Side == Sell && incoming.Price.GreaterThan(best.order.Price) {
				break
			}
		}

		tradedQty := decimal.Min(incoming.Remaining, best.order.Remaining)
		incoming.Remaining = incoming.Remaining.Sub(tradedQty)
		best.order.Remaining = best.order.Remaining.Sub(tradedQty)

		ob.trades <- MatchResult{
			Symbol:      incoming.Symbol,
			BuyOrderID:  selectOrderID(incoming, best.order, Buy),
			SellOrderID: selectOrderID(incoming, best.order, Sell),
			Price:       best.order.Price,
			Quantity:    tradedQty,
			Timestamp:   ob.now(),
		}

		if best.order.Remaining.Sign() == 0 {
			heap.Pop(opposing)
			delete(ob.orders, best.order.ID)
		} else {
			heap.Fix(opposing, best.index)
		}
	}

	if incoming.Remaining.Sign() > 0 && incoming.Type == Limit {
		entry := &orderEntry{order: incoming, isBid: incoming.Side == Buy}
		heap.Push(resting, entry)
		ob.orders[incoming.ID] = entry
		trimDepth(resting, ob.cfg.MaxDepth, ob.orders)
	}
}

func selectOrderID(incoming, resting *Order, side Side) string {
	if incoming.Side == side {
		return incoming.ID
	}
	return resting.ID
}

func (ob *OrderBook) processCancel(id string) error {
	entry, ok := ob.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if entry.isBid {
		ob.bids.remove(entry)
	} else {
		ob.asks.remove(entry)
	}
	delete(ob.orders, id)
	return nil
}

func (ob *OrderBook) processAmend(id string, newPrice *decimal.Decimal, newQty *decimal.Decimal) error {
	entry, ok := ob.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if newQty != nil {
		if newQty.Sign() <= 0 {
			return errors.New("amended quantity must be positive")
		}
		entry.order.Quantity = *newQty
		if entry.order.Remaining.GreaterThan(*newQty) {
			entry.order.Remaining = *newQty
		}
	}
	if newPrice != nil {
		if err := ob.checkTick(*newPrice); err != nil {
			return err
		}
		entry.order.Price = *newPrice
	}
	ob.seq++
	entry.order.Sequence = ob.seq
	entry.order.Timestamp = ob.now()

	if entry.isBid {
		heap.Fix(&ob.bids, entry.index)
		trimDepth(&ob.bids, ob.cfg.MaxDepth, ob.orders)
	} else {
		heap.Fix(&ob.asks, entry.index)
		trimDepth(&ob.asks, ob.cfg.MaxDepth, ob.orders)
	}
	return nil
}

func (ob *OrderBook) snapshotView() BookView {
	snapshot := BookView{}
	if best := ob.bids.peek(); best != nil {
		copy := *best.order
		snapshot.BestBid = &copy
	}
	if best := ob.asks.peek(); best != nil {
		copy := *best.order
		snapshot.BestAsk = &copy
	}
	return snapshot
}

func (ob *OrderBook) depthLevels() []Level {
	bids := aggregateLevels(ob.bids, Buy)
	asks := aggregateLevels(ob.asks, Sell)
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })
	return append(bids, asks...)
}

func aggregateLevels(q priceTimeQueue, side Side) []Level {
	byPrice := make(map[string]int, len(q))
	levels := make([]Level, 0, len(q))
	for _, entry := range q {
		key := entry.order.Price.String()
		idx, ok := byPrice[key]
		if !ok {
			idx = len(levels)
			byPrice[key] = idx
			levels = append(levels, Level{Side: side, Price: entry.order.Price})
		}
		levels[idx].Quantity = levels[idx].Quantity.Add(entry.order.Remaining)
		levels[idx].Orders++
	}
	return levels
}

func (ob *OrderBook) publishView() {
	view := ob.snapshotView()
	select {
	case ob.updates <- view:
	default:
	}
}
