package agent

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func rejectAll(calls *int) PlaceFunc {
	return func(decimal.Decimal, decimal.Decimal) (OrderID, bool) {
		*calls++
		return "", false
	}
}

func acceptAll(calls *int, log *[]placement) PlaceFunc {
	return func(price, signedVolume decimal.Decimal) (OrderID, bool) {
		*calls++
		if log != nil {
			*log = append(*log, placement{Price: price, SignedVolume: signedVolume})
		}
		return OrderID(decimal.NewFromInt(int64(*calls)).String()), true
	}
}

func TestPlaceLadderEmptyForNonPositiveCount(t *testing.T) {
	q := NewQuantizer(rand.New(rand.NewSource(1)))
	best := BestPrice{Bid: d("50"), Ask: d("51")}
	for _, n := range []int{0, -1, -10} {
		calls := 0
		orders := PlaceLadder(Holdings{Base: d("1"), Quote: d("10")}, best, n, q, acceptAll(&calls, nil))
		if orders.Len() != 0 || calls != 0 {
			t.Fatalf("count %d: got %d orders and %d calls, want none", n, orders.Len(), calls)
		}
	}
}

func TestPlaceLadderRejectedPlacementsYieldNothing(t *testing.T) {
	q := NewQuantizer(rand.New(rand.NewSource(1)))
	calls := 0
	orders := PlaceLadder(Holdings{Base: d("1"), Quote: d("10")}, BestPrice{Bid: d("50"), Ask: d("51")}, 5, q, rejectAll(&calls))
	if orders.Len() != 0 {
		t.Fatalf("expected no orders, got %d", orders.Len())
	}
	if calls != 10 {
		t.Fatalf("expected 10 placement calls, got %d", calls)
	}
}

func TestPlaceLadderCallsPlaceTwicePerIteration(t *testing.T) {
	q := NewQuantizer(rand.New(rand.NewSource(2)))
	for _, n := range []int{1, 2, 5, 13} {
		calls := 0
		orders := PlaceLadder(Holdings{Base: d("10"), Quote: d("2000")}, BestPrice{Bid: d("175"), Ask: d("225")}, n, q, acceptAll(&calls, nil))
		if calls != 2*n {
			t.Fatalf("count %d: expected %d calls, got %d", n, 2*n, calls)
		}
		if orders.Len() != 2*n {
			t.Fatalf("count %d: expected %d orders, got %d", n, 2*n, orders.Len())
		}
	}
}

func TestPlaceLadderWithinFivePercentOfBest(t *testing.T) {
	q := NewQuantizer(rand.New(rand.NewSource(9)))
	best := BestPrice{Bid: d("50"), Ask: d("51")}
	calls := 0
	orders := PlaceLadder(Holdings{Base: d("1"), Quote: d("10")}, best, 25, q, acceptAll(&calls, nil))

	bidLow := best.Bid.Mul(d("0.95"))
	askHigh := best.Ask.Mul(d("1.05"))
	for _, o := range orders.Orders() {
		switch o.Side {
		case Buy:
			if o.Price.LessThan(bidLow) || o.Price.GreaterThan(best.Bid) {
				t.Errorf("buy %+v outside [%s, %s]", o, bidLow, best.Bid)
			}
		case Sell:
			if o.Price.LessThan(best.Ask) || o.Price.GreaterThan(askHigh) {
				t.Errorf("sell %+v outside [%s, %s]", o, best.Ask, askHigh)
			}
		}
	}
}

func TestPlaceLadderSignsVolumeOnlyAtTheBoundary(t *testing.T) {
	q := NewQuantizer(rand.New(rand.NewSource(4)))
	var log []placement
	calls := 0
	holdings := Holdings{Base: d("10"), Quote: d("2000")}
	orders := PlaceLadder(holdings, BestPrice{Bid: d("175"), Ask: d("225")}, 5, q, acceptAll(&calls, &log))

	for i, p := range log {
		wantBuy := i%2 == 0
		if wantBuy && p.SignedVolume.Sign() < 0 {
			t.Fatalf("placement %d: buy submitted with negative volume %s", i, p.SignedVolume)
		}
		if !wantBuy && p.SignedVolume.Sign() > 0 {
			t.Fatalf("placement %d: sell submitted with positive volume %s", i, p.SignedVolume)
		}
	}

	maxVolume := d("2") // 10 base / 5 pairs
	total := decimal.Zero
	for _, o := range orders.Orders() {
		if o.Volume.Sign() < 0 {
			t.Fatalf("order %+v recorded with negative volume", o)
		}
		if o.Volume.GreaterThan(maxVolume) {
			t.Fatalf("order %+v exceeds per-order cap %s", o, maxVolume)
		}
		if o.Side == Sell {
			total = total.Add(o.Volume)
		}
	}
	if total.GreaterThan(holdings.Base) {
		t.Fatalf("sell side commits %s, more than the %s held", total, holdings.Base)
	}
}
