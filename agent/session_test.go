package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	// constSource(0.5) puts the single ladder pair at buy 5.0@170.6 and sell 5.0@230.6.
	initialBook = []BookEntry{entry("170", "3"), entry("175", "1"), entry("225", "-1"), entry("240", "-2")}
	fillBuyBook = []BookEntry{entry("100", "1"), entry("225", "-1")}
	fillAllBook = []BookEntry{entry("100", "1"), entry("300", "-1")}
)

func newTestSession(m *fakeMarket, opts ...Option) (*Session, *manualClock, *recordingObserver) {
	clock := newManualClock()
	m.clock = clock
	obs := &recordingObserver{}
	base := []Option{
		WithClock(clock),
		WithObserver(obs),
		WithQuantizer(NewQuantizer(constSource(0.5))),
	}
	s := NewSession(m, Holdings{Base: d("10"), Quote: d("2000")}, append(base, opts...)...)
	return s, clock, obs
}

func TestInitialLadderFailsWithoutBestPrice(t *testing.T) {
	tests := []struct {
		name   string
		market *fakeMarket
	}{
		{"empty book", &fakeMarket{books: [][]BookEntry{{}}}},
		{"one sided book", &fakeMarket{books: [][]BookEntry{{entry("10", "1"), entry("11", "1")}}}},
		{"unreadable book", &fakeMarket{bookErr: errFeedDown}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestSession(tt.market)

			err := s.PlaceInitialLadder(context.Background(), 5)
			if !errors.Is(err, ErrMarketUnavailable) {
				t.Fatalf("expected ErrMarketUnavailable, got %v", err)
			}
			if len(tt.market.placements) != 0 {
				t.Fatalf("expected no placements, got %d", len(tt.market.placements))
			}
			if s.State() != Aborted {
				t.Fatalf("expected aborted state, got %s", s.State())
			}

			out := s.Run(context.Background())
			if out.State != Aborted || !errors.Is(out.Reason, ErrMarketUnavailable) {
				t.Fatalf("unexpected outcome %+v", out)
			}
			if len(tt.market.bookCalls) != 1 || len(tt.market.cancels) != 0 {
				t.Fatalf("run after failed start touched the market: %d book calls, %d cancels",
					len(tt.market.bookCalls), len(tt.market.cancels))
			}
			if !out.Holdings.Base.Equal(d("10")) || !out.Holdings.Quote.Equal(d("2000")) {
				t.Fatalf("holdings mutated: %+v", out.Holdings)
			}
		})
	}
}

func TestInitialLadderOnlyOnce(t *testing.T) {
	m := &fakeMarket{books: [][]BookEntry{initialBook}}
	s, _, _ := newTestSession(m)

	if err := s.PlaceInitialLadder(context.Background(), 1); err != nil {
		t.Fatalf("first placement failed: %v", err)
	}
	if err := s.PlaceInitialLadder(context.Background(), 1); err == nil {
		t.Fatal("expected second placement to fail")
	}
	if len(m.placements) != 2 {
		t.Fatalf("expected 2 placements, got %d", len(m.placements))
	}
}

func TestSessionDrainsWhenEverythingFills(t *testing.T) {
	m := &fakeMarket{books: [][]BookEntry{initialBook, fillAllBook}}
	s, clock, obs := newTestSession(m)
	start := clock.Now()

	if err := s.PlaceInitialLadder(context.Background(), 1); err != nil {
		t.Fatalf("place: %v", err)
	}
	if obs.placed != 2 || obs.rejected != 0 {
		t.Fatalf("observer saw placed=%d rejected=%d", obs.placed, obs.rejected)
	}

	out := s.Run(context.Background())

	if out.State != Drained || out.Reason != nil || out.CancelErr != nil {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(out.Outstanding) != 0 {
		t.Fatalf("expected nothing outstanding, got %+v", out.Outstanding)
	}
	// +5.0 -5.0 base, -5.0*170.6 +5.0*230.6 quote
	if !out.Holdings.Base.Equal(d("10")) || !out.Holdings.Quote.Equal(d("2300")) {
		t.Fatalf("got holdings %+v, want base=10 quote=2300", out.Holdings)
	}
	if len(m.bookCalls) != 2 || !m.bookCalls[1].Equal(start.Add(5*time.Second)) {
		t.Fatalf("expected one refresh 5s after start, got %v", m.bookCalls)
	}
	if len(m.cancels) != 0 {
		t.Fatalf("drained session must not cancel, got %v", m.cancels)
	}
	if len(obs.fills) != 2 || len(obs.finished) != 1 {
		t.Fatalf("observer saw %d fills and %d finishes", len(obs.fills), len(obs.finished))
	}
}

func TestSessionReportsOnRefreshBoundaries(t *testing.T) {
	books := [][]BookEntry{initialBook}
	for i := 0; i < 11; i++ {
		books = append(books, initialBook)
	}
	books = append(books, fillAllBook)
	m := &fakeMarket{books: books}
	s, clock, obs := newTestSession(m)
	start := clock.Now()

	if err := s.PlaceInitialLadder(context.Background(), 1); err != nil {
		t.Fatalf("place: %v", err)
	}
	out := s.Run(context.Background())
	if out.State != Drained {
		t.Fatalf("expected drained, got %+v", out)
	}

	if len(m.bookCalls) != 13 {
		t.Fatalf("expected 12 refreshes after the initial read, got %d", len(m.bookCalls)-1)
	}
	for i := 1; i < len(m.bookCalls); i++ {
		want := start.Add(time.Duration(i) * 5 * time.Second)
		if !m.bookCalls[i].Equal(want) {
			t.Fatalf("refresh %d at %v, want %v", i, m.bookCalls[i].Sub(start), want.Sub(start))
		}
	}
	// 30s and 60s ticks plus the closing report
	if len(obs.reports) != 3 {
		t.Fatalf("expected 3 asset reports, got %d", len(obs.reports))
	}
}

func TestSessionAbortCancelsOutstanding(t *testing.T) {
	m := &fakeMarket{books: [][]BookEntry{initialBook, fillBuyBook, {}}}
	s, _, obs := newTestSession(m)

	if err := s.PlaceInitialLadder(context.Background(), 1); err != nil {
		t.Fatalf("place: %v", err)
	}
	out := s.Run(context.Background())

	if out.State != Aborted || !errors.Is(out.Reason, ErrMarketUnavailable) {
		t.Fatalf("unexpected outcome %+v", out)
	}
	// only the buy filled before the book went empty
	if !out.Holdings.Base.Equal(d("15")) || !out.Holdings.Quote.Equal(d("1147")) {
		t.Fatalf("got holdings %+v, want base=15 quote=1147", out.Holdings)
	}
	if len(m.cancels) != 1 || m.cancels[0] != "ord-2" {
		t.Fatalf("expected the sell to be cancelled, got %v", m.cancels)
	}
	if len(out.Outstanding) != 1 || out.Outstanding[0].Side != Sell {
		t.Fatalf("unexpected outstanding %+v", out.Outstanding)
	}
	if out.CancelErr != nil {
		t.Fatalf("unexpected cancel error %v", out.CancelErr)
	}
	if len(obs.cancelled) != 1 {
		t.Fatalf("observer saw %d cancellations", len(obs.cancelled))
	}
}

func TestSessionAbortKeepsCancellingAfterFailures(t *testing.T) {
	errGone := errors.New("unknown order")
	m := &fakeMarket{
		books:     [][]BookEntry{initialBook, nil},
		cancelErr: map[OrderID]error{"ord-1": errGone, "ord-3": errGone},
	}
	s, _, _ := newTestSession(m)

	if err := s.PlaceInitialLadder(context.Background(), 2); err != nil {
		t.Fatalf("place: %v", err)
	}
	out := s.Run(context.Background())

	if out.State != Aborted {
		t.Fatalf("expected aborted, got %s", out.State)
	}
	if len(m.cancels) != 4 {
		t.Fatalf("expected all 4 orders to be cancelled, got %v", m.cancels)
	}
	if !errors.Is(out.CancelErr, errGone) {
		t.Fatalf("expected joined cancel error, got %v", out.CancelErr)
	}
	if !errors.Is(out.Reason, ErrMarketUnavailable) {
		t.Fatalf("cancel failures must not replace the abort reason, got %v", out.Reason)
	}
}

func TestSessionAbortsOnFeedError(t *testing.T) {
	m := &fakeMarket{books: [][]BookEntry{initialBook}}
	s, _, _ := newTestSession(m)
	if err := s.PlaceInitialLadder(context.Background(), 1); err != nil {
		t.Fatalf("place: %v", err)
	}

	m.bookErr = errFeedDown
	out := s.Run(context.Background())

	if out.State != Aborted || !errors.Is(out.Reason, errFeedDown) || !errors.Is(out.Reason, ErrMarketUnavailable) {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(m.cancels) != 2 {
		t.Fatalf("expected both orders cancelled, got %v", m.cancels)
	}
}

func TestSessionAbortsOnContextCancel(t *testing.T) {
	m := &fakeMarket{books: [][]BookEntry{initialBook}}
	s, _, _ := newTestSession(m)
	if err := s.PlaceInitialLadder(context.Background(), 1); err != nil {
		t.Fatalf("place: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := s.Run(ctx)

	if out.State != Aborted || !errors.Is(out.Reason, context.Canceled) {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(m.cancels) != 2 {
		t.Fatalf("expected both orders cancelled, got %v", m.cancels)
	}
	if len(m.bookCalls) != 1 {
		t.Fatalf("cancelled session should not refresh, got %d book reads", len(m.bookCalls))
	}
}

func TestSessionWithAllPlacementsRejectedDrainsImmediately(t *testing.T) {
	m := &fakeMarket{books: [][]BookEntry{initialBook}, reject: true}
	s, _, obs := newTestSession(m)

	if err := s.PlaceInitialLadder(context.Background(), 3); err != nil {
		t.Fatalf("place: %v", err)
	}
	if len(m.placements) != 6 || obs.rejected != 6 || obs.placed != 0 {
		t.Fatalf("placements=%d rejected=%d placed=%d", len(m.placements), obs.rejected, obs.placed)
	}

	out := s.Run(context.Background())
	if out.State != Drained {
		t.Fatalf("expected drained, got %s", out.State)
	}
	if len(m.bookCalls) != 1 {
		t.Fatalf("expected no refresh, got %d book reads", len(m.bookCalls))
	}
}

func TestSessionLogsLadderAndFills(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := &fakeMarket{books: [][]BookEntry{initialBook, fillAllBook}}
	s, _, _ := newTestSession(m, WithLogger(zap.New(core)))

	if err := s.PlaceInitialLadder(context.Background(), 1); err != nil {
		t.Fatalf("place: %v", err)
	}
	s.Run(context.Background())

	placed := logs.FilterMessage("ladder placed").All()
	if len(placed) != 1 {
		t.Fatalf("expected one ladder log, got %d", len(placed))
	}
	if got := placed[0].ContextMap()["placed"]; got != int64(2) {
		t.Fatalf("ladder log placed=%v, want 2", got)
	}
	if n := logs.FilterMessage("order filled").Len(); n != 2 {
		t.Fatalf("expected 2 fill logs, got %d", n)
	}
	if n := logs.FilterMessage("assets").Len(); n != 1 {
		t.Fatalf("expected the closing asset report, got %d", n)
	}
}
