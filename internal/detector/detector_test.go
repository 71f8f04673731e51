package detector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/polycopy/trader/internal/domain"
	"github.com/polycopy/trader/internal/venue"
)

type fakeVenue struct {
	mu    sync.Mutex
	pages [][]domain.TradeEvent
	errs  []error
	calls int
}

func (f *fakeVenue) GetTrades(ctx context.Context, addr string, params venue.ActivityParams) ([]domain.TradeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.pages) {
		return f.pages[i], nil
	}
	return nil, nil
}

func drain(t *testing.T, d *Detector, n int, timeout time.Duration) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case e, ok := <-d.Events():
			if !ok {
				return out
			}
			out = append(out, e)
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(out))
		}
	}
	return out
}

func TestInitialPollNeverEmits(t *testing.T) {
	fv := &fakeVenue{pages: [][]domain.TradeEvent{
		{{ID: "a", Timestamp: time.Now()}},
		{},
	}}
	d := New(fv, "0xleader", 20*time.Millisecond, 5)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	go d.Run(ctx)

	time.Sleep(80 * time.Millisecond)
	select {
	case e := <-d.Events():
		if e.Trade != nil {
			t.Fatal("expected the initial poll to never emit a trade")
		}
	default:
	}
}

func TestDedupEmitsEachTradeOnce(t *testing.T) {
	trade := domain.TradeEvent{ID: "dup-1", Timestamp: time.Now()}
	fv := &fakeVenue{pages: [][]domain.TradeEvent{
		{}, // initial poll: nothing
		{trade},
		{trade}, // same id resurfaces; must not re-emit
	}}
	d := New(fv, "0xleader", 10*time.Millisecond, 5)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go d.Run(ctx)

	events := drain(t, d, 1, 200*time.Millisecond)
	if events[0].Trade == nil || events[0].Trade.ID != "dup-1" {
		t.Fatalf("expected to see trade dup-1, got %+v", events[0])
	}

	// Give the loop a few more iterations; no second emission should show up.
	time.Sleep(60 * time.Millisecond)
	select {
	case e := <-d.Events():
		if e.Trade != nil {
			t.Fatalf("expected no duplicate emission, got %+v", e)
		}
	default:
	}
}

func TestDegradedAndRecoveredEvents(t *testing.T) {
	boom := &venue.Error{Kind: venue.KindTransient, Endpoint: "activity", Err: context.DeadlineExceeded}
	fv := &fakeVenue{
		pages: [][]domain.TradeEvent{{}},
		errs:  []error{nil, boom, boom, nil},
	}
	d := New(fv, "0xleader", 5*time.Millisecond, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	go d.Run(ctx)

	var sawDegraded, sawRecovered bool
	deadline := time.After(150 * time.Millisecond)
	for !sawRecovered {
		select {
		case e := <-d.Events():
			if e.Degraded {
				sawDegraded = true
			}
			if e.Recovered {
				sawRecovered = true
			}
		case <-deadline:
			t.Fatalf("timed out: degraded=%v recovered=%v", sawDegraded, sawRecovered)
		}
	}
	if !sawDegraded {
		t.Fatal("expected a degraded event before recovery")
	}
}

func TestTriggerPollNowBreaksSleep(t *testing.T) {
	fv := &fakeVenue{pages: [][]domain.TradeEvent{{}, {{ID: "triggered", Timestamp: time.Now()}}}}
	d := New(fv, "0xleader", time.Hour, 5) // long interval; only TriggerPollNow should advance it
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go d.Run(ctx)

	time.Sleep(10 * time.Millisecond) // let the initial poll land
	d.TriggerPollNow()

	events := drain(t, d, 1, 150*time.Millisecond)
	if events[0].Trade == nil || events[0].Trade.ID != "triggered" {
		t.Fatalf("expected triggered poll to surface the new trade, got %+v", events[0])
	}
}
