package alert

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeTransport struct {
	name string
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeTransport) Name() string { return f.name }
func (f *fakeTransport) Send(ctx context.Context, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}
func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestNotifyDropsBelowMinSeverity(t *testing.T) {
	ft := &fakeTransport{name: "fake"}
	s := NewSink(SeverityHigh, ft)

	s.Notify(context.Background(), Message{Severity: SeverityLow, Text: "should be dropped"})
	time.Sleep(30 * time.Millisecond)

	if ft.count() != 0 {
		t.Fatalf("expected low-severity message to be dropped under a high minimum, got %d sends", ft.count())
	}
}

func TestNotifyDispatchesAtOrAboveMinSeverity(t *testing.T) {
	ft := &fakeTransport{name: "fake"}
	s := NewSink(SeverityMedium, ft)

	s.Notify(context.Background(), Message{Severity: SeverityCritical, Text: "critical fill"})
	time.Sleep(30 * time.Millisecond)

	if ft.count() != 1 {
		t.Fatalf("expected 1 dispatched send, got %d", ft.count())
	}
}

func TestNotifyFansOutToMultipleTransports(t *testing.T) {
	a := &fakeTransport{name: "a"}
	b := &fakeTransport{name: "b"}
	s := NewSink(SeverityLow, a, b)

	s.Notify(context.Background(), Message{Severity: SeverityLow, Text: "hello"})
	time.Sleep(30 * time.Millisecond)

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("expected both transports to receive the message, got a=%d b=%d", a.count(), b.count())
	}
}

func TestSeverityOrdering(t *testing.T) {
	if !(SeverityCritical < SeverityHigh && SeverityHigh < SeverityMedium && SeverityMedium < SeverityLow) {
		t.Fatal("expected severity ordering critical < high < medium < low")
	}
}
