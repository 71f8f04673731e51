package rategate

import (
	"context"
	"testing"
	"time"
)

func TestGateAdmitsImmediatelyThenWaits(t *testing.T) {
	g := NewGate(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("expected second call to wait ~50ms, elapsed %v", elapsed)
	}
}

func TestGateRespectsContextCancellation(t *testing.T) {
	g := NewGate(time.Second)
	ctx := context.Background()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := g.Wait(cctx); err == nil {
		t.Fatal("expected context deadline to abort the wait")
	}
}

func TestTokenBucketBurstThenDebt(t *testing.T) {
	b := NewTokenBucket(3, 10) // capacity 3, refill 10/s
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := b.Consume(ctx, 1); err != nil {
			t.Fatalf("burst consume %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Fatalf("expected burst of 3 to be admitted without waiting, elapsed %v", elapsed)
	}

	// The 4th token must wait for refill since the bucket is now at 0.
	start = time.Now()
	if err := b.Consume(ctx, 1); err != nil {
		t.Fatalf("debt consume: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("expected debt wait of ~100ms, elapsed %v", elapsed)
	}
}

func TestTokenBucketTryConsume(t *testing.T) {
	b := NewTokenBucket(1, 1)
	ok, wait := b.TryConsume(1)
	if !ok || wait != 0 {
		t.Fatalf("expected first TryConsume to succeed immediately, got ok=%v wait=%v", ok, wait)
	}

	ok, wait = b.TryConsume(1)
	if ok {
		t.Fatal("expected second immediate TryConsume to be rejected")
	}
	if wait <= 0 {
		t.Fatal("expected a positive wait estimate")
	}
}

func TestNewGatesDefaults(t *testing.T) {
	g := NewGates()
	if g.Activity == nil || g.Positions == nil || g.BookPrice == nil {
		t.Fatal("expected all three endpoint-family gates to be constructed")
	}
}
