// Package rategate protects upstream venue endpoints from bursty callers.
// Two shapes are provided: a fixed-interval gate (one call per endpoint
// family at a steady cadence) and a token-bucket gate that lets bursts
// through up to a capacity and lets the bucket go negative under
// contention so concurrent callers serialize instead of spiking.
//
// Both are thin wrappers over golang.org/x/time/rate, whose reservation
// API already implements the debt model this package's callers need:
// Reserve(n) hands back a Delay() that can be nonzero even immediately
// after construction, and waiting on it serializes callers without a
// busy poll loop.
package rategate

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate enforces a minimum interval between calls to one endpoint family.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate returns a Gate admitting at most one call every interval.
func NewGate(interval time.Duration) *Gate {
	if interval <= 0 {
		interval = time.Millisecond
	}
	r := rate.Every(interval)
	return &Gate{limiter: rate.NewLimiter(r, 1)}
}

// NewRateGate returns a Gate admitting ratePerSec calls per second, with
// burst concurrent calls allowed through immediately.
func NewRateGate(ratePerSec float64, burst int) *Gate {
	if burst < 1 {
		burst = 1
	}
	return &Gate{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Wait blocks until the gate admits one call, or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// TokenBucket is the token/interval gate's more precise sibling: capacity
// C, refill R tokens/second, consume(n) subtracts n and blocks for
// max(0, (n-tokens)/R). Tokens are allowed to go negative under
// concurrent consumers (the debt model), so every caller still serializes
// on a single FIFO reservation queue rather than racing to check a
// shared counter.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket builds a bucket with the given capacity and refill rate
// in tokens per second.
func NewTokenBucket(capacity int, refillPerSec float64) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(refillPerSec), capacity)}
}

// Consume blocks until n tokens are available (possibly driving the
// bucket negative for the duration of the wait), or ctx is done.
func (b *TokenBucket) Consume(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}
	return b.limiter.WaitN(ctx, n)
}

// TryConsume attempts to consume n tokens without blocking; it reports
// whether the reservation was granted and, if not, how long the caller
// would need to wait.
func (b *TokenBucket) TryConsume(n int) (ok bool, wait time.Duration) {
	if n < 1 {
		n = 1
	}
	r := b.limiter.ReserveN(time.Now(), n)
	if !r.OK() {
		return false, 0
	}
	delay := r.Delay()
	if delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

// Endpoint family gates per spec defaults: activity ~100/s, positions
// ~20/s, book/price ~15/s.
const (
	ActivityRatePerSec  = 100.0
	PositionsRatePerSec = 20.0
	BookPriceRatePerSec = 15.0
)

// Gates bundles the three per-endpoint-family gates a venue client needs.
type Gates struct {
	Activity  *Gate
	Positions *Gate
	BookPrice *Gate
}

// NewGates builds the standard trio at the spec's default rates, each a
// burst-1 minimum-interval gate (one admitted call per 1/rate seconds) —
// not a multi-token bucket, since these three families cap steady-state
// call rate rather than absorb bursts.
func NewGates() *Gates {
	return &Gates{
		Activity:  NewGate(time.Duration(float64(time.Second) / ActivityRatePerSec)),
		Positions: NewGate(time.Duration(float64(time.Second) / PositionsRatePerSec)),
		BookPrice: NewGate(time.Duration(float64(time.Second) / BookPriceRatePerSec)),
	}
}
