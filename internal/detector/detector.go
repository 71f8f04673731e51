// Package detector implements the tight cooperative poll loop that
// watches a leader's activity feed: incremental `after` cursor, LRU-style
// dedup, consecutive-error backoff with degraded/recovered events, and
// an externally triggerable immediate poll.
package detector

import (
	"context"
	"log"
	"time"

	"github.com/polycopy/trader/internal/domain"
	"github.com/polycopy/trader/internal/venue"
)

const (
	seenCap         = 1000
	seenTrimTo      = 500
	rateLimitPause  = 5 * time.Second
	pollLimit       = 50
)

// Trades is the subset of venue.Client the detector polls through.
type Trades interface {
	GetTrades(ctx context.Context, addr string, params venue.ActivityParams) ([]domain.TradeEvent, error)
}

// Event is one detector notification. Exactly one of Trade, Err, a
// degraded transition, or a recovered transition is set.
type Event struct {
	Trade             *domain.TradeEvent
	DetectionLatency  time.Duration
	Degraded          bool
	Recovered         bool
	Err               error
}

// Detector polls Trades for one leader address.
type Detector struct {
	venue             Trades
	leaderAddr        string
	pollInterval      time.Duration
	maxConsecutiveErr int

	lastTradeSec  int64
	seenIDs       map[string]struct{}
	seenOrder     []string
	consecutiveErr int
	degraded      bool
	isInitial     bool

	trigger chan struct{}
	events  chan Event
}

// New builds a Detector. The first poll after construction is treated as
// initial: trades observed there are recorded but never emitted, since
// replaying them at today's (possibly worse) market price is a
// correctness risk.
func New(v Trades, leaderAddr string, pollInterval time.Duration, maxConsecutiveErr int) *Detector {
	return &Detector{
		venue:             v,
		leaderAddr:        leaderAddr,
		pollInterval:      pollInterval,
		maxConsecutiveErr: maxConsecutiveErr,
		seenIDs:           make(map[string]struct{}),
		isInitial:         true,
		trigger:           make(chan struct{}, 1),
		events:            make(chan Event, 16),
	}
}

// Events returns the channel of detector notifications.
func (d *Detector) Events() <-chan Event { return d.events }

// TriggerPollNow breaks the current sleep and forces an immediate poll.
func (d *Detector) TriggerPollNow() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Run drives the poll loop until ctx is cancelled.
func (d *Detector) Run(ctx context.Context) error {
	defer close(d.events)
	for {
		start := time.Now()
		d.pollOnce(ctx)
		elapsed := time.Since(start)

		wait := d.pollInterval - elapsed
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		case <-d.trigger:
			timer.Stop()
		}
	}
}

func (d *Detector) pollOnce(ctx context.Context) {
	trades, err := d.venue.GetTrades(ctx, d.leaderAddr, venue.ActivityParams{Limit: pollLimit, AfterUnixSec: d.lastTradeSec})
	if err != nil {
		d.handleError(err)
		return
	}

	if d.consecutiveErr > 0 {
		d.consecutiveErr = 0
		if d.degraded {
			d.degraded = false
			d.emit(Event{Recovered: true})
		}
	}

	if d.isInitial {
		d.recordInitial(trades)
		d.isInitial = false
		return
	}

	d.emitNewTrades(trades)
}

func (d *Detector) recordInitial(trades []domain.TradeEvent) {
	var maxSec int64
	for _, tr := range trades {
		d.markSeen(tr.ID)
		if s := tr.Timestamp.Unix(); s > maxSec {
			maxSec = s
		}
	}
	if maxSec > 0 {
		d.lastTradeSec = maxSec
	} else {
		d.lastTradeSec = time.Now().Unix()
	}
}

func (d *Detector) emitNewTrades(trades []domain.TradeEvent) {
	var maxSec int64
	for _, tr := range trades {
		if _, seen := d.seenIDs[tr.ID]; seen {
			continue
		}
		d.markSeen(tr.ID)
		d.emit(Event{Trade: &tr, DetectionLatency: time.Since(tr.Timestamp)})

		if s := tr.Timestamp.Unix(); s > maxSec {
			maxSec = s
		}
	}
	if maxSec > d.lastTradeSec {
		d.lastTradeSec = maxSec
	}
	d.trimSeen()
}

func (d *Detector) markSeen(id string) {
	if _, ok := d.seenIDs[id]; ok {
		return
	}
	d.seenIDs[id] = struct{}{}
	d.seenOrder = append(d.seenOrder, id)
}

func (d *Detector) trimSeen() {
	if len(d.seenOrder) <= seenCap {
		return
	}
	drop := len(d.seenOrder) - seenTrimTo
	for _, id := range d.seenOrder[:drop] {
		delete(d.seenIDs, id)
	}
	d.seenOrder = append([]string(nil), d.seenOrder[drop:]...)
}

func (d *Detector) handleError(err error) {
	d.consecutiveErr++
	d.emit(Event{Err: err})

	if d.consecutiveErr == d.maxConsecutiveErr && !d.degraded {
		d.degraded = true
		d.emit(Event{Degraded: true})
	}

	if venue.KindOf(err) == venue.KindRateLimited {
		log.Printf("detector: rate limited, pausing %s", rateLimitPause)
		time.Sleep(rateLimitPause)
	}
}

func (d *Detector) emit(e Event) {
	select {
	case d.events <- e:
	default:
		log.Printf("detector: event channel full, dropping event")
	}
}
