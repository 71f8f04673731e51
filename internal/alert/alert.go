// Package alert fans severity-tagged messages out to zero or more
// notification transports, each independently rate-limited, fire-and-forget
// from the hot path.
package alert

import (
	"context"
	"log"
	"time"

	"github.com/polycopy/trader/internal/rategate"
)

// Severity orders critical < high < medium < low, matching the sink's
// minimum-severity filter.
type Severity int

const (
	SeverityCritical Severity = iota
	SeverityHigh
	SeverityMedium
	SeverityLow
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// Message is one alert to fan out.
type Message struct {
	Severity Severity
	Text     string
}

// Transport delivers a rendered message to one destination.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg string) error
}

const alertsPerMinute = 20

// Sink filters by minimum severity and rate-limits each transport
// independently before dispatching fire-and-forget.
type Sink struct {
	minSeverity Severity
	transports  []Transport
	gates       map[string]*rategate.Gate
}

// NewSink builds a Sink with the given minimum severity and transports.
// Messages below minSeverity are dropped before any transport sees them.
func NewSink(minSeverity Severity, transports ...Transport) *Sink {
	gates := make(map[string]*rategate.Gate, len(transports))
	for _, t := range transports {
		gates[t.Name()] = rategate.NewRateGate(float64(alertsPerMinute)/60, 1)
	}
	return &Sink{minSeverity: minSeverity, transports: transports, gates: gates}
}

// Notify dispatches msg to every registered transport asynchronously, one
// goroutine per transport, so the hot path never blocks. Each goroutine
// waits on its transport's rate gate within a 10-second send deadline; a
// message the gate cannot admit within that deadline is dropped for that
// transport and logged.
func (s *Sink) Notify(ctx context.Context, msg Message) {
	if msg.Severity > s.minSeverity {
		return
	}
	for _, t := range s.transports {
		t := t
		gate := s.gates[t.Name()]
		go func() {
			sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := gate.Wait(sendCtx); err != nil {
				log.Printf("alert: %s rate gate: %v", t.Name(), err)
				return
			}
			if err := t.Send(sendCtx, msg.Text); err != nil {
				log.Printf("alert: %s send failed: %v", t.Name(), err)
			}
		}()
	}
}
