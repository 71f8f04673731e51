// Package condition gates an order against a market snapshot's spread,
// divergence, depth, and staleness, separately from the balance/loss
// checks internal/risk performs.
package condition

import (
	"fmt"

	"github.com/polycopy/trader/internal/domain"
)

// Config holds the hard-reject and warning thresholds.
type Config struct {
	MaxSpreadBps           float64
	MaxDivergenceBps       float64
	MinDepthShares         float64
	WideSpreadThresholdBps float64
}

// Decision is the condition gate's verdict.
type Decision struct {
	Approved bool
	Reason   string
	Warnings []string
	Level    string // low, medium, high
}

// Check evaluates snap for the given side and intended order size.
func Check(cfg Config, snap domain.MarketSnapshot, side domain.Side, orderSize float64) Decision {
	if snap.Condition == domain.ConditionStale {
		return Decision{Reason: "market data is stale"}
	}
	if cfg.MaxSpreadBps > 0 && snap.SpreadBps > cfg.MaxSpreadBps {
		return Decision{Reason: fmt.Sprintf("spread %.0fbps exceeds max %.0fbps", snap.SpreadBps, cfg.MaxSpreadBps)}
	}
	if cfg.MaxDivergenceBps > 0 && snap.DivergenceBps > cfg.MaxDivergenceBps {
		return Decision{Reason: fmt.Sprintf("divergence %.0fbps exceeds max %.0fbps", snap.DivergenceBps, cfg.MaxDivergenceBps)}
	}

	nearDepth := snap.AskDepthNear
	if side == domain.Sell {
		nearDepth = snap.BidDepthNear
	}
	if orderSize > 0 && cfg.MinDepthShares > 0 && nearDepth < cfg.MinDepthShares {
		return Decision{Reason: "insufficient near-book depth"}
	}

	var warnings []string
	highTier := snap.IsVolatile

	if orderSize > 0 && nearDepth > 0 && orderSize > 0.5*nearDepth {
		warnings = append(warnings, "order size exceeds 50% of near-book depth")
	}
	if cfg.WideSpreadThresholdBps > 0 && snap.SpreadBps > cfg.WideSpreadThresholdBps {
		warnings = append(warnings, "spread above wide threshold")
	}
	if cfg.MaxDivergenceBps > 0 && snap.DivergenceBps > 0.6*cfg.MaxDivergenceBps {
		warnings = append(warnings, "divergence above 60% of max")
	}

	level := "low"
	switch {
	case highTier:
		level = "high"
	case len(warnings) > 0:
		level = "medium"
	}

	return Decision{Approved: true, Warnings: warnings, Level: level}
}
