// Package priceadjust computes the follower's submit price from a base
// offset, a market snapshot, and the intended side: widening the offset
// as spread widens, then clamping into the venue's valid price range.
package priceadjust

import (
	"math"

	"github.com/polycopy/trader/internal/domain"
)

// Config holds the adaptive-offset thresholds.
type Config struct {
	OffsetBps            float64 // base offset B
	AdaptiveThresholdBps float64 // default 150
	SpreadMultiplier     float64 // default 0.5
	MaxAdaptiveOffsetBps float64 // default 300
}

// DefaultConfig matches spec.md's stated defaults (base offset left at
// the caller's configured value since it has no universal default).
func DefaultConfig(baseOffsetBps float64) Config {
	return Config{
		OffsetBps:            baseOffsetBps,
		AdaptiveThresholdBps: 150,
		SpreadMultiplier:     0.5,
		MaxAdaptiveOffsetBps: 300,
	}
}

// EffectiveOffset computes the spread-adaptive offset in bps: the base
// offset while spread is within the adaptive threshold, widening toward
// (but never past) maxAdaptiveOffsetBps as spread grows.
func EffectiveOffset(cfg Config, snap domain.MarketSnapshot) float64 {
	if snap.SpreadBps <= cfg.AdaptiveThresholdBps {
		return cfg.OffsetBps
	}
	widened := math.Max(cfg.OffsetBps, snap.SpreadBps*cfg.SpreadMultiplier)
	return math.Min(widened, cfg.MaxAdaptiveOffsetBps)
}

// AdjustedPrice computes the clamped, rounded submit price for side from
// marketPrice and the effective offset derived from snap.
func AdjustedPrice(cfg Config, marketPrice float64, side domain.Side, snap domain.MarketSnapshot) (price float64, effectiveOffsetBps float64) {
	effectiveOffsetBps = EffectiveOffset(cfg, snap)
	factor := effectiveOffsetBps / 10000
	if side == domain.Sell {
		factor = -factor
	}
	raw := marketPrice * (1 + factor)
	clamped := math.Max(0.01, math.Min(0.99, raw))
	return round4(clamped), effectiveOffsetBps
}

// SlippageCost reports the cost of the price adjustment for a given size:
// shares * (adjusted - market).
func SlippageCost(shares, adjustedPrice, marketPrice float64) float64 {
	return shares * (adjustedPrice - marketPrice)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
