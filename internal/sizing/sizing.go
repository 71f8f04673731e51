// Package sizing computes the follower's order size from the leader's
// delta, the configured sizing strategy, and post-calc caps, floors, and
// affordability clamps.
package sizing

import (
	"fmt"
	"math"

	"github.com/polycopy/trader/internal/config"
	"github.com/polycopy/trader/internal/domain"
)

// BuyParams bundles the inputs a BUY sizing call needs.
type BuyParams struct {
	Balance             float64
	Price               float64
	LeaderDelta         float64
	LeaderPortfolioVal  float64 // 0 if unknown
}

// BuySize computes the BUY share count under cfg.Sizing.Method, then
// applies the cap/floor/affordability chain in the spec's order.
func BuySize(cfg config.SizingConfig, p BuyParams) float64 {
	var shares float64
	switch cfg.Method {
	case config.SizingTraderRatio:
		if p.LeaderPortfolioVal > 0 {
			shares = p.LeaderDelta * p.Balance / p.LeaderPortfolioVal
		} else {
			shares = 0.1 * p.LeaderDelta
		}
	default: // proportional_to_portfolio, fixed
		if p.Price > 0 {
			shares = p.Balance * cfg.PortfolioPct / p.Price
		}
	}

	shares = math.Max(0, shares)

	if cfg.MaxPositionPerTok > 0 && shares > cfg.MaxPositionPerTok {
		shares = cfg.MaxPositionPerTok
	}

	if shares < cfg.MinOrderSize {
		if cfg.BelowMinAction == config.BelowMinBuyAtMin {
			shares = math.Max(cfg.MinOrderSize, config.VenueFloor)
		} else {
			shares = 0
		}
	}

	shares = floor2(shares)

	if p.Price > 0 && shares*p.Price > p.Balance {
		shares = floor2(p.Balance / p.Price)
	}

	return math.Max(0, shares)
}

// SellParams bundles the inputs a SELL sizing call needs.
type SellParams struct {
	FollowerPos      float64
	LeaderDelta      float64
	LeaderPreviousQty float64 // pre-trade leader quantity, for `proportional`
}

// SellSize computes the SELL share count under cfg.Sizing.SellStrategy,
// capped at the follower's position and floored to 2 decimals. A result
// below cfg.MinOrderSize is rejected (returns 0) unless it closes the
// position outright.
func SellSize(cfg config.SizingConfig, p SellParams) float64 {
	if p.FollowerPos <= 0 {
		return 0
	}

	var shares float64
	switch cfg.SellStrategy {
	case config.SellFullExit:
		shares = p.FollowerPos
	case config.SellMatchDelta:
		shares = math.Min(p.LeaderDelta, p.FollowerPos)
	default: // proportional
		if p.LeaderPreviousQty > 0 {
			shares = p.FollowerPos * (p.LeaderDelta / p.LeaderPreviousQty)
		}
	}

	shares = math.Max(0, math.Min(shares, p.FollowerPos))
	shares = floor2(shares)

	if shares > 0 && shares < cfg.MinOrderSize && shares != p.FollowerPos {
		return 0
	}

	return shares
}

// ShouldCopy reports whether a leader change of `change` shares is worth
// copying given the follower's current position in that token.
func ShouldCopy(side domain.Side, change float64, followerPos float64) bool {
	if change < 1 {
		return false
	}
	if side == domain.Sell && followerPos <= 0 {
		return false
	}
	return true
}

// AdjustForDepth reduces shares toward 80% of near-side depth when shares
// exceeds that depth, returning the (possibly unchanged) size and a
// human-readable note when an adjustment was made.
func AdjustForDepth(shares float64, snap domain.MarketSnapshot, side domain.Side, minOrderSize float64) (adjusted float64, note string) {
	nearDepth := snap.AskDepthNear
	if side == domain.Sell {
		nearDepth = snap.BidDepthNear
	}
	if nearDepth == 0 || shares <= nearDepth {
		return shares, ""
	}

	reduced := floor2(0.8 * nearDepth)
	if reduced < minOrderSize {
		reduced = minOrderSize
	}
	if reduced > shares {
		reduced = shares
	}
	return reduced, fmt.Sprintf("reduced size from %.2f to %.2f: only %.2f near-depth available", shares, reduced, nearDepth)
}

// AdaptiveExpiration returns baseSeconds unless the snapshot is volatile,
// in which case it halves (floor), with a 5s minimum.
func AdaptiveExpiration(snap domain.MarketSnapshot, baseSeconds int) int {
	if !snap.IsVolatile {
		return baseSeconds
	}
	half := baseSeconds / 2
	if half < 5 {
		return 5
	}
	return half
}

func floor2(v float64) float64 {
	return math.Floor(v*100) / 100
}
