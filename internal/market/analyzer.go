// Package market turns a raw order book into a decision-ready
// MarketSnapshot: best bid/ask, depth, a volume-weighted fill price for a
// target size, divergence from the leader's fill price, and a condition
// tag the downstream gates branch on.
package market

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/polycopy/trader/internal/domain"
	"github.com/polycopy/trader/internal/venue"
)

// Config holds the thresholds the analyzer and its condition tagging need.
type Config struct {
	DepthRangePercent      float64 // default 0.01 (1%)
	WideSpreadThresholdBps float64
	MaxSpreadBps           float64
	MaxDivergenceBps       float64
	MinDepthShares         float64
}

// DefaultConfig matches spec.md's stated defaults.
func DefaultConfig() Config {
	return Config{
		DepthRangePercent:      0.01,
		WideSpreadThresholdBps: 500,
		MaxSpreadBps:           800,
		MaxDivergenceBps:       500,
		MinDepthShares:         20,
	}
}

type level struct {
	price float64
	size  float64
}

// filterSort drops non-positive levels and sorts asks ascending / bids
// descending by price.
func filterSort(raw []venue.BookLevel, ascending bool) []level {
	out := make([]level, 0, len(raw))
	for _, l := range raw {
		if l.Price <= 0 || l.Size <= 0 {
			continue
		}
		out = append(out, level{price: l.Price, size: l.Size})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			swap := false
			if ascending {
				swap = out[j].price < out[j-1].price
			} else {
				swap = out[j].price > out[j-1].price
			}
			if !swap {
				break
			}
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Analyze builds a MarketSnapshot from a raw book, the leader's fill
// price, and an optional target size to compute a weighted fill price
// for (0 or negative means "don't compute").
func Analyze(cfg Config, tokenID string, book venue.Book, leaderPrice float64, targetSize float64) domain.MarketSnapshot {
	asks := filterSort(book.Asks, true)
	bids := filterSort(book.Bids, false)

	snap := domain.MarketSnapshot{
		TokenID: tokenID,
		Time:    time.Now(),
	}

	if len(asks) == 0 && len(bids) == 0 {
		snap.BestAsk = leaderPrice
		snap.BestBid = leaderPrice
		snap.Midpoint = leaderPrice
		snap.Condition = domain.ConditionStale
		snap.Reasons = append(snap.Reasons, "book unavailable")
		return snap
	}

	snap.BestAsk = leaderPrice
	if len(asks) > 0 {
		snap.BestAsk = asks[0].price
	}
	snap.BestBid = leaderPrice
	if len(bids) > 0 {
		snap.BestBid = bids[0].price
	}
	snap.Midpoint = (snap.BestAsk + snap.BestBid) / 2
	snap.Spread = snap.BestAsk - snap.BestBid
	snap.SpreadBps = snap.Spread * 10000

	snap.AskDepthNear = depthNear(asks, snap.BestAsk, cfg.DepthRangePercent, true)
	snap.BidDepthNear = depthNear(bids, snap.BestBid, cfg.DepthRangePercent, false)

	if targetSize > 0 {
		if w, ok := weightedFill(asks, targetSize); ok {
			snap.WeightedAsk = &w
		}
		if w, ok := weightedFill(bids, targetSize); ok {
			snap.WeightedBid = &w
		}
	}

	if leaderPrice > 0 {
		snap.Divergence = abs(snap.Midpoint - leaderPrice)
		snap.DivergenceBps = snap.Divergence / leaderPrice * 10000
	}

	assignCondition(cfg, &snap, len(asks) == 0 && len(bids) == 0)
	return snap
}

// AnalyzeFromPrices is the fallback when no book is available: a
// zero-depth snapshot derived from ask/bid quotes alone.
func AnalyzeFromPrices(cfg Config, tokenID string, ask, bid, leaderPrice float64) domain.MarketSnapshot {
	snap := domain.MarketSnapshot{
		TokenID:  tokenID,
		Time:     time.Now(),
		BestAsk:  ask,
		BestBid:  bid,
		Midpoint: (ask + bid) / 2,
		Spread:   ask - bid,
	}
	snap.SpreadBps = snap.Spread * 10000
	if leaderPrice > 0 {
		snap.Divergence = abs(snap.Midpoint - leaderPrice)
		snap.DivergenceBps = snap.Divergence / leaderPrice * 10000
	}
	assignCondition(cfg, &snap, false)
	return snap
}

// depthNear sums size on levels within depthRangePercent of the best
// price on that side.
func depthNear(levels []level, best float64, depthRangePercent float64, isAsk bool) float64 {
	if len(levels) == 0 || best <= 0 {
		return 0
	}
	var sum float64
	band := best * depthRangePercent
	for _, l := range levels {
		var within bool
		if isAsk {
			within = l.price <= best+band
		} else {
			within = l.price >= best-band
		}
		if within {
			sum += l.size
		}
	}
	return sum
}

// weightedFill walks levels accumulating cost until targetSize is filled,
// returning cost/filled. ok is false if the book cannot fill targetSize.
func weightedFill(levels []level, targetSize float64) (float64, bool) {
	remaining := decimal.NewFromFloat(targetSize)
	cost := decimal.Zero
	filled := decimal.Zero

	for _, l := range levels {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		price := decimal.NewFromFloat(l.price)
		size := decimal.NewFromFloat(l.size)
		take := size
		if take.GreaterThan(remaining) {
			take = remaining
		}
		cost = cost.Add(take.Mul(price))
		filled = filled.Add(take)
		remaining = remaining.Sub(take)
	}

	if remaining.GreaterThan(decimal.Zero) || filled.IsZero() {
		return 0, false
	}
	weighted, _ := cost.Div(filled).Float64()
	return weighted, true
}

// assignCondition tags condition in the spec's priority order: stale,
// wide_spread (two thresholds), high_divergence, thin_book, else normal.
func assignCondition(cfg Config, snap *domain.MarketSnapshot, emptyBook bool) {
	switch {
	case emptyBook:
		snap.Condition = domain.ConditionStale
		snap.IsVolatile = false
		snap.Reasons = append(snap.Reasons, "book empty")
	case cfg.MaxSpreadBps > 0 && snap.SpreadBps > cfg.MaxSpreadBps:
		snap.Condition = domain.ConditionWideSpread
		snap.IsVolatile = true
		snap.Reasons = append(snap.Reasons, "spread exceeds max threshold")
	case cfg.WideSpreadThresholdBps > 0 && snap.SpreadBps > cfg.WideSpreadThresholdBps:
		snap.Condition = domain.ConditionWideSpread
		snap.IsVolatile = true
		snap.Reasons = append(snap.Reasons, "spread exceeds wide threshold")
	case cfg.MaxDivergenceBps > 0 && snap.DivergenceBps > cfg.MaxDivergenceBps:
		snap.Condition = domain.ConditionHighDivergence
		snap.IsVolatile = true
		snap.Reasons = append(snap.Reasons, "price diverges from leader fill")
	case cfg.MinDepthShares > 0 && (snap.AskDepthNear < cfg.MinDepthShares || snap.BidDepthNear < cfg.MinDepthShares):
		snap.Condition = domain.ConditionThinBook
		snap.IsVolatile = true
		snap.Reasons = append(snap.Reasons, "insufficient depth near best price")
	default:
		snap.Condition = domain.ConditionNormal
		snap.IsVolatile = false
	}
}

// RecommendedPrice mirrors getRecommendedPrice(snapshot, side): the
// weighted fill price when available, else the raw best quote.
func RecommendedPrice(snap domain.MarketSnapshot, side domain.Side) float64 {
	if side == domain.Buy {
		if snap.WeightedAsk != nil {
			return *snap.WeightedAsk
		}
		return snap.BestAsk
	}
	if snap.WeightedBid != nil {
		return *snap.WeightedBid
	}
	return snap.BestBid
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
