package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Validate checks high-impact runtime configuration constraints.
func (c Config) Validate() error {
	if c.LeaderAddress == "" {
		return fmt.Errorf("leader_address is required")
	}
	if !common.IsHexAddress(c.LeaderAddress) {
		return fmt.Errorf("leader_address %q is not a valid hex address", c.LeaderAddress)
	}
	if c.TradingMode != TradingPaper && c.TradingMode != TradingLive {
		return fmt.Errorf("trading_mode must be 'paper' or 'live', got %q", c.TradingMode)
	}
	if c.TradingMode == TradingPaper && c.PaperBalance <= 0 {
		return fmt.Errorf("paper_balance must be > 0, got %f", c.PaperBalance)
	}
	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("poll_interval_ms must be > 0, got %d", c.PollIntervalMs)
	}
	if c.MaxConsecutiveErr <= 0 {
		return fmt.Errorf("max_consecutive_errors must be > 0, got %d", c.MaxConsecutiveErr)
	}

	switch c.Sizing.Method {
	case SizingPortfolioPct, SizingTraderRatio, SizingFixed:
	default:
		return fmt.Errorf("sizing.method invalid: %q", c.Sizing.Method)
	}
	switch c.Sizing.SellStrategy {
	case SellProportional, SellFullExit, SellMatchDelta:
	default:
		return fmt.Errorf("sizing.sell_strategy invalid: %q", c.Sizing.SellStrategy)
	}
	switch c.Sizing.BelowMinAction {
	case BelowMinSkip, BelowMinBuyAtMin:
	default:
		return fmt.Errorf("sizing.below_min_action invalid: %q", c.Sizing.BelowMinAction)
	}
	if c.Sizing.MinOrderSize < 0 {
		return fmt.Errorf("sizing.min_order_size must be >= 0, got %f", c.Sizing.MinOrderSize)
	}
	if c.Sizing.MaxPositionPerTok <= 0 {
		return fmt.Errorf("sizing.max_position_per_token must be > 0, got %f", c.Sizing.MaxPositionPerTok)
	}

	if c.Price.AdaptiveThresholdBps < 0 {
		return fmt.Errorf("price.adaptive_threshold_bps must be >= 0, got %f", c.Price.AdaptiveThresholdBps)
	}
	if c.Price.MaxAdaptiveOffsetBps < c.Price.OffsetBps {
		return fmt.Errorf("price.max_adaptive_offset_bps must be >= price.offset_bps")
	}

	if c.Risk.MaxDailyLoss < 0 {
		return fmt.Errorf("risk.max_daily_loss must be >= 0, got %f", c.Risk.MaxDailyLoss)
	}
	if c.Risk.MaxTotalLoss < 0 {
		return fmt.Errorf("risk.max_total_loss must be >= 0, got %f", c.Risk.MaxTotalLoss)
	}

	if c.Market.MaxSpreadBps <= 0 {
		return fmt.Errorf("market.max_spread_bps must be > 0, got %f", c.Market.MaxSpreadBps)
	}
	if c.Market.DepthRangePercent <= 0 {
		return fmt.Errorf("market.depth_range_percent must be > 0, got %f", c.Market.DepthRangePercent)
	}

	switch c.DetectionMethod {
	case DetectionActivity, DetectionPositions:
	default:
		return fmt.Errorf("detection_method invalid: %q", c.DetectionMethod)
	}

	return nil
}
