package config

import (
	"fmt"
	"strings"
)

// ApplyRolloutPhase applies a staged rollout preset to the config. Supported
// phases:
//   - paper:      paper trading mode, unchanged otherwise.
//   - live-small: live mode with conservative size/loss caps clamped down.
//   - live:       live mode using configured values as-is.
func ApplyRolloutPhase(cfg *Config, phase string) error {
	p := strings.ToLower(strings.TrimSpace(phase))
	if p == "" {
		return nil
	}

	switch p {
	case "paper":
		cfg.TradingMode = TradingPaper
	case "live-small", "small":
		cfg.TradingMode = TradingLive
		clampMaxFloat(&cfg.Sizing.PortfolioPct, 0.01)
		clampMaxFloat(&cfg.Sizing.MaxPositionPerTok, 25)
		clampMaxFloat(&cfg.Risk.MaxTotalLoss, 50)
		clampMaxFloat(&cfg.Risk.MaxDailyLoss, 20)
	case "live":
		cfg.TradingMode = TradingLive
	default:
		return fmt.Errorf("unknown rollout phase %q (supported: paper|live-small|live)", phase)
	}

	return nil
}

func clampMaxFloat(v *float64, max float64) {
	if max <= 0 {
		return
	}
	if *v <= 0 || *v > max {
		*v = max
	}
}
