// Package config loads and validates the copy-trading engine's runtime
// configuration: a YAML file with environment-variable overrides for
// secrets, the same shape the teacher's config package uses.
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SizingMethod selects the BUY sizing strategy.
type SizingMethod string

const (
	SizingPortfolioPct SizingMethod = "proportional_to_portfolio"
	SizingTraderRatio  SizingMethod = "proportional_to_trader"
	SizingFixed        SizingMethod = "fixed"
)

// SellStrategy selects the SELL sizing strategy.
type SellStrategy string

const (
	SellProportional SellStrategy = "proportional"
	SellFullExit     SellStrategy = "full_exit"
	SellMatchDelta   SellStrategy = "match_delta"
)

// BelowMinAction controls what happens to a BUY sized under MinOrderSize.
type BelowMinAction string

const (
	BelowMinSkip     BelowMinAction = "skip"
	BelowMinBuyAtMin BelowMinAction = "buy_at_min"
)

// DetectionMethod selects how the engine watches the leader.
type DetectionMethod string

const (
	DetectionActivity  DetectionMethod = "activity"
	DetectionPositions DetectionMethod = "positions"
)

// TradingMode selects paper simulation or a live venue adapter.
type TradingMode string

const (
	TradingPaper TradingMode = "paper"
	TradingLive  TradingMode = "live"
)

// VenueFloor is the minimum order size the venue accepts, used as the
// buy_at_min floor regardless of configured MinOrderSize.
const VenueFloor = 5.0

type Config struct {
	LeaderAddress string `yaml:"leader_address"`
	LeaderTag     string `yaml:"leader_tag"`
	FollowerKey   string `yaml:"follower_key"`

	VenueBaseURL string `yaml:"venue_base_url"`
	VenueWSURL   string `yaml:"venue_ws_url"`

	PollIntervalMs    int             `yaml:"poll_interval_ms"`
	MaxConsecutiveErr int             `yaml:"max_consecutive_errors"`
	DetectionMethod   DetectionMethod `yaml:"detection_method"`
	UseTraderPrice    bool            `yaml:"use_trader_price"`

	TradingMode  TradingMode `yaml:"trading_mode"`
	PaperBalance float64     `yaml:"paper_balance"`

	Sizing SizingConfig `yaml:"sizing"`
	Price  PriceConfig  `yaml:"price"`
	Risk   RiskConfig   `yaml:"risk"`
	Market MarketConfig `yaml:"market"`
	TPSL   TPSLConfig   `yaml:"tpsl"`
	Alert  AlertConfig  `yaml:"alert"`
	Store  StoreConfig  `yaml:"store"`

	LogLevel string `yaml:"log_level"`
}

type SizingConfig struct {
	Method            SizingMethod   `yaml:"method"`
	PortfolioPct      float64        `yaml:"portfolio_pct"`
	MinOrderSize      float64        `yaml:"min_order_size"`
	MaxPositionPerTok float64        `yaml:"max_position_per_token"`
	BelowMinAction    BelowMinAction `yaml:"below_min_action"`
	SellStrategy      SellStrategy   `yaml:"sell_strategy"`
	OrderType         string         `yaml:"order_type"`
	ExpirationSeconds int            `yaml:"order_expiration_seconds"`
}

type PriceConfig struct {
	OffsetBps              float64 `yaml:"offset_bps"`
	AdaptiveThresholdBps    float64 `yaml:"adaptive_threshold_bps"`
	AdaptiveSpreadMultiple  float64 `yaml:"adaptive_spread_multiplier"`
	MaxAdaptiveOffsetBps    float64 `yaml:"max_adaptive_offset_bps"`
}

type RiskConfig struct {
	MaxDailyLoss   float64 `yaml:"max_daily_loss"`
	MaxTotalLoss   float64 `yaml:"max_total_loss"`
	MaxTokenSpend  float64 `yaml:"max_token_spend"`
	MaxMarketSpend float64 `yaml:"max_market_spend"`
	TotalHoldings  float64 `yaml:"total_holdings_limit"`
}

type MarketConfig struct {
	WideSpreadThresholdBps float64 `yaml:"wide_spread_threshold_bps"`
	MaxSpreadBps           float64 `yaml:"max_spread_bps"`
	MaxDivergenceBps       float64 `yaml:"max_divergence_bps"`
	MinDepthShares         float64 `yaml:"min_depth_shares"`
	DepthRangePercent      float64 `yaml:"depth_range_percent"`
	StalePriceThresholdMs  int     `yaml:"stale_price_threshold_ms"`
}

type TPSLConfig struct {
	Enabled           bool          `yaml:"enabled"`
	TakeProfitPercent float64       `yaml:"take_profit_percent"`
	StopLossPercent   float64       `yaml:"stop_loss_percent"`
	CheckInterval     time.Duration `yaml:"check_interval"`
}

type AlertConfig struct {
	MinSeverity string         `yaml:"min_severity"`
	Telegram    TelegramConfig `yaml:"telegram"`
	Discord     DiscordConfig  `yaml:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

func Default() Config {
	return Config{
		VenueBaseURL:      "https://data-api.polymarket.com",
		VenueWSURL:        "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		PollIntervalMs:    1500,
		MaxConsecutiveErr: 5,
		DetectionMethod:   DetectionActivity,
		TradingMode:       TradingPaper,
		PaperBalance:      1000,
		LogLevel:          "info",
		Sizing: SizingConfig{
			Method:            SizingPortfolioPct,
			PortfolioPct:      0.05,
			MinOrderSize:      5,
			MaxPositionPerTok: 500,
			BelowMinAction:    BelowMinSkip,
			SellStrategy:      SellProportional,
			OrderType:         "limit",
			ExpirationSeconds: 30,
		},
		Price: PriceConfig{
			OffsetBps:              10,
			AdaptiveThresholdBps:   150,
			AdaptiveSpreadMultiple: 0.5,
			MaxAdaptiveOffsetBps:   300,
		},
		Risk: RiskConfig{
			MaxDailyLoss: 100,
			MaxTotalLoss: 500,
		},
		Market: MarketConfig{
			WideSpreadThresholdBps: 500,
			MaxSpreadBps:           800,
			MaxDivergenceBps:       500,
			MinDepthShares:         20,
			DepthRangePercent:      0.01,
			StalePriceThresholdMs:  10000,
		},
		TPSL: TPSLConfig{
			CheckInterval: 5 * time.Second,
		},
		Alert: AlertConfig{
			MinSeverity: "low",
		},
		Store: StoreConfig{
			Path: "copytrader.db",
		},
	}
}

func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and a handful of operational toggles from the
// environment. The CLI/env-loader plumbing itself is out of this engine's
// scope; this mirrors only what the orchestrator's constructor needs.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("COPYTRADER_LEADER_ADDRESS"); v != "" {
		c.LeaderAddress = v
	}
	if v := os.Getenv("COPYTRADER_FOLLOWER_KEY"); v != "" {
		c.FollowerKey = v
	}
	if v := strings.TrimSpace(os.Getenv("COPYTRADER_TRADING_MODE")); v != "" {
		c.TradingMode = TradingMode(strings.ToLower(v))
	}
	if v := os.Getenv("COPYTRADER_TELEGRAM_BOT_TOKEN"); v != "" {
		c.Alert.Telegram.BotToken = v
	}
	if v := os.Getenv("COPYTRADER_TELEGRAM_CHAT_ID"); v != "" {
		c.Alert.Telegram.ChatID = v
	}
	if v := os.Getenv("COPYTRADER_DISCORD_WEBHOOK_URL"); v != "" {
		c.Alert.Discord.WebhookURL = v
	}
}
