package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Default()
	if cfg.PollIntervalMs <= 0 {
		t.Fatal("expected positive poll_interval_ms")
	}
	if cfg.MaxConsecutiveErr <= 0 {
		t.Fatal("expected positive max_consecutive_errors")
	}
	if cfg.DetectionMethod != DetectionActivity {
		t.Fatalf("expected default detection_method=activity, got %q", cfg.DetectionMethod)
	}
	if cfg.TradingMode != TradingPaper {
		t.Fatalf("expected trading_mode=paper by default, got %q", cfg.TradingMode)
	}
	if cfg.PaperBalance <= 0 {
		t.Fatal("expected positive paper_balance")
	}
	if cfg.Sizing.Method != SizingPortfolioPct {
		t.Fatalf("expected default sizing.method=proportional_to_portfolio, got %q", cfg.Sizing.Method)
	}
	if cfg.Sizing.SellStrategy != SellProportional {
		t.Fatalf("expected default sell_strategy=proportional, got %q", cfg.Sizing.SellStrategy)
	}
	if cfg.Price.MaxAdaptiveOffsetBps < cfg.Price.OffsetBps {
		t.Fatal("expected max_adaptive_offset_bps >= offset_bps")
	}
	if cfg.Risk.MaxDailyLoss <= 0 || cfg.Risk.MaxTotalLoss <= 0 {
		t.Fatal("expected positive default loss limits")
	}
	if cfg.Market.MaxSpreadBps <= 0 {
		t.Fatal("expected positive max_spread_bps")
	}
	if cfg.Store.Path == "" {
		t.Fatal("expected a default store path")
	}

	// Default() omits the leader address on purpose, so it must fail
	// validation until the operator supplies one.
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Default() to fail validation without a leader_address")
	}
}

func TestLoadFromYAML(t *testing.T) {
	yaml := `
leader_address: "0xabc123"
leader_tag: "whale-1"
poll_interval_ms: 2000
detection_method: positions
sizing:
  method: fixed
  portfolio_pct: 0.1
  min_order_size: 2
  sell_strategy: full_exit
risk:
  max_daily_loss: 250
  max_total_loss: 900
market:
  max_spread_bps: 600
trading_mode: live
paper_balance: 3000
store:
  path: /tmp/custom.db
`
	f, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write([]byte(yaml)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg, err := LoadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LeaderAddress != "0xabc123" {
		t.Fatalf("expected leader_address override, got %q", cfg.LeaderAddress)
	}
	if cfg.LeaderTag != "whale-1" {
		t.Fatalf("expected leader_tag override, got %q", cfg.LeaderTag)
	}
	if cfg.PollIntervalMs != 2000 {
		t.Fatalf("expected poll_interval_ms 2000, got %d", cfg.PollIntervalMs)
	}
	if cfg.DetectionMethod != DetectionPositions {
		t.Fatalf("expected detection_method positions, got %q", cfg.DetectionMethod)
	}
	if cfg.Sizing.Method != SizingFixed {
		t.Fatalf("expected sizing.method fixed, got %q", cfg.Sizing.Method)
	}
	if cfg.Sizing.SellStrategy != SellFullExit {
		t.Fatalf("expected sell_strategy full_exit, got %q", cfg.Sizing.SellStrategy)
	}
	if cfg.Risk.MaxDailyLoss != 250 {
		t.Fatalf("expected max_daily_loss 250, got %f", cfg.Risk.MaxDailyLoss)
	}
	if cfg.Market.MaxSpreadBps != 600 {
		t.Fatalf("expected max_spread_bps 600, got %f", cfg.Market.MaxSpreadBps)
	}
	if cfg.TradingMode != TradingLive {
		t.Fatalf("expected trading_mode live, got %q", cfg.TradingMode)
	}
	if cfg.Store.Path != "/tmp/custom.db" {
		t.Fatalf("expected store.path override, got %q", cfg.Store.Path)
	}

	// Fields untouched by the YAML fixture keep Default()'s values, since
	// LoadFile unmarshals onto a Default() base rather than a zero Config.
	if cfg.Sizing.MaxPositionPerTok != Default().Sizing.MaxPositionPerTok {
		t.Fatal("expected sizing.max_position_per_token to survive a partial override")
	}
	if cfg.TPSL.CheckInterval != Default().TPSL.CheckInterval {
		t.Fatal("expected tpsl.check_interval to survive a partial override")
	}
}

func TestLoadFileInvalidPath(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	f, err := os.CreateTemp("", "bad-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write([]byte("{{invalid yaml")); err != nil {
		t.Fatal(err)
	}
	f.Close()

	_, err = LoadFile(f.Name())
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestApplyEnvAllVars(t *testing.T) {
	t.Setenv("COPYTRADER_LEADER_ADDRESS", "0xdef456")
	t.Setenv("COPYTRADER_FOLLOWER_KEY", "follower-secret")
	t.Setenv("COPYTRADER_TRADING_MODE", "LIVE")
	t.Setenv("COPYTRADER_TELEGRAM_BOT_TOKEN", "bot-token")
	t.Setenv("COPYTRADER_TELEGRAM_CHAT_ID", "chat-id")
	t.Setenv("COPYTRADER_DISCORD_WEBHOOK_URL", "https://discord.example/hook")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.LeaderAddress != "0xdef456" {
		t.Fatalf("expected LeaderAddress override, got %q", cfg.LeaderAddress)
	}
	if cfg.FollowerKey != "follower-secret" {
		t.Fatalf("expected FollowerKey override, got %q", cfg.FollowerKey)
	}
	if cfg.TradingMode != TradingLive {
		t.Fatalf("expected trading mode live (lower-cased), got %q", cfg.TradingMode)
	}
	if cfg.Alert.Telegram.BotToken != "bot-token" {
		t.Fatalf("expected telegram bot token override, got %q", cfg.Alert.Telegram.BotToken)
	}
	if cfg.Alert.Telegram.ChatID != "chat-id" {
		t.Fatalf("expected telegram chat id override, got %q", cfg.Alert.Telegram.ChatID)
	}
	if cfg.Alert.Discord.WebhookURL != "https://discord.example/hook" {
		t.Fatalf("expected discord webhook override, got %q", cfg.Alert.Discord.WebhookURL)
	}
}

func TestApplyEnvNoOverrideWhenUnset(t *testing.T) {
	cfg := Default()
	cfg.LeaderAddress = "0xoriginal"
	cfg.ApplyEnv()
	if cfg.LeaderAddress != "0xoriginal" {
		t.Fatalf("expected LeaderAddress unchanged, got %q", cfg.LeaderAddress)
	}
}
