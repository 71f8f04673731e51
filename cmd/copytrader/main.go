package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/polycopy/trader/internal/alert"
	"github.com/polycopy/trader/internal/config"
	"github.com/polycopy/trader/internal/detector"
	"github.com/polycopy/trader/internal/domain"
	"github.com/polycopy/trader/internal/orchestrator"
	"github.com/polycopy/trader/internal/paper"
	"github.com/polycopy/trader/internal/store"
	"github.com/polycopy/trader/internal/tpsl"
	"github.com/polycopy/trader/internal/venue"
	"github.com/polycopy/trader/internal/wstrigger"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		log.Printf("warning: config file: %v, using defaults", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	if cfg.LeaderAddress == "" {
		log.Fatal("leader_address is required")
	}

	log.Printf("copytrader starting (mode=%s leader=%s)", cfg.TradingMode, cfg.LeaderAddress)

	venueClient := venue.NewClient(cfg.VenueBaseURL)

	var exec domain.Executor
	switch cfg.TradingMode {
	case config.TradingLive:
		log.Fatal("live trading mode is not shipped with this engine; a live executor is a pluggable external collaborator")
	default:
		exec = paper.NewSimulator(paper.Config{InitialBalance: cfg.PaperBalance})
	}

	tradeStore, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer tradeStore.Close()

	alertSink := buildAlertSink(cfg)

	orch := orchestrator.New(cfg, cfg.LeaderAddress, venueClient, exec, tradeStore, alertSink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if _, err := venueClient.CheckClockSync(ctx); err != nil {
		log.Printf("clock sync: %v", err)
	}

	if err := orch.StartSession(ctx); err != nil {
		log.Fatalf("start session: %v", err)
	}

	det := detector.New(venueClient, cfg.LeaderAddress, time.Duration(cfg.PollIntervalMs)*time.Millisecond, cfg.MaxConsecutiveErr)

	trigger := wstrigger.New(cfg.VenueWSURL, func(tokenID string) { det.TriggerPollNow() })

	positions := positionSource{exec: exec}
	prices := priceSource{client: venueClient}
	tpslMonitor := tpsl.New(tpsl.Config{
		TakeProfitPercent: cfg.TPSL.TakeProfitPercent,
		StopLossPercent:   cfg.TPSL.StopLossPercent,
		TickInterval:      cfg.TPSL.CheckInterval,
	}, positions, prices)

	go venueClient.RunOrderBookWarmer(ctx)
	go venueClient.RunPriceWarmer(ctx)
	go venueClient.RunPortfolioValueWarmer(ctx, cfg.LeaderAddress)
	go det.Run(ctx)
	if cfg.VenueWSURL != "" {
		go trigger.Run(ctx)
	}
	if cfg.TPSL.Enabled {
		go tpslMonitor.Run(ctx)
	}

	log.Println("copytrading loop started")

	for {
		select {
		case <-sigCh:
			log.Println("shutdown signal received")
			goto shutdown
		case ev, ok := <-det.Events():
			if !ok {
				goto shutdown
			}
			handleDetectorEvent(ctx, orch, venueClient, trigger, ev)
		case tr, ok := <-tpslMonitor.Triggers():
			if !ok {
				continue
			}
			handleTPSLTrigger(ctx, exec, tr)
		}
	}

shutdown:
	cancel()
	balance, _ := exec.GetBalance(context.Background())
	orch.EndSession(context.Background(), 0, balance)
	log.Println("session complete")
}

func handleDetectorEvent(ctx context.Context, orch *orchestrator.Orchestrator, v *venue.Client, trigger *wstrigger.Watcher, ev detector.Event) {
	switch {
	case ev.Trade != nil:
		if err := orch.HandleTradeEvent(ctx, *ev.Trade, ev.DetectionLatency); err != nil {
			log.Printf("handle trade event: %v", err)
		}
		v.SetWatched(orch.Watched())
		trigger.SetWatched(orch.Watched())
	case ev.Degraded:
		log.Println("detector degraded: consecutive errors reached threshold")
	case ev.Recovered:
		log.Println("detector recovered")
	case ev.Err != nil:
		log.Printf("detector error: %v", ev.Err)
	}
}

func handleTPSLTrigger(ctx context.Context, exec domain.Executor, tr tpsl.Trigger) {
	log.Printf("tpsl %s triggered for %s at %.4f (entry %.4f)", tr.Type, tr.TokenID, tr.Current, tr.EntryPrice)
	if _, err := exec.Execute(ctx, tr.Order); err != nil {
		log.Printf("tpsl execute %s: %v", tr.TokenID, err)
	}
}

func buildAlertSink(cfg config.Config) *alert.Sink {
	var minSeverity alert.Severity
	switch strings.ToLower(cfg.Alert.MinSeverity) {
	case "critical":
		minSeverity = alert.SeverityCritical
	case "high":
		minSeverity = alert.SeverityHigh
	case "medium":
		minSeverity = alert.SeverityMedium
	default:
		minSeverity = alert.SeverityLow
	}

	var transports []alert.Transport
	if cfg.Alert.Telegram.Enabled && cfg.Alert.Telegram.BotToken != "" && cfg.Alert.Telegram.ChatID != "" {
		transports = append(transports, alert.NewTelegramTransport(cfg.Alert.Telegram.BotToken, cfg.Alert.Telegram.ChatID))
	}
	if cfg.Alert.Discord.Enabled && cfg.Alert.Discord.WebhookURL != "" {
		transports = append(transports, alert.NewDiscordTransport(cfg.Alert.Discord.WebhookURL))
	}
	return alert.NewSink(minSeverity, transports...)
}

// positionSource adapts a domain.Executor to tpsl.PositionSource.
type positionSource struct {
	exec domain.Executor
}

func (p positionSource) GetAllPositionDetails(ctx context.Context) (map[string]domain.PaperPosition, error) {
	return p.exec.GetAllPositionDetails(ctx)
}

// priceSource adapts a *venue.Client to tpsl.PriceSource.
type priceSource struct {
	client *venue.Client
}

func (p priceSource) GetPrice(ctx context.Context, tokenID string, intent venue.PriceIntent) (float64, error) {
	return p.client.GetPrice(ctx, tokenID, intent)
}
