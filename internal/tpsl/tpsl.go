// Package tpsl periodically compares follower positions against configured
// take-profit/stop-loss thresholds and emits sell triggers, independent of
// the leader's own activity.
package tpsl

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polycopy/trader/internal/domain"
	"github.com/polycopy/trader/internal/venue"
)

// PositionSource supplies the current paper (or live) positions to watch.
type PositionSource interface {
	GetAllPositionDetails(ctx context.Context) (map[string]domain.PaperPosition, error)
}

// PriceSource resolves the current SELL-side price for a token.
type PriceSource interface {
	GetPrice(ctx context.Context, tokenID string, intent venue.PriceIntent) (float64, error)
}

// TriggerType distinguishes the two trigger kinds.
type TriggerType string

const (
	TakeProfit TriggerType = "take_profit"
	StopLoss   TriggerType = "stop_loss"
)

// Trigger is emitted when a position crosses its configured threshold.
// Order is a prebuilt market-sell OrderSpec for the full quantity, priced
// at Current; EntryPrice is the position's entry price at trigger time.
// cmd/copytrader executes Order directly on the executor and logs the
// outcome; no trade record or P&L figure is persisted for a TP/SL sell.
type Trigger struct {
	Type       TriggerType
	TokenID    string
	EntryPrice float64
	Current    float64
	Order      domain.OrderSpec
}

// Config holds the optional percentage thresholds. Zero disables the check.
type Config struct {
	TakeProfitPercent float64
	StopLossPercent   float64
	TickInterval      time.Duration
}

// DefaultConfig matches the spec's default tick cadence with both
// thresholds disabled until the caller opts in.
func DefaultConfig() Config {
	return Config{TickInterval: 5 * time.Second}
}

// Monitor drives the periodic TP/SL check.
type Monitor struct {
	cfg       Config
	positions PositionSource
	prices    PriceSource

	triggers chan Trigger
}

// New builds a Monitor.
func New(cfg Config, positions PositionSource, prices PriceSource) *Monitor {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}
	return &Monitor{
		cfg:       cfg,
		positions: positions,
		prices:    prices,
		triggers:  make(chan Trigger, 16),
	}
}

// Triggers returns the channel of emitted TP/SL triggers.
func (m *Monitor) Triggers() <-chan Trigger { return m.triggers }

// Run ticks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	defer close(m.triggers)
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	positions, err := m.positions.GetAllPositionDetails(ctx)
	if err != nil {
		log.Printf("tpsl: failed to load positions: %v", err)
		return
	}
	if len(positions) == 0 {
		return
	}

	type priced struct {
		tokenID string
		pos     domain.PaperPosition
		current float64
	}
	results := make([]priced, len(positions))

	tokenIDs := make([]string, 0, len(positions))
	for tokenID := range positions {
		tokenIDs = append(tokenIDs, tokenID)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, tokenID := range tokenIDs {
		i, tokenID := i, tokenID
		pos := positions[tokenID]
		g.Go(func() error {
			price, err := m.prices.GetPrice(gctx, tokenID, venue.IntentSell)
			if err != nil {
				log.Printf("tpsl: price lookup failed for %s: %v", tokenID, err)
				return nil // a single bad quote shouldn't abort the other lookups
			}
			results[i] = priced{tokenID: tokenID, pos: pos, current: price}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.tokenID == "" || r.pos.Quantity <= 0 || r.pos.EntryPrice <= 0 {
			continue
		}
		m.evaluate(r.tokenID, r.pos, r.current)
	}
}

func (m *Monitor) evaluate(tokenID string, pos domain.PaperPosition, current float64) {
	if current <= 0 {
		return
	}
	change := (current - pos.EntryPrice) / pos.EntryPrice

	switch {
	case m.cfg.TakeProfitPercent > 0 && change >= m.cfg.TakeProfitPercent:
		m.emit(Trigger{
			Type:       TakeProfit,
			TokenID:    tokenID,
			EntryPrice: pos.EntryPrice,
			Current:    current,
			Order:      marketSell(tokenID, pos.Quantity, current),
		})
	case m.cfg.StopLossPercent > 0 && change <= -m.cfg.StopLossPercent:
		m.emit(Trigger{
			Type:       StopLoss,
			TokenID:    tokenID,
			EntryPrice: pos.EntryPrice,
			Current:    current,
			Order:      marketSell(tokenID, pos.Quantity, current),
		})
	}
}

func marketSell(tokenID string, quantity, price float64) domain.OrderSpec {
	return domain.OrderSpec{
		TokenID:     tokenID,
		Side:        domain.Sell,
		Size:        quantity,
		SubmitPrice: price,
		Type:        domain.OrderTypeMarket,
	}
}

func (m *Monitor) emit(t Trigger) {
	select {
	case m.triggers <- t:
	default:
		log.Printf("tpsl: trigger channel full, dropping %s trigger for %s", t.Type, t.TokenID)
	}
}
