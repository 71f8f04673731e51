package tpsl

import (
	"context"
	"testing"
	"time"

	"github.com/polycopy/trader/internal/domain"
	"github.com/polycopy/trader/internal/venue"
)

type fakePositions struct {
	positions map[string]domain.PaperPosition
}

func (f *fakePositions) GetAllPositionDetails(ctx context.Context) (map[string]domain.PaperPosition, error) {
	return f.positions, nil
}

type fakePrices struct {
	prices map[string]float64
}

func (f *fakePrices) GetPrice(ctx context.Context, tokenID string, intent venue.PriceIntent) (float64, error) {
	return f.prices[tokenID], nil
}

func TestTakeProfitTriggersAtThreshold(t *testing.T) {
	// property #16: TP=10%, entry 0.50, current 0.56 -> triggers full quantity.
	positions := &fakePositions{positions: map[string]domain.PaperPosition{
		"tok-1": {TokenID: "tok-1", Quantity: 100, EntryPrice: 0.50},
	}}
	prices := &fakePrices{prices: map[string]float64{"tok-1": 0.56}}

	m := New(Config{TakeProfitPercent: 0.10, TickInterval: time.Hour}, positions, prices)
	m.tick(context.Background())

	select {
	case tr := <-m.Triggers():
		if tr.Type != TakeProfit {
			t.Fatalf("expected take_profit, got %s", tr.Type)
		}
		if tr.Order.Size != 100 {
			t.Fatalf("expected full quantity 100, got %v", tr.Order.Size)
		}
	default:
		t.Fatal("expected a take-profit trigger")
	}
}

func TestStopLossDoesNotTriggerBelowThreshold(t *testing.T) {
	// property #17: SL=5%, entry 0.50, current 0.49 -> no trigger (2% drop, not 5%).
	positions := &fakePositions{positions: map[string]domain.PaperPosition{
		"tok-1": {TokenID: "tok-1", Quantity: 100, EntryPrice: 0.50},
	}}
	prices := &fakePrices{prices: map[string]float64{"tok-1": 0.49}}

	m := New(Config{StopLossPercent: 0.05, TickInterval: time.Hour}, positions, prices)
	m.tick(context.Background())

	select {
	case tr := <-m.Triggers():
		t.Fatalf("expected no trigger, got %+v", tr)
	default:
	}
}

func TestStopLossTriggersAtThreshold(t *testing.T) {
	positions := &fakePositions{positions: map[string]domain.PaperPosition{
		"tok-1": {TokenID: "tok-1", Quantity: 50, EntryPrice: 0.50},
	}}
	prices := &fakePrices{prices: map[string]float64{"tok-1": 0.47}} // -6%

	m := New(Config{StopLossPercent: 0.05, TickInterval: time.Hour}, positions, prices)
	m.tick(context.Background())

	select {
	case tr := <-m.Triggers():
		if tr.Type != StopLoss {
			t.Fatalf("expected stop_loss, got %s", tr.Type)
		}
	default:
		t.Fatal("expected a stop-loss trigger")
	}
}

func TestPositionsWithoutEntryPriceAreSkipped(t *testing.T) {
	positions := &fakePositions{positions: map[string]domain.PaperPosition{
		"tok-1": {TokenID: "tok-1", Quantity: 10, EntryPrice: 0},
	}}
	prices := &fakePrices{prices: map[string]float64{"tok-1": 0.9}}

	m := New(Config{TakeProfitPercent: 0.01, TickInterval: time.Hour}, positions, prices)
	m.tick(context.Background())

	select {
	case tr := <-m.Triggers():
		t.Fatalf("expected no trigger for a zero entry price, got %+v", tr)
	default:
	}
}

func TestNoThresholdsConfiguredNeverTriggers(t *testing.T) {
	positions := &fakePositions{positions: map[string]domain.PaperPosition{
		"tok-1": {TokenID: "tok-1", Quantity: 10, EntryPrice: 0.5},
	}}
	prices := &fakePrices{prices: map[string]float64{"tok-1": 10.0}}

	m := New(Config{TickInterval: time.Hour}, positions, prices)
	m.tick(context.Background())

	select {
	case tr := <-m.Triggers():
		t.Fatalf("expected no trigger with thresholds disabled, got %+v", tr)
	default:
	}
}

func TestRunEmitsOnTick(t *testing.T) {
	positions := &fakePositions{positions: map[string]domain.PaperPosition{
		"tok-1": {TokenID: "tok-1", Quantity: 10, EntryPrice: 0.5},
	}}
	prices := &fakePrices{prices: map[string]float64{"tok-1": 0.6}}

	m := New(Config{TakeProfitPercent: 0.1, TickInterval: 10 * time.Millisecond}, positions, prices)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go m.Run(ctx)

	select {
	case tr := <-m.Triggers():
		if tr.Type != TakeProfit {
			t.Fatalf("expected take_profit, got %s", tr.Type)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected Run to emit a trigger within its tick interval")
	}
}
