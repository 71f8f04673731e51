// Package paper implements the mandatory paper-trading Executor: a
// deterministic balance/position simulator with no external side effects,
// grounded on weighted-average cost accounting and share-based fills.
package paper

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polycopy/trader/internal/domain"
)

// Config configures a Simulator's starting balance.
type Config struct {
	InitialBalance float64
}

// DefaultConfig matches the engine's default paper balance.
func DefaultConfig() Config {
	return Config{InitialBalance: 1000}
}

// Simulator is a deterministic paper-trading backend for one follower
// account. BUY/SELL fills, weighted-average cost, and stable entry price
// all follow the contract domain.PaperPosition and domain.SpendTracker
// document.
type Simulator struct {
	mu sync.Mutex

	balance   float64
	totalPnL  float64
	dailyPnL  float64
	positions map[string]domain.PaperPosition
	spend     *domain.SpendTracker
}

// NewSimulator builds a Simulator with the given starting balance.
func NewSimulator(cfg Config) *Simulator {
	initial := cfg.InitialBalance
	if initial <= 0 {
		initial = 1000
	}
	return &Simulator{
		balance:   initial,
		positions: make(map[string]domain.PaperPosition),
		spend:     domain.NewSpendTracker(),
	}
}

// GetMode satisfies domain.Executor.
func (s *Simulator) GetMode() domain.ExecutionMode { return domain.ModePaper }

// IsReady satisfies domain.Executor; the paper simulator has no external
// dependency to check.
func (s *Simulator) IsReady(ctx context.Context) bool { return true }

// GetBalance returns the current USD balance.
func (s *Simulator) GetBalance(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

// GetPosition returns the position for a token, or nil if none is held.
func (s *Simulator) GetPosition(ctx context.Context, tokenID string) (*domain.PaperPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[tokenID]
	if !ok {
		return nil, nil
	}
	return &pos, nil
}

// GetAllPositions returns a snapshot of every open position.
func (s *Simulator) GetAllPositions(ctx context.Context) (map[string]domain.PaperPosition, error) {
	return s.GetAllPositionDetails(ctx)
}

// GetAllPositionDetails returns a snapshot of every open position.
func (s *Simulator) GetAllPositionDetails(ctx context.Context) (map[string]domain.PaperPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.PaperPosition, len(s.positions))
	for k, v := range s.positions {
		out[k] = v
	}
	return out, nil
}

// GetSpendTracker satisfies domain.SpendTrackerProvider.
func (s *Simulator) GetSpendTracker(ctx context.Context) (*domain.SpendTracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := domain.NewSpendTracker()
	for k, v := range s.spend.TokenSpend {
		clone.TokenSpend[k] = v
	}
	for k, v := range s.spend.MarketSpend {
		clone.MarketSpend[k] = v
	}
	clone.HoldingsValue = s.spend.HoldingsValue
	return clone, nil
}

// TradingState builds the snapshot the risk gate evaluates against.
func (s *Simulator) TradingState(ctx context.Context) domain.TradingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	positions := make(map[string]domain.PaperPosition, len(s.positions))
	var totalShares float64
	for k, v := range s.positions {
		positions[k] = v
		totalShares += v.Quantity
	}
	return domain.TradingState{
		DailyPnL:    s.dailyPnL,
		TotalPnL:    s.totalPnL,
		Balance:     s.balance,
		Positions:   positions,
		TotalShares: totalShares,
		Spend:       s.spend,
	}
}

// Execute fills spec.TokenID/Side/Size at spec.SubmitPrice, per the BUY/SELL
// fill semantics: affordability-capped partial fills on BUY, position-capped
// partial fills on SELL.
func (s *Simulator) Execute(ctx context.Context, spec domain.OrderSpec) (domain.OrderResult, error) {
	if spec.Size <= 0 {
		return domain.OrderResult{}, fmt.Errorf("paper: order size must be positive")
	}
	if spec.SubmitPrice <= 0 {
		return domain.OrderResult{}, fmt.Errorf("paper: submit price must be positive")
	}

	switch spec.Side {
	case domain.Buy:
		return s.fillBuy(spec)
	case domain.Sell:
		return s.fillSell(spec)
	default:
		return domain.OrderResult{}, fmt.Errorf("paper: unsupported side %q", spec.Side)
	}
}

func (s *Simulator) fillBuy(spec domain.OrderSpec) (domain.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	affordable := math.Floor(s.balance / spec.SubmitPrice)
	if affordable < 1 {
		return domain.OrderResult{
			Status:   domain.StatusFailed,
			Error:    "insufficient balance for even one unit",
			PlacedAt: now, ExecutedAt: now, Mode: domain.ModePaper, Type: spec.Type,
		}, fmt.Errorf("paper: insufficient balance")
	}

	filled := math.Min(spec.Size, affordable)
	cost := filled * spec.SubmitPrice

	pos := s.positions[spec.TokenID]
	newQty := pos.Quantity + filled
	if pos.Quantity <= 0 {
		pos.EntryPrice = spec.SubmitPrice
		pos.OpenedAt = now
		pos.MarketID = spec.TriggeringTrade.MarketID
	}
	pos.AvgCost = (pos.Quantity*pos.AvgCost + filled*spec.SubmitPrice) / newQty
	pos.TotalCost += cost
	pos.Quantity = newQty
	pos.TokenID = spec.TokenID
	s.positions[spec.TokenID] = pos

	s.balance -= cost
	s.spend.TokenSpend[spec.TokenID] += cost
	if pos.MarketID != "" {
		s.spend.MarketSpend[pos.MarketID] += cost
	}
	s.spend.HoldingsValue += cost

	status := domain.StatusFilled
	remaining := spec.Size - filled
	if remaining > 1e-9 {
		status = domain.StatusPartial
	}

	return domain.OrderResult{
		OrderID:       uuid.NewString(),
		Status:        status,
		FilledSize:    filled,
		RemainingSize: remaining,
		AvgFillPrice:  spec.SubmitPrice,
		PlacedAt:      now,
		ExecutedAt:    now,
		Mode:          domain.ModePaper,
		Type:          spec.Type,
	}, nil
}

func (s *Simulator) fillSell(spec domain.OrderSpec) (domain.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	pos, ok := s.positions[spec.TokenID]
	if !ok || pos.Quantity <= 0 {
		return domain.OrderResult{
			Status: domain.StatusFailed, Error: "no open position",
			PlacedAt: now, ExecutedAt: now, Mode: domain.ModePaper, Type: spec.Type,
		}, fmt.Errorf("paper: no open position for %s", spec.TokenID)
	}

	filled := math.Min(spec.Size, pos.Quantity)
	proceeds := filled * spec.SubmitPrice
	realizedPnL := filled * (spec.SubmitPrice - pos.AvgCost)

	s.balance += proceeds
	s.totalPnL += realizedPnL
	s.dailyPnL += realizedPnL
	s.spend.HoldingsValue -= filled * pos.AvgCost

	pos.Quantity -= filled
	if pos.Quantity <= 1e-9 {
		delete(s.positions, spec.TokenID)
	} else {
		s.positions[spec.TokenID] = pos
	}

	status := domain.StatusFilled
	remaining := spec.Size - filled
	if remaining > 1e-9 {
		status = domain.StatusPartial
	}

	return domain.OrderResult{
		OrderID:       uuid.NewString(),
		Status:        status,
		FilledSize:    filled,
		RemainingSize: remaining,
		AvgFillPrice:  spec.SubmitPrice,
		PlacedAt:      now,
		ExecutedAt:    now,
		Mode:          domain.ModePaper,
		Type:          spec.Type,
	}, nil
}

// SellAllPositions submits a sell for every open position at
// priceMap[tokenID], falling back to the position's own average cost when
// the caller has no fresher quote.
func (s *Simulator) SellAllPositions(ctx context.Context, priceMap map[string]float64) ([]domain.OrderResult, error) {
	s.mu.Lock()
	tokens := make([]string, 0, len(s.positions))
	sizes := make(map[string]float64, len(s.positions))
	fallback := make(map[string]float64, len(s.positions))
	for tokenID, pos := range s.positions {
		tokens = append(tokens, tokenID)
		sizes[tokenID] = pos.Quantity
		fallback[tokenID] = pos.AvgCost
	}
	s.mu.Unlock()

	results := make([]domain.OrderResult, 0, len(tokens))
	for _, tokenID := range tokens {
		price, ok := priceMap[tokenID]
		if !ok || price <= 0 {
			price = fallback[tokenID]
		}
		res, err := s.Execute(ctx, domain.OrderSpec{
			TokenID:     tokenID,
			Side:        domain.Sell,
			Size:        sizes[tokenID],
			SubmitPrice: price,
			Type:        domain.OrderTypeMarket,
		})
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}
