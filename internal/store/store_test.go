package store

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/polycopy/trader/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trades.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func pnl(v float64) *float64 { return &v }

func TestAdvancedAnalyticsOnLiteralPnLSequence(t *testing.T) {
	// property #18.
	adv := computeAdvanced([]float64{10, -5, 20, -15, 5})

	if math.Abs(adv.ProfitFactor-1.75) > 1e-9 {
		t.Fatalf("expected profit factor 1.75, got %v", adv.ProfitFactor)
	}
	if adv.LongestWinStreak != 1 {
		t.Fatalf("expected longest win streak 1, got %d", adv.LongestWinStreak)
	}
	if adv.LongestLossStreak != 1 {
		t.Fatalf("expected longest loss streak 1, got %d", adv.LongestLossStreak)
	}
}

func TestProfitFactorInfiniteWithNoLosses(t *testing.T) {
	adv := computeAdvanced([]float64{10, 5, 20})
	if !math.IsInf(adv.ProfitFactor, 1) {
		t.Fatalf("expected +Inf profit factor with no losses, got %v", adv.ProfitFactor)
	}
}

func TestProfitFactorZeroWhenNoTrades(t *testing.T) {
	adv := computeAdvanced(nil)
	if adv.ProfitFactor != 0 {
		t.Fatalf("expected 0 profit factor for an empty sequence, got %v", adv.ProfitFactor)
	}
}

func TestSharpeZeroBelowTwoSamples(t *testing.T) {
	adv := computeAdvanced([]float64{10})
	if adv.Sharpe != 0 {
		t.Fatalf("expected Sharpe 0 with fewer than 2 samples, got %v", adv.Sharpe)
	}
}

func TestMaxDrawdownTracksRunningPeak(t *testing.T) {
	// cumulative: 10, 5, 25, 10, 15 -> peak sequence 10,10,25,25,25 -> dd max = 25-10=15
	adv := computeAdvanced([]float64{10, -5, 20, -15, 5})
	if math.Abs(adv.MaxDrawdownUSD-15) > 1e-9 {
		t.Fatalf("expected max drawdown $15, got %v", adv.MaxDrawdownUSD)
	}
}

func TestRecordTradeAndSummarize(t *testing.T) {
	s := openTestStore(t)
	sessionID, err := s.OpenSession(domain.Session{
		StartTime: time.Now(), Mode: domain.ModePaper, DetectionMethod: "activity",
		LeaderAddress: "0xleader", StartBalance: 1000,
	})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	if err := s.RecordTrade(sessionID, domain.TradeRecord{
		TokenID: "t1", MarketID: "m1", Side: domain.Buy, Size: 10, FillPrice: 0.5,
		Status: domain.StatusFilled, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("RecordTrade buy: %v", err)
	}
	if err := s.RecordTrade(sessionID, domain.TradeRecord{
		TokenID: "t1", MarketID: "m1", Side: domain.Sell, Size: 10, FillPrice: 0.6,
		PnL: pnl(1.0), Status: domain.StatusFilled, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("RecordTrade sell: %v", err)
	}

	summary, err := s.Summarize(sessionID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.TotalTrades != 2 {
		t.Fatalf("expected 2 trades, got %d", summary.TotalTrades)
	}
	if summary.WinCount != 1 {
		t.Fatalf("expected 1 win, got %d", summary.WinCount)
	}
	if math.Abs(summary.TotalPnL-1.0) > 1e-9 {
		t.Fatalf("expected total pnl 1.0, got %v", summary.TotalPnL)
	}
}

func TestCloseSessionStampsFinalStats(t *testing.T) {
	s := openTestStore(t)
	sessionID, _ := s.OpenSession(domain.Session{
		StartTime: time.Now(), Mode: domain.ModePaper, DetectionMethod: "activity",
		LeaderAddress: "0xleader", StartBalance: 1000,
	})
	if err := s.CloseSession(sessionID, time.Now(), 42, 5, 3, 12.5, 1012.5); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	var polls, executed int
	var endBalance float64
	if err := s.db.QueryRow(`SELECT poll_count, trades_executed, end_balance FROM sessions WHERE id = ?`, sessionID).Scan(&polls, &executed, &endBalance); err != nil {
		t.Fatalf("query session: %v", err)
	}
	if polls != 42 || executed != 3 || endBalance != 1012.5 {
		t.Fatalf("expected poll_count 42, trades_executed 3, end_balance 1012.5, got %d, %d, %v", polls, executed, endBalance)
	}
}
