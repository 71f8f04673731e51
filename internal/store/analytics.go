package store

import (
	"fmt"
	"math"
)

// Summary aggregates basic trade statistics for a session.
type Summary struct {
	TotalTrades     int
	BuyCount        int
	SellCount       int
	TotalVolume     float64
	TotalPnL        float64
	WinCount        int
	LossCount       int
	WinRate         float64
	AvgSize         float64
	AvgTotalLatency float64 // ms
	BestPnL         float64
	WorstPnL        float64
}

// Summarize computes Summary for a session.
func (s *Store) Summarize(sessionID int64) (Summary, error) {
	rows, err := s.db.Query(
		`SELECT side, size, cost, pnl, total_latency_ms FROM trades WHERE session_id = ?`, sessionID)
	if err != nil {
		return Summary{}, fmt.Errorf("store: summarize: %w", err)
	}
	defer rows.Close()

	var sum Summary
	var sizeTotal, latencyTotal float64
	first := true

	for rows.Next() {
		var side string
		var size, cost float64
		var pnl *float64
		var latencyMs int64
		if err := rows.Scan(&side, &size, &cost, &pnl, &latencyMs); err != nil {
			return Summary{}, fmt.Errorf("store: summarize scan: %w", err)
		}
		sum.TotalTrades++
		if side == "BUY" {
			sum.BuyCount++
		} else {
			sum.SellCount++
		}
		sum.TotalVolume += cost
		sizeTotal += size
		latencyTotal += float64(latencyMs)

		if pnl != nil {
			sum.TotalPnL += *pnl
			if first || *pnl > sum.BestPnL {
				sum.BestPnL = *pnl
			}
			if first || *pnl < sum.WorstPnL {
				sum.WorstPnL = *pnl
			}
			first = false
			if *pnl > 0 {
				sum.WinCount++
			} else if *pnl < 0 {
				sum.LossCount++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}

	if sum.TotalTrades > 0 {
		sum.AvgSize = sizeTotal / float64(sum.TotalTrades)
		sum.AvgTotalLatency = latencyTotal / float64(sum.TotalTrades)
	}
	if decided := sum.WinCount + sum.LossCount; decided > 0 {
		sum.WinRate = float64(sum.WinCount) / float64(decided)
	}
	return sum, nil
}

// Advanced holds the risk/return metrics computed over SELL rows with a
// non-null P&L, ordered by creation time.
type Advanced struct {
	Sharpe          float64
	MaxDrawdownUSD  float64
	MaxDrawdownPct  float64
	ProfitFactor    float64 // math.Inf(1) when there are no losses and gross profit > 0
	AvgWin          float64
	AvgLoss         float64 // signed, <= 0
	LongestWinStreak  int
	LongestLossStreak int
	Expectancy      float64
}

// Advanced computes the advanced metrics for a session's closed SELL fills.
func (s *Store) Advanced(sessionID int64) (Advanced, error) {
	rows, err := s.db.Query(
		`SELECT pnl FROM trades WHERE session_id = ? AND side = 'SELL' AND pnl IS NOT NULL ORDER BY created_at ASC`,
		sessionID)
	if err != nil {
		return Advanced{}, fmt.Errorf("store: advanced: %w", err)
	}
	defer rows.Close()

	var pnls []float64
	for rows.Next() {
		var pnl float64
		if err := rows.Scan(&pnl); err != nil {
			return Advanced{}, fmt.Errorf("store: advanced scan: %w", err)
		}
		pnls = append(pnls, pnl)
	}
	if err := rows.Err(); err != nil {
		return Advanced{}, err
	}
	return computeAdvanced(pnls), nil
}

// computeAdvanced is the pure, ordered-iteration metric pass: Sharpe and
// drawdown and streaks all need running state a SQL aggregate can't express
// directly.
func computeAdvanced(pnls []float64) Advanced {
	var adv Advanced
	n := len(pnls)
	if n == 0 {
		return adv
	}

	var sum float64
	for _, p := range pnls {
		sum += p
	}
	mean := sum / float64(n)

	if n >= 2 {
		var sqDiff float64
		for _, p := range pnls {
			d := p - mean
			sqDiff += d * d
		}
		stdev := math.Sqrt(sqDiff / float64(n-1))
		if stdev > 0 {
			adv.Sharpe = (mean / stdev) * math.Sqrt(365)
		}
	}

	var grossProfit, grossLoss float64
	var wins, losses int
	var winSum, lossSum float64
	var curWinStreak, curLossStreak int

	var cumulative, peak, maxDDUSD float64
	for i, p := range pnls {
		cumulative += p
		if i == 0 || cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDDUSD {
			maxDDUSD = dd
		}

		switch {
		case p > 0:
			grossProfit += p
			wins++
			winSum += p
			curWinStreak++
			curLossStreak = 0
			if curWinStreak > adv.LongestWinStreak {
				adv.LongestWinStreak = curWinStreak
			}
		case p < 0:
			grossLoss += -p
			losses++
			lossSum += p
			curLossStreak++
			curWinStreak = 0
			if curLossStreak > adv.LongestLossStreak {
				adv.LongestLossStreak = curLossStreak
			}
		default:
			curWinStreak = 0
			curLossStreak = 0
		}
	}

	adv.MaxDrawdownUSD = maxDDUSD
	if peak > 0 {
		adv.MaxDrawdownPct = maxDDUSD / peak
	}

	switch {
	case grossLoss == 0 && grossProfit > 0:
		adv.ProfitFactor = math.Inf(1)
	case grossProfit == 0 && grossLoss == 0:
		adv.ProfitFactor = 0
	default:
		adv.ProfitFactor = grossProfit / grossLoss
	}

	if wins > 0 {
		adv.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		adv.AvgLoss = lossSum / float64(losses)
	}

	winRate := float64(wins) / float64(n)
	lossRate := float64(losses) / float64(n)
	adv.Expectancy = winRate*adv.AvgWin - lossRate*math.Abs(adv.AvgLoss)

	return adv
}
