// Package orchestrator wires the detector, market analyzer, sizing,
// price adjuster, risk gate, executor, store, and alert sink into the
// copy-trading hot path: one handleTradeEvent call per leader fill.
//
// Grounded on the engine's original App — the same component-bag
// struct, wiring constructor, and running/mu guard — generalized from
// maker/taker quoting into the event-driven copy pipeline below.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polycopy/trader/internal/alert"
	"github.com/polycopy/trader/internal/condition"
	"github.com/polycopy/trader/internal/config"
	"github.com/polycopy/trader/internal/domain"
	"github.com/polycopy/trader/internal/market"
	"github.com/polycopy/trader/internal/priceadjust"
	"github.com/polycopy/trader/internal/risk"
	"github.com/polycopy/trader/internal/sizing"
	"github.com/polycopy/trader/internal/store"
	"github.com/polycopy/trader/internal/venue"
)

// Venue is the subset of venue.Client the hot path reads through.
type Venue interface {
	GetOrderBook(ctx context.Context, tokenID string) (venue.Book, error)
	GetPrice(ctx context.Context, tokenID string, intent venue.PriceIntent) (float64, error)
	GetPortfolioValue(ctx context.Context, addr string, forceRefresh bool) (float64, error)
	CorrectLatency(raw time.Duration) time.Duration
}

// Store is the subset of store.Store the hot path writes through.
type Store interface {
	OpenSession(sess domain.Session) (int64, error)
	CloseSession(sessionID int64, endTime time.Time, pollCount, tradesDetected, tradesExecuted int, totalPnL, endBalance float64) error
	RecordTrade(sessionID int64, rec domain.TradeRecord) error
}

// Alerter is the subset of alert.Sink the hot path notifies through.
type Alerter interface {
	Notify(ctx context.Context, msg alert.Message)
}

// stateProvider is an optional Executor capability: a backend that can
// report its own P&L-bearing TradingState directly, rather than the
// orchestrator assembling a partial one from GetBalance/GetAllPositionDetails.
// internal/paper.Simulator implements it.
type stateProvider interface {
	TradingState(ctx context.Context) domain.TradingState
}

// Orchestrator drives the copy-trading hot path for one leader address.
type Orchestrator struct {
	cfg        config.Config
	leaderAddr string

	venue Venue
	exec  domain.Executor
	risk  *risk.Manager
	store Store
	alert Alerter

	marketCfg    market.Config
	conditionCfg condition.Config
	priceCfg     priceadjust.Config

	mu        sync.Mutex
	watched   map[string]struct{}
	leaderQty map[string]float64 // per-token leader quantity observed so far: BUYs add, SELLs subtract (floored at 0)

	latMu      sync.Mutex
	latencies  [100]time.Duration
	latCount   int
	latNext    int

	sessionMu      sync.Mutex
	sessionID      int64
	pollCount      int
	tradesDetected int
	tradesExecuted int
	startBalance   float64

	mu2     sync.RWMutex
	running bool
}

// New builds an Orchestrator wiring risk/market/condition/price-adjust
// sub-configs from cfg, and the already-constructed collaborators.
func New(cfg config.Config, leaderAddr string, v Venue, exec domain.Executor, st Store, al Alerter) *Orchestrator {
	riskMgr := risk.New(risk.Config{
		MaxDailyLoss:       cfg.Risk.MaxDailyLoss,
		MaxTotalLoss:       cfg.Risk.MaxTotalLoss,
		MaxTokenSpend:      cfg.Risk.MaxTokenSpend,
		MaxMarketSpend:     cfg.Risk.MaxMarketSpend,
		TotalHoldingsLimit: cfg.Risk.TotalHoldings,
	})

	return &Orchestrator{
		cfg:        cfg,
		leaderAddr: leaderAddr,
		venue:      v,
		exec:       exec,
		risk:       riskMgr,
		store:      st,
		alert:      al,
		marketCfg: market.Config{
			DepthRangePercent:      cfg.Market.DepthRangePercent,
			WideSpreadThresholdBps: cfg.Market.WideSpreadThresholdBps,
			MaxSpreadBps:           cfg.Market.MaxSpreadBps,
			MaxDivergenceBps:       cfg.Market.MaxDivergenceBps,
			MinDepthShares:         cfg.Market.MinDepthShares,
		},
		conditionCfg: condition.Config{
			MaxSpreadBps:           cfg.Market.MaxSpreadBps,
			MaxDivergenceBps:       cfg.Market.MaxDivergenceBps,
			MinDepthShares:         cfg.Market.MinDepthShares,
			WideSpreadThresholdBps: cfg.Market.WideSpreadThresholdBps,
		},
		priceCfg: priceadjust.Config{
			OffsetBps:            cfg.Price.OffsetBps,
			AdaptiveThresholdBps: cfg.Price.AdaptiveThresholdBps,
			SpreadMultiplier:     cfg.Price.AdaptiveSpreadMultiple,
			MaxAdaptiveOffsetBps: cfg.Price.MaxAdaptiveOffsetBps,
		},
		watched:   make(map[string]struct{}),
		leaderQty: make(map[string]float64),
	}
}

// StartSession opens a store session stamped with the run's starting
// conditions, recording the session id for later trade writes.
func (o *Orchestrator) StartSession(ctx context.Context) error {
	balance, err := o.exec.GetBalance(ctx)
	if err != nil {
		balance = 0
	}

	id, err := o.store.OpenSession(domain.Session{
		StartTime:       time.Now(),
		Mode:            o.exec.GetMode(),
		DetectionMethod: string(o.cfg.DetectionMethod),
		LeaderAddress:   o.leaderAddr,
		StartBalance:    balance,
	})
	if err != nil {
		return fmt.Errorf("orchestrator: open session: %w", err)
	}

	o.sessionMu.Lock()
	o.sessionID = id
	o.startBalance = balance
	o.sessionMu.Unlock()

	o.mu2.Lock()
	o.running = true
	o.mu2.Unlock()
	return nil
}

// EndSession closes the open session with final stats. Safe to call even
// if StartSession was never called (sessionID stays 0, CloseSession is
// skipped).
func (o *Orchestrator) EndSession(ctx context.Context, totalPnL, endBalance float64) {
	o.mu2.Lock()
	o.running = false
	o.mu2.Unlock()

	o.sessionMu.Lock()
	sessionID, poll, detected, executed := o.sessionID, o.pollCount, o.tradesDetected, o.tradesExecuted
	o.sessionMu.Unlock()

	if sessionID == 0 {
		return
	}
	store.LogOnError("close session", o.store.CloseSession(sessionID, time.Now(), poll, detected, executed, totalPnL, endBalance))
}

// IsRunning reports whether a session is currently open.
func (o *Orchestrator) IsRunning() bool {
	o.mu2.RLock()
	defer o.mu2.RUnlock()
	return o.running
}

// RecordPoll increments the poll counter, for callers driving the
// detector's Run loop externally.
func (o *Orchestrator) RecordPoll() {
	o.sessionMu.Lock()
	o.pollCount++
	o.sessionMu.Unlock()
}

// Watched returns the current watched-token set as a slice, for the WS
// trigger's SetWatched and the book/price warmers.
func (o *Orchestrator) Watched() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.watched))
	for id := range o.watched {
		out = append(out, id)
	}
	return out
}

func (o *Orchestrator) addWatched(tokenID string) {
	o.mu.Lock()
	o.watched[tokenID] = struct{}{}
	o.mu.Unlock()
}

// AvgLatency returns the mean of the ring buffer's recorded samples.
func (o *Orchestrator) AvgLatency() time.Duration {
	o.latMu.Lock()
	defer o.latMu.Unlock()
	if o.latCount == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < o.latCount; i++ {
		sum += o.latencies[i]
	}
	return sum / time.Duration(o.latCount)
}

func (o *Orchestrator) recordLatency(d time.Duration) {
	o.latMu.Lock()
	defer o.latMu.Unlock()
	o.latencies[o.latNext] = d
	o.latNext = (o.latNext + 1) % len(o.latencies)
	if o.latCount < len(o.latencies) {
		o.latCount++
	}
}

// fanout is the result of HandleTradeEvent's step-2 parallel fetch.
type fanout struct {
	book               venue.Book
	bookErr            error
	balance            float64
	balanceErr         error
	leaderPortfolioVal float64
	portfolioErr       error
	followerPos        float64
}

func (o *Orchestrator) fetch(ctx context.Context, tokenID string, side domain.Side) fanout {
	var f fanout
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b, err := o.venue.GetOrderBook(gctx, tokenID)
		f.book, f.bookErr = b, err
		return nil
	})
	g.Go(func() error {
		bal, err := o.exec.GetBalance(gctx)
		f.balance, f.balanceErr = bal, err
		return nil
	})
	g.Go(func() error {
		v, err := o.venue.GetPortfolioValue(gctx, o.leaderAddr, false)
		f.leaderPortfolioVal, f.portfolioErr = v, err
		return nil
	})
	if side == domain.Sell {
		g.Go(func() error {
			pos, err := o.exec.GetPosition(gctx, tokenID)
			if err == nil && pos != nil {
				f.followerPos = pos.Quantity
			}
			return nil
		})
	}
	_ = g.Wait()
	return f
}

// HandleTradeEvent runs the full 15-step copy pipeline for one observed
// leader fill. detectionLatency is the raw (uncorrected) delay between
// the leader's trade timestamp and the detector observing it.
func (o *Orchestrator) HandleTradeEvent(ctx context.Context, event domain.TradeEvent, detectionLatency time.Duration) error {
	t0 := time.Now()
	side := event.Side
	tokenID := event.TokenID

	// step 1
	if side == domain.Buy {
		o.addWatched(tokenID)
	}

	// step 2
	f := o.fetch(ctx, tokenID, side)
	if f.bookErr != nil {
		log.Printf("orchestrator: book fetch failed for %s: %v", tokenID, f.bookErr)
	}
	if f.balanceErr != nil {
		log.Printf("orchestrator: balance fetch failed: %v", f.balanceErr)
	}
	if f.portfolioErr != nil {
		log.Printf("orchestrator: leader portfolio value fetch failed: %v", f.portfolioErr)
	}

	o.mu.Lock()
	leaderPrevQty := o.leaderQty[tokenID]
	if side == domain.Buy {
		o.leaderQty[tokenID] = leaderPrevQty + event.Size
	} else if leaderPrevQty > event.Size {
		o.leaderQty[tokenID] = leaderPrevQty - event.Size
	} else {
		o.leaderQty[tokenID] = 0
	}
	o.mu.Unlock()

	// step 3
	if !sizing.ShouldCopy(side, event.Size, f.followerPos) {
		return nil
	}

	// step 4
	snap := o.buildSnapshot(ctx, tokenID, event, f)

	// step 5
	decision := condition.Check(o.conditionCfg, snap, side, event.Size)
	if !decision.Approved {
		o.alert.Notify(ctx, alert.Message{
			Severity: alert.SeverityMedium,
			Text:     fmt.Sprintf("trade rejected for %s: %s", tokenID, decision.Reason),
		})
		return nil
	}

	// step 6
	price := market.RecommendedPrice(snap, side)

	// step 7
	var size float64
	if side == domain.Buy {
		size = sizing.BuySize(o.cfg.Sizing, sizing.BuyParams{
			Balance:            f.balance,
			Price:              price,
			LeaderDelta:        event.Size,
			LeaderPortfolioVal: f.leaderPortfolioVal,
		})
	} else {
		size = sizing.SellSize(o.cfg.Sizing, sizing.SellParams{
			FollowerPos:       f.followerPos,
			LeaderDelta:       event.Size,
			LeaderPreviousQty: leaderPrevQty,
		})
	}
	size, depthNote := sizing.AdjustForDepth(size, snap, side, o.cfg.Sizing.MinOrderSize)
	if depthNote != "" {
		log.Printf("orchestrator: %s", depthNote)
	}
	if size <= 0 {
		return nil
	}

	// step 8
	adjustedPrice, effectiveOffsetBps := priceadjust.AdjustedPrice(o.priceCfg, price, side, snap)

	// step 9
	expirationSec := sizing.AdaptiveExpiration(snap, o.cfg.Sizing.ExpirationSeconds)

	// step 10
	expiresAt := t0.Add(time.Duration(expirationSec) * time.Second)
	orderType := domain.OrderTypeLimit
	if o.cfg.Sizing.OrderType == "market" {
		orderType = domain.OrderTypeMarket
	}
	spec := domain.OrderSpec{
		TokenID:         tokenID,
		Side:            side,
		Size:            size,
		SubmitPrice:     adjustedPrice,
		Type:            orderType,
		ExpirationSec:   expirationSec,
		ExpiresAt:       &expiresAt,
		OffsetBps:       effectiveOffsetBps,
		TriggeringTrade: event,
	}

	// step 11
	state := o.buildTradingState(ctx, f.balance)

	// step 12
	cost := 0.0
	if side == domain.Buy {
		cost = size * adjustedPrice
	}
	riskDecision := o.risk.Allow(risk.OrderParams{
		Side:     side,
		TokenID:  tokenID,
		MarketID: event.MarketID,
		Cost:     cost,
		Size:     size,
		State:    state,
	})
	if !riskDecision.Approved {
		o.alert.Notify(ctx, alert.Message{
			Severity: alert.SeverityHigh,
			Text:     fmt.Sprintf("risk gate rejected %s %s: %s", side, tokenID, riskDecision.Reason),
		})
		return nil
	}

	// step 13
	var entryPrice float64
	if side == domain.Sell {
		if pos, ok := state.Positions[tokenID]; ok {
			entryPrice = pos.EntryPrice
		}
	}

	// step 14
	execStart := time.Now()
	result, execErr := o.exec.Execute(ctx, spec)
	execLatency := time.Since(execStart)

	detectionCorrected := o.venue.CorrectLatency(detectionLatency)
	totalCorrected := o.venue.CorrectLatency(time.Since(event.Timestamp))
	o.recordLatency(totalCorrected)

	if execErr != nil {
		log.Printf("orchestrator: execute failed for %s %s: %v", side, tokenID, execErr)
		return fmt.Errorf("orchestrator: execute: %w", execErr)
	}

	// step 15
	o.sessionMu.Lock()
	o.tradesDetected++
	if result.Status == domain.StatusFilled || result.Status == domain.StatusPartial {
		o.tradesExecuted++
	}
	sessionID := o.sessionID
	o.sessionMu.Unlock()

	var pnl *float64
	if side == domain.Sell && (result.Status == domain.StatusFilled || result.Status == domain.StatusPartial) {
		realized := result.FilledSize * (result.AvgFillPrice - entryPrice)
		pnl = &realized
	}

	rec := domain.TradeRecord{
		SessionID:        sessionID,
		TokenID:          tokenID,
		MarketID:         event.MarketID,
		Side:             side,
		Size:             result.FilledSize,
		FillPrice:        result.AvgFillPrice,
		Cost:             result.FilledSize * result.AvgFillPrice,
		PnL:              pnl,
		Status:           result.Status,
		DetectionLatency: detectionCorrected,
		ExecutionLatency: execLatency,
		TotalLatency:     totalCorrected,
		Calibrated:       true,
		CreatedAt:        time.Now(),
	}
	store.LogOnError("record trade", o.store.RecordTrade(sessionID, rec))

	msg := fmt.Sprintf("filled %s %s %.2f @ %.4f", side, tokenID, result.FilledSize, result.AvgFillPrice)
	if pnl != nil {
		msg = fmt.Sprintf("%s (pnl %.2f)", msg, *pnl)
	}
	o.alert.Notify(ctx, alert.Message{Severity: alert.SeverityLow, Text: msg})

	return nil
}

func (o *Orchestrator) buildSnapshot(ctx context.Context, tokenID string, event domain.TradeEvent, f fanout) domain.MarketSnapshot {
	if f.bookErr == nil && (len(f.book.Asks) > 0 || len(f.book.Bids) > 0) {
		return market.Analyze(o.marketCfg, tokenID, f.book, event.Price, event.Size)
	}

	ask, bid := event.Price, event.Price
	if !o.cfg.UseTraderPrice {
		if p, err := o.venue.GetPrice(ctx, tokenID, venue.IntentBuy); err == nil && p > 0 {
			ask = p
		}
		if p, err := o.venue.GetPrice(ctx, tokenID, venue.IntentSell); err == nil && p > 0 {
			bid = p
		}
	}
	return market.AnalyzeFromPrices(o.marketCfg, tokenID, ask, bid, event.Price)
}

func (o *Orchestrator) buildTradingState(ctx context.Context, balance float64) domain.TradingState {
	var state domain.TradingState
	if sp, ok := o.exec.(stateProvider); ok {
		state = sp.TradingState(ctx)
	} else {
		positions, err := o.exec.GetAllPositionDetails(ctx)
		if err != nil {
			positions = nil
		}
		state = domain.TradingState{Positions: positions, Spend: domain.NewSpendTracker()}
	}
	state.Balance = balance
	return state
}
