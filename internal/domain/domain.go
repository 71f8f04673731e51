// Package domain holds the data types shared across the copy-trading hot
// path: positions, trade events, market snapshots, order specs/results, and
// the executor contract a paper or live backend must satisfy.
package domain

import (
	"context"
	"time"
)

// Side is a trade direction.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Position is a holding on either the leader or follower account.
type Position struct {
	TokenID       string
	MarketID      string
	Quantity      float64
	AvgEntryPrice float64
	CurrentPrice  *float64
	Title         string
	Outcome       string
}

// TradeEvent is a single leader fill observed via polling or WS trigger.
type TradeEvent struct {
	ID        string // derived from tx hash + second timestamp + size, for dedup
	TokenID   string
	MarketID  string
	Side      Side
	Size      float64
	Price     float64
	Timestamp time.Time // venue timestamp, seconds resolution
	Title     string
	Outcome   string
}

// MarketCondition tags why a snapshot is or isn't tradeable.
type MarketCondition string

const (
	ConditionNormal         MarketCondition = "normal"
	ConditionWideSpread     MarketCondition = "wide_spread"
	ConditionThinBook       MarketCondition = "thin_book"
	ConditionHighDivergence MarketCondition = "high_divergence"
	ConditionStale          MarketCondition = "stale"
)

// MarketSnapshot is the decision-ready view of a token's book, built fresh
// for every trade event. Never cached, never shared across decisions.
type MarketSnapshot struct {
	TokenID         string
	Time            time.Time
	BestAsk         float64
	BestBid         float64
	Midpoint        float64
	Spread          float64
	SpreadBps       float64
	AskDepthNear    float64
	BidDepthNear    float64
	WeightedAsk     *float64 // volume-weighted fill price for target size, BUY side
	WeightedBid     *float64 // SELL side
	Divergence      float64
	DivergenceBps   float64
	IsVolatile      bool
	Condition       MarketCondition
	Reasons         []string
}

// OrderType is the follower's order style.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderSpec is the follower's intended order, post price/size adjustment.
type OrderSpec struct {
	TokenID          string
	Side             Side
	Size             float64
	SubmitPrice      float64
	Type             OrderType
	ExpirationSec    int
	ExpiresAt        *time.Time
	OffsetBps        float64
	TriggeringTrade  TradeEvent
}

// OrderStatus is the lifecycle state of a submitted order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusLive      OrderStatus = "live"
	StatusFilled    OrderStatus = "filled"
	StatusPartial   OrderStatus = "partial"
	StatusExpired   OrderStatus = "expired"
	StatusCancelled OrderStatus = "cancelled"
	StatusFailed    OrderStatus = "failed"
)

// ExecutionMode distinguishes paper simulation from a live venue adapter.
type ExecutionMode string

const (
	ModePaper ExecutionMode = "paper"
	ModeLive  ExecutionMode = "live"
)

// OrderResult is what the executor returns for a submitted OrderSpec.
type OrderResult struct {
	OrderID      string
	Status       OrderStatus
	FilledSize   float64
	RemainingSize float64
	AvgFillPrice float64
	Error        string
	PlacedAt     time.Time
	ExecutedAt   time.Time
	Mode         ExecutionMode
	Type         OrderType
	Expired      bool
}

// PaperPosition is a follower holding tracked by the paper executor.
//
// EntryPrice is the price of the first BUY that opened the position; it is
// unchanged by subsequent averaging-in BUYs and is reset only when Quantity
// reaches zero.
type PaperPosition struct {
	TokenID       string
	MarketID      string
	Quantity      float64
	AvgCost       float64
	TotalCost     float64
	EntryPrice    float64
	OpenedAt      time.Time
}

// SpendTracker accumulates running BUY spend for risk-gate spend caps.
type SpendTracker struct {
	TokenSpend    map[string]float64 // tokenID -> USD spent on BUYs
	MarketSpend   map[string]float64 // marketID -> USD spent on BUYs
	HoldingsValue float64            // total current holdings value (cost basis)
}

// NewSpendTracker returns an empty, ready-to-use tracker.
func NewSpendTracker() *SpendTracker {
	return &SpendTracker{
		TokenSpend:  make(map[string]float64),
		MarketSpend: make(map[string]float64),
	}
}

// TradingState is the snapshot the risk gate evaluates an order against.
type TradingState struct {
	DailyPnL     float64
	TotalPnL     float64
	Balance      float64
	Positions    map[string]PaperPosition
	TotalShares  float64
	Spend        *SpendTracker
}

// Session is one run of the engine, from start to shutdown.
type Session struct {
	ID              int64
	StartTime       time.Time
	EndTime         *time.Time
	Mode            ExecutionMode
	DetectionMethod string
	LeaderAddress   string
	PollCount       int
	TradesDetected  int
	TradesExecuted  int
	TotalPnL        float64
	StartBalance    float64
	EndBalance      *float64
}

// TradeRecord is a denormalized, persisted order+result+P&L+latency row.
type TradeRecord struct {
	ID                int64
	SessionID         int64
	TokenID           string
	MarketID          string
	Side              Side
	Size              float64
	FillPrice         float64
	Cost              float64
	PnL               *float64
	Status            OrderStatus
	DetectionLatency  time.Duration
	ExecutionLatency  time.Duration
	TotalLatency      time.Duration
	Calibrated        bool
	CreatedAt         time.Time
}

// Executor is the boundary between the hot path and an order-execution
// backend. Exactly one implementation is mandatory: the deterministic paper
// simulator in internal/paper. A live implementation is pluggable but not
// shipped — it is an external collaborator per spec §1, and whoever builds
// one owns reconciling a live fill price against the entryPrice the TP/SL
// monitor and risk gate captured before execution (see §9 open question).
type Executor interface {
	Execute(ctx context.Context, spec OrderSpec) (OrderResult, error)
	GetBalance(ctx context.Context) (float64, error)
	GetPosition(ctx context.Context, tokenID string) (*PaperPosition, error)
	GetAllPositions(ctx context.Context) (map[string]PaperPosition, error)
	GetAllPositionDetails(ctx context.Context) (map[string]PaperPosition, error)
	GetMode() ExecutionMode
	IsReady(ctx context.Context) bool
}

// SpendTrackerProvider is an optional Executor capability.
type SpendTrackerProvider interface {
	GetSpendTracker(ctx context.Context) (*SpendTracker, error)
}

// BulkSeller is an optional Executor capability used for one-click sell.
type BulkSeller interface {
	SellAllPositions(ctx context.Context, priceMap map[string]float64) ([]OrderResult, error)
}

// OrderCanceller is an optional Executor capability.
type OrderCanceller interface {
	CancelAllOrders(ctx context.Context) error
}
