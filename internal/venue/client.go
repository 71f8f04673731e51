// Package venue implements the read-only HTTP surface the hot path
// needs: leader positions and activity, market prices and books,
// portfolio value, and clock-drift calibration. All endpoints are the
// external collaborator's — this package only speaks their wire shapes.
package venue

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/polycopy/trader/internal/domain"
	"github.com/polycopy/trader/internal/rategate"
)

const (
	portfolioValueTTL = 30 * time.Second
	priceTTL          = 5 * time.Second

	orderBookWarmPeriod = 2500 * time.Millisecond
	priceWarmPeriod     = 4 * time.Second
)

// PriceIntent is the trade side a caller intends, before the side-flip
// rule inverts it into the quote actually requested.
type PriceIntent string

const (
	IntentBuy  PriceIntent = "BUY"
	IntentSell PriceIntent = "SELL"
)

// Client is the venue's HTTP access point: typed reads over leader
// data and market data, TTL caching with a fallback to a still-unexpired
// cached value on failure, and
// cache warmer loops for the hot-path's watched token set.
type Client struct {
	http  *resty.Client
	gates *rategate.Gates

	valueCache *ttlCache[float64]
	priceCache *ttlCache[float64] // keyed "token:intent"
	bookCache  *ttlCache[Book]

	driftMu sync.RWMutex
	drift   time.Duration
	synced  bool

	watchMu sync.Mutex
	watched map[string]struct{}
}

// NewClient builds a Client against baseURL, honoring the spec's three
// endpoint-family rate gates.
func NewClient(baseURL string) *Client {
	h := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		http:       h,
		gates:      rategate.NewGates(),
		valueCache: newTTLCache[float64](portfolioValueTTL),
		priceCache: newTTLCache[float64](priceTTL),
		bookCache:  newTTLCache[Book](orderBookWarmPeriod * 4),
		watched:    make(map[string]struct{}),
	}
}

// GetPositions fetches a user's current positions.
func (c *Client) GetPositions(ctx context.Context, addr string) ([]domain.Position, error) {
	if err := c.gates.Positions.Wait(ctx); err != nil {
		return nil, newErr(KindTransient, "positions", err)
	}

	var raw []rawPosition
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("user", addr).
		SetResult(&raw).
		Get("/positions")
	if err != nil {
		return nil, newErr(KindTransient, "positions", err)
	}
	if k := statusKind(resp); k != KindUnknown {
		return nil, newErr(k, "positions", fmt.Errorf("status %d", resp.StatusCode()))
	}

	out := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		if p.Quantity <= 0 {
			continue
		}
		pos := domain.Position{
			TokenID:       p.TokenID,
			MarketID:      p.MarketID,
			Quantity:      float64(p.Quantity),
			AvgEntryPrice: float64(p.AvgPrice),
			Title:         p.Title,
			Outcome:       p.Outcome,
		}
		if p.CurPrice != nil {
			v := float64(*p.CurPrice)
			pos.CurrentPrice = &v
		}
		out = append(out, pos)
	}
	return out, nil
}

// ActivityParams narrows a GET /activity call.
type ActivityParams struct {
	Limit        int
	AfterUnixSec int64
}

// GetTrades fetches leader activity newest-first, filtered to "TRADE" rows.
func (c *Client) GetTrades(ctx context.Context, addr string, params ActivityParams) ([]domain.TradeEvent, error) {
	if err := c.gates.Activity.Wait(ctx); err != nil {
		return nil, newErr(KindTransient, "activity", err)
	}

	req := c.http.R().SetContext(ctx).SetQueryParam("user", addr)
	if params.Limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", params.Limit))
	}
	if params.AfterUnixSec > 0 {
		req.SetQueryParam("after", fmt.Sprintf("%d", params.AfterUnixSec))
	}

	var raw []rawActivity
	resp, err := req.SetResult(&raw).Get("/activity")
	if err != nil {
		return nil, newErr(KindTransient, "activity", err)
	}
	if k := statusKind(resp); k != KindUnknown {
		return nil, newErr(k, "activity", fmt.Errorf("status %d", resp.StatusCode()))
	}

	out := make([]domain.TradeEvent, 0, len(raw))
	for _, a := range raw {
		if a.Type != "TRADE" {
			continue
		}
		side := domain.Buy
		if a.Side == "SELL" {
			side = domain.Sell
		}
		out = append(out, domain.TradeEvent{
			ID:        deriveTradeID(a.TxHash, a.TimestampS, float64(a.Size)),
			TokenID:   a.TokenID,
			MarketID:  a.MarketID,
			Side:      side,
			Size:      float64(a.Size),
			Price:     float64(a.Price),
			Timestamp: time.Unix(a.TimestampS, 0).UTC(),
			Title:     a.Title,
			Outcome:   a.Outcome,
		})
	}
	return out, nil
}

// deriveTradeID derives the dedup id from the trade's tx hash, second
// timestamp, and size, since multiple fills can share a tx hash.
func deriveTradeID(txHash string, timestampS int64, size float64) string {
	return fmt.Sprintf("%s:%d:%.6f", txHash, timestampS, size)
}

// GetPortfolioValue returns a user's total holdings value, cached for 30s.
// forceRefresh bypasses the cache on read but still populates it.
func (c *Client) GetPortfolioValue(ctx context.Context, addr string, forceRefresh bool) (float64, error) {
	if !forceRefresh {
		if v, ok := c.valueCache.get(addr); ok {
			return v, nil
		}
	}

	if err := c.gates.Positions.Wait(ctx); err != nil {
		if v, ok := c.valueCache.get(addr); ok {
			log.Printf("venue: portfolio value gate error, using stale cache: %v", err)
			return v, nil
		}
		return 0, newErr(KindTransient, "value", err)
	}

	resp, err := c.http.R().SetContext(ctx).SetQueryParam("user", addr).Get("/value")
	if err != nil {
		if v, ok := c.valueCache.get(addr); ok {
			log.Printf("venue: portfolio value fetch failed, using stale cache: %v", err)
			return v, nil
		}
		return 0, newErr(KindTransient, "value", err)
	}
	if k := statusKind(resp); k != KindUnknown {
		if v, ok := c.valueCache.get(addr); ok {
			log.Printf("venue: portfolio value status %d, using stale cache", resp.StatusCode())
			return v, nil
		}
		return 0, newErr(k, "value", fmt.Errorf("status %d", resp.StatusCode()))
	}

	value, err := parseValueResponse(resp.Body())
	if err != nil {
		if v, ok := c.valueCache.get(addr); ok {
			log.Printf("venue: portfolio value decode failed, using stale cache: %v", err)
			return v, nil
		}
		return 0, newErr(KindDecode, "value", err)
	}

	c.valueCache.set(addr, value)
	return value, nil
}

// GetPrice fetches the venue quote for tokenID under the side-flip rule:
// a BUY intent asks the venue for its best SELL (ask) quote and vice
// versa. The flip happens exactly once, here.
func (c *Client) GetPrice(ctx context.Context, tokenID string, intent PriceIntent) (float64, error) {
	key := tokenID + ":" + string(intent)
	if v, ok := c.priceCache.get(key); ok {
		return v, nil
	}

	venueSide := "SELL"
	if intent == IntentSell {
		venueSide = "BUY"
	}

	if err := c.gates.BookPrice.Wait(ctx); err != nil {
		if v, ok := c.priceCache.get(key); ok {
			return v, nil
		}
		return 0, newErr(KindTransient, "price", err)
	}

	var raw rawPriceResp
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetQueryParam("side", venueSide).
		SetResult(&raw).
		Get("/price")
	if err != nil {
		if v, ok := c.priceCache.get(key); ok {
			log.Printf("venue: price fetch failed for %s, using stale cache: %v", tokenID, err)
			return v, nil
		}
		return 0, newErr(KindTransient, "price", err)
	}
	if k := statusKind(resp); k != KindUnknown {
		if v, ok := c.priceCache.get(key); ok {
			return v, nil
		}
		return 0, newErr(k, "price", fmt.Errorf("status %d", resp.StatusCode()))
	}

	price := float64(raw.Price)
	c.priceCache.set(key, price)
	return price, nil
}

// PriceRequest is one element of a GetPricesParallel fan-out.
type PriceRequest struct {
	TokenID string
	Intent  PriceIntent
}

// PriceResult pairs a PriceRequest with its outcome.
type PriceResult struct {
	TokenID string
	Intent  PriceIntent
	Price   float64
	Err     error
}

// GetPricesParallel fetches several prices concurrently.
func (c *Client) GetPricesParallel(ctx context.Context, reqs []PriceRequest) []PriceResult {
	out := make([]PriceResult, len(reqs))
	var wg sync.WaitGroup
	for i, r := range reqs {
		wg.Add(1)
		go func(i int, r PriceRequest) {
			defer wg.Done()
			price, err := c.GetPrice(ctx, r.TokenID, r.Intent)
			out[i] = PriceResult{TokenID: r.TokenID, Intent: r.Intent, Price: price, Err: err}
		}(i, r)
	}
	wg.Wait()
	return out
}

// GetOrderBook fetches and parses the order book for tokenID.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (Book, error) {
	if err := c.gates.BookPrice.Wait(ctx); err != nil {
		if b, ok := c.bookCache.get(tokenID); ok {
			return b, nil
		}
		return Book{}, newErr(KindTransient, "book", err)
	}

	var raw rawBookResp
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&raw).
		Get("/book")
	if err != nil {
		if b, ok := c.bookCache.get(tokenID); ok {
			log.Printf("venue: book fetch failed for %s, using stale cache: %v", tokenID, err)
			return b, nil
		}
		return Book{}, newErr(KindTransient, "book", err)
	}
	if k := statusKind(resp); k != KindUnknown {
		if b, ok := c.bookCache.get(tokenID); ok {
			return b, nil
		}
		return Book{}, newErr(k, "book", fmt.Errorf("status %d", resp.StatusCode()))
	}

	book := raw.toBook()
	c.bookCache.set(tokenID, book)
	return book, nil
}

// GetMidpoint fetches the venue's own midpoint quote for tokenID.
func (c *Client) GetMidpoint(ctx context.Context, tokenID string) (float64, error) {
	if err := c.gates.BookPrice.Wait(ctx); err != nil {
		return 0, newErr(KindTransient, "midpoint", err)
	}
	var raw rawMidpointResp
	resp, err := c.http.R().SetContext(ctx).SetQueryParam("token_id", tokenID).SetResult(&raw).Get("/midpoint")
	if err != nil {
		return 0, newErr(KindTransient, "midpoint", err)
	}
	if k := statusKind(resp); k != KindUnknown {
		return 0, newErr(k, "midpoint", fmt.Errorf("status %d", resp.StatusCode()))
	}
	return float64(raw.Mid), nil
}

// GetSpread fetches the venue's own spread quote for tokenID.
func (c *Client) GetSpread(ctx context.Context, tokenID string) (float64, error) {
	if err := c.gates.BookPrice.Wait(ctx); err != nil {
		return 0, newErr(KindTransient, "spread", err)
	}
	var raw rawSpreadResp
	resp, err := c.http.R().SetContext(ctx).SetQueryParam("token_id", tokenID).SetResult(&raw).Get("/spread")
	if err != nil {
		return 0, newErr(KindTransient, "spread", err)
	}
	if k := statusKind(resp); k != KindUnknown {
		return 0, newErr(k, "spread", fmt.Errorf("status %d", resp.StatusCode()))
	}
	return float64(raw.Spread), nil
}

// ClockSync is the outcome of one checkClockSync round trip.
type ClockSync struct {
	Drift       time.Duration
	Synced      bool
	CheckedAt   time.Time
	ServerDate  time.Time
	LocalBefore time.Time
	LocalAfter  time.Time
}

// CheckClockSync issues a lightweight request and derives drift from the
// HTTP response's Date header, bracketed by local timestamps taken
// immediately before and after the round trip. |drift| < 100ms is
// considered synchronized. The drift is stored and later subtracted from
// detection-latency figures via CorrectLatency.
func (c *Client) CheckClockSync(ctx context.Context) (ClockSync, error) {
	before := time.Now()
	resp, err := c.http.R().SetContext(ctx).Get("/midpoint")
	after := time.Now()
	if err != nil {
		return ClockSync{}, newErr(KindTransient, "clock-sync", err)
	}

	dateHeader := resp.Header().Get("Date")
	serverDate, parseErr := http.ParseTime(dateHeader)
	if parseErr != nil {
		return ClockSync{}, newErr(KindDecode, "clock-sync", parseErr)
	}

	localAvg := before.Add(after.Sub(before) / 2)
	drift := localAvg.Sub(serverDate)

	result := ClockSync{
		Drift:       drift,
		Synced:      absDuration(drift) < 100*time.Millisecond,
		CheckedAt:   time.Now(),
		ServerDate:  serverDate,
		LocalBefore: before,
		LocalAfter:  after,
	}

	c.driftMu.Lock()
	c.drift = drift
	c.synced = result.Synced
	c.driftMu.Unlock()

	return result, nil
}

// CorrectLatency subtracts the last measured clock drift from a raw
// latency figure. Applying it twice on an already-corrected figure would
// double-subtract, so callers must only ever pass the raw measurement.
func (c *Client) CorrectLatency(raw time.Duration) time.Duration {
	c.driftMu.RLock()
	d := c.drift
	c.driftMu.RUnlock()
	corrected := raw - d
	if corrected < 0 {
		return 0
	}
	return corrected
}

// Synced reports whether the last CheckClockSync call classified the
// connection as synchronized. False before the first check.
func (c *Client) Synced() bool {
	c.driftMu.RLock()
	defer c.driftMu.RUnlock()
	return c.synced
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func statusKind(resp *resty.Response) ErrKind {
	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return KindRateLimited
	case resp.StatusCode() >= 500:
		return KindTransient
	case resp.StatusCode() >= 400:
		return KindPrecondition
	default:
		return KindUnknown
	}
}
