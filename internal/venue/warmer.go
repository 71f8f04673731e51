package venue

import (
	"context"
	"log"
	"time"
)

// SetWatched replaces the set of tokens the warmers refresh. cmd/copytrader
// calls it with the orchestrator's watched set after each handled trade
// event; the set starts empty and is not seeded from the leader's current
// positions.
func (c *Client) SetWatched(tokenIDs []string) {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	c.watched = make(map[string]struct{}, len(tokenIDs))
	for _, id := range tokenIDs {
		c.watched[id] = struct{}{}
	}
}

// AddWatched adds one token to the watched set without disturbing the rest.
func (c *Client) AddWatched(tokenID string) {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	c.watched[tokenID] = struct{}{}
}

func (c *Client) watchedTokens() []string {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	out := make([]string, 0, len(c.watched))
	for id := range c.watched {
		out = append(out, id)
	}
	return out
}

// RunOrderBookWarmer refreshes the order book cache for every watched
// token every 2.5s, keeping hot data within one cache TTL of fresh.
// Blocks until ctx is cancelled.
func (c *Client) RunOrderBookWarmer(ctx context.Context) error {
	ticker := time.NewTicker(orderBookWarmPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, tok := range c.watchedTokens() {
				if _, err := c.GetOrderBook(ctx, tok); err != nil {
					log.Printf("venue: order book warmer %s: %v", tok, err)
				}
			}
		}
	}
}

// RunPriceWarmer refreshes the BUY-side price cache for every watched
// token every 4s. Blocks until ctx is cancelled.
func (c *Client) RunPriceWarmer(ctx context.Context) error {
	ticker := time.NewTicker(priceWarmPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, tok := range c.watchedTokens() {
				if _, err := c.GetPrice(ctx, tok, IntentBuy); err != nil {
					log.Printf("venue: price warmer %s: %v", tok, err)
				}
			}
		}
	}
}

// RunPortfolioValueWarmer refreshes addr's cached portfolio value every
// 30s, so the hot path's step-2 fan-out almost always hits the cache
// instead of blocking on a fresh fetch. Blocks until ctx is cancelled.
func (c *Client) RunPortfolioValueWarmer(ctx context.Context, addr string) error {
	ticker := time.NewTicker(portfolioValueTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.GetPortfolioValue(ctx, addr, true); err != nil {
				log.Printf("venue: portfolio value warmer: %v", err)
			}
		}
	}
}
