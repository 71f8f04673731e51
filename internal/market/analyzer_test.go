package market

import (
	"testing"

	"github.com/polycopy/trader/internal/domain"
	"github.com/polycopy/trader/internal/venue"
)

func TestAnalyzeNormalBook(t *testing.T) {
	book := venue.Book{
		Bids: []venue.BookLevel{{Price: 0.49, Size: 100}},
		Asks: []venue.BookLevel{{Price: 0.51, Size: 100}},
	}
	snap := Analyze(DefaultConfig(), "t1", book, 0.50, 0)

	if snap.SpreadBps < 199 || snap.SpreadBps > 201 {
		t.Fatalf("expected ~200bps spread, got %f", snap.SpreadBps)
	}
	if snap.Midpoint != 0.50 {
		t.Fatalf("expected midpoint 0.50, got %f", snap.Midpoint)
	}
	if snap.DivergenceBps != 0 {
		t.Fatalf("expected 0 divergence bps, got %f", snap.DivergenceBps)
	}
	if snap.Condition != domain.ConditionNormal {
		t.Fatalf("expected normal condition, got %q", snap.Condition)
	}
}

func TestAnalyzeEmptyBookIsStale(t *testing.T) {
	snap := Analyze(DefaultConfig(), "t1", venue.Book{}, 0.50, 0)
	if snap.Condition != domain.ConditionStale {
		t.Fatalf("expected stale condition for empty book, got %q", snap.Condition)
	}
}

func TestAnalyzeWideSpread(t *testing.T) {
	book := venue.Book{
		Bids: []venue.BookLevel{{Price: 0.40, Size: 100}},
		Asks: []venue.BookLevel{{Price: 0.60, Size: 100}},
	}
	snap := Analyze(DefaultConfig(), "t1", book, 0.50, 0)
	if snap.Condition != domain.ConditionWideSpread {
		t.Fatalf("expected wide_spread condition, got %q", snap.Condition)
	}
	if !snap.IsVolatile {
		t.Fatal("expected wide spread to be flagged volatile")
	}
}

func TestAnalyzeThinBook(t *testing.T) {
	book := venue.Book{
		Bids: []venue.BookLevel{{Price: 0.49, Size: 2}},
		Asks: []venue.BookLevel{{Price: 0.51, Size: 2}},
	}
	snap := Analyze(DefaultConfig(), "t1", book, 0.50, 0)
	if snap.Condition != domain.ConditionThinBook {
		t.Fatalf("expected thin_book condition, got %q", snap.Condition)
	}
}

func TestAnalyzeHighDivergence(t *testing.T) {
	book := venue.Book{
		Bids: []venue.BookLevel{{Price: 0.69, Size: 100}},
		Asks: []venue.BookLevel{{Price: 0.71, Size: 100}},
	}
	snap := Analyze(DefaultConfig(), "t1", book, 0.50, 0)
	if snap.Condition != domain.ConditionHighDivergence {
		t.Fatalf("expected high_divergence condition, got %q", snap.Condition)
	}
}

func TestAnalyzeDropsInvalidLevels(t *testing.T) {
	book := venue.Book{
		Bids: []venue.BookLevel{{Price: -1, Size: 100}, {Price: 0.49, Size: 100}},
		Asks: []venue.BookLevel{{Price: 0.51, Size: 0}, {Price: 0.52, Size: 100}},
	}
	snap := Analyze(DefaultConfig(), "t1", book, 0.50, 0)
	if snap.BestAsk != 0.52 {
		t.Fatalf("expected best ask to skip the zero-size level, got %f", snap.BestAsk)
	}
	if snap.BestBid != 0.49 {
		t.Fatalf("expected best bid to skip the negative-price level, got %f", snap.BestBid)
	}
}

func TestAnalyzeWeightedFillPrice(t *testing.T) {
	book := venue.Book{
		Asks: []venue.BookLevel{
			{Price: 0.50, Size: 50},
			{Price: 0.52, Size: 100},
		},
	}
	snap := Analyze(DefaultConfig(), "t1", book, 0.50, 100)
	if snap.WeightedAsk == nil {
		t.Fatal("expected a weighted ask price")
	}
	// 50@0.50 + 50@0.52 = 25 + 26 = 51 / 100 = 0.51
	if *snap.WeightedAsk < 0.509 || *snap.WeightedAsk > 0.511 {
		t.Fatalf("expected weighted ask ~0.51, got %f", *snap.WeightedAsk)
	}
}

func TestAnalyzeWeightedFillUndefinedWhenBookCannotFill(t *testing.T) {
	book := venue.Book{
		Asks: []venue.BookLevel{{Price: 0.50, Size: 10}},
	}
	snap := Analyze(DefaultConfig(), "t1", book, 0.50, 1000)
	if snap.WeightedAsk != nil {
		t.Fatal("expected nil weighted ask when book cannot fill target size")
	}
}

func TestAnalyzeFromPrices(t *testing.T) {
	snap := AnalyzeFromPrices(DefaultConfig(), "t1", 0.55, 0.45, 0.50)
	if snap.AskDepthNear != 0 || snap.BidDepthNear != 0 {
		t.Fatal("expected zero depth for the price-only fallback")
	}
	if snap.Midpoint != 0.50 {
		t.Fatalf("expected midpoint 0.50, got %f", snap.Midpoint)
	}
}

func TestRecommendedPriceUsesWeightedWhenPresent(t *testing.T) {
	w := 0.53
	snap := domain.MarketSnapshot{BestAsk: 0.55, WeightedAsk: &w}
	if RecommendedPrice(snap, domain.Buy) != 0.53 {
		t.Fatal("expected weighted ask to take priority over best ask")
	}
}

func TestRecommendedPriceFallsBackToBest(t *testing.T) {
	snap := domain.MarketSnapshot{BestBid: 0.47}
	if RecommendedPrice(snap, domain.Sell) != 0.47 {
		t.Fatal("expected best bid fallback when no weighted bid is present")
	}
}
