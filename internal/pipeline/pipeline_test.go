package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/marketdata"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

// tradingDates generates n consecutive weekday dates starting 2023-01-02.
func tradingDates(n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for len(out) < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

// trendSeries builds a price series with the given daily drift, optionally
// going flat for the last flatTail days.
func trendSeries(ticker string, dates []time.Time, start, drift float64, flatTail int) model.PriceSeries {
	points := make([]model.PricePoint, len(dates))
	price := start
	for i, d := range dates {
		if i > 0 && i < len(dates)-flatTail {
			price *= 1 + drift
		}
		points[i] = model.PricePoint{Date: d, Close: price, Volume: 3e6}
	}
	return model.PriceSeries{Ticker: ticker, Points: points}
}

// growthDataset builds a dataset of nTickers uptrending technology stocks
// against a slowly rising benchmark, over nDays trading days.
func growthDataset(nTickers, nDays, flatTail int) (*marketdata.Dataset, time.Time) {
	dates := tradingDates(nDays)
	series := []model.PriceSeries{trendSeries("SPY", dates, 400, 0.0002, 0)}
	var fundamentals []*model.FundamentalHistory
	for i := 0; i < nTickers; i++ {
		ticker := fmt.Sprintf("T%02d", i)
		drift := 0.002 + 0.0001*float64(i)
		series = append(series, trendSeries(ticker, dates, 100, drift, flatTail))
		fundamentals = append(fundamentals, &model.FundamentalHistory{
			Ticker:   ticker,
			Sector:   "Technology",
			Industry: "Software",
		})
	}
	return marketdata.NewDataset(series, fundamentals, "SPY"), dates[len(dates)-1]
}

// permissiveProfile screens on nothing and weights by momentum, so pipeline
// flow can be tested without fundamental fixtures.
func permissiveProfile() Profile {
	return Profile{
		Name:              "test",
		Strategy:          StrategyMomentum,
		SkipVolatilityCap: true,
	}
}

// TestSelector_Run_HardGate tests that insufficient history aborts the
// pipeline at stage one.
//
// WHY: Stage one is a hard gate. With under six months of data no sector
// call is defensible, and the pipeline must refuse rather than guess.
func TestSelector_Run_HardGate(t *testing.T) {
	ds, asOf := growthDataset(5, 100, 0)
	selector := NewSelector(ds, 0.02)

	outcome, err := selector.Run(context.Background(), asOf, permissiveProfile())
	if err == nil {
		t.Fatal("Expected hard-gate error with 100 days of history, got nil")
	}
	if !errors.Is(err, apperrors.ErrEmptySelection) {
		t.Errorf("Expected ErrEmptySelection, got %v", err)
	}
	if outcome == nil || len(outcome.Stages) == 0 {
		t.Error("Expected stage reports even on failure")
	}
}

// TestSelector_Run_HappyPath tests a full pass through all six stages.
func TestSelector_Run_HappyPath(t *testing.T) {
	ds, asOf := growthDataset(12, 300, 0)
	selector := NewSelector(ds, 0.02)

	outcome, err := selector.Run(context.Background(), asOf, permissiveProfile())
	if err != nil {
		t.Fatalf("Run() returned unexpected error: %v", err)
	}
	if len(outcome.Allocation) == 0 {
		t.Fatal("Expected a non-empty allocation")
	}
	if len(outcome.Allocation) > momentumTopN {
		t.Errorf("Expected at most %d positions, got %d", momentumTopN, len(outcome.Allocation))
	}
	if math.Abs(outcome.Allocation.Sum()-1.0) > 0.001 {
		t.Errorf("Expected weights to sum to 1, got %v", outcome.Allocation.Sum())
	}
	if len(outcome.Stages) != 6 {
		t.Errorf("Expected 6 stage reports, got %d", len(outcome.Stages))
	}
}

// TestSelector_Run_Deterministic tests pipeline idempotence.
//
// WHY: For a fixed dataset and cutoff the pipeline must be a pure function.
// Any hidden randomness (map iteration order leaking into results) would
// make runs unreproducible.
func TestSelector_Run_Deterministic(t *testing.T) {
	ds, asOf := growthDataset(12, 300, 0)
	selector := NewSelector(ds, 0.02)

	first, err := selector.Run(context.Background(), asOf, permissiveProfile())
	if err != nil {
		t.Fatalf("First run returned unexpected error: %v", err)
	}
	second, err := selector.Run(context.Background(), asOf, permissiveProfile())
	if err != nil {
		t.Fatalf("Second run returned unexpected error: %v", err)
	}

	if len(first.Allocation) != len(second.Allocation) {
		t.Fatalf("Runs disagree on position count: %d vs %d", len(first.Allocation), len(second.Allocation))
	}
	for ticker, w := range first.Allocation {
		if second.Allocation[ticker] != w {
			t.Errorf("Weight for %s differs between runs: %v vs %v", ticker, w, second.Allocation[ticker])
		}
	}
}

// TestSelector_Run_SoftGateFallback tests that stages three and four fall
// back to the prior list instead of aborting.
//
// WHY: In dull markets no ticker may beat the benchmark over the window.
// The pipeline should degrade to the screened list, not return nothing.
func TestSelector_Run_SoftGateFallback(t *testing.T) {
	// Tickers trend up then go flat for the last 60 days, so the
	// benchmark wins the 50-day relative-strength window and flat closes
	// leave on-balance volume stuck at its average.
	ds, asOf := growthDataset(12, 300, 60)
	selector := NewSelector(ds, 0.02)

	outcome, err := selector.Run(context.Background(), asOf, permissiveProfile())
	if err != nil {
		t.Fatalf("Run() returned unexpected error: %v", err)
	}
	if len(outcome.Allocation) == 0 {
		t.Fatal("Expected allocation despite soft-gate fallbacks")
	}

	var sawFallback bool
	for _, report := range outcome.Stages {
		if report.Stage == "relative_strength" && report.Fallback {
			sawFallback = true
		}
	}
	if !sawFallback {
		t.Error("Expected relative-strength stage to report a fallback")
	}
}

// TestSelector_Run_Cancellation tests that a cancelled context stops the
// stage fan-out.
func TestSelector_Run_Cancellation(t *testing.T) {
	ds, asOf := growthDataset(12, 300, 0)
	selector := NewSelector(ds, 0.02)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := selector.Run(ctx, asOf, permissiveProfile()); err == nil {
		t.Error("Expected error from cancelled context, got nil")
	}
}
