package marketdata_test

import (
	"testing"
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/marketdata"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

// day returns a UTC date for the given day offset from 2024-01-01, skipping
// weekends so consecutive offsets land on plausible trading days.
func day(offset int) time.Time {
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for offset > 0 {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			offset--
		}
	}
	return d
}

// makeSeries builds a price series with one point per trading day starting at
// day(0), with the given closes and a constant volume.
func makeSeries(ticker string, volume float64, closes ...float64) model.PriceSeries {
	points := make([]model.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = model.PricePoint{Date: day(i), Close: c, Volume: volume}
	}
	return model.PriceSeries{Ticker: ticker, Points: points}
}

// TestDataset_PriceAsOf tests the as-of price lookup.
//
// WHY: Every point-in-time guarantee in the system rests on this lookup never
// returning a price dated after the query date. An off-by-one here would leak
// future data into the simulation.
func TestDataset_PriceAsOf(t *testing.T) {
	ds := marketdata.NewDataset(
		[]model.PriceSeries{makeSeries("AAPL", 1e6, 100, 101, 102)},
		nil, "SPY",
	)

	t.Run("returns exact-date close", func(t *testing.T) {
		price, ok := ds.PriceAsOf("AAPL", day(1))
		if !ok {
			t.Fatal("Expected price, got absent")
		}
		if price != 101 {
			t.Errorf("Expected 101, got %v", price)
		}
	})

	t.Run("falls back to last close before a non-trading date", func(t *testing.T) {
		// Query on the calendar day after the last point
		price, ok := ds.PriceAsOf("AAPL", day(2).AddDate(0, 0, 1))
		if !ok {
			t.Fatal("Expected price, got absent")
		}
		if price != 102 {
			t.Errorf("Expected 102, got %v", price)
		}
	})

	t.Run("absent before first observation", func(t *testing.T) {
		_, ok := ds.PriceAsOf("AAPL", day(0).AddDate(0, 0, -1))
		if ok {
			t.Error("Expected absent before first observation")
		}
	})

	t.Run("absent for unknown ticker", func(t *testing.T) {
		_, ok := ds.PriceAsOf("ZZZZ", day(1))
		if ok {
			t.Error("Expected absent for unknown ticker")
		}
	})
}

// TestDataset_ReturnOver tests trailing-return computation.
//
// WHY: Trailing returns feed the sector-momentum and falling-knife filters.
// The lookback must count trading days, not calendar days, and must report
// absence instead of guessing when history is too short.
func TestDataset_ReturnOver(t *testing.T) {
	ds := marketdata.NewDataset(
		[]model.PriceSeries{makeSeries("AAPL", 1e6, 100, 105, 110, 121)},
		nil, "SPY",
	)

	t.Run("computes simple return over the window", func(t *testing.T) {
		r, ok := ds.ReturnOver("AAPL", day(3), 3)
		if !ok {
			t.Fatal("Expected return, got absent")
		}
		if r < 0.2099 || r > 0.2101 {
			t.Errorf("Expected 0.21, got %v", r)
		}
	})

	t.Run("absent when history is shorter than the window", func(t *testing.T) {
		_, ok := ds.ReturnOver("AAPL", day(3), 4)
		if ok {
			t.Error("Expected absent for too-short history")
		}
	})
}

// TestDataset_VolumeTrailingMean tests the trailing volume average.
func TestDataset_VolumeTrailingMean(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	ds := marketdata.NewDataset(
		[]model.PriceSeries{makeSeries("AAPL", 2e6, closes...)},
		nil, "SPY",
	)

	t.Run("averages the trailing window", func(t *testing.T) {
		avg, ok := ds.VolumeTrailingMean("AAPL", day(29), 60, 20)
		if !ok {
			t.Fatal("Expected average, got absent")
		}
		if avg != 2e6 {
			t.Errorf("Expected 2e6, got %v", avg)
		}
	})

	t.Run("absent below the minimum observation count", func(t *testing.T) {
		_, ok := ds.VolumeTrailingMean("AAPL", day(10), 60, 20)
		if ok {
			t.Error("Expected absent with fewer than 20 observations")
		}
	})
}

// TestDataset_TradingDays tests that the benchmark series defines the
// simulation calendar.
func TestDataset_TradingDays(t *testing.T) {
	ds := marketdata.NewDataset(
		[]model.PriceSeries{
			makeSeries("SPY", 1e7, 400, 401, 402, 403, 404),
			makeSeries("AAPL", 1e6, 100, 101),
		},
		nil, "SPY",
	)

	days := ds.TradingDays(day(1), day(3))
	if len(days) != 3 {
		t.Fatalf("Expected 3 trading days, got %d", len(days))
	}
	if !days[0].Equal(day(1)) || !days[2].Equal(day(3)) {
		t.Errorf("Unexpected trading day bounds: %v .. %v", days[0], days[2])
	}
}

// TestDataset_Tickers tests that the benchmark is excluded from the universe.
func TestDataset_Tickers(t *testing.T) {
	ds := marketdata.NewDataset(
		[]model.PriceSeries{
			makeSeries("SPY", 1e7, 400),
			makeSeries("MSFT", 1e6, 300),
			makeSeries("AAPL", 1e6, 100),
		},
		nil, "SPY",
	)

	tickers := ds.Tickers()
	if len(tickers) != 2 {
		t.Fatalf("Expected 2 tickers, got %d", len(tickers))
	}
	if tickers[0] != "AAPL" || tickers[1] != "MSFT" {
		t.Errorf("Expected sorted [AAPL MSFT], got %v", tickers)
	}
}
