package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/repository"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/testutil"
)

// TestMarketDataRepository_PriceSeries tests price persistence.
//
// WHY: Price history is the backbone of every replay. Upserts must be
// idempotent so re-downloading a window never duplicates rows, and range
// queries must return dates in ascending order.
func TestMarketDataRepository_PriceSeries(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips a series and stays idempotent on re-upsert", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewMarketDataRepository(db)

		start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
		dates := testutil.WeekdaysBetween(start, start.AddDate(0, 0, 13))
		series := testutil.GeneratePriceSeries("AAPL", dates, 150, 0.01)

		if err := repo.UpsertPriceSeries(ctx, series); err != nil {
			t.Fatalf("UpsertPriceSeries() failed: %v", err)
		}
		// Second upsert with revised closes must update, not duplicate.
		series.Points[0].Close = 151
		if err := repo.UpsertPriceSeries(ctx, series); err != nil {
			t.Fatalf("Second UpsertPriceSeries() failed: %v", err)
		}

		stored, err := repo.GetPriceSeries(ctx, "AAPL", start, start.AddDate(0, 1, 0))
		if err != nil {
			t.Fatalf("GetPriceSeries() failed: %v", err)
		}
		if len(stored.Points) != len(dates) {
			t.Fatalf("Expected %d points, got %d", len(dates), len(stored.Points))
		}
		if stored.Points[0].Close != 151 {
			t.Errorf("Expected upsert to revise first close to 151, got %v", stored.Points[0].Close)
		}
		for i := 1; i < len(stored.Points); i++ {
			if !stored.Points[i].Date.After(stored.Points[i-1].Date) {
				t.Fatalf("Points not in ascending date order at index %d", i)
			}
		}
	})

	t.Run("respects the requested date range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewMarketDataRepository(db)

		start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
		dates := testutil.WeekdaysBetween(start, start.AddDate(0, 1, 0))
		if err := repo.UpsertPriceSeries(ctx, testutil.GeneratePriceSeries("MSFT", dates, 300, 0)); err != nil {
			t.Fatalf("UpsertPriceSeries() failed: %v", err)
		}

		mid := start.AddDate(0, 0, 14)
		stored, err := repo.GetPriceSeries(ctx, "MSFT", mid, start.AddDate(0, 1, 0))
		if err != nil {
			t.Fatalf("GetPriceSeries() failed: %v", err)
		}
		for _, p := range stored.Points {
			if p.Date.Before(mid) {
				t.Errorf("Point %v outside requested range", p.Date)
			}
		}
	})

	t.Run("returns ErrPriceNotFound for an empty range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewMarketDataRepository(db)

		_, err := repo.GetPriceSeries(ctx, "NONE",
			time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC))
		if !errors.Is(err, apperrors.ErrPriceNotFound) {
			t.Errorf("Expected ErrPriceNotFound, got %v", err)
		}
	})
}

// TestMarketDataRepository_FundamentalHistory tests the assembled view of a
// ticker's stored fundamentals.
func TestMarketDataRepository_FundamentalHistory(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewMarketDataRepository(db)

	anchor := time.Date(2022, 6, 30, 0, 0, 0, 0, time.UTC)
	shares := 2e9
	income := testutil.GenerateIncomeReports(anchor, 4)
	balance := testutil.GenerateBalanceReports(anchor, 4)
	dividends := []model.DividendPayment{
		{Date: anchor.AddDate(0, -4, 0), Amount: 0.22},
		{Date: anchor.AddDate(0, -1, 0), Amount: 0.24},
	}

	if err := repo.UpsertTickerInfo(ctx, model.TickerInfo{
		ID:                uuid.New().String(),
		Ticker:            "AAPL",
		ShortName:         "Apple Inc",
		Sector:            "Technology",
		Industry:          "Consumer Electronics",
		SharesOutstanding: &shares,
		LastUpdated:       anchor,
		IsValid:           true,
	}); err != nil {
		t.Fatalf("UpsertTickerInfo() failed: %v", err)
	}
	if err := repo.UpsertFundamentals(ctx, "AAPL", income, balance); err != nil {
		t.Fatalf("UpsertFundamentals() failed: %v", err)
	}
	if err := repo.UpsertDividends(ctx, "AAPL", dividends); err != nil {
		t.Fatalf("UpsertDividends() failed: %v", err)
	}

	hist, err := repo.GetFundamentalHistory(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetFundamentalHistory() failed: %v", err)
	}
	if hist.Sector != "Technology" || hist.ShortName != "Apple Inc" {
		t.Errorf("Metadata did not round-trip: %+v", hist)
	}
	if hist.SharesOutstanding == nil || *hist.SharesOutstanding != shares {
		t.Errorf("SharesOutstanding did not round-trip: %v", hist.SharesOutstanding)
	}
	if len(hist.Income) != 4 || len(hist.Balance) != 4 {
		t.Fatalf("Expected 4 income and 4 balance reports, got %d and %d", len(hist.Income), len(hist.Balance))
	}
	if hist.Income[0].NetIncome == nil || *hist.Income[0].NetIncome != *income[0].NetIncome {
		t.Errorf("Income line items did not round-trip")
	}
	if len(hist.Dividends) != 2 || hist.Dividends[1].Amount != 0.24 {
		t.Errorf("Dividends did not round-trip: %+v", hist.Dividends)
	}

	t.Run("unknown ticker maps to ErrTickerNotFound", func(t *testing.T) {
		_, err := repo.GetFundamentalHistory(ctx, "NONE")
		if !errors.Is(err, apperrors.ErrTickerNotFound) {
			t.Errorf("Expected ErrTickerNotFound, got %v", err)
		}
	})
}

// TestMarketDataRepository_DatasetMeta tests the content-addressed cache
// bookkeeping.
//
// WHY: The dataset cache avoids re-downloading an unchanged universe. An
// entry past its TTL must read as a miss, and purging must only remove dead
// entries.
func TestMarketDataRepository_DatasetMeta(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewMarketDataRepository(db)

	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	live := model.DatasetMeta{
		ID:         uuid.New().String(),
		ContentKey: "live-key",
		Tickers:    "AAPL,MSFT",
		StartDate:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:  now,
		ExpiresAt:  now.AddDate(0, 0, 30),
	}
	expired := live
	expired.ID = uuid.New().String()
	expired.ContentKey = "expired-key"
	expired.ExpiresAt = now.AddDate(0, 0, -1)

	if err := repo.PutDatasetMeta(ctx, live); err != nil {
		t.Fatalf("PutDatasetMeta(live) failed: %v", err)
	}
	if err := repo.PutDatasetMeta(ctx, expired); err != nil {
		t.Fatalf("PutDatasetMeta(expired) failed: %v", err)
	}

	got, err := repo.GetDatasetMeta(ctx, "live-key", now)
	if err != nil {
		t.Fatalf("GetDatasetMeta(live) failed: %v", err)
	}
	if got.Tickers != "AAPL,MSFT" {
		t.Errorf("Tickers did not round-trip: %q", got.Tickers)
	}

	if _, err := repo.GetDatasetMeta(ctx, "expired-key", now); !errors.Is(err, apperrors.ErrDatasetCacheMiss) {
		t.Errorf("Expected ErrDatasetCacheMiss for expired entry, got %v", err)
	}
	if _, err := repo.GetDatasetMeta(ctx, "unknown-key", now); !errors.Is(err, apperrors.ErrDatasetCacheMiss) {
		t.Errorf("Expected ErrDatasetCacheMiss for unknown key, got %v", err)
	}

	purged, err := repo.PurgeExpiredDatasets(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpiredDatasets() failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("Expected 1 purged entry, got %d", purged)
	}
	if _, err := repo.GetDatasetMeta(ctx, "live-key", now); err != nil {
		t.Errorf("Live entry should survive the purge, got %v", err)
	}
}

// TestMarketDataRepository_ListStoredTickers tests the ticker inventory.
func TestMarketDataRepository_ListStoredTickers(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewMarketDataRepository(db)

	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	dates := testutil.WeekdaysBetween(start, start.AddDate(0, 0, 4))
	for _, ticker := range []string{"MSFT", "AAPL"} {
		if err := repo.UpsertPriceSeries(ctx, testutil.GeneratePriceSeries(ticker, dates, 100, 0)); err != nil {
			t.Fatalf("UpsertPriceSeries(%s) failed: %v", ticker, err)
		}
	}

	tickers, err := repo.ListStoredTickers(ctx)
	if err != nil {
		t.Fatalf("ListStoredTickers() failed: %v", err)
	}
	if len(tickers) != 2 || tickers[0] != "AAPL" || tickers[1] != "MSFT" {
		t.Errorf("Expected sorted [AAPL MSFT], got %v", tickers)
	}
}
