package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/marketdata"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/repository"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/yahoo"
)

// datasetSchemaVersion participates in the content key so schema changes
// invalidate every cached dataset at once.
const datasetSchemaVersion = "1"

// priceWarmupDays must cover the longest trailing indicator window so the
// first day of a requested range has full history behind it.
const priceWarmupDays = 400

// MarketProvider is the download side of the dataset cache. Satisfied by
// yahoo.Downloader; tests substitute a mock.
type MarketProvider interface {
	DownloadUniverse(ctx context.Context, tickers []string, benchmark string, start, end time.Time) ([]yahoo.TickerData, model.PriceSeries, error)
}

// MarketDataService materializes point-in-time datasets: cache lookup by
// content key, provider download on a miss, and persistence of everything
// downloaded.
type MarketDataService struct {
	repo      *repository.MarketDataRepository
	provider  MarketProvider
	benchmark string
	cacheTTL  time.Duration
}

// NewMarketDataService creates a new MarketDataService.
func NewMarketDataService(repo *repository.MarketDataRepository, provider MarketProvider, benchmark string, cacheTTLDays int) *MarketDataService {
	return &MarketDataService{
		repo:      repo,
		provider:  provider,
		benchmark: benchmark,
		cacheTTL:  time.Duration(cacheTTLDays) * 24 * time.Hour,
	}
}

// ContentKey derives the cache key for a dataset request: the SHA-256 of
// the normalized ticker set, the date range, and the schema version. Two
// requests for the same universe and range always hash identically.
func (s *MarketDataService) ContentKey(tickers []string, start, end time.Time) string {
	normalized := normalizeTickers(tickers)
	payload := fmt.Sprintf("v%s|%s|%s|%s|%s",
		datasetSchemaVersion,
		s.benchmark,
		strings.Join(normalized, ","),
		start.Format("2006-01-02"),
		end.Format("2006-01-02"),
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// GetDataset returns a materialized dataset for the ticker universe over
// [start, end]. A live cache entry is served from storage; otherwise the
// universe is downloaded, persisted, and a fresh cache entry recorded.
func (s *MarketDataService) GetDataset(ctx context.Context, tickers []string, start, end time.Time) (*marketdata.Dataset, error) {
	normalized := normalizeTickers(tickers)
	if len(normalized) == 0 {
		return nil, apperrors.ErrEmptySelection
	}
	key := s.ContentKey(normalized, start, end)

	_, err := s.repo.GetDatasetMeta(ctx, key, time.Now())
	switch {
	case err == nil:
		return s.loadDataset(ctx, normalized, start, end)
	case errors.Is(err, apperrors.ErrDatasetCacheMiss):
		// fall through to download
	default:
		return nil, err
	}

	if err := s.refresh(ctx, normalized, start, end); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRefreshDataset, err)
	}

	if err := s.repo.PutDatasetMeta(ctx, model.DatasetMeta{
		ContentKey: key,
		Tickers:    strings.Join(normalized, ","),
		StartDate:  start,
		EndDate:    end,
		ExpiresAt:  time.Now().Add(s.cacheTTL),
	}); err != nil {
		return nil, err
	}

	return s.loadDataset(ctx, normalized, start, end)
}

// refresh downloads the universe and persists everything in one
// transaction per concern.
func (s *MarketDataService) refresh(ctx context.Context, tickers []string, start, end time.Time) error {
	data, benchSeries, err := s.provider.DownloadUniverse(ctx, tickers, s.benchmark, start, end)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertPriceSeries(ctx, benchSeries); err != nil {
		return err
	}
	for _, td := range data {
		if err := s.repo.UpsertPriceSeries(ctx, td.Prices); err != nil {
			return err
		}
		if td.Fundamentals == nil {
			continue
		}
		if err := s.repo.UpsertFundamentals(ctx, td.Fundamentals.Ticker, td.Fundamentals.Income, td.Fundamentals.Balance); err != nil {
			return err
		}
		if err := s.repo.UpsertDividends(ctx, td.Fundamentals.Ticker, td.Fundamentals.Dividends); err != nil {
			return err
		}
		if err := s.repo.UpsertTickerInfo(ctx, model.TickerInfo{
			Ticker:            td.Fundamentals.Ticker,
			ShortName:         td.Fundamentals.ShortName,
			Sector:            td.Fundamentals.Sector,
			Industry:          td.Fundamentals.Industry,
			SharesOutstanding: td.Fundamentals.SharesOutstanding,
			LastUpdated:       time.Now().UTC(),
			IsValid:           true,
		}); err != nil {
			return err
		}
	}
	return nil
}

// loadDataset assembles a dataset from storage, extending the price window
// backwards by the indicator warm-up.
func (s *MarketDataService) loadDataset(ctx context.Context, tickers []string, start, end time.Time) (*marketdata.Dataset, error) {
	warmStart := start.AddDate(0, 0, -priceWarmupDays)

	series := make([]model.PriceSeries, 0, len(tickers)+1)
	bench, err := s.repo.GetPriceSeries(ctx, s.benchmark, warmStart, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrBenchmarkUnavailable, err)
	}
	series = append(series, bench)

	fundamentals := make([]*model.FundamentalHistory, 0, len(tickers))
	for _, ticker := range tickers {
		ps, err := s.repo.GetPriceSeries(ctx, ticker, warmStart, end)
		if err != nil {
			// A ticker with no stored prices is dropped, not fatal;
			// the pipeline treats absence as ineligibility.
			if errors.Is(err, apperrors.ErrPriceNotFound) {
				log.Printf("dataset: skipping %s (no stored prices in window)", ticker)
				continue
			}
			return nil, err
		}
		series = append(series, ps)

		hist, err := s.repo.GetFundamentalHistory(ctx, ticker)
		if err != nil {
			if errors.Is(err, apperrors.ErrTickerNotFound) {
				log.Printf("dataset: skipping %s fundamentals (no ticker metadata)", ticker)
				continue
			}
			return nil, err
		}
		fundamentals = append(fundamentals, hist)
	}

	return marketdata.NewDataset(series, fundamentals, s.benchmark), nil
}

// GetPriceHistory returns the stored daily prices for one ticker in a range.
func (s *MarketDataService) GetPriceHistory(ctx context.Context, ticker string, start, end time.Time) (model.PriceSeries, error) {
	return s.repo.GetPriceSeries(ctx, strings.ToUpper(ticker), start, end)
}

// GetFundamentalsAsOf computes the point-in-time fundamentals for one ticker
// at a cutoff date from stored data.
func (s *MarketDataService) GetFundamentalsAsOf(ctx context.Context, ticker string, date time.Time) (model.FundamentalMetrics, error) {
	ticker = strings.ToUpper(ticker)

	hist, err := s.repo.GetFundamentalHistory(ctx, ticker)
	if err != nil {
		return model.FundamentalMetrics{}, err
	}
	prices, err := s.repo.GetPriceSeries(ctx, ticker, date.AddDate(-2, 0, 0), date)
	if err != nil && !errors.Is(err, apperrors.ErrPriceNotFound) {
		return model.FundamentalMetrics{}, err
	}

	ds := marketdata.NewDataset([]model.PriceSeries{prices}, []*model.FundamentalHistory{hist}, "")
	metrics := ds.FundamentalsAsOf(ticker, date)
	if metrics.Empty() {
		return model.FundamentalMetrics{}, fmt.Errorf("%s as of %s: %w",
			ticker, date.Format("2006-01-02"), apperrors.ErrFundamentalsNotFound)
	}
	return metrics, nil
}

// ListTickers returns every ticker with stored price history.
func (s *MarketDataService) ListTickers(ctx context.Context) ([]string, error) {
	return s.repo.ListStoredTickers(ctx)
}

// PurgeExpired drops dead dataset cache entries.
func (s *MarketDataService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpiredDatasets(ctx, time.Now())
}

// normalizeTickers uppercases, deduplicates, and sorts a ticker list so
// equivalent universes produce identical content keys.
func normalizeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
