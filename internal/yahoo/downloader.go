package yahoo

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

// warmupCalendarDays extends every download window backwards so the longest
// trailing indicators (200-day moving average, 1-year momentum) have history
// on the first day of the requested range.
const warmupCalendarDays = 400

// fundamentalsLookbackDays bounds the quarterly report history fetched per
// ticker: enough quarters for trailing-twelve-month and year-over-year
// growth at the start of the warm-up window.
const fundamentalsLookbackDays = warmupCalendarDays + 730

// Downloader fetches a complete dataset for a ticker universe with bounded
// concurrency.
type Downloader struct {
	client      *FinanceClient
	concurrency int
}

// NewDownloader wraps a client with a concurrency bound. A bound under one
// is treated as one.
func NewDownloader(client *FinanceClient, concurrency int) *Downloader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Downloader{client: client, concurrency: concurrency}
}

// TickerData is everything downloaded for one symbol.
type TickerData struct {
	Prices       model.PriceSeries
	Fundamentals *model.FundamentalHistory
}

// DownloadUniverse fetches prices, fundamentals, dividends, and company
// metadata for every ticker, plus price history for the benchmark. The
// requested window is extended backwards by the indicator warm-up before
// querying. A ticker whose price download fails aborts the whole batch; the
// dataset is only useful complete.
func (d *Downloader) DownloadUniverse(ctx context.Context, tickers []string, benchmark string, start, end time.Time) ([]TickerData, model.PriceSeries, error) {
	warmStart := start.AddDate(0, 0, -warmupCalendarDays)
	fundStart := start.AddDate(0, 0, -fundamentalsLookbackDays)

	results := make([]TickerData, len(tickers))
	var benchSeries model.PriceSeries

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	g.Go(func() error {
		series, _, err := d.client.PriceHistory(ctx, benchmark, warmStart, end)
		if err != nil {
			return fmt.Errorf("benchmark %s: %w", benchmark, err)
		}
		benchSeries = series
		return nil
	})

	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			data, err := d.downloadOne(ctx, ticker, warmStart, fundStart, end)
			if err != nil {
				return err
			}
			results[i] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, model.PriceSeries{}, err
	}
	return results, benchSeries, nil
}

func (d *Downloader) downloadOne(ctx context.Context, ticker string, warmStart, fundStart, end time.Time) (TickerData, error) {
	prices, dividends, err := d.client.PriceHistory(ctx, ticker, warmStart, end)
	if err != nil {
		return TickerData{}, err
	}

	income, balance, err := d.client.QuarterlyFundamentals(ctx, ticker, fundStart, end)
	if err != nil {
		return TickerData{}, err
	}

	profile, err := d.client.Profile(ctx, ticker)
	if err != nil {
		return TickerData{}, err
	}

	return TickerData{
		Prices: prices,
		Fundamentals: &model.FundamentalHistory{
			Ticker:            ticker,
			SharesOutstanding: profile.SharesOutstanding,
			Sector:            profile.Sector,
			Industry:          profile.Industry,
			ShortName:         profile.ShortName,
			Income:            income,
			Balance:           balance,
			Dividends:         dividends,
		},
	}, nil
}
