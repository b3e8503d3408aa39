package testutil

import (
	"context"
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/yahoo"
)

// MockMarketProvider is a mock implementation of service.MarketProvider for
// testing. It serves generated price and fundamental data instead of making
// actual provider calls.
type MockMarketProvider struct {
	// MockError is the error to return from DownloadUniverse
	MockError error
	// Delay makes DownloadUniverse block, honoring context cancellation,
	// before returning. Used to test in-flight run cancellation.
	Delay time.Duration
	// DownloadCount tracks how many times DownloadUniverse was called
	DownloadCount int
	// Sector labels the generated company profiles
	Sector string
	// Industry labels the generated company profiles
	Industry string
}

// NewMockMarketProvider creates a mock provider that generates clean
// uptrending weekday price histories for every requested ticker.
func NewMockMarketProvider() *MockMarketProvider {
	return &MockMarketProvider{
		Sector:   "Technology",
		Industry: "Software",
	}
}

// DownloadUniverse returns generated data for every ticker plus the
// benchmark, or the configured MockError.
func (m *MockMarketProvider) DownloadUniverse(ctx context.Context, tickers []string, benchmark string, start, end time.Time) ([]yahoo.TickerData, model.PriceSeries, error) {
	m.DownloadCount++
	if m.MockError != nil {
		return nil, model.PriceSeries{}, m.MockError
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, model.PriceSeries{}, ctx.Err()
		}
	}

	// Mirror the real downloader: extend the window backwards so trailing
	// indicators have history on the first requested day.
	dates := WeekdaysBetween(start.AddDate(0, 0, -400), end)
	data := make([]yahoo.TickerData, 0, len(tickers))
	for i, ticker := range tickers {
		shares := 1e9
		data = append(data, yahoo.TickerData{
			Prices: GeneratePriceSeries(ticker, dates, 100+float64(10*i), 0.001),
			Fundamentals: &model.FundamentalHistory{
				Ticker:            ticker,
				SharesOutstanding: &shares,
				Sector:            m.Sector,
				Industry:          m.Industry,
				ShortName:         ticker + " Inc",
				Income:            GenerateIncomeReports(dates[0], 8),
				Balance:           GenerateBalanceReports(dates[0], 8),
			},
		})
	}

	benchPrices := GeneratePriceSeries(benchmark, dates, 400, 0.0005)
	return data, benchPrices, nil
}
