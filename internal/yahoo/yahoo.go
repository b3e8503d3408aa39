// Package yahoo downloads daily price history, quarterly fundamentals, and
// company metadata from the Yahoo Finance public endpoints. It is used to
// materialize a dataset before a backtest starts and is never called from
// the simulation itself.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

const (
	chartURL       = "https://query1.finance.yahoo.com/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d&events=div"
	timeseriesURL  = "https://query1.finance.yahoo.com/ws/fundamentals-timeseries/v1/finance/timeseries/%s?type=%s&period1=%d&period2=%d"
	quoteURL       = "https://query1.finance.yahoo.com/v10/finance/quoteSummary/%s?modules=assetProfile,defaultKeyStatistics,quoteType"
	timeseriesKeys = "quarterlyNetIncome,quarterlyTotalRevenue,quarterlyOperatingIncome,quarterlyStockholdersEquity,quarterlyTotalDebt"

	retryBaseDelay = 500 * time.Millisecond
	retryMax       = 4
)

// FinanceClient provides methods for fetching market data from the Yahoo
// Finance API. It wraps an HTTP client and retries transient failures
// (429s, 5xx responses, network errors) with exponential backoff.
type FinanceClient struct {
	httpClient *http.Client
}

// NewFinanceClient creates a new Yahoo Finance client.
//
// Parameters:
//   - timeout: Per-request HTTP timeout
//
// Returns:
//   - *FinanceClient: A new client instance ready for use
func NewFinanceClient(timeout time.Duration) *FinanceClient {
	return &FinanceClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PriceHistory fetches daily close and volume data for a symbol within a
// date range, along with any dividend distributions in the same range.
//
// Days where Yahoo reports a zero close (halts, listing gaps) are dropped
// rather than stored, so downstream point-in-time lookups never see them.
//
// Parameters:
//   - symbol: Stock ticker symbol (e.g., "AAPL", "MSFT")
//   - start: Beginning of date range (inclusive)
//   - end: End of date range (inclusive)
//
// Returns:
//   - model.PriceSeries: Daily points sorted by date ascending
//   - []model.DividendPayment: Dividend events sorted by date ascending
//   - error: If the request fails after retries or the symbol is unknown
func (c *FinanceClient) PriceHistory(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, []model.DividendPayment, error) {
	url := fmt.Sprintf(chartURL, symbol, start.Unix(), end.Unix())

	var resp chartResponse
	if err := c.query(ctx, url, &resp); err != nil {
		return model.PriceSeries{}, nil, fmt.Errorf("chart query for %s: %w", symbol, err)
	}
	if resp.Chart.Error != nil {
		return model.PriceSeries{}, nil, fmt.Errorf("%s: %s: %w", symbol, resp.Chart.Error.Description, apperrors.ErrSymbolNotFound)
	}
	if len(resp.Chart.Result) == 0 {
		return model.PriceSeries{}, nil, fmt.Errorf("no chart results for %s: %w", symbol, apperrors.ErrSymbolNotFound)
	}

	result := resp.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return model.PriceSeries{}, nil, fmt.Errorf("no price data for %s: %w", symbol, apperrors.ErrPriceNotFound)
	}
	quote := result.Indicators.Quote[0]
	if len(quote.Close) != len(result.Timestamp) {
		return model.PriceSeries{}, nil, fmt.Errorf("mismatched data lengths for %s: %w", symbol, apperrors.ErrDataInconsistency)
	}

	points := make([]model.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if quote.Close[i] == 0 {
			continue
		}
		var volume float64
		if i < len(quote.Volume) {
			volume = float64(quote.Volume[i])
		}
		points = append(points, model.PricePoint{
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Close:  quote.Close[i],
			Volume: volume,
		})
	}

	var dividends []model.DividendPayment
	for _, div := range result.Events.Dividends {
		dividends = append(dividends, model.DividendPayment{
			Date:   time.Unix(div.Date, 0).UTC().Truncate(24 * time.Hour),
			Amount: div.Amount,
		})
	}
	sort.Slice(dividends, func(i, j int) bool { return dividends[i].Date.Before(dividends[j].Date) })

	return model.PriceSeries{Ticker: symbol, Points: points}, dividends, nil
}

// QuarterlyFundamentals fetches quarterly income statement and balance sheet
// line items for a symbol within a date range, merged per report date.
//
// Parameters:
//   - symbol: Stock ticker symbol
//   - start: Beginning of date range (inclusive)
//   - end: End of date range (inclusive)
//
// Returns:
//   - []model.IncomeReport: Quarterly income reports sorted by date ascending
//   - []model.BalanceReport: Quarterly balance snapshots sorted by date ascending
//   - error: If the request fails after retries
func (c *FinanceClient) QuarterlyFundamentals(ctx context.Context, symbol string, start, end time.Time) ([]model.IncomeReport, []model.BalanceReport, error) {
	url := fmt.Sprintf(timeseriesURL, symbol, timeseriesKeys, start.Unix(), end.Unix())

	var resp timeseriesResponse
	if err := c.query(ctx, url, &resp); err != nil {
		return nil, nil, fmt.Errorf("timeseries query for %s: %w", symbol, err)
	}
	if resp.Timeseries.Error != nil {
		return nil, nil, fmt.Errorf("%s: %s: %w", symbol, resp.Timeseries.Error.Description, apperrors.ErrFundamentalsNotFound)
	}

	income := make(map[string]*model.IncomeReport)
	balance := make(map[string]*model.BalanceReport)

	incomeAt := func(date string) *model.IncomeReport {
		r, ok := income[date]
		if !ok {
			d, err := time.Parse("2006-01-02", date)
			if err != nil {
				return nil
			}
			r = &model.IncomeReport{ReportDate: d}
			income[date] = r
		}
		return r
	}
	balanceAt := func(date string) *model.BalanceReport {
		r, ok := balance[date]
		if !ok {
			d, err := time.Parse("2006-01-02", date)
			if err != nil {
				return nil
			}
			r = &model.BalanceReport{ReportDate: d}
			balance[date] = r
		}
		return r
	}

	for _, result := range resp.Timeseries.Result {
		for _, v := range result.QuarterlyNetIncome {
			if r := incomeAt(v.AsOfDate); r != nil {
				r.NetIncome = f64(v.ReportedValue.Raw)
			}
		}
		for _, v := range result.QuarterlyTotalRevenue {
			if r := incomeAt(v.AsOfDate); r != nil {
				r.TotalRevenue = f64(v.ReportedValue.Raw)
			}
		}
		for _, v := range result.QuarterlyOperatingIncome {
			if r := incomeAt(v.AsOfDate); r != nil {
				r.OperatingIncome = f64(v.ReportedValue.Raw)
			}
		}
		for _, v := range result.QuarterlyStockholdersEquity {
			if r := balanceAt(v.AsOfDate); r != nil {
				r.StockholdersEquity = f64(v.ReportedValue.Raw)
			}
		}
		for _, v := range result.QuarterlyTotalDebt {
			if r := balanceAt(v.AsOfDate); r != nil {
				r.TotalDebt = f64(v.ReportedValue.Raw)
			}
		}
	}

	incomeOut := make([]model.IncomeReport, 0, len(income))
	for _, r := range income {
		incomeOut = append(incomeOut, *r)
	}
	sort.Slice(incomeOut, func(i, j int) bool { return incomeOut[i].ReportDate.Before(incomeOut[j].ReportDate) })

	balanceOut := make([]model.BalanceReport, 0, len(balance))
	for _, r := range balance {
		balanceOut = append(balanceOut, *r)
	}
	sort.Slice(balanceOut, func(i, j int) bool { return balanceOut[i].ReportDate.Before(balanceOut[j].ReportDate) })

	return incomeOut, balanceOut, nil
}

// Profile fetches sector, industry, display name, and shares outstanding for
// a symbol.
func (c *FinanceClient) Profile(ctx context.Context, symbol string) (CompanyProfile, error) {
	url := fmt.Sprintf(quoteURL, symbol)

	var resp quoteSummaryResponse
	if err := c.query(ctx, url, &resp); err != nil {
		return CompanyProfile{}, fmt.Errorf("quote summary query for %s: %w", symbol, err)
	}
	if resp.QuoteSummary.Error != nil {
		return CompanyProfile{}, fmt.Errorf("%s: %s: %w", symbol, resp.QuoteSummary.Error.Description, apperrors.ErrSymbolNotFound)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return CompanyProfile{}, fmt.Errorf("no quote summary for %s: %w", symbol, apperrors.ErrSymbolNotFound)
	}

	result := resp.QuoteSummary.Result[0]
	return CompanyProfile{
		Sector:            result.AssetProfile.Sector,
		Industry:          result.AssetProfile.Industry,
		ShortName:         result.QuoteType.ShortName,
		SharesOutstanding: result.DefaultKeyStatistics.SharesOutstanding.Raw,
	}, nil
}

// query executes one HTTP request against a Yahoo Finance endpoint and
// decodes the JSON body into out. Transient failures (connection errors,
// 429, 5xx) retry with exponential backoff; anything else fails immediately.
//
// The method sets required headers:
//   - User-Agent: Mimics a browser to avoid API blocking
//   - Accept: Requests JSON response format
func (c *FinanceClient) query(ctx context.Context, url string, out any) error {
	backoff := retry.WithMaxRetries(retryMax, retry.NewExponential(retryBaseDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("status %d: %w", resp.StatusCode, apperrors.ErrDownloadFailed))
		}
		if resp.StatusCode != http.StatusOK {
			// 404s carry a JSON error body we want to surface; decode
			// if possible, otherwise fail with the status.
			if json.Unmarshal(data, out) == nil {
				return nil
			}
			return fmt.Errorf("status %d: %w", resp.StatusCode, apperrors.ErrDownloadFailed)
		}

		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
}

func f64(v float64) *float64 { return &v }
