package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

// MarketDataRepository provides data access methods for the price_history,
// fundamental_report, dividend_payment, ticker_info, and dataset_meta
// tables. It is the persistence side of the dataset cache.
type MarketDataRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewMarketDataRepository creates a new MarketDataRepository with the
// provided database connection.
func NewMarketDataRepository(db *sql.DB) *MarketDataRepository {
	return &MarketDataRepository{db: db}
}

// WithTx returns a new MarketDataRepository scoped to the provided
// transaction.
func (r *MarketDataRepository) WithTx(tx *sql.Tx) *MarketDataRepository {
	return &MarketDataRepository{db: r.db, tx: tx}
}

// getQuerier returns the active transaction if one is set, otherwise the
// database connection.
func (r *MarketDataRepository) getQuerier() interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// UpsertPriceSeries stores a ticker's daily price points, replacing any
// existing rows for the same ticker and date.
func (r *MarketDataRepository) UpsertPriceSeries(ctx context.Context, series model.PriceSeries) error {
	query := `
		INSERT INTO price_history (id, ticker, date, close, volume)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET close = excluded.close, volume = excluded.volume
	`
	for _, p := range series.Points {
		_, err := r.getQuerier().ExecContext(ctx, query,
			uuid.New().String(), series.Ticker, p.Date.Format("2006-01-02"), p.Close, p.Volume)
		if err != nil {
			return fmt.Errorf("failed to upsert price row for %s: %w", series.Ticker, err)
		}
	}
	return nil
}

// GetPriceSeries retrieves a ticker's daily prices within a date range,
// sorted ascending. An empty series maps to ErrPriceNotFound.
func (r *MarketDataRepository) GetPriceSeries(ctx context.Context, ticker string, start, end time.Time) (model.PriceSeries, error) {
	query := `
		SELECT date, close, volume
		FROM price_history
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`
	rows, err := r.getQuerier().QueryContext(ctx, query,
		ticker, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("failed to query price_history table: %w", err)
	}
	defer rows.Close()

	series := model.PriceSeries{Ticker: ticker}
	for rows.Next() {
		var dateStr string
		var p model.PricePoint
		if err := rows.Scan(&dateStr, &p.Close, &p.Volume); err != nil {
			return model.PriceSeries{}, fmt.Errorf("failed to scan price_history results: %w", err)
		}
		if p.Date, err = ParseTime(dateStr); err != nil {
			return model.PriceSeries{}, err
		}
		series.Points = append(series.Points, p)
	}
	if err = rows.Err(); err != nil {
		return model.PriceSeries{}, fmt.Errorf("error iterating price_history table: %w", err)
	}
	if len(series.Points) == 0 {
		return model.PriceSeries{}, fmt.Errorf("%s %s..%s: %w",
			ticker, start.Format("2006-01-02"), end.Format("2006-01-02"), apperrors.ErrPriceNotFound)
	}
	return series, nil
}

// UpsertFundamentals stores a ticker's quarterly income and balance reports.
// Income and balance rows share the fundamental_report table, distinguished
// by report_type.
func (r *MarketDataRepository) UpsertFundamentals(ctx context.Context, ticker string, income []model.IncomeReport, balance []model.BalanceReport) error {
	query := `
		INSERT INTO fundamental_report
			(id, ticker, report_date, report_type, net_income, total_revenue, operating_income, stockholders_equity, total_debt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, report_date, report_type) DO UPDATE SET
			net_income = excluded.net_income,
			total_revenue = excluded.total_revenue,
			operating_income = excluded.operating_income,
			stockholders_equity = excluded.stockholders_equity,
			total_debt = excluded.total_debt
	`
	for _, rep := range income {
		_, err := r.getQuerier().ExecContext(ctx, query,
			uuid.New().String(), ticker, rep.ReportDate.Format("2006-01-02"), "income",
			rep.NetIncome, rep.TotalRevenue, rep.OperatingIncome, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to upsert income report for %s: %w", ticker, err)
		}
	}
	for _, rep := range balance {
		_, err := r.getQuerier().ExecContext(ctx, query,
			uuid.New().String(), ticker, rep.ReportDate.Format("2006-01-02"), "balance",
			nil, nil, nil, rep.StockholdersEquity, rep.TotalDebt)
		if err != nil {
			return fmt.Errorf("failed to upsert balance report for %s: %w", ticker, err)
		}
	}
	return nil
}

// UpsertDividends stores a ticker's dividend payments.
func (r *MarketDataRepository) UpsertDividends(ctx context.Context, ticker string, dividends []model.DividendPayment) error {
	query := `
		INSERT INTO dividend_payment (id, ticker, date, amount)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET amount = excluded.amount
	`
	for _, d := range dividends {
		_, err := r.getQuerier().ExecContext(ctx, query,
			uuid.New().String(), ticker, d.Date.Format("2006-01-02"), d.Amount)
		if err != nil {
			return fmt.Errorf("failed to upsert dividend for %s: %w", ticker, err)
		}
	}
	return nil
}

// UpsertTickerInfo stores or refreshes a ticker's metadata row.
func (r *MarketDataRepository) UpsertTickerInfo(ctx context.Context, info model.TickerInfo) error {
	if info.ID == "" {
		info.ID = uuid.New().String()
	}
	query := `
		INSERT INTO ticker_info (id, ticker, short_name, sector, industry, shares_outstanding, last_updated, is_valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker) DO UPDATE SET
			short_name = excluded.short_name,
			sector = excluded.sector,
			industry = excluded.industry,
			shares_outstanding = excluded.shares_outstanding,
			last_updated = excluded.last_updated,
			is_valid = excluded.is_valid
	`
	_, err := r.getQuerier().ExecContext(ctx, query,
		info.ID, info.Ticker, info.ShortName, info.Sector, info.Industry,
		info.SharesOutstanding, info.LastUpdated.UTC().Format(time.RFC3339), info.IsValid)
	if err != nil {
		return fmt.Errorf("failed to upsert ticker info for %s: %w", info.Ticker, err)
	}
	return nil
}

// GetFundamentalHistory assembles a ticker's complete stored fundamentals:
// metadata, quarterly reports, and dividends. A missing ticker_info row maps
// to ErrTickerNotFound.
func (r *MarketDataRepository) GetFundamentalHistory(ctx context.Context, ticker string) (*model.FundamentalHistory, error) {
	hist := &model.FundamentalHistory{Ticker: ticker}

	var shortName, sector, industry sql.NullString
	err := r.getQuerier().QueryRowContext(ctx,
		`SELECT short_name, sector, industry, shares_outstanding FROM ticker_info WHERE ticker = ?`, ticker).
		Scan(&shortName, &sector, &industry, &hist.SharesOutstanding)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", ticker, apperrors.ErrTickerNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ticker_info table: %w", err)
	}
	hist.ShortName = shortName.String
	hist.Sector = sector.String
	hist.Industry = industry.String

	rows, err := r.getQuerier().QueryContext(ctx, `
		SELECT report_date, report_type, net_income, total_revenue, operating_income, stockholders_equity, total_debt
		FROM fundamental_report
		WHERE ticker = ?
		ORDER BY report_date ASC
	`, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query fundamental_report table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dateStr, reportType string
		var netIncome, totalRevenue, operatingIncome, equity, debt *float64
		if err := rows.Scan(&dateStr, &reportType, &netIncome, &totalRevenue, &operatingIncome, &equity, &debt); err != nil {
			return nil, fmt.Errorf("failed to scan fundamental_report results: %w", err)
		}
		date, err := ParseTime(dateStr)
		if err != nil {
			return nil, err
		}
		switch reportType {
		case "income":
			hist.Income = append(hist.Income, model.IncomeReport{
				ReportDate:      date,
				NetIncome:       netIncome,
				TotalRevenue:    totalRevenue,
				OperatingIncome: operatingIncome,
			})
		case "balance":
			hist.Balance = append(hist.Balance, model.BalanceReport{
				ReportDate:         date,
				StockholdersEquity: equity,
				TotalDebt:          debt,
			})
		}
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fundamental_report table: %w", err)
	}

	divRows, err := r.getQuerier().QueryContext(ctx,
		`SELECT date, amount FROM dividend_payment WHERE ticker = ? ORDER BY date ASC`, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query dividend_payment table: %w", err)
	}
	defer divRows.Close()

	for divRows.Next() {
		var dateStr string
		var d model.DividendPayment
		if err := divRows.Scan(&dateStr, &d.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan dividend_payment results: %w", err)
		}
		if d.Date, err = ParseTime(dateStr); err != nil {
			return nil, err
		}
		hist.Dividends = append(hist.Dividends, d)
	}
	if err = divRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dividend_payment table: %w", err)
	}

	return hist, nil
}

// GetDatasetMeta looks up a live cache entry by content key. Expired entries
// read as missing.
func (r *MarketDataRepository) GetDatasetMeta(ctx context.Context, contentKey string, now time.Time) (model.DatasetMeta, error) {
	query := `
		SELECT id, content_key, tickers, start_date, end_date, expires_at
		FROM dataset_meta
		WHERE content_key = ? AND expires_at > ?
	`
	var meta model.DatasetMeta
	var startStr, endStr, expiresStr string
	err := r.getQuerier().QueryRowContext(ctx, query, contentKey, now.UTC().Format(time.RFC3339)).
		Scan(&meta.ID, &meta.ContentKey, &meta.Tickers, &startStr, &endStr, &expiresStr)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DatasetMeta{}, apperrors.ErrDatasetCacheMiss
	}
	if err != nil {
		return model.DatasetMeta{}, fmt.Errorf("failed to query dataset_meta table: %w", err)
	}
	if meta.StartDate, err = ParseTime(startStr); err != nil {
		return model.DatasetMeta{}, err
	}
	if meta.EndDate, err = ParseTime(endStr); err != nil {
		return model.DatasetMeta{}, err
	}
	if meta.ExpiresAt, err = parseTimestamp(expiresStr); err != nil {
		return model.DatasetMeta{}, err
	}
	return meta, nil
}

// PutDatasetMeta records a fresh cache entry, replacing any previous entry
// with the same content key.
func (r *MarketDataRepository) PutDatasetMeta(ctx context.Context, meta model.DatasetMeta) error {
	if meta.ID == "" {
		meta.ID = uuid.New().String()
	}
	query := `
		INSERT INTO dataset_meta (id, content_key, tickers, start_date, end_date, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_key) DO UPDATE SET
			tickers = excluded.tickers,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			expires_at = excluded.expires_at
	`
	_, err := r.getQuerier().ExecContext(ctx, query,
		meta.ID, meta.ContentKey, meta.Tickers,
		meta.StartDate.Format("2006-01-02"), meta.EndDate.Format("2006-01-02"),
		meta.ExpiresAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert dataset_meta: %w", err)
	}
	return nil
}

// PurgeExpiredDatasets removes cache entries past their expiry.
func (r *MarketDataRepository) PurgeExpiredDatasets(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.getQuerier().ExecContext(ctx,
		`DELETE FROM dataset_meta WHERE expires_at <= ?`, now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to purge dataset_meta: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// ListStoredTickers returns the tickers with at least one valid price row,
// sorted.
func (r *MarketDataRepository) ListStoredTickers(ctx context.Context) ([]string, error) {
	rows, err := r.getQuerier().QueryContext(ctx,
		`SELECT DISTINCT ticker FROM price_history ORDER BY ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stored tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stored tickers: %w", err)
	}
	return tickers, nil
}
