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

// BacktestRunRepository provides data access methods for the backtest_run
// table: run lifecycle rows, their result columns, and the serialized curves.
type BacktestRunRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewBacktestRunRepository creates a new BacktestRunRepository with the
// provided database connection.
func NewBacktestRunRepository(db *sql.DB) *BacktestRunRepository {
	return &BacktestRunRepository{db: db}
}

// WithTx returns a new BacktestRunRepository scoped to the provided
// transaction.
func (r *BacktestRunRepository) WithTx(tx *sql.Tx) *BacktestRunRepository {
	return &BacktestRunRepository{db: r.db, tx: tx}
}

// getQuerier returns the active transaction if one is set, otherwise the
// database connection.
func (r *BacktestRunRepository) getQuerier() interface {
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

const runColumns = `
		id, name, status, profile, start_date, end_date, initial_capital, rebalance_months,
		total_return, cagr, sharpe_ratio, sortino_ratio, max_drawdown, max_drawdown_duration,
		calmar_ratio, annual_volatility, alpha, beta, benchmark_return, outperformance,
		final_value, n_trading_days, n_rebalances, n_stocks_avg,
		equity_curve, benchmark_curve, snapshots, error_message, duration_seconds, created_at`

// CreateRun inserts a new pending run row and returns its generated ID.
// A duplicate run name maps to ErrDuplicateRun.
func (r *BacktestRunRepository) CreateRun(ctx context.Context, run *model.BacktestRun) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = model.RunStatusPending
	}

	query := `
		INSERT INTO backtest_run (id, name, status, profile, start_date, end_date, initial_capital, rebalance_months)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.getQuerier().ExecContext(ctx, query,
		run.ID,
		run.Name,
		string(run.Status),
		run.Profile,
		run.StartDate.Format("2006-01-02"),
		run.EndDate.Format("2006-01-02"),
		run.InitialCapital,
		run.RebalanceMonths,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", apperrors.ErrDuplicateRun
		}
		return "", fmt.Errorf("failed to insert backtest run: %w", err)
	}
	return run.ID, nil
}

// GetRunOnID retrieves a single run with all result columns.
func (r *BacktestRunRepository) GetRunOnID(ctx context.Context, runID string) (model.BacktestRun, error) {
	query := `SELECT` + runColumns + ` FROM backtest_run WHERE id = ?`

	run, err := scanRun(r.getQuerier().QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.BacktestRun{}, apperrors.ErrRunNotFound
	}
	if err != nil {
		return model.BacktestRun{}, fmt.Errorf("failed to query backtest run: %w", err)
	}
	return run, nil
}

// GetRunOnName retrieves a run by its unique name.
func (r *BacktestRunRepository) GetRunOnName(ctx context.Context, name string) (model.BacktestRun, error) {
	query := `SELECT` + runColumns + ` FROM backtest_run WHERE name = ?`

	run, err := scanRun(r.getQuerier().QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return model.BacktestRun{}, apperrors.ErrRunNotFound
	}
	if err != nil {
		return model.BacktestRun{}, fmt.Errorf("failed to query backtest run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs matching the filter, newest first. Returns an
// empty slice if nothing matches.
func (r *BacktestRunRepository) ListRuns(ctx context.Context, filter model.BacktestRunFilter) ([]model.BacktestRun, error) {
	query := `SELECT` + runColumns + ` FROM backtest_run WHERE 1=1`
	var args []any

	if filter.Profile != "" {
		query += " AND profile = ?"
		args = append(args, filter.Profile)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest_run table: %w", err)
	}
	defer rows.Close()

	runs := []model.BacktestRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backtest_run table results: %w", err)
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backtest_run table: %w", err)
	}
	return runs, nil
}

// UpdateStatus transitions a run's lifecycle status.
func (r *BacktestRunRepository) UpdateStatus(ctx context.Context, runID string, status model.RunStatus) error {
	result, err := r.getQuerier().ExecContext(ctx,
		`UPDATE backtest_run SET status = ? WHERE id = ?`, string(status), runID)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrRunNotFound
	}
	return nil
}

// StoreResult writes the finished run's metrics, curves, and snapshot log,
// and marks the run done.
func (r *BacktestRunRepository) StoreResult(ctx context.Context, run *model.BacktestRun) error {
	query := `
		UPDATE backtest_run SET
			status = ?,
			total_return = ?, cagr = ?, sharpe_ratio = ?, sortino_ratio = ?,
			max_drawdown = ?, max_drawdown_duration = ?, calmar_ratio = ?, annual_volatility = ?,
			alpha = ?, beta = ?, benchmark_return = ?, outperformance = ?,
			final_value = ?, n_trading_days = ?, n_rebalances = ?, n_stocks_avg = ?,
			equity_curve = ?, benchmark_curve = ?, snapshots = ?, duration_seconds = ?
		WHERE id = ?
	`
	result, err := r.getQuerier().ExecContext(ctx, query,
		string(model.RunStatusDone),
		run.TotalReturn, run.CAGR, run.SharpeRatio, run.SortinoRatio,
		run.MaxDrawdown, run.MaxDrawdownDuration, run.CalmarRatio, run.AnnualVolatility,
		run.Alpha, run.Beta, run.BenchmarkReturn, run.Outperformance,
		run.FinalValue, run.NTradingDays, run.NRebalances, run.NStocksAvg,
		run.EquityCurveJSON, run.BenchmarkCurveJSON, run.SnapshotsJSON, run.DurationSeconds,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to store run result: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrRunNotFound
	}
	return nil
}

// MarkFailed marks a run failed with an error message.
func (r *BacktestRunRepository) MarkFailed(ctx context.Context, runID, message string, duration float64) error {
	result, err := r.getQuerier().ExecContext(ctx,
		`UPDATE backtest_run SET status = ?, error_message = ?, duration_seconds = ? WHERE id = ?`,
		string(model.RunStatusFailed), message, duration, runID)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrRunNotFound
	}
	return nil
}

// DeleteRun removes a run row.
func (r *BacktestRunRepository) DeleteRun(ctx context.Context, runID string) error {
	result, err := r.getQuerier().ExecContext(ctx, `DELETE FROM backtest_run WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrRunNotFound
	}
	return nil
}

// GetProfileStats aggregates finished runs per profile: run count, average
// return, Sharpe, and drawdown, plus the best run by total return.
func (r *BacktestRunRepository) GetProfileStats(ctx context.Context) ([]model.ProfileStats, error) {
	query := `
		SELECT profile, COUNT(*), AVG(total_return), AVG(sharpe_ratio), AVG(max_drawdown)
		FROM backtest_run
		WHERE status = 'done'
		GROUP BY profile
		ORDER BY profile
	`
	rows, err := r.getQuerier().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query profile stats: %w", err)
	}
	defer rows.Close()

	stats := []model.ProfileStats{}
	for rows.Next() {
		var s model.ProfileStats
		if err := rows.Scan(&s.Profile, &s.Runs, &s.AvgTotalReturn, &s.AvgSharpe, &s.AvgMaxDrawdown); err != nil {
			return nil, fmt.Errorf("failed to scan profile stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile stats: %w", err)
	}

	best := `
		SELECT id, total_return FROM backtest_run
		WHERE status = 'done' AND profile = ? AND total_return IS NOT NULL
		ORDER BY total_return DESC, created_at ASC
		LIMIT 1
	`
	for i := range stats {
		var id string
		var ret float64
		err := r.getQuerier().QueryRowContext(ctx, best, stats[i].Profile).Scan(&id, &ret)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query best run: %w", err)
		}
		stats[i].BestRunID = id
		stats[i].BestRunReturn = &ret
	}
	return stats, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.BacktestRun, error) {
	var run model.BacktestRun
	var status, startDate, endDate string
	var equity, benchmark, snapshots, errMsg sql.NullString
	var duration sql.NullFloat64
	var createdAt sql.NullString

	err := row.Scan(
		&run.ID, &run.Name, &status, &run.Profile, &startDate, &endDate,
		&run.InitialCapital, &run.RebalanceMonths,
		&run.TotalReturn, &run.CAGR, &run.SharpeRatio, &run.SortinoRatio,
		&run.MaxDrawdown, &run.MaxDrawdownDuration, &run.CalmarRatio, &run.AnnualVolatility,
		&run.Alpha, &run.Beta, &run.BenchmarkReturn, &run.Outperformance,
		&run.FinalValue, &run.NTradingDays, &run.NRebalances, &run.NStocksAvg,
		&equity, &benchmark, &snapshots, &errMsg, &duration, &createdAt,
	)
	if err != nil {
		return model.BacktestRun{}, err
	}

	run.Status = model.RunStatus(status)
	run.EquityCurveJSON = equity.String
	run.BenchmarkCurveJSON = benchmark.String
	run.SnapshotsJSON = snapshots.String
	run.ErrorMessage = errMsg.String
	run.DurationSeconds = duration.Float64

	if run.StartDate, err = ParseTime(startDate); err != nil {
		return model.BacktestRun{}, err
	}
	if run.EndDate, err = ParseTime(endDate); err != nil {
		return model.BacktestRun{}, err
	}
	if createdAt.Valid {
		if t, err := parseTimestamp(createdAt.String); err == nil {
			run.CreatedAt = t
		}
	}
	return run, nil
}

// parseTimestamp handles the DATETIME formats sqlite emits for
// CURRENT_TIMESTAMP defaults.
func parseTimestamp(str string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z07:00"} {
		if t, err := time.Parse(layout, str); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp %q", str)
}
