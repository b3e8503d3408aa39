package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

// WeekdaysBetween returns every weekday from start through end inclusive,
// truncated to UTC midnight. Weekends are skipped; market holidays are not
// modeled in test data.
func WeekdaysBetween(start, end time.Time) []time.Time {
	var out []time.Time
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for !day.After(end) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

// GeneratePriceSeries builds a daily close series with a constant per-day
// drift and a fixed volume, one point per supplied date.
func GeneratePriceSeries(ticker string, dates []time.Time, startPrice, drift float64) model.PriceSeries {
	points := make([]model.PricePoint, len(dates))
	price := startPrice
	for i, d := range dates {
		points[i] = model.PricePoint{Date: d, Close: price, Volume: 2e6}
		price *= 1 + drift
	}
	return model.PriceSeries{Ticker: ticker, Points: points}
}

// GenerateIncomeReports builds n quarterly income statements ending just
// before anchor, oldest first, with mildly growing line items.
func GenerateIncomeReports(anchor time.Time, n int) []model.IncomeReport {
	out := make([]model.IncomeReport, n)
	for i := 0; i < n; i++ {
		quartersBack := n - i
		net := 1e9 * (1 + 0.05*float64(i))
		revenue := 5e9 * (1 + 0.04*float64(i))
		op := 1.5e9 * (1 + 0.05*float64(i))
		out[i] = model.IncomeReport{
			ReportDate:      anchor.AddDate(0, -3*quartersBack, 0),
			NetIncome:       &net,
			TotalRevenue:    &revenue,
			OperatingIncome: &op,
		}
	}
	return out
}

// GenerateBalanceReports builds n quarterly balance sheets ending just
// before anchor, oldest first.
func GenerateBalanceReports(anchor time.Time, n int) []model.BalanceReport {
	out := make([]model.BalanceReport, n)
	for i := 0; i < n; i++ {
		quartersBack := n - i
		equity := 2e10 * (1 + 0.02*float64(i))
		debt := 5e9
		out[i] = model.BalanceReport{
			ReportDate:         anchor.AddDate(0, -3*quartersBack, 0),
			StockholdersEquity: &equity,
			TotalDebt:          &debt,
		}
	}
	return out
}

// BacktestRunBuilder provides a fluent interface for inserting test run rows
// directly, bypassing the service lifecycle.
//
// Example usage:
//
//	run := testutil.NewBacktestRun().
//	    WithProfile("balanced").
//	    Done(12.5, 1.1).
//	    Build(t, db)
type BacktestRunBuilder struct {
	run model.BacktestRun
}

// NewBacktestRun creates a BacktestRunBuilder with sensible defaults.
func NewBacktestRun() *BacktestRunBuilder {
	return &BacktestRunBuilder{
		run: model.BacktestRun{
			ID:              uuid.New().String(),
			Name:            "run_" + uuid.New().String()[:8],
			Status:          model.RunStatusPending,
			Profile:         "balanced",
			StartDate:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:         time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			InitialCapital:  10000,
			RebalanceMonths: 3,
		},
	}
}

// WithName overrides the generated run name.
func (b *BacktestRunBuilder) WithName(name string) *BacktestRunBuilder {
	b.run.Name = name
	return b
}

// WithProfile sets the run's profile.
func (b *BacktestRunBuilder) WithProfile(profile string) *BacktestRunBuilder {
	b.run.Profile = profile
	return b
}

// WithStatus sets the run's lifecycle status.
func (b *BacktestRunBuilder) WithStatus(status model.RunStatus) *BacktestRunBuilder {
	b.run.Status = status
	return b
}

// Done marks the run finished with the given headline metrics.
func (b *BacktestRunBuilder) Done(totalReturn, sharpe float64) *BacktestRunBuilder {
	b.run.Status = model.RunStatusDone
	maxDD := -10.0
	final := b.run.InitialCapital * (1 + totalReturn/100)
	b.run.TotalReturn = &totalReturn
	b.run.SharpeRatio = &sharpe
	b.run.MaxDrawdown = &maxDD
	b.run.FinalValue = &final
	return b
}

// Build inserts the run row and returns it.
func (b *BacktestRunBuilder) Build(t *testing.T, db *sql.DB) model.BacktestRun {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO backtest_run (
			id, name, status, profile, start_date, end_date,
			initial_capital, rebalance_months,
			total_return, sharpe_ratio, max_drawdown, final_value,
			error_message, duration_seconds
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.run.ID, b.run.Name, string(b.run.Status), b.run.Profile,
		b.run.StartDate.Format("2006-01-02"), b.run.EndDate.Format("2006-01-02"),
		b.run.InitialCapital, b.run.RebalanceMonths,
		b.run.TotalReturn, b.run.SharpeRatio, b.run.MaxDrawdown, b.run.FinalValue,
		b.run.ErrorMessage, b.run.DurationSeconds,
	)
	if err != nil {
		t.Fatalf("Failed to insert test run: %v", err)
	}
	return b.run
}
