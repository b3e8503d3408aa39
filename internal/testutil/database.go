package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite" // Test Package
)

// SetupTestDB creates an in-memory SQLite database for testing.
// The database is automatically cleaned up when the test completes.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testutil.SetupTestDB(t)
//	    // db is ready to use with schema created
//	}
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// In-memory database (destroyed when connection closes)
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	// Configure SQLite for testing
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA timezone = 'UTC'",
		"PRAGMA journal_mode = MEMORY", // Faster for tests
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			t.Fatalf("Failed to set pragma: %v", err)
		}
	}

	// Create schema
	if err := createTestSchema(db); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	// Cleanup when test ends
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// createTestSchema creates all database tables for testing.
// Schema is synchronized with the production database schema.
//
//nolint:funlen // Database schema DDL
func createTestSchema(db *sql.DB) error {
	schema := `
		-- Ticker info table
		CREATE TABLE ticker_info (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			ticker VARCHAR(10) NOT NULL UNIQUE,
			short_name VARCHAR(255),
			sector VARCHAR(100),
			industry VARCHAR(100),
			shares_outstanding FLOAT,
			last_updated DATETIME,
			is_valid BOOLEAN
		);

		-- Price history table
		CREATE TABLE price_history (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			ticker VARCHAR(10) NOT NULL,
			date DATE NOT NULL,
			close FLOAT NOT NULL,
			volume FLOAT NOT NULL,
			CONSTRAINT unique_ticker_date UNIQUE (ticker, date)
		);

		-- Fundamental report table
		CREATE TABLE fundamental_report (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			ticker VARCHAR(10) NOT NULL,
			report_date DATE NOT NULL,
			report_type VARCHAR(10) NOT NULL,
			net_income FLOAT,
			total_revenue FLOAT,
			operating_income FLOAT,
			stockholders_equity FLOAT,
			total_debt FLOAT,
			CONSTRAINT unique_ticker_report UNIQUE (ticker, report_date, report_type)
		);

		-- Dividend payment table
		CREATE TABLE dividend_payment (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			ticker VARCHAR(10) NOT NULL,
			date DATE NOT NULL,
			amount FLOAT NOT NULL,
			CONSTRAINT unique_ticker_dividend UNIQUE (ticker, date)
		);

		-- Dataset metadata table (content-addressed cache entries)
		CREATE TABLE dataset_meta (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			content_key VARCHAR(64) NOT NULL UNIQUE,
			tickers TEXT NOT NULL,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL
		);

		-- Backtest run table
		CREATE TABLE backtest_run (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			status VARCHAR(10) NOT NULL,
			profile VARCHAR(20) NOT NULL,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			initial_capital FLOAT NOT NULL,
			rebalance_months INTEGER NOT NULL,
			total_return FLOAT,
			cagr FLOAT,
			sharpe_ratio FLOAT,
			sortino_ratio FLOAT,
			max_drawdown FLOAT,
			max_drawdown_duration INTEGER,
			calmar_ratio FLOAT,
			annual_volatility FLOAT,
			alpha FLOAT,
			beta FLOAT,
			benchmark_return FLOAT,
			outperformance FLOAT,
			final_value FLOAT,
			n_trading_days INTEGER,
			n_rebalances INTEGER,
			n_stocks_avg FLOAT,
			equity_curve TEXT,
			benchmark_curve TEXT,
			snapshots TEXT,
			error_message TEXT,
			duration_seconds FLOAT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		-- Provider configuration table
		CREATE TABLE provider_config (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			api_token VARCHAR(500) NOT NULL,
			rate_limit_per_minute INTEGER NOT NULL,
			enabled BOOLEAN NOT NULL,
			created_at DATETIME DEFAULT (CURRENT_TIMESTAMP),
			updated_at DATETIME DEFAULT (CURRENT_TIMESTAMP)
		);

		-- Indexes for performance
		CREATE INDEX ix_price_history_ticker ON price_history(ticker);
		CREATE INDEX ix_price_history_ticker_date ON price_history(ticker, date);
		CREATE INDEX ix_fundamental_report_ticker ON fundamental_report(ticker);
		CREATE INDEX ix_fundamental_report_ticker_date ON fundamental_report(ticker, report_date);
		CREATE INDEX ix_dividend_payment_ticker_date ON dividend_payment(ticker, date);
		CREATE INDEX ix_dataset_meta_expires_at ON dataset_meta(expires_at);
		CREATE INDEX ix_backtest_run_profile ON backtest_run(profile);
		CREATE INDEX ix_backtest_run_status ON backtest_run(status);
		CREATE INDEX ix_backtest_run_created_at ON backtest_run(created_at);
	`

	_, err := db.Exec(schema)
	return err
}
