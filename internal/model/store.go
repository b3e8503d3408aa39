package model

import "time"

// TickerInfo is the slow-changing metadata row for one symbol. IsValid marks
// symbols that failed download permanently so refreshes skip them.
type TickerInfo struct {
	ID                string    `json:"id"`
	Ticker            string    `json:"ticker"`
	ShortName         string    `json:"short_name,omitempty"`
	Sector            string    `json:"sector,omitempty"`
	Industry          string    `json:"industry,omitempty"`
	SharesOutstanding *float64  `json:"shares_outstanding,omitempty"`
	LastUpdated       time.Time `json:"last_updated"`
	IsValid           bool      `json:"is_valid"`
}

// DatasetMeta is one content-addressed cache entry: a dataset identified by
// the hash of its ticker set, date range, and schema version. Cached data is
// served until ExpiresAt passes, then re-downloaded.
type DatasetMeta struct {
	ID         string    `json:"id"`
	ContentKey string    `json:"content_key"`
	Tickers    string    `json:"tickers"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ProviderConfig holds the market-data vendor settings. The API token is
// stored encrypted and only decrypted when a download starts.
type ProviderConfig struct {
	ID                 string    `json:"id"`
	APIToken           string    `json:"-"`
	RateLimitPerMinute int       `json:"rate_limit_per_minute"`
	Enabled            bool      `json:"enabled"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ProfileStats aggregates finished runs for one profile.
type ProfileStats struct {
	Profile        string   `json:"profile"`
	Runs           int      `json:"runs"`
	AvgTotalReturn *float64 `json:"avg_total_return,omitempty"`
	AvgSharpe      *float64 `json:"avg_sharpe,omitempty"`
	AvgMaxDrawdown *float64 `json:"avg_max_drawdown,omitempty"`
	BestRunID      string   `json:"best_run_id,omitempty"`
	BestRunReturn  *float64 `json:"best_run_return,omitempty"`
}
