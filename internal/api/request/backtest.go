// Package request defines the JSON request bodies accepted by the API.
package request

// CreateBacktestRequest represents the request body for starting a backtest.
type CreateBacktestRequest struct {
	Name            string   `json:"name"`
	Profile         string   `json:"profile"`
	Tickers         []string `json:"tickers"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	InitialCapital  float64  `json:"initial_capital"`
	RebalanceMonths int      `json:"rebalance_months"`
}

// ProviderTokenRequest represents the request body for storing the
// market-data provider token.
type ProviderTokenRequest struct {
	APIToken           string `json:"api_token"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`
	Enabled            bool   `json:"enabled"`
}
