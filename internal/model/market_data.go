package model

import "time"

// PricePoint is a single observation in a ticker's daily price history.
type PricePoint struct {
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries holds the full daily close/volume history for one ticker,
// sorted by date ascending. Series are immutable once a dataset is built;
// all point-in-time lookups slice them by date.
type PriceSeries struct {
	Ticker string
	Points []PricePoint
}

// IncomeReport is one quarterly income statement. Line items are pointers
// because a vendor report may carry any subset of them.
type IncomeReport struct {
	ReportDate      time.Time `json:"reportDate"`
	NetIncome       *float64  `json:"netIncome,omitempty"`
	TotalRevenue    *float64  `json:"totalRevenue,omitempty"`
	OperatingIncome *float64  `json:"operatingIncome,omitempty"`
}

// BalanceReport is one quarterly balance sheet snapshot.
type BalanceReport struct {
	ReportDate         time.Time `json:"reportDate"`
	StockholdersEquity *float64  `json:"stockholdersEquity,omitempty"`
	TotalDebt          *float64  `json:"totalDebt,omitempty"`
}

// DividendPayment is a single historical dividend distribution.
type DividendPayment struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// FundamentalHistory is everything we store about one ticker's fundamentals:
// quarterly report series for point-in-time lookups, the dividend payment
// history, and slow-changing metadata. Reports are immutable once downloaded.
type FundamentalHistory struct {
	Ticker            string            `json:"ticker"`
	SharesOutstanding *float64          `json:"sharesOutstanding,omitempty"`
	Sector            string            `json:"sector,omitempty"`
	Industry          string            `json:"industry,omitempty"`
	ShortName         string            `json:"shortName,omitempty"`
	Income            []IncomeReport    `json:"income,omitempty"`
	Balance           []BalanceReport   `json:"balance,omitempty"`
	Dividends         []DividendPayment `json:"dividends,omitempty"`
}

// EarningsGrowthBasis labels which fallback tier produced the earnings
// growth figure. Year-over-year is the primary metric; quarter-over-quarter
// is a noisier proxy used when fewer than five quarterly reports exist.
type EarningsGrowthBasis string

const (
	GrowthBasisYoY EarningsGrowthBasis = "yoy"
	GrowthBasisQoQ EarningsGrowthBasis = "qoq"
)

// FundamentalMetrics holds derived point-in-time fundamentals for a single
// ticker at a single cutoff date. Every metric is a pointer: nil means the
// required inputs were not available as of the cutoff, and downstream
// filters must treat that as "criterion not applicable" rather than a fail.
type FundamentalMetrics struct {
	MarketCap       *float64
	AverageVolume   *float64
	ReturnOnEquity  *float64
	NetMargin       *float64
	OperatingMargin *float64
	DebtToEquity    *float64 // percentage-scaled: 100 = 1.0x debt/equity
	DividendYield   *float64
	EarningsGrowth  *float64
	GrowthBasis     EarningsGrowthBasis

	// Approximate flags TTM figures annualized from fewer than four
	// quarterly reports. These are noisier than a true TTM and any
	// comparison against them should say so.
	Approximate bool

	Sector   string
	Industry string
}

// Empty reports whether no derived metric could be computed at all.
func (m FundamentalMetrics) Empty() bool {
	return m.MarketCap == nil && m.AverageVolume == nil &&
		m.ReturnOnEquity == nil && m.NetMargin == nil &&
		m.OperatingMargin == nil && m.DebtToEquity == nil &&
		m.DividendYield == nil && m.EarningsGrowth == nil
}
