package model

// PerformanceMetrics summarizes a completed run. Percentage metrics are
// expressed in percent (12.34 means 12.34%) and rounded to two decimals.
// Benchmark-relative fields are nil when the benchmark overlap is too
// short to regress against.
type PerformanceMetrics struct {
	TotalReturn         float64  `json:"total_return"`
	CAGR                float64  `json:"cagr"`
	AnnualVolatility    float64  `json:"annual_volatility"`
	SharpeRatio         float64  `json:"sharpe_ratio"`
	SortinoRatio        float64  `json:"sortino_ratio"`
	MaxDrawdown         float64  `json:"max_drawdown"`
	MaxDrawdownDuration int      `json:"max_drawdown_duration"`
	CalmarRatio         float64  `json:"calmar_ratio"`
	Beta                *float64 `json:"beta,omitempty"`
	Alpha               *float64 `json:"alpha,omitempty"`
	BenchmarkReturn     *float64 `json:"benchmark_return,omitempty"`
	Outperformance      *float64 `json:"outperformance,omitempty"`
	FinalValue          float64  `json:"final_value"`
	NTradingDays        int      `json:"n_trading_days"`
	PeriodYears         float64  `json:"period_years"`
}
