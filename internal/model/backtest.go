package model

import (
	"math"
	"time"
)

// Allocation maps ticker to portfolio weight. Weights are non-negative and
// sum to 1.0; an empty allocation signals "hold cash". Each rebalance
// produces a fresh allocation that entirely supersedes the previous one.
type Allocation map[string]float64

// Sum returns the total weight of the allocation.
func (a Allocation) Sum() float64 {
	var total float64
	for _, w := range a {
		total += w
	}
	return total
}

// Clone returns an independent copy of the allocation.
func (a Allocation) Clone() Allocation {
	out := make(Allocation, len(a))
	for t, w := range a {
		out[t] = w
	}
	return out
}

// Normalized returns a copy scaled so the weights sum to 1.0. An empty or
// zero-sum allocation is returned unchanged.
func (a Allocation) Normalized() Allocation {
	total := a.Sum()
	if total <= 0 {
		return a.Clone()
	}
	out := make(Allocation, len(a))
	for t, w := range a {
		out[t] = w / total
	}
	return out
}

// Snapshot records the state of the portfolio at one rebalance event.
// Snapshots form an append-only log ordered by rebalance order.
type Snapshot struct {
	Date           time.Time  `json:"date"`
	Allocations    Allocation `json:"allocations"`
	PortfolioValue float64    `json:"portfolio_value"`
	StockCount     int        `json:"n_stocks"`
	Note           string     `json:"note,omitempty"`
}

// EquityPoint is one daily observation of total portfolio (or benchmark)
// value.
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Curve is an ordered daily value series, one point per trading day.
// Append-only during a run, immutable once the run completes.
type Curve []EquityPoint

// Values returns the value column of the curve.
func (c Curve) Values() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Value
	}
	return out
}

// Dates returns the date column of the curve formatted as YYYY-MM-DD.
func (c Curve) Dates() []string {
	out := make([]string, len(c))
	for i, p := range c {
		out[i] = p.Date.Format("2006-01-02")
	}
	return out
}

// Returns computes the daily percentage-return series of the curve.
// A zero previous value contributes a zero return rather than infinity.
func (c Curve) Returns() []float64 {
	if len(c) < 2 {
		return nil
	}
	out := make([]float64, 0, len(c)-1)
	for i := 1; i < len(c); i++ {
		prev := c[i-1].Value
		if prev == 0 || math.IsNaN(prev) {
			out = append(out, 0)
			continue
		}
		out = append(out, c[i].Value/prev-1)
	}
	return out
}

// RunStatus is the lifecycle state of a backtest run.
type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusDone    RunStatus = "done"
	RunStatusFailed  RunStatus = "failed"
)

// BacktestRun is the persisted record of one backtest: its parameters, its
// lifecycle status, per-metric result columns, and the serialized curves
// and snapshot log.
type BacktestRun struct {
	ID              string
	Name            string
	Status          RunStatus
	Profile         string
	StartDate       time.Time
	EndDate         time.Time
	InitialCapital  float64
	RebalanceMonths int

	TotalReturn         *float64
	CAGR                *float64
	SharpeRatio         *float64
	SortinoRatio        *float64
	MaxDrawdown         *float64
	MaxDrawdownDuration *int
	CalmarRatio         *float64
	AnnualVolatility    *float64
	Alpha               *float64
	Beta                *float64
	BenchmarkReturn     *float64
	Outperformance      *float64
	FinalValue          *float64
	NTradingDays        *int
	NRebalances         *int
	NStocksAvg          *float64

	EquityCurveJSON    string
	BenchmarkCurveJSON string
	SnapshotsJSON      string

	ErrorMessage    string
	DurationSeconds float64
	CreatedAt       time.Time
}

// BacktestRunFilter narrows ListRuns queries.
type BacktestRunFilter struct {
	Profile string
	Status  RunStatus
	Limit   int
}
