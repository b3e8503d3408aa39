// Package metrics computes performance statistics from completed equity
// curves. All ratios guard their denominators and report 0 instead of
// infinity or NaN; percentage metrics are rounded to two decimals.
package metrics

import (
	"math"
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

const (
	tradingDaysPerYear = 252
	daysPerYear        = 365.25

	// minBenchmarkOverlap is the overlapping-date count below which
	// benchmark-relative metrics are omitted.
	minBenchmarkOverlap = 10
)

// Compute derives performance metrics from an equity curve, optionally
// comparing against a benchmark curve. The benchmark fields stay nil when
// the benchmark is missing or overlaps on too few dates. Curves with fewer
// than three points cannot produce return statistics.
func Compute(equity, benchmark model.Curve, riskFreeRate float64) (model.PerformanceMetrics, error) {
	var m model.PerformanceMetrics

	returns := equity.Returns()
	if len(returns) < 2 {
		return m, apperrors.ErrInsufficientHistory
	}

	first, last := equity[0].Value, equity[len(equity)-1].Value
	totalReturn := last/first - 1

	nDays := equity[len(equity)-1].Date.Sub(equity[0].Date).Hours() / 24
	nYears := nDays / daysPerYear
	var cagr float64
	if nYears > 0 && first > 0 {
		cagr = math.Pow(last/first, 1/nYears) - 1
	}

	std := sampleStd(returns)
	annualVol := std * math.Sqrt(tradingDaysPerYear)

	dailyRF := riskFreeRate / tradingDaysPerYear
	meanReturn := mean(returns)

	var sharpe float64
	if std > 0 {
		sharpe = (meanReturn - dailyRF) / std * math.Sqrt(tradingDaysPerYear)
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	var sortino float64
	if downsideStd := sampleStd(downside); downsideStd > 0 {
		sortino = (meanReturn - dailyRF) / downsideStd * math.Sqrt(tradingDaysPerYear)
	}

	maxDrawdown, maxDuration := drawdown(returns)

	var calmar float64
	if maxDrawdown != 0 {
		calmar = cagr / math.Abs(maxDrawdown)
	}

	m = model.PerformanceMetrics{
		TotalReturn:         round2(totalReturn * 100),
		CAGR:                round2(cagr * 100),
		AnnualVolatility:    round2(annualVol * 100),
		SharpeRatio:         round2(sharpe),
		SortinoRatio:        round2(sortino),
		MaxDrawdown:         round2(maxDrawdown * 100),
		MaxDrawdownDuration: maxDuration,
		CalmarRatio:         round2(calmar),
		FinalValue:          round2(last),
		NTradingDays:        len(returns),
		PeriodYears:         math.Round(nYears*10) / 10,
	}

	if len(benchmark) > 2 {
		compareBenchmark(&m, equity, benchmark, totalReturn, dailyRF)
	}
	return m, nil
}

// compareBenchmark fills in beta, alpha, benchmark return, and
// outperformance when enough dates overlap.
func compareBenchmark(m *model.PerformanceMetrics, equity, benchmark model.Curve, totalReturn, dailyRF float64) {
	benchReturnsByDate := make(map[time.Time]float64, len(benchmark)-1)
	benchReturns := benchmark.Returns()
	for i, r := range benchReturns {
		benchReturnsByDate[benchmark[i+1].Date] = r
	}

	equityReturns := equity.Returns()
	var port, bench []float64
	for i, r := range equityReturns {
		if br, ok := benchReturnsByDate[equity[i+1].Date]; ok {
			port = append(port, r)
			bench = append(bench, br)
		}
	}
	if len(port) <= minBenchmarkOverlap {
		return
	}

	beta := 1.0
	if benchVar := sampleVariance(bench); benchVar != 0 {
		beta = sampleCovariance(port, bench) / benchVar
	}

	alpha := (mean(port) - dailyRF - beta*(mean(bench)-dailyRF)) * tradingDaysPerYear

	benchTotal := benchmark[len(benchmark)-1].Value/benchmark[0].Value - 1

	m.Beta = f64(round2(beta))
	m.Alpha = f64(round2(alpha * 100))
	m.BenchmarkReturn = f64(round2(benchTotal * 100))
	m.Outperformance = f64(round2((totalReturn - benchTotal) * 100))
}

// drawdown returns the deepest peak-to-trough decline (negative) and the
// longest contiguous run of trading days spent below a running peak. A
// monotonically rising curve reports 0 for both.
func drawdown(returns []float64) (float64, int) {
	cumulative := 1.0
	peak := 1.0
	var maxDD float64
	var maxRun, run int
	for _, r := range returns {
		cumulative *= 1 + r
		if cumulative > peak {
			peak = cumulative
		}
		dd := cumulative/peak - 1
		if dd < maxDD {
			maxDD = dd
		}
		if dd < 0 {
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 0
		}
	}
	return maxDD, maxRun
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func f64(v float64) *float64 { return &v }

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sampleVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return ss / float64(len(values)-1)
}

func sampleStd(values []float64) float64 {
	return math.Sqrt(sampleVariance(values))
}

func sampleCovariance(a, b []float64) float64 {
	if len(a) < 2 || len(a) != len(b) {
		return 0
	}
	ma, mb := mean(a), mean(b)
	var ss float64
	for i := range a {
		ss += (a[i] - ma) * (b[i] - mb)
	}
	return ss / float64(len(a)-1)
}
