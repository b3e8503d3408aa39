package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/marketdata"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/metrics"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/pipeline"
)

// ProgressFunc receives human-readable progress updates during a run.
type ProgressFunc func(message string, percent float64)

// RunConfig holds the parameters of one backtest run.
type RunConfig struct {
	Start           time.Time
	End             time.Time
	InitialCapital  float64
	RebalanceMonths int
	RiskFreeRate    float64
}

// Validate checks the run parameters.
func (c RunConfig) Validate() error {
	if !c.Start.Before(c.End) {
		return apperrors.ErrInvalidDateRange
	}
	if c.InitialCapital <= 0 {
		return apperrors.ErrInvalidCapital
	}
	if c.RebalanceMonths < 1 {
		return fmt.Errorf("rebalance cadence must be at least one month: %w", apperrors.ErrInvalidDateRange)
	}
	return nil
}

// Disclaimer enumerates the known approximations behind every result. It
// accompanies each finished run so consumers do not mistake the replay for
// a full market simulation.
const Disclaimer = "Known limitations: " +
	"(1) Fundamentals are point-in-time from quarterly reports; shares outstanding " +
	"is the current figure and drifts slightly over time. " +
	"(2) Forward EPS estimates are not available historically; trailing year-over-year " +
	"earnings growth is used as a proxy. " +
	"(3) Sector behavior is derived from the prices of the selected universe, not from " +
	"index-level sector data. " +
	"(4) Trades fill at daily closes with no transaction costs, slippage, or taxes."

// Result is the complete output of a finished run.
type Result struct {
	Profile         string
	Start           time.Time
	End             time.Time
	InitialCapital  float64
	RebalanceMonths int

	EquityCurve    model.Curve
	BenchmarkCurve model.Curve
	Snapshots      []model.Snapshot
	Metrics        model.PerformanceMetrics

	// MetricsNote is set when Metrics is a zero value because the run was
	// too short for return statistics.
	MetricsNote string

	NRebalances int
	NStocksAvg  float64
}

// Engine replays one backtest run day by day. It is single threaded by
// design: state mutations happen strictly in trading-day order, and
// cancellation is only honored between day iterations.
type Engine struct {
	data     *marketdata.Dataset
	selector *pipeline.Selector
	profile  pipeline.Profile
	cfg      RunConfig
	progress ProgressFunc
}

// NewEngine creates an engine for a single run over a materialized dataset.
func NewEngine(data *marketdata.Dataset, selector *pipeline.Selector, profile pipeline.Profile, cfg RunConfig, progress ProgressFunc) *Engine {
	if progress == nil {
		progress = func(string, float64) {}
	}
	return &Engine{data: data, selector: selector, profile: profile, cfg: cfg, progress: progress}
}

// Run executes the daily loop and returns the finished result. The context
// is checked between day iterations only; a day in progress always
// completes.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	days := e.data.TradingDays(e.cfg.Start, e.cfg.End)
	if len(days) == 0 {
		return nil, fmt.Errorf("window %s..%s: %w",
			e.cfg.Start.Format("2006-01-02"), e.cfg.End.Format("2006-01-02"),
			apperrors.ErrBenchmarkUnavailable)
	}

	schedule := rebalanceSchedule(e.cfg.Start, e.cfg.End, e.cfg.RebalanceMonths)
	state := newPortfolioState(e.cfg.InitialCapital)

	result := &Result{
		Profile:         e.profile.Name,
		Start:           e.cfg.Start,
		End:             e.cfg.End,
		InitialCapital:  e.cfg.InitialCapital,
		RebalanceMonths: e.cfg.RebalanceMonths,
	}

	nextScheduled := 0
	var stockCountSum int

	for i, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state.updatePeaks(e.data, day)

		if i%riskCadenceDays == 0 {
			e.applyRiskOverlay(state, day, i)
		}

		scheduled := nextScheduled < len(schedule) && !day.Before(schedule[nextScheduled])
		forced := state.forceRebalance

		if scheduled || forced {
			e.progress(fmt.Sprintf("rebalance %d at %s", result.NRebalances+1, day.Format("2006-01-02")),
				10+80*float64(i)/float64(len(days)))

			snapshot := e.rebalance(ctx, state, day)
			result.Snapshots = append(result.Snapshots, snapshot)
			result.NRebalances++
			stockCountSum += snapshot.StockCount

			if scheduled {
				nextScheduled++
			}
			if forced {
				state.lastForcedRebalance = i
				state.peakValue = state.MarkToMarket(e.data, day)
			}
			state.forceRebalance = false
		}

		value := state.MarkToMarket(e.data, day)
		result.EquityCurve = append(result.EquityCurve, model.EquityPoint{Date: day, Value: value})
		if value > state.peakValue {
			state.peakValue = value
		}
	}

	result.BenchmarkCurve = e.benchmarkCurve(days)
	if result.NRebalances > 0 {
		result.NStocksAvg = float64(stockCountSum) / float64(result.NRebalances)
	}

	e.progress("computing performance metrics", 92)
	m, err := metrics.Compute(result.EquityCurve, result.BenchmarkCurve, e.cfg.RiskFreeRate)
	if err != nil {
		result.MetricsNote = fmt.Sprintf("metrics omitted: %v", err)
		e.progress(result.MetricsNote, 95)
	} else {
		result.Metrics = m
	}

	e.progress("backtest finished", 100)
	return result, nil
}

// rebalance marks holdings to market, runs the selection pipeline with the
// day as cutoff, and re-buys per the new weights. Pipeline failure falls
// back to a single benchmark position, and to holding cash when even the
// benchmark has no usable price.
func (e *Engine) rebalance(ctx context.Context, state *PortfolioState, day time.Time) model.Snapshot {
	value := state.MarkToMarket(e.data, day)

	outcome, err := e.selector.Run(ctx, day, e.profile)

	var alloc model.Allocation
	var note string
	switch {
	case err == nil:
		alloc = pipeline.EnsureMinPositions(outcome.Allocation, outcome.Finalists)
		alloc = pipeline.ApplySectorCap(alloc, e.data.Sector)
	case outcome != nil && len(outcome.Finalists) > 0:
		// Survivors existed but every weighting strategy failed; fall
		// back to a single benchmark position rather than sitting out.
		if _, ok := e.data.PriceAsOf(e.data.Benchmark(), day); ok {
			alloc = model.Allocation{e.data.Benchmark(): 1.0}
			note = "optimization failed, fell back to benchmark"
		} else {
			note = "optimization failed, holding cash"
		}
	default:
		note = "selection failed, holding cash"
	}

	if len(alloc) == 0 {
		state.Positions = make(map[string]*Position)
		state.exits = make(map[string]exitRecord)
		state.Cash = value
		return model.Snapshot{
			Date:           day,
			Allocations:    model.Allocation{},
			PortfolioValue: round2(value),
			Note:           note,
		}
	}

	state.rebalanceTo(e.data, day, alloc, value)
	return model.Snapshot{
		Date:           day,
		Allocations:    alloc,
		PortfolioValue: round2(value),
		StockCount:     len(alloc),
		Note:           note,
	}
}

// benchmarkCurve scales the benchmark's closes over the run's trading days
// to the initial capital. It is comparison-only and never affects sizing.
func (e *Engine) benchmarkCurve(days []time.Time) model.Curve {
	var curve model.Curve
	var base float64
	for _, day := range days {
		price, ok := e.data.PriceAsOf(e.data.Benchmark(), day)
		if !ok {
			continue
		}
		if base == 0 {
			base = price
		}
		curve = append(curve, model.EquityPoint{
			Date:  day,
			Value: price / base * e.cfg.InitialCapital,
		})
	}
	return curve
}

// rebalanceSchedule generates the scheduled rebalance dates: the start date
// and every cadence interval after it within the window.
func rebalanceSchedule(start, end time.Time, months int) []time.Time {
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, months, 0) {
		out = append(out, d)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
