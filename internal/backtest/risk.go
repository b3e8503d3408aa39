package backtest

import (
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/marketdata"
)

const (
	// riskCadenceDays runs the overlay every Nth trading day to limit
	// overtrading.
	riskCadenceDays = 5

	// Crash defense: trigger on a 15% benchmark decline over 30 trading
	// days, liquidate 30% of every position, stand down above -5%.
	crashLookbackDays   = 30
	crashTriggerReturn  = -0.15
	crashRecoverReturn  = -0.05
	crashTrimFraction   = 0.30

	// Trailing stop from peak-since-purchase.
	trailingStopPct = -0.15

	// Re-entry: a stopped-out ticker becomes eligible after 10 trading
	// days once price recovers 10% above the sell price; re-entry spends
	// at most half the available cash.
	reentryMinDays      = 10
	reentryRecoveryPct  = 0.10
	reentryCashFraction = 0.50

	// Drawdown circuit breaker: force a rebalance on a 25% drawdown from
	// the running peak, at most once per 30 trading days.
	breakerDrawdownPct = -0.25
	breakerCooldownDays = 30

	benchmarkSMAPeriod = 200
)

// applyRiskOverlay runs the reduced-cadence risk checks for one trading
// day, mutating the portfolio state in place. A tripped drawdown circuit
// breaker is flagged on the state for the engine to act on.
func (e *Engine) applyRiskOverlay(state *PortfolioState, date time.Time, dayIndex int) {
	data := e.data
	bull := benchmarkAboveSMA(data, date)

	// Benchmark crash defense.
	benchCloses := data.ClosesUpTo(data.Benchmark(), date)
	if len(benchCloses) > crashLookbackDays {
		now := benchCloses[len(benchCloses)-1]
		then := benchCloses[len(benchCloses)-1-crashLookbackDays]
		if then > 0 {
			trailing := now/then - 1
			switch {
			case !state.defenseActive && trailing < crashTriggerReturn:
				state.sellFraction(data, date, crashTrimFraction)
				state.defenseActive = true
			case state.defenseActive && trailing > crashRecoverReturn:
				state.defenseActive = false
			}
		}
	}

	// Per-position stops.
	stopThreshold := e.profile.StopLossPct
	trailingEnabled := true
	if bull && e.profile.BullWidensStops {
		stopThreshold = e.profile.BullStopLossPct
		trailingEnabled = false
	}
	for ticker, pos := range state.Positions {
		price, ok := data.PriceAsOf(ticker, date)
		if !ok || pos.PurchasePrice <= 0 {
			continue
		}
		if e.profile.StopLossEnabled && price/pos.PurchasePrice-1 < stopThreshold {
			state.sellAll(ticker, price, dayIndex)
			continue
		}
		if trailingEnabled && pos.PeakPrice > 0 && price/pos.PeakPrice-1 < trailingStopPct {
			state.sellAll(ticker, price, dayIndex)
		}
	}

	// Re-entry of stopped-out names.
	e.applyReentry(state, date, dayIndex)

	// Drawdown circuit breaker, suppressed in a bull regime.
	value := state.MarkToMarket(data, date)
	if !bull &&
		state.peakValue > 0 &&
		value/state.peakValue-1 < breakerDrawdownPct &&
		(state.lastForcedRebalance < 0 || dayIndex-state.lastForcedRebalance >= breakerCooldownDays) {
		state.forceRebalance = true
	}
}

// applyReentry re-buys stopped-out tickers that have recovered, splitting at
// most half the cash equally among the eligible candidates.
func (e *Engine) applyReentry(state *PortfolioState, date time.Time, dayIndex int) {
	if state.Cash <= 0 || len(state.exits) == 0 {
		return
	}

	type candidate struct {
		ticker string
		price  float64
	}
	var eligible []candidate
	for ticker, exit := range state.exits {
		if dayIndex-exit.dayIndex < reentryMinDays {
			continue
		}
		price, ok := e.data.PriceAsOf(ticker, date)
		if !ok || exit.sellPrice <= 0 {
			continue
		}
		if price/exit.sellPrice-1 > reentryRecoveryPct {
			eligible = append(eligible, candidate{ticker: ticker, price: price})
		}
	}
	if len(eligible) == 0 {
		return
	}

	budget := state.Cash * reentryCashFraction
	perName := budget / float64(len(eligible))
	for _, c := range eligible {
		state.Positions[c.ticker] = &Position{
			Shares:        perName / c.price,
			PurchasePrice: c.price,
			PeakPrice:     c.price,
		}
		state.Cash -= perName
		delete(state.exits, c.ticker)
	}
}

// benchmarkAboveSMA classifies the market regime: bull when the benchmark
// trades above its 200-day moving average.
func benchmarkAboveSMA(data *marketdata.Dataset, date time.Time) bool {
	closes := data.ClosesUpTo(data.Benchmark(), date)
	if len(closes) < benchmarkSMAPeriod {
		return false
	}
	var sum float64
	for _, c := range closes[len(closes)-benchmarkSMAPeriod:] {
		sum += c
	}
	return closes[len(closes)-1] > sum/benchmarkSMAPeriod
}
