// Package backtest implements the daily replay engine: it walks every
// trading day in a window, applies the risk overlay, invokes the selection
// pipeline on rebalance days, and records equity curves and snapshots.
package backtest

import (
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/marketdata"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

// Position is one open holding with the trackers the risk overlay needs.
type Position struct {
	Shares float64
	// PurchasePrice anchors the stop-loss; PeakPrice anchors the trailing
	// stop and is advanced daily.
	PurchasePrice float64
	PeakPrice     float64
}

// exitRecord remembers a stopped-out position for re-entry checks.
type exitRecord struct {
	sellPrice float64
	dayIndex  int
}

// PortfolioState is the mutable simulation state: cash, open positions, and
// the risk overlay's bookkeeping. It is owned by a single engine run and
// never shared.
type PortfolioState struct {
	Cash      float64
	Positions map[string]*Position

	exits map[string]exitRecord

	// defenseActive marks the benchmark crash defense as engaged.
	defenseActive bool

	// peakValue tracks the running portfolio peak for the drawdown
	// circuit breaker; lastForcedRebalance is the trading-day index of
	// the last forced rebalance.
	peakValue            float64
	lastForcedRebalance  int
	forceRebalance       bool
}

func newPortfolioState(capital float64) *PortfolioState {
	return &PortfolioState{
		Cash:                capital,
		Positions:           make(map[string]*Position),
		exits:               make(map[string]exitRecord),
		peakValue:           capital,
		lastForcedRebalance: -1,
	}
}

// MarkToMarket values the portfolio at the given date: cash plus each
// position at its last price at or before the date. A position with no
// price contributes zero; it is a stale-price condition, not a sale.
func (s *PortfolioState) MarkToMarket(data *marketdata.Dataset, date time.Time) float64 {
	value := s.Cash
	for ticker, pos := range s.Positions {
		if price, ok := data.PriceAsOf(ticker, date); ok {
			value += pos.Shares * price
		}
	}
	return value
}

// updatePeaks advances each position's peak-since-purchase tracker.
func (s *PortfolioState) updatePeaks(data *marketdata.Dataset, date time.Time) {
	for ticker, pos := range s.Positions {
		if price, ok := data.PriceAsOf(ticker, date); ok && price > pos.PeakPrice {
			pos.PeakPrice = price
		}
	}
}

// sellAll liquidates a position entirely at the given price, remembering the
// exit for re-entry checks.
func (s *PortfolioState) sellAll(ticker string, price float64, dayIndex int) {
	pos, ok := s.Positions[ticker]
	if !ok {
		return
	}
	s.Cash += pos.Shares * price
	delete(s.Positions, ticker)
	s.exits[ticker] = exitRecord{sellPrice: price, dayIndex: dayIndex}
}

// sellFraction liquidates a fraction of every position into cash.
func (s *PortfolioState) sellFraction(data *marketdata.Dataset, date time.Time, fraction float64) {
	for ticker, pos := range s.Positions {
		price, ok := data.PriceAsOf(ticker, date)
		if !ok {
			continue
		}
		sold := pos.Shares * fraction
		pos.Shares -= sold
		s.Cash += sold * price
	}
}

// rebalanceTo replaces all holdings with the target allocation at the given
// date's prices. Weights whose ticker has no usable price stay in cash.
// Purchase and peak trackers reset and re-entry memory clears.
func (s *PortfolioState) rebalanceTo(data *marketdata.Dataset, date time.Time, alloc model.Allocation, totalValue float64) {
	s.Positions = make(map[string]*Position, len(alloc))
	s.Cash = totalValue
	s.exits = make(map[string]exitRecord)

	for ticker, weight := range alloc {
		price, ok := data.PriceAsOf(ticker, date)
		if !ok || price <= 0 {
			continue
		}
		spend := totalValue * weight
		s.Positions[ticker] = &Position{
			Shares:        spend / price,
			PurchasePrice: price,
			PeakPrice:     price,
		}
		s.Cash -= spend
	}
	if s.Cash < 0 {
		s.Cash = 0
	}
}
