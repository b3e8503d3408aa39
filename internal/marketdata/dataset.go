// Package marketdata provides point-in-time access to price history and
// fundamentals. Every query takes a cutoff date and only observes data dated
// at or before it, so a simulation can never read the future.
package marketdata

import (
	"sort"
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

// Dataset is an immutable, fully materialized collection of price series and
// fundamental histories for a set of tickers. It is built once before a
// simulation starts and is safe for concurrent reads.
type Dataset struct {
	prices       map[string][]model.PricePoint
	fundamentals map[string]*model.FundamentalHistory
	benchmark    string
}

// NewDataset builds a dataset from per-ticker series. Price points are sorted
// by date; the caller's slices are not retained.
func NewDataset(series []model.PriceSeries, fundamentals []*model.FundamentalHistory, benchmark string) *Dataset {
	ds := &Dataset{
		prices:       make(map[string][]model.PricePoint, len(series)),
		fundamentals: make(map[string]*model.FundamentalHistory, len(fundamentals)),
		benchmark:    benchmark,
	}
	for _, s := range series {
		points := make([]model.PricePoint, len(s.Points))
		copy(points, s.Points)
		sort.Slice(points, func(i, j int) bool {
			return points[i].Date.Before(points[j].Date)
		})
		ds.prices[s.Ticker] = points
	}
	for _, f := range fundamentals {
		ds.fundamentals[f.Ticker] = f
	}
	return ds
}

// Benchmark returns the benchmark symbol the dataset was built around.
func (d *Dataset) Benchmark() string {
	return d.benchmark
}

// Tickers returns all tickers with price data, benchmark excluded, sorted.
func (d *Dataset) Tickers() []string {
	out := make([]string, 0, len(d.prices))
	for t := range d.prices {
		if t == d.benchmark {
			continue
		}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HasTicker reports whether price data exists for the ticker.
func (d *Dataset) HasTicker(ticker string) bool {
	_, ok := d.prices[ticker]
	return ok
}

// PriceAsOf returns the last close at or before date. The second return is
// false when no price exists at or before the date.
func (d *Dataset) PriceAsOf(ticker string, date time.Time) (float64, bool) {
	points := d.prices[ticker]
	idx := lastIndexAtOrBefore(points, date)
	if idx < 0 {
		return 0, false
	}
	return points[idx].Close, true
}

// PricesUpTo returns the closes for all trading days at or before date,
// oldest first. The returned slice aliases internal storage and must not be
// mutated.
func (d *Dataset) PricesUpTo(ticker string, date time.Time) []model.PricePoint {
	points := d.prices[ticker]
	idx := lastIndexAtOrBefore(points, date)
	if idx < 0 {
		return nil
	}
	return points[:idx+1]
}

// ClosesUpTo returns just the close column of PricesUpTo.
func (d *Dataset) ClosesUpTo(ticker string, date time.Time) []float64 {
	points := d.PricesUpTo(ticker, date)
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Close
	}
	return out
}

// ReturnOver computes the simple return between the close `periods` trading
// days back and the latest close at or before date. Returns false when fewer
// than periods+1 observations exist or the older close is zero.
func (d *Dataset) ReturnOver(ticker string, date time.Time, periods int) (float64, bool) {
	closes := d.ClosesUpTo(ticker, date)
	if len(closes) <= periods {
		return 0, false
	}
	older := closes[len(closes)-1-periods]
	if older == 0 {
		return 0, false
	}
	return closes[len(closes)-1]/older - 1, true
}

// VolumeTrailingMean returns the mean daily volume over the trailing window
// of trading days ending at date. It requires at least minObs observations
// within the window; fewer returns false.
func (d *Dataset) VolumeTrailingMean(ticker string, date time.Time, window, minObs int) (float64, bool) {
	points := d.PricesUpTo(ticker, date)
	if len(points) > window {
		points = points[len(points)-window:]
	}
	if len(points) < minObs {
		return 0, false
	}
	var sum float64
	for _, p := range points {
		sum += p.Volume
	}
	return sum / float64(len(points)), true
}

// TradingDays returns every benchmark trading day in [start, end], oldest
// first. The benchmark calendar defines "trading day" for the simulation.
func (d *Dataset) TradingDays(start, end time.Time) []time.Time {
	points := d.prices[d.benchmark]
	out := make([]time.Time, 0, len(points))
	for _, p := range points {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		out = append(out, p.Date)
	}
	return out
}

// Sector returns the sector classification for the ticker, if known.
func (d *Dataset) Sector(ticker string) string {
	if f, ok := d.fundamentals[ticker]; ok {
		return f.Sector
	}
	return ""
}

// Industry returns the industry classification for the ticker, if known.
func (d *Dataset) Industry(ticker string) string {
	if f, ok := d.fundamentals[ticker]; ok {
		return f.Industry
	}
	return ""
}

// lastIndexAtOrBefore finds the index of the last point dated at or before
// date, or -1. Points must be sorted ascending by date.
func lastIndexAtOrBefore(points []model.PricePoint, date time.Time) int {
	idx := sort.Search(len(points), func(i int) bool {
		return points[i].Date.After(date)
	})
	return idx - 1
}
