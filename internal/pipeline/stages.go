package pipeline

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

const (
	oneMonthDays   = 21
	threeMonthDays = 63
	sixMonthDays   = 126
	oneYearDays    = 252

	// sectorMinHistory is the minimum trading-day history for stage one.
	sectorMinHistory = 126

	// relStrengthWindow / relStrengthMinDays bound the stage-three window.
	relStrengthWindow  = 50
	relStrengthMinDays = 30

	// obvWindow / obvMinDays / obvSMAPeriod configure the volume-flow stage.
	obvWindow    = 90
	obvMinDays   = 55
	obvSMAPeriod = 50

	sma200Period = 200

	// volCapAnnualized rejects tickers above this trailing annualized
	// volatility for non-aggressive profiles.
	volCapAnnualized = 0.60

	// screenConcurrency bounds the per-ticker fan-out in stages one and two.
	screenConcurrency = 8
)

// verdict is the outcome of screening a single ticker.
type verdict int

const (
	rejected verdict = iota
	passed
	// skipped marks a ticker dropped for having no usable data rather
	// than failing a criterion.
	skipped
)

// sectorMomentum implements stage one: keep sectors whose average trailing
// 6-month and 12-month returns are both positive. Returns the qualifying
// sector names, sorted. An empty result aborts the pipeline.
func (s *Selector) sectorMomentum(ctx context.Context, date time.Time) ([]string, *StageReport, error) {
	report := &StageReport{Stage: "sector_momentum"}

	if len(s.data.ClosesUpTo(s.data.Benchmark(), date)) < sectorMinHistory {
		return nil, report, nil
	}

	tickers := s.data.Tickers()
	report.Entered = len(tickers)

	type perf struct {
		sector   string
		sixMonth float64
		oneYear  float64
		ok       bool
	}
	results := make([]perf, len(tickers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(screenConcurrency)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sector := s.data.Sector(ticker)
			if sector == "" {
				return nil
			}
			closes := s.data.ClosesUpTo(ticker, date)
			if len(closes) < sectorMinHistory {
				return nil
			}
			now := closes[len(closes)-1]
			results[i] = perf{
				sector:   sector,
				sixMonth: safeReturn(now, closeAtOffset(closes, sixMonthDays)),
				oneYear:  safeReturn(now, closeAtOffset(closes, oneYearDays)),
				ok:       true,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, err
	}

	type agg struct {
		sixMonth, oneYear float64
		n                 int
	}
	bySector := make(map[string]*agg)
	for _, r := range results {
		if !r.ok {
			report.Skipped++
			continue
		}
		a := bySector[r.sector]
		if a == nil {
			a = &agg{}
			bySector[r.sector] = a
		}
		a.sixMonth += r.sixMonth
		a.oneYear += r.oneYear
		a.n++
	}

	var sectors []string
	for sector, a := range bySector {
		if a.sixMonth/float64(a.n) > 0 && a.oneYear/float64(a.n) > 0 {
			sectors = append(sectors, sector)
		}
	}
	sort.Strings(sectors)
	report.Survived = len(sectors)
	return sectors, report, nil
}

// screen implements stage two: profile thresholds over point-in-time
// fundamentals plus the falling-knife and volatility guards. Missing derived
// metrics leave their criterion un-applied; a ticker with no data at all is
// skipped. An empty result aborts the pipeline.
func (s *Selector) screen(ctx context.Context, date time.Time, sectors []string, profile Profile) ([]string, *StageReport, error) {
	report := &StageReport{Stage: "fundamental_screen"}

	inSector := make(map[string]bool, len(sectors))
	for _, sec := range sectors {
		inSector[sec] = true
	}
	var candidates []string
	for _, t := range s.data.Tickers() {
		if inSector[s.data.Sector(t)] {
			candidates = append(candidates, t)
		}
	}
	report.Entered = len(candidates)

	results := make([]verdict, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(screenConcurrency)
	for i, ticker := range candidates {
		i, ticker := i, ticker
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = s.screenOne(ticker, date, profile)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, err
	}

	var survivors []string
	for i, v := range results {
		switch v {
		case passed:
			survivors = append(survivors, candidates[i])
		case skipped:
			report.Skipped++
		}
	}
	report.Survived = len(survivors)
	return survivors, report, nil
}

func (s *Selector) screenOne(ticker string, date time.Time, profile Profile) verdict {
	fund := s.data.FundamentalsAsOf(ticker, date)
	if fund.Empty() {
		return skipped
	}

	// Market cap and average volume always apply; a ticker where they
	// cannot be derived reads as zero and fails a positive threshold.
	if deref(fund.MarketCap) < profile.MinMarketCap {
		return rejected
	}
	if deref(fund.AverageVolume) < profile.MinAvgVolume {
		return rejected
	}

	points := s.data.PricesUpTo(ticker, date)

	if profile.MinRelativeVolume > 0 && len(points) >= 20 {
		recent := points[len(points)-1].Volume
		var sum float64
		for _, p := range points[len(points)-20:] {
			sum += p.Volume
		}
		avg20 := sum / 20
		var rel float64
		if avg20 > 0 {
			rel = recent / avg20
		}
		if rel < profile.MinRelativeVolume {
			return rejected
		}
	}

	// The remaining fundamental criteria only apply when the metric could
	// be derived from point-in-time reports.
	if profile.RequireDividend && fund.DividendYield != nil && *fund.DividendYield <= 0 {
		return rejected
	}
	if profile.MinROE > 0 && fund.ReturnOnEquity != nil && *fund.ReturnOnEquity < profile.MinROE {
		return rejected
	}
	if profile.RequirePositiveNetMargin && fund.NetMargin != nil && *fund.NetMargin <= 0 {
		return rejected
	}
	if profile.RequirePositiveOpMargin && fund.OperatingMargin != nil && *fund.OperatingMargin <= 0 {
		return rejected
	}
	if profile.MinEarningsGrowth != nil && fund.EarningsGrowth != nil && *fund.EarningsGrowth < *profile.MinEarningsGrowth {
		return rejected
	}
	if profile.MaxDebtEquity != nil && fund.DebtToEquity != nil {
		// Stored percentage-scaled; the threshold is a plain ratio.
		if *fund.DebtToEquity/100 > *profile.MaxDebtEquity {
			return rejected
		}
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}

	if profile.RequireAboveSMA200 && len(closes) >= sma200Period {
		var sum float64
		for _, c := range closes[len(closes)-sma200Period:] {
			sum += c
		}
		if closes[len(closes)-1] < sum/sma200Period {
			return rejected
		}
	}

	// Falling knife: both 1-month and 3-month returns negative.
	if len(closes) >= threeMonthDays {
		now := closes[len(closes)-1]
		ret1m := safeReturn(now, closes[len(closes)-oneMonthDays])
		ret3m := safeReturn(now, closes[len(closes)-threeMonthDays])
		if ret1m < 0 && ret3m < 0 {
			return rejected
		}
	}

	if !profile.SkipVolatilityCap && len(closes) >= 60 {
		returns := dailyReturns(closes)
		if len(returns) > oneYearDays {
			returns = returns[len(returns)-oneYearDays:]
		}
		if len(returns) >= 30 {
			if sampleStd(returns)*math.Sqrt(252) > volCapAnnualized {
				return rejected
			}
		}
	}

	return passed
}

// relativeStrength implements stage three: keep tickers whose normalized
// return over the trailing ~50-day window exceeds the benchmark's. Soft
// gate: an empty result falls back to the input list.
func (s *Selector) relativeStrength(date time.Time, candidates []string) ([]string, *StageReport) {
	report := &StageReport{Stage: "relative_strength", Entered: len(candidates)}

	bench := s.data.PricesUpTo(s.data.Benchmark(), date)
	if len(bench) > relStrengthWindow {
		bench = bench[len(bench)-relStrengthWindow:]
	}
	if len(bench) < relStrengthMinDays {
		return nil, report
	}
	windowStart := bench[0].Date
	benchPerf := safeReturn(bench[len(bench)-1].Close, bench[0].Close)

	var survivors []string
	for _, ticker := range candidates {
		perf, ok := windowReturn(s.data.PricesUpTo(ticker, date), windowStart)
		if !ok {
			report.Skipped++
			continue
		}
		if perf > benchPerf {
			survivors = append(survivors, ticker)
		}
	}
	report.Survived = len(survivors)
	return survivors, report
}

// obvFilter implements stage four: keep tickers whose on-balance volume sits
// above its 50-period moving average over the trailing ~90 days. Soft gate.
func (s *Selector) obvFilter(date time.Time, candidates []string) ([]string, *StageReport) {
	report := &StageReport{Stage: "volume_flow", Entered: len(candidates)}

	var survivors []string
	for _, ticker := range candidates {
		points := s.data.PricesUpTo(ticker, date)
		if len(points) > obvWindow {
			points = points[len(points)-obvWindow:]
		}
		if len(points) < obvMinDays {
			report.Skipped++
			continue
		}

		obv := make([]float64, len(points))
		obv[0] = points[0].Volume
		for i := 1; i < len(points); i++ {
			switch {
			case points[i].Close > points[i-1].Close:
				obv[i] = obv[i-1] + points[i].Volume
			case points[i].Close < points[i-1].Close:
				obv[i] = obv[i-1] - points[i].Volume
			default:
				obv[i] = obv[i-1]
			}
		}

		var sma float64
		for _, v := range obv[len(obv)-obvSMAPeriod:] {
			sma += v
		}
		sma /= obvSMAPeriod

		if obv[len(obv)-1] > sma {
			survivors = append(survivors, ticker)
		}
	}
	report.Survived = len(survivors)
	return survivors, report
}

// industryStrength implements stage five: keep tickers whose industry's
// average 3-month and 6-month returns both beat the benchmark. Industry
// averages are computed over every dataset ticker in the industry, not only
// the candidates. Soft gate.
func (s *Selector) industryStrength(date time.Time, candidates []string) ([]string, *StageReport) {
	report := &StageReport{Stage: "industry_strength", Entered: len(candidates)}

	benchCloses := s.data.ClosesUpTo(s.data.Benchmark(), date)
	if len(benchCloses) < sixMonthDays {
		return nil, report
	}
	benchNow := benchCloses[len(benchCloses)-1]
	bench3M := safeReturn(benchNow, benchCloses[len(benchCloses)-threeMonthDays])
	bench6M := safeReturn(benchNow, benchCloses[len(benchCloses)-sixMonthDays])

	wanted := make(map[string]bool)
	for _, t := range candidates {
		if ind := s.data.Industry(t); ind != "" {
			wanted[ind] = true
		}
	}

	members := make(map[string][]string)
	for _, t := range s.data.Tickers() {
		if ind := s.data.Industry(t); ind != "" && wanted[ind] {
			members[ind] = append(members[ind], t)
		}
	}

	strong := make(map[string]bool)
	for industry, tickers := range members {
		var perfs3M, perfs6M []float64
		for _, t := range tickers {
			closes := s.data.ClosesUpTo(t, date)
			now := 0.0
			if len(closes) > 0 {
				now = closes[len(closes)-1]
			}
			if len(closes) >= threeMonthDays {
				perfs3M = append(perfs3M, safeReturn(now, closes[len(closes)-threeMonthDays]))
			}
			if len(closes) >= sixMonthDays {
				perfs6M = append(perfs6M, safeReturn(now, closes[len(closes)-sixMonthDays]))
			}
		}
		if len(perfs3M) == 0 || len(perfs6M) == 0 {
			continue
		}
		if mean(perfs3M) > bench3M && mean(perfs6M) > bench6M {
			strong[industry] = true
		}
	}

	var survivors []string
	for _, t := range candidates {
		if strong[s.data.Industry(t)] {
			survivors = append(survivors, t)
		}
	}
	report.Survived = len(survivors)
	return survivors, report
}

// closeAtOffset returns the close `offset` trading days back, or the oldest
// close when history is shorter.
func closeAtOffset(closes []float64, offset int) float64 {
	if len(closes) >= offset {
		return closes[len(closes)-offset]
	}
	return closes[0]
}

// safeReturn computes now/base - 1, treating a non-positive base as flat.
func safeReturn(now, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return now/base - 1
}

// windowReturn computes the return from the first point at or after start to
// the last point. Requires at least two points inside the window.
func windowReturn(points []model.PricePoint, start time.Time) (float64, bool) {
	first := -1
	for i, p := range points {
		if !p.Date.Before(start) {
			first = i
			break
		}
	}
	if first < 0 || len(points)-first < 2 {
		return 0, false
	}
	return safeReturn(points[len(points)-1].Close, points[first].Close), true
}

func dailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

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

// sampleStd is the n-1 standard deviation.
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
