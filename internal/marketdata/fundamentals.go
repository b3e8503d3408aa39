package marketdata

import (
	"sort"
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

const (
	// avgVolumeWindow is the trailing window (trading days) for average volume.
	avgVolumeWindow = 60
	// avgVolumeMinObs is the minimum observations required for average volume.
	avgVolumeMinObs = 20
	// growthBaseGuard rejects growth calculations whose base net income is
	// too close to zero to produce a meaningful ratio.
	growthBaseGuard = 1000.0
)

// FundamentalsAsOf derives fundamental metrics for a ticker using only
// reports dated at or before date. Metrics whose inputs are unavailable stay
// nil in the result; a ticker with no data at all yields an empty result,
// never an error. Results are computed fresh per call and never cached
// across dates.
func (d *Dataset) FundamentalsAsOf(ticker string, date time.Time) model.FundamentalMetrics {
	var out model.FundamentalMetrics

	hist, ok := d.fundamentals[ticker]
	if !ok {
		return out
	}
	out.Sector = hist.Sector
	out.Industry = hist.Industry

	price, hasPrice := d.PriceAsOf(ticker, date)

	if hist.SharesOutstanding != nil && hasPrice && price > 0 {
		mc := *hist.SharesOutstanding * price
		out.MarketCap = &mc
	}

	if avg, ok := d.VolumeTrailingMean(ticker, date, avgVolumeWindow, avgVolumeMinObs); ok {
		out.AverageVolume = &avg
	}

	income := reportsAtOrBefore(hist.Income, date)
	balance := balanceAtOrBefore(hist.Balance, date)

	var latestEquity *float64
	if len(balance) > 0 {
		latestEquity = balance[0].StockholdersEquity
	}

	switch {
	case len(income) >= 4:
		var ttmNI, ttmRev, ttmOp float64
		for _, q := range income[:4] {
			ttmNI += deref(q.NetIncome)
			ttmRev += deref(q.TotalRevenue)
			ttmOp += deref(q.OperatingIncome)
		}
		if latestEquity != nil && *latestEquity != 0 {
			roe := ttmNI / *latestEquity
			out.ReturnOnEquity = &roe
		}
		if ttmRev != 0 {
			nm := ttmNI / ttmRev
			om := ttmOp / ttmRev
			out.NetMargin = &nm
			out.OperatingMargin = &om
		}
	case len(income) >= 1:
		// Rough annualization off a single quarter. Noisier than a true
		// TTM, so the result carries the Approximate flag.
		ni := deref(income[0].NetIncome)
		rev := deref(income[0].TotalRevenue)
		if latestEquity != nil && *latestEquity != 0 {
			roe := (ni * 4) / *latestEquity
			out.ReturnOnEquity = &roe
		}
		if rev != 0 {
			nm := ni / rev
			om := deref(income[0].OperatingIncome) / rev
			out.NetMargin = &nm
			out.OperatingMargin = &om
		}
		out.Approximate = true
	}

	if len(balance) > 0 {
		debt := deref(balance[0].TotalDebt)
		equity := deref(balance[0].StockholdersEquity)
		if equity > 0 {
			// Percentage-scaled to match how data vendors report it
			// (50 means a 0.5 ratio).
			de := (debt / equity) * 100
			out.DebtToEquity = &de
		}
	}

	if hasPrice && price > 0 {
		oneYearAgo := date.AddDate(0, 0, -365)
		var total float64
		for _, dv := range hist.Dividends {
			if dv.Date.Before(oneYearAgo) || dv.Date.After(date) {
				continue
			}
			total += dv.Amount
		}
		if total > 0 {
			dy := total / price
			out.DividendYield = &dy
		}
	}

	switch {
	case len(income) >= 5:
		recent := deref(income[0].NetIncome)
		base := deref(income[4].NetIncome)
		if base != 0 && abs(base) > growthBaseGuard {
			g := (recent - base) / abs(base)
			out.EarningsGrowth = &g
			out.GrowthBasis = model.GrowthBasisYoY
		}
	case len(income) >= 2:
		recent := deref(income[0].NetIncome)
		base := deref(income[1].NetIncome)
		if base != 0 && abs(base) > growthBaseGuard {
			g := (recent - base) / abs(base)
			out.EarningsGrowth = &g
			out.GrowthBasis = model.GrowthBasisQoQ
		}
	}

	return out
}

// reportsAtOrBefore filters income reports to those dated at or before date,
// most recent first.
func reportsAtOrBefore(reports []model.IncomeReport, date time.Time) []model.IncomeReport {
	out := make([]model.IncomeReport, 0, len(reports))
	for _, r := range reports {
		if !r.ReportDate.After(date) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ReportDate.After(out[j].ReportDate)
	})
	return out
}

// balanceAtOrBefore filters balance reports to those dated at or before date,
// most recent first.
func balanceAtOrBefore(reports []model.BalanceReport, date time.Time) []model.BalanceReport {
	out := make([]model.BalanceReport, 0, len(reports))
	for _, r := range reports {
		if !r.ReportDate.After(date) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ReportDate.After(out[j].ReportDate)
	})
	return out
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
