package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

const (
	// optimizeWindow / optimizeMinDays bound the stage-six price window.
	optimizeWindow  = 756
	optimizeMinDays = 60

	// minWeightFloor zeroes positions below 2% during redistribution.
	minWeightFloor = 0.02

	// redistributeIterations bounds the floor/cap redistribution loop.
	redistributeIterations = 10

	// momentumTopN is the position count for the momentum strategy.
	momentumTopN = 10

	tradingDaysPerYear = 252
)

// optimize implements stage six: weight the final survivors by the profile's
// strategy. Returns nil when no allocation can be produced.
func (s *Selector) optimize(date time.Time, candidates []string, profile Profile) (model.Allocation, *StageReport) {
	report := &StageReport{Stage: "optimization", Entered: len(candidates)}
	if len(candidates) == 0 {
		return nil, report
	}

	tickers, matrix := s.alignedCloses(date, candidates)
	if len(matrix) < optimizeMinDays || len(tickers) == 0 {
		return nil, report
	}
	if len(tickers) == 1 {
		report.Survived = 1
		return model.Allocation{tickers[0]: 1.0}, report
	}

	var weights model.Allocation
	switch profile.Strategy {
	case StrategyMomentum:
		weights = s.momentumWeights(date, candidates)
	case StrategyMinVariance:
		cov := shrinkageCovariance(returnsMatrix(matrix))
		w, err := minVarianceWeights(cov)
		if err != nil {
			return nil, report
		}
		weights = toAllocation(tickers, w)
	case StrategyMaxSharpe:
		returns := returnsMatrix(matrix)
		cov := shrinkageCovariance(returns)
		w, err := maxSharpeWeights(cov, annualizedMeanReturns(matrix), s.riskFree)
		if err != nil {
			w, err = minVarianceWeights(cov)
			if err != nil {
				return nil, report
			}
		}
		weights = toAllocation(tickers, w)
	}
	if len(weights) == 0 {
		return nil, report
	}

	if profile.Strategy != StrategyMomentum {
		weights = redistribute(weights, minWeightFloor, profile.MaxWeight)
		weights = s.momentumTilt(date, weights, profile)
	}

	final := make(model.Allocation, len(weights))
	for t, w := range weights {
		if w > 0 {
			final[t] = w
		}
	}
	if len(final) == 0 {
		return nil, report
	}
	report.Survived = len(final)
	return final, report
}

// alignedCloses builds a dense close matrix over the trailing optimizeWindow
// trading days: one row per date, one column per ticker. Gaps are forward
// filled from each ticker's own series; rows before a ticker's first
// observation are dropped, as are tickers with no data in the window.
func (s *Selector) alignedCloses(date time.Time, candidates []string) ([]string, [][]float64) {
	dateSet := make(map[time.Time]bool)
	series := make(map[string][]model.PricePoint, len(candidates))
	var tickers []string
	for _, t := range candidates {
		points := s.data.PricesUpTo(t, date)
		if len(points) == 0 {
			continue
		}
		tickers = append(tickers, t)
		series[t] = points
		for _, p := range points {
			dateSet[p.Date] = true
		}
	}
	if len(tickers) == 0 {
		return nil, nil
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	if len(dates) > optimizeWindow {
		dates = dates[len(dates)-optimizeWindow:]
	}

	cursor := make(map[string]int, len(tickers))
	last := make(map[string]float64, len(tickers))
	var matrix [][]float64
	for _, d := range dates {
		complete := true
		row := make([]float64, len(tickers))
		for j, t := range tickers {
			points := series[t]
			for cursor[t] < len(points) && !points[cursor[t]].Date.After(d) {
				if c := points[cursor[t]].Close; c > 0 {
					last[t] = c
				}
				cursor[t]++
			}
			if last[t] == 0 {
				complete = false
				break
			}
			row[j] = last[t]
		}
		if complete {
			matrix = append(matrix, row)
		}
	}
	return tickers, matrix
}

// momentumWeights equal-weights the top ten candidates by 3-month return.
func (s *Selector) momentumWeights(date time.Time, candidates []string) model.Allocation {
	type scored struct {
		ticker string
		score  float64
	}
	var ranked []scored
	for _, t := range candidates {
		closes := s.data.ClosesUpTo(t, date)
		if len(closes) < threeMonthDays {
			continue
		}
		ranked = append(ranked, scored{
			ticker: t,
			score:  safeReturn(closes[len(closes)-1], closes[len(closes)-threeMonthDays]),
		})
	}
	if len(ranked) == 0 {
		return nil
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].ticker < ranked[j].ticker
	})
	if len(ranked) > momentumTopN {
		ranked = ranked[:momentumTopN]
	}
	out := make(model.Allocation, len(ranked))
	w := 1.0 / float64(len(ranked))
	for _, r := range ranked {
		out[r.ticker] = w
	}
	return out
}

// momentumTilt blends a profile-specific fraction of weight toward positions
// with positive 3-month momentum, renormalizes, and re-applies the
// floor/cap rules.
func (s *Selector) momentumTilt(date time.Time, weights model.Allocation, profile Profile) model.Allocation {
	if profile.MomentumTilt <= 0 || len(weights) == 0 {
		return weights
	}

	scores := make(map[string]float64, len(weights))
	var total float64
	for t := range weights {
		closes := s.data.ClosesUpTo(t, date)
		var score float64
		if len(closes) >= threeMonthDays {
			score = math.Max(0, safeReturn(closes[len(closes)-1], closes[len(closes)-threeMonthDays]))
		}
		scores[t] = score
		total += score
	}
	if total <= 0 {
		return weights
	}

	blended := make(model.Allocation, len(weights))
	for t, w := range weights {
		blended[t] = (1-profile.MomentumTilt)*w + profile.MomentumTilt*(scores[t]/total)
	}
	blended = blended.Normalized()
	return redistribute(blended, minWeightFloor, profile.MaxWeight)
}

// redistribute applies the allocation business rules: zero out weights below
// the floor, cap weights above the ceiling, and redistribute the difference
// proportionally among eligible positions, iterating to convergence within a
// fixed budget.
func redistribute(weights model.Allocation, floor, cap float64) model.Allocation {
	w := weights.Clone()

	for i := 0; i < redistributeIterations; i++ {
		anySub, anyOver := false, false
		for _, v := range w {
			if v < floor {
				anySub = true
			}
			if v > cap {
				anyOver = true
			}
		}
		if !anySub && !anyOver && math.Abs(w.Sum()-1.0) < 0.001 {
			break
		}

		for t, v := range w {
			if v < floor {
				w[t] = 0
			} else if v > cap {
				w[t] = cap
			}
		}

		diff := 1.0 - w.Sum()
		if math.Abs(diff) < 0.00001 {
			break
		}

		var eligibleSum float64
		for _, v := range w {
			if v > 0 && v < cap {
				eligibleSum += v
			}
		}
		if eligibleSum == 0 {
			// Nothing to absorb the difference; normalize the positives.
			var posSum float64
			for _, v := range w {
				if v > 0 {
					posSum += v
				}
			}
			if posSum > 0 {
				for t, v := range w {
					if v > 0 {
						w[t] = v / posSum
					}
				}
			}
			continue
		}
		for t, v := range w {
			if v > 0 && v < cap {
				w[t] = v + (v/eligibleSum)*diff
			}
		}
	}
	return w
}

// returnsMatrix converts a close matrix to daily simple returns.
func returnsMatrix(closes [][]float64) [][]float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([][]float64, len(closes)-1)
	cols := len(closes[0])
	for i := 1; i < len(closes); i++ {
		row := make([]float64, cols)
		for j := 0; j < cols; j++ {
			if closes[i-1][j] != 0 {
				row[j] = closes[i][j]/closes[i-1][j] - 1
			}
		}
		out[i-1] = row
	}
	return out
}

// annualizedMeanReturns compounds each column's total growth to an
// annualized rate.
func annualizedMeanReturns(closes [][]float64) []float64 {
	n := len(closes)
	cols := len(closes[0])
	out := make([]float64, cols)
	for j := 0; j < cols; j++ {
		first, last := closes[0][j], closes[n-1][j]
		if first <= 0 || last <= 0 {
			continue
		}
		out[j] = math.Pow(last/first, tradingDaysPerYear/float64(n-1)) - 1
	}
	return out
}

// shrinkageCovariance computes the annualized Ledoit-Wolf covariance
// estimate with a scaled-identity shrinkage target. Degenerate inputs fall
// back to the plain sample covariance.
func shrinkageCovariance(returns [][]float64) [][]float64 {
	n := len(returns)
	p := len(returns[0])

	means := make([]float64, p)
	for _, row := range returns {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(n)
	}

	centered := make([][]float64, n)
	for i, row := range returns {
		c := make([]float64, p)
		for j, v := range row {
			c[j] = v - means[j]
		}
		centered[i] = c
	}

	sample := make([][]float64, p)
	for j := range sample {
		sample[j] = make([]float64, p)
	}
	for _, row := range centered {
		for j := 0; j < p; j++ {
			for k := 0; k < p; k++ {
				sample[j][k] += row[j] * row[k]
			}
		}
	}
	for j := 0; j < p; j++ {
		for k := 0; k < p; k++ {
			sample[j][k] /= float64(n)
		}
	}

	var trace float64
	for j := 0; j < p; j++ {
		trace += sample[j][j]
	}
	mu := trace / float64(p)

	var d2 float64
	for j := 0; j < p; j++ {
		for k := 0; k < p; k++ {
			v := sample[j][k]
			if j == k {
				v -= mu
			}
			d2 += v * v
		}
	}

	shrink := 0.0
	if d2 > 0 {
		var b2 float64
		for _, row := range centered {
			for j := 0; j < p; j++ {
				for k := 0; k < p; k++ {
					v := row[j]*row[k] - sample[j][k]
					b2 += v * v
				}
			}
		}
		b2 /= float64(n) * float64(n)
		if b2 > d2 {
			b2 = d2
		}
		shrink = b2 / d2
	}

	out := make([][]float64, p)
	for j := 0; j < p; j++ {
		out[j] = make([]float64, p)
		for k := 0; k < p; k++ {
			v := (1 - shrink) * sample[j][k]
			if j == k {
				v += shrink * mu
			}
			out[j][k] = v * tradingDaysPerYear
		}
	}
	return out
}

// minVarianceWeights solves long-only minimum variance by repeatedly solving
// the unconstrained problem and dropping negative-weight assets.
func minVarianceWeights(cov [][]float64) ([]float64, error) {
	p := len(cov)
	ones := make([]float64, p)
	for i := range ones {
		ones[i] = 1
	}
	return solveLongOnly(cov, ones)
}

// maxSharpeWeights solves the long-only tangency portfolio against the given
// risk-free rate. Fails when no asset carries positive excess return.
func maxSharpeWeights(cov [][]float64, mu []float64, riskFree float64) ([]float64, error) {
	excess := make([]float64, len(mu))
	anyPositive := false
	for i, m := range mu {
		excess[i] = m - riskFree
		if excess[i] > 0 {
			anyPositive = true
		}
	}
	if !anyPositive {
		return nil, apperrors.ErrSingularCovariance
	}
	return solveLongOnly(cov, excess)
}

// solveLongOnly solves cov * z = rhs over a shrinking active set, zeroing
// assets whose solution turns negative, then normalizes to sum 1.
func solveLongOnly(cov [][]float64, rhs []float64) ([]float64, error) {
	p := len(cov)
	active := make([]int, p)
	for i := range active {
		active[i] = i
	}

	for len(active) > 0 {
		sub := make([][]float64, len(active))
		subRHS := make([]float64, len(active))
		for i, ai := range active {
			row := make([]float64, len(active))
			for j, aj := range active {
				row[j] = cov[ai][aj]
			}
			sub[i] = row
			subRHS[i] = rhs[ai]
		}

		z, err := solveLinear(sub, subRHS)
		if err != nil {
			return nil, err
		}

		var next []int
		for i, v := range z {
			if v > 0 {
				next = append(next, active[i])
			}
		}
		if len(next) == len(active) {
			var sum float64
			for _, v := range z {
				sum += v
			}
			if sum <= 0 {
				return nil, apperrors.ErrSingularCovariance
			}
			out := make([]float64, p)
			for i, ai := range active {
				out[ai] = z[i] / sum
			}
			return out, nil
		}
		active = next
	}
	return nil, apperrors.ErrSingularCovariance
}

// solveLinear solves a*x = b by Gaussian elimination with partial pivoting.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, apperrors.ErrSingularCovariance
		}
		m[col], m[pivot] = m[pivot], m[col]

		for r := col + 1; r < n; r++ {
			factor := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= factor * m[col][c]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := m[i][n]
		for j := i + 1; j < n; j++ {
			sum -= m[i][j] * x[j]
		}
		x[i] = sum / m[i][i]
	}
	return x, nil
}

func toAllocation(tickers []string, weights []float64) model.Allocation {
	out := make(model.Allocation, len(tickers))
	for i, t := range tickers {
		if weights[i] > 0 {
			out[t] = weights[i]
		}
	}
	return out
}
