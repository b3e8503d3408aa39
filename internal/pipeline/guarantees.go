package pipeline

import (
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

const (
	// MinPositions is the minimum position count the caller enforces on a
	// pipeline allocation before trading it.
	MinPositions = 8

	// MaxSectorWeight caps the aggregate weight of any single sector.
	MaxSectorWeight = 0.30

	// sectorCapPasses bounds the cap-and-redistribute loop.
	sectorCapPasses = 5
)

// EnsureMinPositions widens an under-diversified allocation: if it holds
// fewer than MinPositions positions, it is replaced with an equal-weight
// allocation over the finalist list (the first MinPositions finalists when
// enough exist, otherwise all of them).
func EnsureMinPositions(alloc model.Allocation, finalists []string) model.Allocation {
	if len(alloc) >= MinPositions {
		return alloc
	}
	pool := finalists
	if len(finalists) >= MinPositions {
		pool = finalists[:MinPositions]
	}
	if len(pool) <= len(alloc) {
		return alloc
	}
	w := 1.0 / float64(len(pool))
	out := make(model.Allocation, len(pool))
	for _, t := range pool {
		out[t] = w
	}
	return out
}

// ApplySectorCap limits any sector's aggregate weight to MaxSectorWeight,
// scaling down over-weight sectors and redistributing the excess
// proportionally to positions in sectors under the cap. Runs a bounded
// number of passes; a tiny overshoot after the budget is tolerated. When
// every sector is at the cap the excess stays unallocated and the engine
// holds it as cash.
func ApplySectorCap(alloc model.Allocation, sectorOf func(string) string) model.Allocation {
	if len(alloc) == 0 {
		return alloc
	}
	w := alloc.Clone()

	sectorTotals := func() map[string]float64 {
		totals := make(map[string]float64)
		for t, v := range w {
			totals[sectorName(sectorOf, t)] += v
		}
		return totals
	}

	totals := sectorTotals()
	over := false
	for _, v := range totals {
		if v > MaxSectorWeight {
			over = true
			break
		}
	}
	if !over {
		return w
	}

	for pass := 0; pass < sectorCapPasses; pass++ {
		var excess float64
		for sec, total := range totals {
			if total <= MaxSectorWeight {
				continue
			}
			scale := MaxSectorWeight / total
			for t, v := range w {
				if sectorName(sectorOf, t) == sec {
					w[t] = v * scale
					excess += v - w[t]
				}
			}
		}

		if excess > 0.001 {
			var uncapped []string
			var uncappedTotal float64
			for t := range w {
				if totals[sectorName(sectorOf, t)] <= MaxSectorWeight {
					uncapped = append(uncapped, t)
					uncappedTotal += w[t]
				}
			}
			if uncappedTotal > 0 {
				for _, t := range uncapped {
					w[t] += (w[t] / uncappedTotal) * excess
				}
			}
		}

		totals = sectorTotals()
		done := true
		for _, v := range totals {
			if v > MaxSectorWeight+0.001 {
				done = false
				break
			}
		}
		if done {
			break
		}
	}
	return w
}

func sectorName(sectorOf func(string) string, ticker string) string {
	if sec := sectorOf(ticker); sec != "" {
		return sec
	}
	return "Unknown"
}
