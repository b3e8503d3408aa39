package pipeline

import (
	"math"
	"testing"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

// TestEnsureMinPositions tests the minimum-diversification fallback.
//
// WHY: An optimizer concentrating into a handful of names defeats the point
// of the screen. Under-diversified allocations must widen to equal weight
// over the finalist list.
func TestEnsureMinPositions(t *testing.T) {
	finalists := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}

	t.Run("widens a concentrated allocation", func(t *testing.T) {
		alloc := model.Allocation{"A": 0.6, "B": 0.4}
		out := EnsureMinPositions(alloc, finalists)
		if len(out) != MinPositions {
			t.Fatalf("Expected %d positions, got %d", MinPositions, len(out))
		}
		for ticker, w := range out {
			if math.Abs(w-1.0/float64(MinPositions)) > 1e-9 {
				t.Errorf("Expected equal weight for %s, got %v", ticker, w)
			}
		}
	})

	t.Run("keeps an already diversified allocation", func(t *testing.T) {
		alloc := make(model.Allocation)
		for _, ticker := range finalists[:8] {
			alloc[ticker] = 0.125
		}
		out := EnsureMinPositions(alloc, finalists)
		if len(out) != 8 {
			t.Errorf("Expected allocation unchanged, got %d positions", len(out))
		}
	})

	t.Run("uses all finalists when fewer than the minimum exist", func(t *testing.T) {
		alloc := model.Allocation{"A": 1.0}
		out := EnsureMinPositions(alloc, []string{"A", "B", "C"})
		if len(out) != 3 {
			t.Fatalf("Expected 3 equal-weight positions, got %d", len(out))
		}
		if math.Abs(out["B"]-1.0/3.0) > 1e-9 {
			t.Errorf("Expected 1/3 weight, got %v", out["B"])
		}
	})
}

// TestApplySectorCap tests the 30% sector concentration limit.
//
// WHY: The pipeline can legitimately select a whole sector's worth of
// winners. The cap keeps a single sector from dominating the portfolio.
// Redistribution preserves total weight while uncapped positions exist;
// when every sector hits the cap the excess stays in cash.
func TestApplySectorCap(t *testing.T) {
	sectors := map[string]string{
		"A": "Technology", "B": "Technology", "C": "Technology",
		"D": "Energy", "E": "Utilities", "F": "Financials",
	}
	sectorOf := func(t string) string { return sectors[t] }

	t.Run("caps an over-weight sector and preserves total", func(t *testing.T) {
		alloc := model.Allocation{
			"A": 0.25, "B": 0.20, "C": 0.15, // Technology at 60%
			"D": 0.15, "E": 0.15, "F": 0.10,
		}
		out := ApplySectorCap(alloc, sectorOf)

		tech := out["A"] + out["B"] + out["C"]
		if tech > MaxSectorWeight+0.001 {
			t.Errorf("Expected Technology capped at %v, got %v", MaxSectorWeight, tech)
		}
		if math.Abs(out.Sum()-1.0) > 0.01 {
			t.Errorf("Expected total weight preserved near 1, got %v", out.Sum())
		}
	})

	t.Run("leaves a compliant allocation untouched", func(t *testing.T) {
		alloc := model.Allocation{"A": 0.25, "D": 0.25, "E": 0.25, "F": 0.25}
		out := ApplySectorCap(alloc, sectorOf)
		for ticker, w := range alloc {
			if out[ticker] != w {
				t.Errorf("Expected %s unchanged at %v, got %v", ticker, w, out[ticker])
			}
		}
	})

	t.Run("parks the excess in cash when the cap is infeasible", func(t *testing.T) {
		// Two sectors cannot both satisfy a 30% cap. With no uncapped
		// positions to absorb the excess it stays unallocated, and the
		// engine holds it as cash.
		alloc := model.Allocation{"X": 0.6, "D": 0.4}
		out := ApplySectorCap(alloc, sectorOf)
		for ticker, w := range out {
			if w > MaxSectorWeight+0.001 {
				t.Errorf("Expected %s capped at %v, got %v", ticker, MaxSectorWeight, w)
			}
		}
		if math.Abs(out.Sum()-2*MaxSectorWeight) > 0.01 {
			t.Errorf("Expected both sectors at the cap summing to %v, got %v",
				2*MaxSectorWeight, out.Sum())
		}
	})
}
