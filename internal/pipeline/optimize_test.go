package pipeline

import (
	"math"
	"testing"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

// TestRedistribute tests the floor/cap redistribution rules.
//
// WHY: Redistribution is what turns raw optimizer output into a tradeable
// allocation. Its invariants — no dust positions, no over-concentration,
// weights summing to one — must hold for every input shape, including ones
// where nothing is eligible to absorb the excess.
func TestRedistribute(t *testing.T) {
	t.Run("zeroes weights below the floor", func(t *testing.T) {
		w := redistribute(model.Allocation{"A": 0.01, "B": 0.50, "C": 0.49}, 0.02, 0.70)
		if w["A"] != 0 {
			t.Errorf("Expected A zeroed, got %v", w["A"])
		}
		if math.Abs(w.Sum()-1.0) > 0.001 {
			t.Errorf("Expected weights to sum to 1, got %v", w.Sum())
		}
	})

	t.Run("caps weights above the ceiling", func(t *testing.T) {
		w := redistribute(model.Allocation{"A": 0.80, "B": 0.10, "C": 0.10}, 0.02, 0.50)
		if w["A"] > 0.501 {
			t.Errorf("Expected A capped at 0.50, got %v", w["A"])
		}
		if math.Abs(w.Sum()-1.0) > 0.001 {
			t.Errorf("Expected weights to sum to 1, got %v", w.Sum())
		}
	})

	t.Run("normalizes positives when nothing is eligible", func(t *testing.T) {
		// Both positions hit the cap; no eligible absorber exists.
		w := redistribute(model.Allocation{"A": 0.90, "B": 0.90}, 0.02, 0.60)
		if math.Abs(w.Sum()-1.0) > 0.01 {
			t.Errorf("Expected near-1 sum via positive normalization, got %v", w.Sum())
		}
		if math.Abs(w["A"]-w["B"]) > 1e-9 {
			t.Errorf("Expected symmetric weights, got %v vs %v", w["A"], w["B"])
		}
	})

	t.Run("leaves a satisfying allocation unchanged", func(t *testing.T) {
		in := model.Allocation{"A": 0.40, "B": 0.35, "C": 0.25}
		w := redistribute(in, 0.02, 0.50)
		for ticker, v := range in {
			if math.Abs(w[ticker]-v) > 1e-9 {
				t.Errorf("Expected %s unchanged at %v, got %v", ticker, v, w[ticker])
			}
		}
	})
}

// TestOptimize_SingleSurvivor tests the lone-candidate shortcut.
//
// WHY: A covariance matrix over one asset is meaningless. When a single
// ticker survives to stage six it must receive full weight directly, for
// every strategy, rather than going through the solver.
func TestOptimize_SingleSurvivor(t *testing.T) {
	ds, asOf := growthDataset(1, 120, 0)
	selector := NewSelector(ds, 0.02)

	for _, strategy := range []Strategy{StrategyMomentum, StrategyMinVariance, StrategyMaxSharpe} {
		t.Run(string(strategy), func(t *testing.T) {
			profile := Profile{Name: "test", Strategy: strategy, MaxWeight: 0.25}
			alloc, report := selector.optimize(asOf, []string{"T00"}, profile)
			if len(alloc) != 1 {
				t.Fatalf("Expected a single position, got %v", alloc)
			}
			if math.Abs(alloc["T00"]-1.0) > 1e-9 {
				t.Errorf("Expected full weight on the survivor, got %v", alloc["T00"])
			}
			if report.Survived != 1 {
				t.Errorf("Expected report to count 1 survivor, got %d", report.Survived)
			}
		})
	}
}

// TestSolveLinear tests the Gaussian elimination solver.
func TestSolveLinear(t *testing.T) {
	t.Run("solves a well-conditioned system", func(t *testing.T) {
		a := [][]float64{{2, 1}, {1, 3}}
		b := []float64{5, 10}
		x, err := solveLinear(a, b)
		if err != nil {
			t.Fatalf("solveLinear() returned unexpected error: %v", err)
		}
		// Solution: x = 1, y = 3
		if math.Abs(x[0]-1) > 1e-9 || math.Abs(x[1]-3) > 1e-9 {
			t.Errorf("Expected [1 3], got %v", x)
		}
	})

	t.Run("rejects a singular matrix", func(t *testing.T) {
		a := [][]float64{{1, 2}, {2, 4}}
		b := []float64{1, 2}
		if _, err := solveLinear(a, b); err == nil {
			t.Error("Expected error for singular matrix, got nil")
		}
	})
}

// TestMinVarianceWeights tests the closed-form minimum-variance solution.
//
// WHY: For uncorrelated assets the minimum-variance weights are inversely
// proportional to variance, which gives a closed-form answer to check the
// solver against.
func TestMinVarianceWeights(t *testing.T) {
	t.Run("weights inverse to variance for uncorrelated assets", func(t *testing.T) {
		cov := [][]float64{{0.04, 0}, {0, 0.01}}
		w, err := minVarianceWeights(cov)
		if err != nil {
			t.Fatalf("minVarianceWeights() returned unexpected error: %v", err)
		}
		// 1/0.04 : 1/0.01 = 25 : 100 -> 0.2 : 0.8
		if math.Abs(w[0]-0.2) > 1e-9 || math.Abs(w[1]-0.8) > 1e-9 {
			t.Errorf("Expected [0.2 0.8], got %v", w)
		}
	})

	t.Run("weights stay non-negative and sum to one", func(t *testing.T) {
		cov := [][]float64{
			{0.09, 0.05, 0.01},
			{0.05, 0.07, 0.02},
			{0.01, 0.02, 0.03},
		}
		w, err := minVarianceWeights(cov)
		if err != nil {
			t.Fatalf("minVarianceWeights() returned unexpected error: %v", err)
		}
		var sum float64
		for _, v := range w {
			if v < 0 {
				t.Errorf("Expected non-negative weight, got %v", v)
			}
			sum += v
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("Expected weights to sum to 1, got %v", sum)
		}
	})
}

// TestMaxSharpeWeights tests the tangency solver's failure mode.
func TestMaxSharpeWeights(t *testing.T) {
	t.Run("fails when no asset beats the risk-free rate", func(t *testing.T) {
		cov := [][]float64{{0.04, 0}, {0, 0.01}}
		mu := []float64{0.01, 0.015}
		if _, err := maxSharpeWeights(cov, mu, 0.02); err == nil {
			t.Error("Expected failure with no positive excess return, got nil")
		}
	})

	t.Run("tilts toward the higher excess-return asset", func(t *testing.T) {
		cov := [][]float64{{0.04, 0}, {0, 0.04}}
		mu := []float64{0.10, 0.30}
		w, err := maxSharpeWeights(cov, mu, 0.02)
		if err != nil {
			t.Fatalf("maxSharpeWeights() returned unexpected error: %v", err)
		}
		if w[1] <= w[0] {
			t.Errorf("Expected higher weight on the higher-return asset, got %v", w)
		}
	})
}

// TestShrinkageCovariance tests the shrinkage estimator's basic shape.
func TestShrinkageCovariance(t *testing.T) {
	returns := [][]float64{
		{0.01, -0.02},
		{-0.01, 0.03},
		{0.02, 0.01},
		{0.00, -0.01},
		{0.01, 0.02},
	}
	cov := shrinkageCovariance(returns)

	if len(cov) != 2 || len(cov[0]) != 2 {
		t.Fatalf("Expected 2x2 matrix, got %dx%d", len(cov), len(cov[0]))
	}
	if cov[0][0] <= 0 || cov[1][1] <= 0 {
		t.Error("Expected positive diagonal variances")
	}
	if math.Abs(cov[0][1]-cov[1][0]) > 1e-12 {
		t.Error("Expected symmetric matrix")
	}
}
