package metrics_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/metrics"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

// curveFrom builds a daily curve from values, one point per weekday starting
// 2024-01-02.
func curveFrom(values ...float64) model.Curve {
	out := make(model.Curve, 0, len(values))
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for _, v := range values {
		for wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday; wd = d.Weekday() {
			d = d.AddDate(0, 0, 1)
		}
		out = append(out, model.EquityPoint{Date: d, Value: v})
		d = d.AddDate(0, 0, 1)
	}
	return out
}

// TestCompute_BasicReturns tests total return and final value.
func TestCompute_BasicReturns(t *testing.T) {
	m, err := metrics.Compute(curveFrom(10000, 10500, 11000), nil, 0.04)
	if err != nil {
		t.Fatalf("Compute() returned unexpected error: %v", err)
	}

	if m.TotalReturn != 10.0 {
		t.Errorf("Expected total return 10.0%%, got %v", m.TotalReturn)
	}
	if m.FinalValue != 11000 {
		t.Errorf("Expected final value 11000, got %v", m.FinalValue)
	}
	if m.NTradingDays != 2 {
		t.Errorf("Expected 2 trading days of returns, got %v", m.NTradingDays)
	}
}

// TestCompute_TooShort tests rejection of degenerate curves.
func TestCompute_TooShort(t *testing.T) {
	if _, err := metrics.Compute(curveFrom(10000, 10100), nil, 0.04); !errors.Is(err, apperrors.ErrInsufficientHistory) {
		t.Errorf("Expected ErrInsufficientHistory for a 2-point curve, got %v", err)
	}
}

// TestCompute_DrawdownGuards tests the zero-drawdown edge cases.
//
// WHY: A monotonically rising curve has no drawdown. Calmar and the
// drawdown duration must read 0, not NaN or a division-by-zero panic.
func TestCompute_DrawdownGuards(t *testing.T) {
	t.Run("monotonic rise has zero drawdown and duration", func(t *testing.T) {
		m, err := metrics.Compute(curveFrom(100, 101, 102, 103, 104), nil, 0.04)
		if err != nil {
			t.Fatalf("Compute() returned unexpected error: %v", err)
		}
		if m.MaxDrawdown != 0 {
			t.Errorf("Expected zero drawdown, got %v", m.MaxDrawdown)
		}
		if m.MaxDrawdownDuration != 0 {
			t.Errorf("Expected zero drawdown duration, got %v", m.MaxDrawdownDuration)
		}
		if m.CalmarRatio != 0 {
			t.Errorf("Expected Calmar 0 with no drawdown, got %v", m.CalmarRatio)
		}
	})

	t.Run("duration counts the longest below-peak run", func(t *testing.T) {
		// Peak at 110, below peak for 3 days, recover, then 1 day dip.
		m, err := metrics.Compute(curveFrom(100, 110, 105, 104, 106, 111, 108, 112), nil, 0.04)
		if err != nil {
			t.Fatalf("Compute() returned unexpected error: %v", err)
		}
		if m.MaxDrawdownDuration != 3 {
			t.Errorf("Expected longest drawdown run of 3 days, got %v", m.MaxDrawdownDuration)
		}
		expected := math.Round((104.0/110.0-1)*100*100) / 100
		if m.MaxDrawdown != expected {
			t.Errorf("Expected max drawdown %v, got %v", expected, m.MaxDrawdown)
		}
	})
}

// TestCompute_FlatCurve tests the zero-variance guards.
//
// WHY: A run that held cash the whole time produces a perfectly flat curve.
// Sharpe and Sortino divide by the return stdev and must yield 0, not NaN.
func TestCompute_FlatCurve(t *testing.T) {
	m, err := metrics.Compute(curveFrom(10000, 10000, 10000, 10000), nil, 0.04)
	if err != nil {
		t.Fatalf("Compute() returned unexpected error: %v", err)
	}
	if m.SharpeRatio != 0 || m.SortinoRatio != 0 {
		t.Errorf("Expected zero ratios on flat curve, got sharpe=%v sortino=%v", m.SharpeRatio, m.SortinoRatio)
	}
	if m.AnnualVolatility != 0 {
		t.Errorf("Expected zero volatility, got %v", m.AnnualVolatility)
	}
	if m.TotalReturn != 0 {
		t.Errorf("Expected zero total return, got %v", m.TotalReturn)
	}
}

// TestCompute_Benchmark tests benchmark-relative metrics.
func TestCompute_Benchmark(t *testing.T) {
	t.Run("omitted below the overlap threshold", func(t *testing.T) {
		m, err := metrics.Compute(
			curveFrom(100, 101, 102, 103, 104),
			curveFrom(50, 51, 50, 52, 51),
			0.04,
		)
		if err != nil {
			t.Fatalf("Compute() returned unexpected error: %v", err)
		}
		if m.Beta != nil || m.Alpha != nil {
			t.Error("Expected benchmark metrics omitted with short overlap")
		}
	})

	t.Run("beta is one against itself", func(t *testing.T) {
		values := make([]float64, 30)
		v := 100.0
		for i := range values {
			// Alternating moves so the return series has variance.
			if i%2 == 0 {
				v *= 1.01
			} else {
				v *= 0.995
			}
			values[i] = v
		}
		curve := curveFrom(values...)

		m, err := metrics.Compute(curve, curve, 0.04)
		if err != nil {
			t.Fatalf("Compute() returned unexpected error: %v", err)
		}
		if m.Beta == nil {
			t.Fatal("Expected beta with 29 overlapping returns")
		}
		if *m.Beta != 1.0 {
			t.Errorf("Expected beta 1.0 against itself, got %v", *m.Beta)
		}
		if m.Outperformance == nil || *m.Outperformance != 0 {
			t.Errorf("Expected zero outperformance against itself, got %v", m.Outperformance)
		}
	})
}
