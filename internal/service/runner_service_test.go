package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/service"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/testutil"
)

// TestRunnerService_RunBatch tests scenario batch generation.
//
// WHY: The nightly runner fills the run table with comparable scenarios. A
// batch must produce one run per profile per slot, and re-running the same
// batch must skip names that already exist instead of erroring out.
func TestRunnerService_RunBatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	backtestSvc, _ := testutil.NewTestBacktestService(t, db)

	runner := service.NewRunnerService(
		backtestSvc,
		[]string{"AAPL", "MSFT", "GOOGL"},
		1,     // one run per profile
		10000, // initial capital
		3,     // quarterly rebalance
		0.04,
	).WithSeed(42)

	report, err := runner.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch() returned unexpected error: %v", err)
	}

	// Three built-in profiles, one slot each.
	if len(report.Started) != 3 {
		t.Fatalf("Expected 3 started runs, got started=%v failed=%v", report.Started, report.Failed)
	}
	if len(report.Skipped) != 0 || len(report.Failed) != 0 {
		t.Errorf("Expected no skips or failures, got skipped=%v failed=%v", report.Skipped, report.Failed)
	}

	runs, err := backtestSvc.ListRuns(context.Background(), model.BacktestRunFilter{})
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 stored runs, got %d", len(runs))
	}
	for _, run := range runs {
		if run.Status != model.RunStatusDone {
			t.Errorf("Run %s ended %s: %s", run.Name, run.Status, run.ErrorMessage)
		}
		window := run.EndDate.Sub(run.StartDate).Hours() / 24
		if window != 365 {
			t.Errorf("Run %s window is %v days, want 365", run.Name, window)
		}
	}

	t.Run("second batch skips existing names", func(t *testing.T) {
		report, err := runner.RunBatch(context.Background())
		if err != nil {
			t.Fatalf("Second RunBatch() failed: %v", err)
		}
		if len(report.Skipped) != 3 {
			t.Errorf("Expected 3 skips, got skipped=%v started=%v", report.Skipped, report.Started)
		}
		if len(report.Started) != 0 {
			t.Errorf("Expected no new runs, got %v", report.Started)
		}
	})
}

// TestRunnerService_RunBatch_Cancelled tests that a cancelled context stops
// the batch between runs.
func TestRunnerService_RunBatch_Cancelled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	backtestSvc, _ := testutil.NewTestBacktestService(t, db)

	runner := service.NewRunnerService(backtestSvc, []string{"AAPL"}, 2, 10000, 3, 0.04).WithSeed(7)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.RunBatch(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestRunnerService_RunBatch_ProviderFailure tests that download failures
// are reported per run without aborting the batch.
func TestRunnerService_RunBatch_ProviderFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	backtestSvc, provider := testutil.NewTestBacktestService(t, db)
	provider.MockError = errors.New("provider unavailable")

	runner := service.NewRunnerService(backtestSvc, []string{"AAPL"}, 1, 10000, 3, 0.04).WithSeed(7)

	report, err := runner.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch() returned unexpected error: %v", err)
	}
	if len(report.Failed) != 3 {
		t.Errorf("Expected every profile slot to fail, got failed=%v started=%v", report.Failed, report.Started)
	}
}
