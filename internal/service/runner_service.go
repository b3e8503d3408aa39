package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

// Scenario sampling bounds: windows are one year long and drawn uniformly
// from this period.
var (
	samplePeriodStart = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	samplePeriodEnd   = time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
)

const sampleWindowDays = 365

// RunnerService generates batches of randomized backtest scenarios: for
// each profile, a fixed number of one-year windows sampled from the
// configured period. Runs are named bkt_<profile>_<n> sequentially;
// a name that already exists is skipped, so re-running a batch only fills
// the gaps.
type RunnerService struct {
	backtestSvc    *BacktestService
	universe       []string
	runsPerProfile int
	initialCapital float64
	rebalance      int
	riskFree       float64
	rng            *rand.Rand
}

// NewRunnerService creates a new RunnerService. The rng seed is taken from
// the clock; tests inject a fixed seed via WithSeed.
func NewRunnerService(backtestSvc *BacktestService, universe []string, runsPerProfile int, initialCapital float64, rebalanceMonths int, riskFree float64) *RunnerService {
	return &RunnerService{
		backtestSvc:    backtestSvc,
		universe:       universe,
		runsPerProfile: runsPerProfile,
		initialCapital: initialCapital,
		rebalance:      rebalanceMonths,
		riskFree:       riskFree,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithSeed fixes the sampling seed for reproducible batches.
func (s *RunnerService) WithSeed(seed int64) *RunnerService {
	s.rng = rand.New(rand.NewSource(seed))
	return s
}

// BatchReport summarizes one batch invocation.
type BatchReport struct {
	Started []string `json:"started"`
	Skipped []string `json:"skipped"`
	Failed  []string `json:"failed"`
}

// RunBatch generates and executes the scenario batch, sequentially: each
// run finishes before the next starts, keeping a nightly batch from
// saturating the host. Returns the per-run outcome by name.
func (s *RunnerService) RunBatch(ctx context.Context) (BatchReport, error) {
	var report BatchReport

	profiles := make([]string, 0, len(s.backtestSvc.Profiles()))
	for name := range s.backtestSvc.Profiles() {
		profiles = append(profiles, name)
	}
	sort.Strings(profiles)

	for _, profile := range profiles {
		for n := 1; n <= s.runsPerProfile; n++ {
			if err := ctx.Err(); err != nil {
				return report, err
			}

			name := fmt.Sprintf("bkt_%s_%d", profile, n)
			start := s.sampleWindowStart()

			runID, err := s.backtestSvc.StartRun(StartRunRequest{
				Name:            name,
				Profile:         profile,
				Tickers:         s.universe,
				Start:           start,
				End:             start.AddDate(0, 0, sampleWindowDays),
				InitialCapital:  s.initialCapital,
				RebalanceMonths: s.rebalance,
				RiskFreeRate:    s.riskFree,
			})
			if errors.Is(err, apperrors.ErrDuplicateRun) {
				report.Skipped = append(report.Skipped, name)
				continue
			}
			if err != nil {
				report.Failed = append(report.Failed, name)
				continue
			}

			s.backtestSvc.WaitForRun(runID)
			run, err := s.backtestSvc.GetRun(ctx, runID)
			if err == nil && run.Status == model.RunStatusFailed {
				report.Failed = append(report.Failed, name)
				continue
			}
			report.Started = append(report.Started, name)
		}
	}
	return report, nil
}

// sampleWindowStart draws a uniform start date leaving room for a full
// window before the period end.
func (s *RunnerService) sampleWindowStart() time.Time {
	latest := samplePeriodEnd.AddDate(0, 0, -sampleWindowDays)
	span := int(latest.Sub(samplePeriodStart).Hours() / 24)
	offset := s.rng.Intn(span + 1)
	return samplePeriodStart.AddDate(0, 0, offset)
}
