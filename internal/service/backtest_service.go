package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/backtest"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/pipeline"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/repository"
)

// optimizerRiskFree is the annualized risk-free rate handed to the
// weighting strategies. It deliberately differs from the reporting rate:
// selection ranks portfolios on a slightly cheaper cash alternative than
// the one metrics are judged against.
const optimizerRiskFree = 0.02

// StartRunRequest carries everything needed to launch a backtest.
type StartRunRequest struct {
	Name            string
	Profile         string
	Tickers         []string
	Start           time.Time
	End             time.Time
	InitialCapital  float64
	RebalanceMonths int
	RiskFreeRate    float64
}

// RunProgress is a point-in-time view of a running backtest.
type RunProgress struct {
	RunID   string          `json:"run_id"`
	Status  model.RunStatus `json:"status"`
	Message string          `json:"message,omitempty"`
	Percent float64         `json:"percent"`
}

// runHandle tracks one in-flight run: its cancel function, latest progress
// report, and completion signal.
type runHandle struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	status  model.RunStatus
	message string
	percent float64
}

func (h *runHandle) update(message string, percent float64) {
	h.mu.Lock()
	h.message = message
	h.percent = percent
	h.mu.Unlock()
}

func (h *runHandle) setStatus(status model.RunStatus) {
	h.mu.Lock()
	h.status = status
	h.mu.Unlock()
}

func (h *runHandle) snapshot(runID string) RunProgress {
	h.mu.Lock()
	defer h.mu.Unlock()
	return RunProgress{RunID: runID, Status: h.status, Message: h.message, Percent: h.percent}
}

// BacktestService owns the run lifecycle: creating run rows, executing the
// replay engine on background goroutines, exposing live progress, and
// persisting results. Each in-flight run has its own handle, so concurrent
// runs never share state.
type BacktestService struct {
	runRepo   *repository.BacktestRunRepository
	marketSvc *MarketDataService
	profiles  map[string]pipeline.Profile

	mu      sync.Mutex
	running map[string]*runHandle
}

// NewBacktestService creates a new BacktestService.
func NewBacktestService(runRepo *repository.BacktestRunRepository, marketSvc *MarketDataService, profiles map[string]pipeline.Profile) *BacktestService {
	return &BacktestService{
		runRepo:   runRepo,
		marketSvc: marketSvc,
		profiles:  profiles,
		running:   make(map[string]*runHandle),
	}
}

// Profiles returns the configured profile presets.
func (s *BacktestService) Profiles() map[string]pipeline.Profile {
	return s.profiles
}

// StartRun validates the request, records a pending run, and launches the
// replay on a background goroutine. Returns the new run's ID immediately.
func (s *BacktestService) StartRun(req StartRunRequest) (string, error) {
	profile, ok := s.profiles[req.Profile]
	if !ok {
		return "", fmt.Errorf("%s: %w", req.Profile, apperrors.ErrProfileNotFound)
	}

	cfg := backtest.RunConfig{
		Start:           req.Start,
		End:             req.End,
		InitialCapital:  req.InitialCapital,
		RebalanceMonths: req.RebalanceMonths,
		RiskFreeRate:    req.RiskFreeRate,
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if len(req.Tickers) == 0 {
		return "", apperrors.ErrEmptySelection
	}

	run := &model.BacktestRun{
		Name:            req.Name,
		Profile:         req.Profile,
		StartDate:       req.Start,
		EndDate:         req.End,
		InitialCapital:  req.InitialCapital,
		RebalanceMonths: req.RebalanceMonths,
	}
	runID, err := s.runRepo.CreateRun(context.Background(), run)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	handle := &runHandle{
		cancel: cancel,
		done:   make(chan struct{}),
		status: model.RunStatusPending,
	}
	s.mu.Lock()
	s.running[runID] = handle
	s.mu.Unlock()

	go s.execute(ctx, runID, req, profile, cfg, handle)
	return runID, nil
}

// execute runs one backtest to completion and persists the outcome.
func (s *BacktestService) execute(ctx context.Context, runID string, req StartRunRequest, profile pipeline.Profile, cfg backtest.RunConfig, handle *runHandle) {
	started := time.Now()
	defer func() {
		handle.cancel()
		close(handle.done)
		s.mu.Lock()
		delete(s.running, runID)
		s.mu.Unlock()
	}()

	fail := func(err error) {
		handle.setStatus(model.RunStatusFailed)
		_ = s.runRepo.MarkFailed(context.Background(), runID, err.Error(), time.Since(started).Seconds())
	}

	handle.setStatus(model.RunStatusRunning)
	handle.update("materializing dataset", 2)
	if err := s.runRepo.UpdateStatus(ctx, runID, model.RunStatusRunning); err != nil {
		fail(err)
		return
	}

	data, err := s.marketSvc.GetDataset(ctx, req.Tickers, req.Start, req.End)
	if err != nil {
		fail(err)
		return
	}

	selector := pipeline.NewSelector(data, optimizerRiskFree)
	engine := backtest.NewEngine(data, selector, profile, cfg, handle.update)

	result, err := engine.Run(ctx)
	if err != nil {
		fail(err)
		return
	}

	run, err := resultToRun(runID, result)
	if err != nil {
		fail(err)
		return
	}
	run.DurationSeconds = time.Since(started).Seconds()

	// Persist with a fresh context: a canceled run that still finished
	// its last day deserves its row updated.
	if err := s.runRepo.StoreResult(context.Background(), run); err != nil {
		fail(err)
		return
	}
	handle.setStatus(model.RunStatusDone)
	handle.update("backtest finished", 100)
}

// GetRun retrieves one run with its stored results.
func (s *BacktestService) GetRun(ctx context.Context, runID string) (model.BacktestRun, error) {
	return s.runRepo.GetRunOnID(ctx, runID)
}

// ListRuns retrieves runs matching the filter.
func (s *BacktestService) ListRuns(ctx context.Context, filter model.BacktestRunFilter) ([]model.BacktestRun, error) {
	return s.runRepo.ListRuns(ctx, filter)
}

// GetProgress reports live progress for an in-flight run, falling back to
// the stored status for finished ones.
func (s *BacktestService) GetProgress(ctx context.Context, runID string) (RunProgress, error) {
	s.mu.Lock()
	handle, ok := s.running[runID]
	s.mu.Unlock()
	if ok {
		return handle.snapshot(runID), nil
	}

	run, err := s.runRepo.GetRunOnID(ctx, runID)
	if err != nil {
		return RunProgress{}, err
	}
	progress := RunProgress{RunID: runID, Status: run.Status}
	if run.Status == model.RunStatusDone {
		progress.Percent = 100
	}
	if run.ErrorMessage != "" {
		progress.Message = run.ErrorMessage
	}
	return progress, nil
}

// CancelRun cancels an in-flight run. Finished runs are not cancellable.
func (s *BacktestService) CancelRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	handle, ok := s.running[runID]
	s.mu.Unlock()
	if !ok {
		run, err := s.runRepo.GetRunOnID(ctx, runID)
		if err != nil {
			return err
		}
		return fmt.Errorf("run %s is %s: %w", runID, run.Status, apperrors.ErrRunNotCancellable)
	}

	handle.cancel()
	<-handle.done
	return nil
}

// WaitForRun blocks until an in-flight run completes. Returns immediately
// for runs that are not in flight.
func (s *BacktestService) WaitForRun(runID string) {
	s.mu.Lock()
	handle, ok := s.running[runID]
	s.mu.Unlock()
	if ok {
		<-handle.done
	}
}

// GetStats aggregates finished runs per profile.
func (s *BacktestService) GetStats(ctx context.Context) ([]model.ProfileStats, error) {
	return s.runRepo.GetProfileStats(ctx)
}

// resultToRun converts an engine result into the persisted run record.
func resultToRun(runID string, result *backtest.Result) (*model.BacktestRun, error) {
	equity, err := json.Marshal(result.EquityCurve)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize equity curve: %w", err)
	}
	benchmark, err := json.Marshal(result.BenchmarkCurve)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize benchmark curve: %w", err)
	}
	snapshots, err := json.Marshal(result.Snapshots)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshots: %w", err)
	}

	m := result.Metrics
	nRebalances := result.NRebalances
	return &model.BacktestRun{
		ID:                  runID,
		TotalReturn:         &m.TotalReturn,
		CAGR:                &m.CAGR,
		SharpeRatio:         &m.SharpeRatio,
		SortinoRatio:        &m.SortinoRatio,
		MaxDrawdown:         &m.MaxDrawdown,
		MaxDrawdownDuration: &m.MaxDrawdownDuration,
		CalmarRatio:         &m.CalmarRatio,
		AnnualVolatility:    &m.AnnualVolatility,
		Alpha:               m.Alpha,
		Beta:                m.Beta,
		BenchmarkReturn:     m.BenchmarkReturn,
		Outperformance:      m.Outperformance,
		FinalValue:          &m.FinalValue,
		NTradingDays:        &m.NTradingDays,
		NRebalances:         &nRebalances,
		NStocksAvg:          &result.NStocksAvg,
		EquityCurveJSON:     string(equity),
		BenchmarkCurveJSON:  string(benchmark),
		SnapshotsJSON:       string(snapshots),
	}, nil
}
