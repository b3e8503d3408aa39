package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/api/request"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/backtest"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/service"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/validation"
)

// BacktestDefaults carries the configured fallbacks for optional request
// fields.
type BacktestDefaults struct {
	InitialCapital  float64
	RebalanceMonths int
	RiskFreeRate    float64
}

// BacktestHandler handles backtest run HTTP requests
type BacktestHandler struct {
	backtestService *service.BacktestService
	defaults        BacktestDefaults
}

// NewBacktestHandler creates a new BacktestHandler
func NewBacktestHandler(backtestService *service.BacktestService, defaults BacktestDefaults) *BacktestHandler {
	return &BacktestHandler{
		backtestService: backtestService,
		defaults:        defaults,
	}
}

// CreateRunResponse represents the response to a run creation request.
type CreateRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// RunSummaryResponse represents one run in list responses: parameters,
// status, and headline metrics without the serialized curves.
type RunSummaryResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Status          string   `json:"status"`
	Profile         string   `json:"profile"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	InitialCapital  float64  `json:"initial_capital"`
	RebalanceMonths int      `json:"rebalance_months"`
	TotalReturn     *float64 `json:"total_return,omitempty"`
	CAGR            *float64 `json:"cagr,omitempty"`
	SharpeRatio     *float64 `json:"sharpe_ratio,omitempty"`
	MaxDrawdown     *float64 `json:"max_drawdown,omitempty"`
	FinalValue      *float64 `json:"final_value,omitempty"`
	ErrorMessage    string   `json:"error_message,omitempty"`
	DurationSeconds float64  `json:"duration_seconds,omitempty"`
}

// RunDetailResponse extends the summary with every stored metric and the
// decoded curves and snapshot log.
type RunDetailResponse struct {
	RunSummaryResponse
	SortinoRatio        *float64          `json:"sortino_ratio,omitempty"`
	MaxDrawdownDuration *int              `json:"max_drawdown_duration,omitempty"`
	CalmarRatio         *float64          `json:"calmar_ratio,omitempty"`
	AnnualVolatility    *float64          `json:"annual_volatility,omitempty"`
	Alpha               *float64          `json:"alpha,omitempty"`
	Beta                *float64          `json:"beta,omitempty"`
	BenchmarkReturn     *float64          `json:"benchmark_return,omitempty"`
	Outperformance      *float64          `json:"outperformance,omitempty"`
	NTradingDays        *int              `json:"n_trading_days,omitempty"`
	NRebalances         *int              `json:"n_rebalances,omitempty"`
	NStocksAvg          *float64        `json:"n_stocks_avg,omitempty"`
	EquityCurve         json.RawMessage `json:"equity_curve,omitempty"`
	BenchmarkCurve      json.RawMessage `json:"benchmark_curve,omitempty"`
	Snapshots           json.RawMessage `json:"snapshots,omitempty"`
	Disclaimer          string          `json:"disclaimer,omitempty"`
}

// Create handles POST requests to start a new backtest run.
//
// Endpoint: POST /api/backtest
// Response: 202 Accepted with the new run's ID
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateBacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid request body",
			"detail": err.Error(),
		})
		return
	}

	if req.InitialCapital == 0 {
		req.InitialCapital = h.defaults.InitialCapital
	}
	if req.RebalanceMonths == 0 {
		req.RebalanceMonths = h.defaults.RebalanceMonths
	}

	validated, err := validation.ValidateCreateBacktest(
		req.Name, req.Profile, req.Tickers, req.StartDate, req.EndDate,
		req.InitialCapital, req.RebalanceMonths)
	if err != nil {
		respondServiceError(w, "validation failed", err)
		return
	}

	runID, err := h.backtestService.StartRun(service.StartRunRequest{
		Name:            validated.Name,
		Profile:         validated.Profile,
		Tickers:         validated.Tickers,
		Start:           validated.Start,
		End:             validated.End,
		InitialCapital:  validated.InitialCapital,
		RebalanceMonths: validated.RebalanceMonths,
		RiskFreeRate:    h.defaults.RiskFreeRate,
	})
	if err != nil {
		respondServiceError(w, "failed to start backtest run", err)
		return
	}

	respondJSON(w, http.StatusAccepted, CreateRunResponse{
		RunID:  runID,
		Status: string(model.RunStatusPending),
	})
}

// List handles GET requests for stored runs, filterable by profile and
// status.
//
// Endpoint: GET /api/backtest?profile=balanced&status=done&limit=20
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := model.BacktestRunFilter{
		Profile: r.URL.Query().Get("profile"),
		Status:  model.RunStatus(r.URL.Query().Get("status")),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			respondJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		filter.Limit = limit
	}

	runs, err := h.backtestService.ListRuns(r.Context(), filter)
	if err != nil {
		respondServiceError(w, "failed to retrieve backtest runs", err)
		return
	}

	response := make([]RunSummaryResponse, len(runs))
	for i, run := range runs {
		response[i] = runSummary(run)
	}
	respondJSON(w, http.StatusOK, response)
}

// Get handles GET requests for a single run with full results.
//
// Endpoint: GET /api/backtest/{uuid}
func (h *BacktestHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.backtestService.GetRun(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, "failed to retrieve backtest run", err)
		return
	}

	response := RunDetailResponse{
		RunSummaryResponse:  runSummary(run),
		SortinoRatio:        run.SortinoRatio,
		MaxDrawdownDuration: run.MaxDrawdownDuration,
		CalmarRatio:         run.CalmarRatio,
		AnnualVolatility:    run.AnnualVolatility,
		Alpha:               run.Alpha,
		Beta:                run.Beta,
		BenchmarkReturn:     run.BenchmarkReturn,
		Outperformance:      run.Outperformance,
		NTradingDays:        run.NTradingDays,
		NRebalances:         run.NRebalances,
		NStocksAvg:          run.NStocksAvg,
	}
	if run.EquityCurveJSON != "" {
		response.EquityCurve = json.RawMessage(run.EquityCurveJSON)
	}
	if run.BenchmarkCurveJSON != "" {
		response.BenchmarkCurve = json.RawMessage(run.BenchmarkCurveJSON)
	}
	if run.SnapshotsJSON != "" {
		response.Snapshots = json.RawMessage(run.SnapshotsJSON)
	}
	if run.Status == model.RunStatusDone {
		response.Disclaimer = backtest.Disclaimer
	}
	respondJSON(w, http.StatusOK, response)
}

// Progress handles GET requests for a run's live progress.
//
// Endpoint: GET /api/backtest/{uuid}/progress
func (h *BacktestHandler) Progress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.backtestService.GetProgress(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, "failed to retrieve run progress", err)
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

// Cancel handles DELETE requests to cancel an in-flight run.
//
// Endpoint: DELETE /api/backtest/{uuid}
func (h *BacktestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.backtestService.CancelRun(r.Context(), chi.URLParam(r, "uuid")); err != nil {
		respondServiceError(w, "failed to cancel backtest run", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// Stats handles GET requests for per-profile aggregates over finished runs.
//
// Endpoint: GET /api/backtest/stats
func (h *BacktestHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.backtestService.GetStats(r.Context())
	if err != nil {
		respondServiceError(w, "failed to retrieve run statistics", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// ProfileResponse represents one selectable risk profile.
type ProfileResponse struct {
	Name            string  `json:"name"`
	Strategy        string  `json:"strategy"`
	MaxWeight       float64 `json:"max_weight,omitempty"`
	StopLossEnabled bool    `json:"stop_loss_enabled"`
}

// Profiles handles GET requests for the configured profile presets.
//
// Endpoint: GET /api/backtest/profiles
func (h *BacktestHandler) Profiles(w http.ResponseWriter, r *http.Request) {
	profiles := h.backtestService.Profiles()

	response := make([]ProfileResponse, 0, len(profiles))
	for _, p := range profiles {
		response = append(response, ProfileResponse{
			Name:            p.Name,
			Strategy:        string(p.Strategy),
			MaxWeight:       p.MaxWeight,
			StopLossEnabled: p.StopLossEnabled,
		})
	}
	sort.Slice(response, func(i, j int) bool { return response[i].Name < response[j].Name })
	respondJSON(w, http.StatusOK, response)
}

func runSummary(run model.BacktestRun) RunSummaryResponse {
	return RunSummaryResponse{
		ID:              run.ID,
		Name:            run.Name,
		Status:          string(run.Status),
		Profile:         run.Profile,
		StartDate:       run.StartDate.Format("2006-01-02"),
		EndDate:         run.EndDate.Format("2006-01-02"),
		InitialCapital:  run.InitialCapital,
		RebalanceMonths: run.RebalanceMonths,
		TotalReturn:     run.TotalReturn,
		CAGR:            run.CAGR,
		SharpeRatio:     run.SharpeRatio,
		MaxDrawdown:     run.MaxDrawdown,
		FinalValue:      run.FinalValue,
		ErrorMessage:    run.ErrorMessage,
		DurationSeconds: run.DurationSeconds,
	}
}
