package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/api/request"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/service"
)

// SystemHandler handles system-related HTTP requests
type SystemHandler struct {
	systemService *service.SystemService
	marketService *service.MarketDataService
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(systemService *service.SystemService, marketService *service.MarketDataService) *SystemHandler {
	return &SystemHandler{
		systemService: systemService,
		marketService: marketService,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

// Health checks the health of the system and database connectivity
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	// Check database health
	if err := h.systemService.CheckHealth(); err != nil {
		response := HealthResponse{
			Status:   "unhealthy",
			Database: "disconnected",
			Error:    err.Error(),
		}
		respondJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	// System is healthy
	response := HealthResponse{
		Status:   "healthy",
		Database: "connected",
	}
	respondJSON(w, http.StatusOK, response)
}

// VersionInfoResponse represents the version check response containing the
// application and database schema versions.
type VersionInfoResponse struct {
	AppVersion string `json:"app_version"`
	DbVersion  string `json:"db_version"`
}

// Version handles GET requests to retrieve version information.
//
// Endpoint: GET /api/system/version
// Response: 200 OK with VersionInfoResponse
// Error: 500 Internal Server Error if version check fails
func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	version, err := h.systemService.GetVersionInfo(r.Context())
	if err != nil {
		respondServiceError(w, "failed to get version information", err)
		return
	}

	response := VersionInfoResponse{
		AppVersion: version.AppVersion,
		DbVersion:  version.DbVersion,
	}
	respondJSON(w, http.StatusOK, response)
}

// ProviderConfigResponse represents the stored provider configuration. The
// token itself is never echoed back; only its presence is reported.
type ProviderConfigResponse struct {
	TokenConfigured    bool `json:"token_configured"`
	RateLimitPerMinute int  `json:"rate_limit_per_minute"`
	Enabled            bool `json:"enabled"`
}

// GetProviderConfig handles GET requests for the market-data provider
// configuration.
//
// Endpoint: GET /api/system/provider
func (h *SystemHandler) GetProviderConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.systemService.GetProviderConfig(r.Context())
	if err != nil {
		respondServiceError(w, "failed to retrieve provider configuration", err)
		return
	}

	response := ProviderConfigResponse{
		TokenConfigured:    cfg.APIToken != "",
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Enabled:            cfg.Enabled,
	}
	respondJSON(w, http.StatusOK, response)
}

// SetProviderConfig handles PUT requests to store the market-data provider
// token and rate limit.
//
// Endpoint: PUT /api/system/provider
func (h *SystemHandler) SetProviderConfig(w http.ResponseWriter, r *http.Request) {
	var req request.ProviderTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid request body",
			"detail": err.Error(),
		})
		return
	}
	if req.APIToken == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "api_token is required",
		})
		return
	}
	if req.RateLimitPerMinute <= 0 {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rate_limit_per_minute must be positive",
		})
		return
	}

	if err := h.systemService.SetProviderToken(r.Context(), req.APIToken, req.RateLimitPerMinute, req.Enabled); err != nil {
		respondServiceError(w, "failed to store provider configuration", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

// PurgeDatasetsResponse reports how many expired dataset cache entries were
// removed.
type PurgeDatasetsResponse struct {
	Purged int64 `json:"purged"`
}

// PurgeDatasets handles POST requests to drop expired dataset cache entries.
//
// Endpoint: POST /api/system/datasets/purge
func (h *SystemHandler) PurgeDatasets(w http.ResponseWriter, r *http.Request) {
	purged, err := h.marketService.PurgeExpired(r.Context())
	if err != nil {
		respondServiceError(w, "failed to purge expired datasets", err)
		return
	}
	respondJSON(w, http.StatusOK, PurgeDatasetsResponse{Purged: purged})
}
