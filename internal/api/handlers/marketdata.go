package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/service"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/validation"
)

// MarketDataHandler handles market data HTTP requests
type MarketDataHandler struct {
	marketService *service.MarketDataService
}

// NewMarketDataHandler creates a new MarketDataHandler
func NewMarketDataHandler(marketService *service.MarketDataService) *MarketDataHandler {
	return &MarketDataHandler{marketService: marketService}
}

// PriceHistoryResponse represents a ticker's stored daily price history.
type PriceHistoryResponse struct {
	Ticker string             `json:"ticker"`
	Points []model.PricePoint `json:"points"`
}

// PriceHistory handles GET requests for a ticker's stored prices.
//
// Endpoint: GET /api/market/prices/{ticker}?start=2020-01-01&end=2023-01-01
func (h *MarketDataHandler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if err := validation.ValidateSymbol(ticker); err != nil {
		respondServiceError(w, "invalid ticker", err)
		return
	}

	start, end, err := parseDateRange(r, time.Time{}, time.Now().UTC())
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid date range",
			"detail": err.Error(),
		})
		return
	}

	series, err := h.marketService.GetPriceHistory(r.Context(), ticker, start, end)
	if err != nil {
		respondServiceError(w, "failed to retrieve price history", err)
		return
	}

	respondJSON(w, http.StatusOK, PriceHistoryResponse{
		Ticker: series.Ticker,
		Points: series.Points,
	})
}

// FundamentalsResponse represents point-in-time fundamentals for one ticker.
// Metric fields are omitted when the underlying reports do not cover them.
type FundamentalsResponse struct {
	Ticker          string   `json:"ticker"`
	AsOf            string   `json:"as_of"`
	MarketCap       *float64 `json:"market_cap,omitempty"`
	AverageVolume   *float64 `json:"average_volume,omitempty"`
	ReturnOnEquity  *float64 `json:"return_on_equity,omitempty"`
	NetMargin       *float64 `json:"net_margin,omitempty"`
	OperatingMargin *float64 `json:"operating_margin,omitempty"`
	DebtToEquity    *float64 `json:"debt_to_equity,omitempty"`
	DividendYield   *float64 `json:"dividend_yield,omitempty"`
	EarningsGrowth  *float64 `json:"earnings_growth,omitempty"`
	GrowthBasis     string   `json:"growth_basis,omitempty"`
	Approximate     bool     `json:"approximate"`
	Sector          string   `json:"sector,omitempty"`
	Industry        string   `json:"industry,omitempty"`
}

// Fundamentals handles GET requests for point-in-time fundamentals.
//
// Endpoint: GET /api/market/fundamentals/{ticker}?date=2022-06-30
func (h *MarketDataHandler) Fundamentals(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if err := validation.ValidateSymbol(ticker); err != nil {
		respondServiceError(w, "invalid ticker", err)
		return
	}

	asOf := time.Now().UTC()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := validation.ParseTime(dateStr)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{
				"error":  "invalid date",
				"detail": err.Error(),
			})
			return
		}
		asOf = parsed
	}

	metrics, err := h.marketService.GetFundamentalsAsOf(r.Context(), ticker, asOf)
	if err != nil {
		respondServiceError(w, "failed to compute fundamentals", err)
		return
	}

	respondJSON(w, http.StatusOK, FundamentalsResponse{
		Ticker:          ticker,
		AsOf:            asOf.Format("2006-01-02"),
		MarketCap:       metrics.MarketCap,
		AverageVolume:   metrics.AverageVolume,
		ReturnOnEquity:  metrics.ReturnOnEquity,
		NetMargin:       metrics.NetMargin,
		OperatingMargin: metrics.OperatingMargin,
		DebtToEquity:    metrics.DebtToEquity,
		DividendYield:   metrics.DividendYield,
		EarningsGrowth:  metrics.EarningsGrowth,
		GrowthBasis:     string(metrics.GrowthBasis),
		Approximate:     metrics.Approximate,
		Sector:          metrics.Sector,
		Industry:        metrics.Industry,
	})
}

// TickersResponse lists the tickers with stored history.
type TickersResponse struct {
	Tickers []string `json:"tickers"`
}

// Tickers handles GET requests for the stored ticker inventory.
//
// Endpoint: GET /api/market/tickers
func (h *MarketDataHandler) Tickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.marketService.ListTickers(r.Context())
	if err != nil {
		respondServiceError(w, "failed to list tickers", err)
		return
	}
	respondJSON(w, http.StatusOK, TickersResponse{Tickers: tickers})
}

// parseDateRange reads optional start/end query parameters, falling back to
// the provided defaults, and rejects an inverted range.
func parseDateRange(r *http.Request, defaultStart, defaultEnd time.Time) (time.Time, time.Time, error) {
	start, end := defaultStart, defaultEnd
	if s := r.URL.Query().Get("start"); s != "" {
		parsed, err := validation.ParseTime(s)
		if err != nil {
			return start, end, err
		}
		start = parsed
	}
	if e := r.URL.Query().Get("end"); e != "" {
		parsed, err := validation.ParseTime(e)
		if err != nil {
			return start, end, err
		}
		end = parsed
	}
	if end.Before(start) {
		return start, end, validation.ErrInvalidDateRange
	}
	return start, end, nil
}
