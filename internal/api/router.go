package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/api/handlers"
	custommiddleware "github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/api/middleware"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/config"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(systemService *service.SystemService, backtestService *service.BacktestService, marketService *service.MarketDataService, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(systemService, marketService)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
			r.Get("/provider", systemHandler.GetProviderConfig)
			r.Put("/provider", systemHandler.SetProviderConfig)
			r.Post("/datasets/purge", systemHandler.PurgeDatasets)
		})

		r.Route("/backtest", func(r chi.Router) {
			backtestHandler := handlers.NewBacktestHandler(backtestService, handlers.BacktestDefaults{
				InitialCapital:  cfg.Backtest.InitialCapital,
				RebalanceMonths: cfg.Backtest.RebalanceMonths,
				RiskFreeRate:    cfg.Backtest.RiskFreeRate,
			})
			r.Post("/", backtestHandler.Create)
			r.Get("/", backtestHandler.List)
			r.Get("/stats", backtestHandler.Stats)
			r.Get("/profiles", backtestHandler.Profiles)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", backtestHandler.Get)
				r.Get("/progress", backtestHandler.Progress)
				r.Delete("/", backtestHandler.Cancel)
			})
		})

		r.Route("/market", func(r chi.Router) {
			marketHandler := handlers.NewMarketDataHandler(marketService)
			r.Get("/tickers", marketHandler.Tickers)
			r.Get("/prices/{ticker}", marketHandler.PriceHistory)
			r.Get("/fundamentals/{ticker}", marketHandler.Fundamentals)
		})
	})

	return r
}
