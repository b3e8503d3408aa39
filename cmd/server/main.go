package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/api"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/config"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/database"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/pipeline"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/repository"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/service"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/yahoo"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Printf("Connected to database: %s", cfg.Database.Path)

	// Load risk profiles
	profiles := pipeline.BuiltinProfiles()
	if cfg.Market.ProfilesPath != "" {
		profiles, err = pipeline.LoadProfiles(cfg.Market.ProfilesPath)
		if err != nil {
			log.Fatalf("Failed to load profiles from %s: %v", cfg.Market.ProfilesPath, err)
		}
		log.Printf("Loaded %d profiles from %s", len(profiles), cfg.Market.ProfilesPath)
	}

	// Create repositories
	runRepo := repository.NewBacktestRunRepository(db)
	marketRepo := repository.NewMarketDataRepository(db)
	providerRepo := repository.NewProviderConfigRepository(db)

	// Create market data provider
	client := yahoo.NewFinanceClient(30 * time.Second)
	downloader := yahoo.NewDownloader(client, cfg.Market.MaxConcurrentDownloads)

	// Create services
	systemService, err := service.NewSystemService(db, providerRepo, cfg.Market.FernetKey)
	if err != nil {
		log.Fatalf("Failed to create system service: %v", err)
	}
	marketService := service.NewMarketDataService(
		marketRepo,
		downloader,
		cfg.Market.BenchmarkSymbol,
		cfg.Market.CacheTTLDays,
	)
	backtestService := service.NewBacktestService(runRepo, marketService, profiles)

	// Create router
	router := api.NewRouter(systemService, backtestService, marketService, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
