package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/config"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/database"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/pipeline"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/repository"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/service"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/yahoo"
)

func main() {
	once := flag.Bool("once", false, "run a single batch immediately and exit")
	flag.Parse()

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

	// Load risk profiles
	profiles := pipeline.BuiltinProfiles()
	if cfg.Market.ProfilesPath != "" {
		profiles, err = pipeline.LoadProfiles(cfg.Market.ProfilesPath)
		if err != nil {
			log.Fatalf("Failed to load profiles from %s: %v", cfg.Market.ProfilesPath, err)
		}
	}

	// Wire the batch runner
	client := yahoo.NewFinanceClient(30 * time.Second)
	downloader := yahoo.NewDownloader(client, cfg.Market.MaxConcurrentDownloads)
	marketService := service.NewMarketDataService(
		repository.NewMarketDataRepository(db),
		downloader,
		cfg.Market.BenchmarkSymbol,
		cfg.Market.CacheTTLDays,
	)
	backtestService := service.NewBacktestService(
		repository.NewBacktestRunRepository(db),
		marketService,
		profiles,
	)
	runner := service.NewRunnerService(
		backtestService,
		cfg.Runner.Universe,
		cfg.Runner.RunsPerProfile,
		cfg.Backtest.InitialCapital,
		cfg.Backtest.RebalanceMonths,
		cfg.Backtest.RiskFreeRate,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runBatch := func() {
		log.Println("Starting scenario batch")
		report, err := runner.RunBatch(ctx)
		if err != nil {
			log.Printf("Batch aborted: %v", err)
			return
		}
		log.Printf("Batch finished: %d started, %d skipped, %d failed",
			len(report.Started), len(report.Skipped), len(report.Failed))
		if _, err := marketService.PurgeExpired(ctx); err != nil {
			log.Printf("Failed to purge expired datasets: %v", err)
		}
	}

	if *once {
		runBatch()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Runner.CronSchedule, runBatch); err != nil {
		log.Fatalf("Invalid cron schedule %q: %v", cfg.Runner.CronSchedule, err)
	}
	c.Start()
	log.Printf("Scenario runner scheduled: %s", cfg.Runner.CronSchedule)

	<-ctx.Done()
	log.Println("Shutting down runner...")

	// Let an in-flight batch finish its current run before exiting.
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
	}

	log.Println("Runner exited")
}
