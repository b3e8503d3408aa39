package testutil

import (
	"database/sql"
	"testing"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/pipeline"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/repository"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/service"
)

// TestBenchmark is the benchmark symbol used across service tests.
const TestBenchmark = "SPY"

// NewTestMarketDataService wires a MarketDataService to the test database
// and a mock provider. The mock is returned so tests can inject failures
// and count downloads.
func NewTestMarketDataService(t *testing.T, db *sql.DB) (*service.MarketDataService, *MockMarketProvider) {
	t.Helper()

	provider := NewMockMarketProvider()
	marketRepo := repository.NewMarketDataRepository(db)

	return service.NewMarketDataService(marketRepo, provider, TestBenchmark, 30), provider
}

// NewTestBacktestService wires a BacktestService with the built-in profile
// presets, the test database, and a mock market provider.
func NewTestBacktestService(t *testing.T, db *sql.DB) (*service.BacktestService, *MockMarketProvider) {
	t.Helper()

	marketSvc, provider := NewTestMarketDataService(t, db)
	runRepo := repository.NewBacktestRunRepository(db)

	return service.NewBacktestService(runRepo, marketSvc, pipeline.BuiltinProfiles()), provider
}

// NewTestSystemService wires a SystemService with a generated fernet key so
// provider token round-trips work in tests.
func NewTestSystemService(t *testing.T, db *sql.DB, fernetKey string) *service.SystemService {
	t.Helper()

	providerRepo := repository.NewProviderConfigRepository(db)
	svc, err := service.NewSystemService(db, providerRepo, fernetKey)
	if err != nil {
		t.Fatalf("Failed to create system service: %v", err)
	}
	return svc
}
