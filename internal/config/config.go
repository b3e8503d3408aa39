package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Market   MarketConfig
	Backtest BacktestConfig
	Runner   RunnerConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// MarketConfig holds data provider and cache configuration
type MarketConfig struct {
	BenchmarkSymbol string
	CacheTTLDays    int
	// MaxConcurrentDownloads bounds the number of in-flight provider requests.
	MaxConcurrentDownloads int
	// ProfilesPath optionally points at a YAML file overriding the built-in
	// risk profile presets. Empty means built-ins only.
	ProfilesPath string
	// FernetKey is the base64 fernet key encrypting the provider API token
	// at rest. Empty disables provider token storage.
	FernetKey string
}

// BacktestConfig holds simulation defaults
type BacktestConfig struct {
	RiskFreeRate    float64 // annualized, e.g. 0.02
	InitialCapital  float64
	RebalanceMonths int
}

// RunnerConfig holds the automated scenario runner configuration
type RunnerConfig struct {
	// CronSchedule is a cron expression for scheduled batch runs.
	CronSchedule string
	// RunsPerProfile is how many random windows the runner generates per profile.
	RunsPerProfile int
	// Universe is the ticker universe scenario runs draw from.
	Universe []string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/backtest_engine.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost",
			},
		},
		Market: MarketConfig{
			BenchmarkSymbol:        getEnv("BENCHMARK_SYMBOL", "SPY"),
			CacheTTLDays:           getEnvInt("CACHE_TTL_DAYS", 30),
			MaxConcurrentDownloads: getEnvInt("MAX_CONCURRENT_DOWNLOADS", 4),
			ProfilesPath:           getEnv("PROFILES_PATH", ""),
			FernetKey:              getEnv("PROVIDER_SECRET_KEY", ""),
		},
		Backtest: BacktestConfig{
			RiskFreeRate:    getEnvFloat("RISK_FREE_RATE", 0.04),
			InitialCapital:  getEnvFloat("INITIAL_CAPITAL", 10000),
			RebalanceMonths: getEnvInt("REBALANCE_MONTHS", 3),
		},
		Runner: RunnerConfig{
			CronSchedule:   getEnv("RUNNER_CRON", "0 2 * * 6"),
			RunsPerProfile: getEnvInt("RUNNER_RUNS_PER_PROFILE", 5),
			Universe: getEnvList("RUNNER_UNIVERSE",
				"AAPL,MSFT,GOOGL,AMZN,NVDA,META,TSLA,JPM,V,UNH,XOM,JNJ,PG,HD,MA,LLY,ABBV,AVGO,COST,PEP"),
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvFloat gets a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// getEnvList gets a comma-separated environment variable or returns the
// default, split and trimmed.
func getEnvList(key, defaultValue string) []string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
