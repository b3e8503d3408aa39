package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrRunNotFound indicates that a backtest run with the given ID does not exist.
	ErrRunNotFound = errors.New("backtest run not found")

	// ErrTickerNotFound indicates that no data is loaded for the requested ticker.
	ErrTickerNotFound = errors.New("ticker not found in dataset")

	// ErrPriceNotFound indicates no price record at or before the requested date.
	ErrPriceNotFound = errors.New("price not found")

	// ErrFundamentalsNotFound indicates no fundamental reports at or before the requested date.
	ErrFundamentalsNotFound = errors.New("fundamentals not found")

	// ErrProfileNotFound indicates that the named risk profile is not defined.
	ErrProfileNotFound = errors.New("risk profile not found")

	// ErrProviderConfigNotFound indicates the data provider has not been configured.
	ErrProviderConfigNotFound = errors.New("provider configuration not found")

	// ErrSymbolNotFound indicates that a symbol lookup returned no results
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrDatasetCacheMiss indicates no live dataset cache entry for the
	// requested content key.
	ErrDatasetCacheMiss = errors.New("dataset cache entry not found")
)

// Business logic errors represent validation failures or constraint violations.
// These errors indicate that an operation cannot be completed due to business rules.
var (
	// ErrInvalidDateRange indicates that the provided date range is invalid
	// (e.g., start date is after end date).
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrEmptyID indicates that a required ID parameter is empty or missing.
	ErrEmptyID = errors.New("ID cannot be empty")

	// ErrInvalidCapital indicates that the initial capital is zero or negative.
	ErrInvalidCapital = errors.New("initial capital must be positive")

	// ErrDuplicateRun indicates a run with the same name already exists.
	ErrDuplicateRun = errors.New("duplicate run name")

	// ErrRunNotCancellable indicates the run has already reached a terminal state.
	ErrRunNotCancellable = errors.New("run is not cancellable")

	// Validation errors for required fields
	ErrInvalidProfile = errors.New("profile is required")
	ErrInvalidRunID   = errors.New("run ID is required")
	ErrInvalidSymbol  = errors.New("symbol is required")
	ErrInvalidDate    = errors.New("date parameter is required")
)

// Pipeline and simulation errors represent failures during a backtest run.
// A pipeline failure on a rebalance day is not fatal to the run; the engine
// records it and holds cash until the next rebalance.
var (
	// ErrInsufficientHistory indicates a ticker has too few trading days for
	// the computation at hand.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrEmptySelection indicates the pipeline eliminated every candidate.
	ErrEmptySelection = errors.New("no tickers survived selection")

	// ErrSingularCovariance indicates the covariance matrix could not be
	// inverted and the optimizer must fall back.
	ErrSingularCovariance = errors.New("covariance matrix is singular")

	// ErrBenchmarkUnavailable indicates the benchmark series does not cover
	// the simulation window.
	ErrBenchmarkUnavailable = errors.New("benchmark data unavailable")
)

// Operation failure errors represent system-level failures when retrieving or
// processing data. These errors indicate that an operation failed, but not due
// to missing entities or validation issues.
var (
	// Run operation errors
	ErrFailedToRetrieveRuns  = errors.New("failed to retrieve backtest runs")
	ErrFailedToRetrieveRun   = errors.New("failed to retrieve backtest run")
	ErrFailedToRetrieveStats = errors.New("failed to retrieve run statistics")
	ErrFailedToStartRun      = errors.New("failed to start backtest run")

	// Market data operation errors
	ErrFailedToRetrievePrices       = errors.New("failed to retrieve price history")
	ErrFailedToRetrieveFundamentals = errors.New("failed to retrieve fundamentals")
	ErrFailedToRefreshDataset       = errors.New("failed to refresh dataset")
	ErrDownloadFailed               = errors.New("market data download failed")

	// System operation errors
	ErrFailedToGetVersionInfo  = errors.New("failed to get version information")
	ErrFailedToStoreProvider   = errors.New("failed to store provider configuration")
	ErrFailedToDecryptProvider = errors.New("failed to decrypt provider token")
)

// Data integrity errors represent inconsistencies or corruption in the data.
var (
	// ErrDataInconsistency indicates that the data is in an inconsistent state
	// (e.g., a cached dataset entry references tickers with no price rows).
	ErrDataInconsistency = errors.New("data inconsistency detected")

	// ErrMissingRequiredField indicates that a required field is missing or empty.
	ErrMissingRequiredField = errors.New("missing required field")
)
