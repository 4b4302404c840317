package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these sentinels so the
// engine can branch on error class without knowing the backend.
var (
	// General Errors
	ErrUnknown       = errors.New("unknown error occurred")
	ErrNotFound      = errors.New("resource not found")
	ErrTimeout       = errors.New("operation timed out")
	ErrConfiguration = errors.New("invalid or missing configuration")

	// Market Data Errors
	// ErrInsufficientData means an indicator could not be computed from the
	// available series; the affected symbol is skipped, not the cycle.
	ErrInsufficientData = errors.New("not enough data points for calculation")
	// ErrPriceUnavailable means the price fetch failed or the cached value
	// exceeded the staleness bound. Exit evaluation must skip the symbol
	// rather than treat the missing value as zero.
	ErrPriceUnavailable = errors.New("price unavailable or stale")

	// Execution Errors
	ErrOrderRejected     = errors.New("order rejected by execution backend")
	ErrInsufficientFunds = errors.New("insufficient funds for operation")
	ErrBelowMinNotional  = errors.New("order value below exchange minimum notional")

	// Exchange Transport Errors
	ErrExchangeUnavailable = errors.New("exchange API is unavailable")
	ErrRateLimited         = errors.New("API rate limit exceeded")

	// Database Errors
	// ErrConflict means a conditional update matched zero rows because a
	// concurrent actor already closed the row. Callers treat it as
	// success-by-other-actor and perform no further side effects.
	ErrConflict     = errors.New("conditional update lost to a concurrent writer")
	ErrDuplicateRow = errors.New("database record already exists")
	ErrQueryFailed  = errors.New("database query failed")
)
