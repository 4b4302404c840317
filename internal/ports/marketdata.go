package ports

import (
	"context"
	"time"

	"github.com/Drknessheo/lunara-bot/internal/domain"
)

// Quote is one batch-fetched ticker price with its fetch time, used to
// enforce the staleness bound.
type Quote struct {
	Price     float64
	FetchedAt time.Time
}

// MarketDataSource provides read-only market data. Both calls are idempotent
// and side-effect-free; implementations must bound each network call with a
// timeout derived from ctx.
type MarketDataSource interface {
	// Prices fetches current prices for all requested symbols in a single
	// batched call. Symbols missing from the result were unavailable.
	Prices(ctx context.Context, symbols []string) (map[string]Quote, error)
	// Candles retrieves up to limit historical candles for the symbol,
	// ordered oldest to newest.
	Candles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error)
}
