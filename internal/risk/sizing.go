// Package risk holds the sizing and capital-protection policies applied
// before a position is opened.
package risk

import (
	"context"
	"time"

	"github.com/Drknessheo/lunara-bot/internal/ports"
)

// SizingConfig holds the trade-sizing policy parameters.
type SizingConfig struct {
	// MinTradeSize is the floor for one trade's quote-currency notional.
	MinTradeSize float64
	// RiskFraction is the fraction of the available balance committed per
	// trade.
	RiskFraction float64
	// MaxDailyDrawdown pauses new entries once today's realized loss
	// exceeds this fraction of the balance.
	MaxDailyDrawdown float64
}

// TradeSize returns the notional to commit for one trade:
// max(MinTradeSize, balance * RiskFraction), capped at the available
// balance. A zero result means the balance cannot support any trade.
func (c SizingConfig) TradeSize(balance float64) float64 {
	if balance <= 0 {
		return 0
	}
	size := balance * c.RiskFraction
	if size < c.MinTradeSize {
		size = c.MinTradeSize
	}
	if size > balance {
		size = balance
	}
	return size
}

// ATRStop returns a volatility-scaled stop-loss price: entry minus
// multiplier true ranges.
func ATRStop(entryPrice, atr, multiplier float64) float64 {
	return entryPrice - multiplier*atr
}

// DailyBook is the slice of the account store the guard reads.
type DailyBook interface {
	DailyPnL(ctx context.Context, day string) (float64, error)
}

// Guard decides whether new entries are currently allowed.
type Guard struct {
	cfg    SizingConfig
	book   DailyBook
	logger ports.Logger
}

// NewGuard creates a capital-protection guard over the daily P/L book.
func NewGuard(cfg SizingConfig, book DailyBook, logger ports.Logger) *Guard {
	return &Guard{cfg: cfg, book: book, logger: logger}
}

// ShouldPause reports whether trading should pause for the rest of the day
// because today's realized loss exceeds the drawdown limit relative to the
// given balance. Errors reading the book fail open: a broken ledger must not
// silently halt trading, only log.
func (g *Guard) ShouldPause(ctx context.Context, balance float64) bool {
	if balance <= 0 {
		return false
	}
	day := time.Now().UTC().Format("2006-01-02")
	dailyPnL, err := g.book.DailyPnL(ctx, day)
	if err != nil {
		g.logger.Error(ctx, err, "Failed to read daily P/L, drawdown guard skipped", map[string]interface{}{"day": day})
		return false
	}
	return dailyPnL < -balance*g.cfg.MaxDailyDrawdown
}
