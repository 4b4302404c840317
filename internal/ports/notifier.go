package ports

import (
	"context"

	"github.com/Drknessheo/lunara-bot/internal/domain"
)

// Notifier is the one-way Notification Channel. Delivery is best-effort:
// callers log failures and never retry synchronously or block the cycle on
// them.
type Notifier interface {
	Notify(ctx context.Context, userID int64, event domain.Event) error
}

// SettingsProvider resolves the effective risk parameters for a user.
// Read-only from the engine's perspective; implementations must validate
// settings at load time so the engine never sees a malformed set.
type SettingsProvider interface {
	Effective(ctx context.Context, userID int64) (*domain.RiskSettings, error)
	// TradingMode returns the user's execution mode (LIVE or PAPER).
	TradingMode(ctx context.Context, userID int64) (domain.TradeMode, error)
}
