// Package watchlist manages the symbols each user is waiting to enter after
// a dip. Every cycle it expires timed-out entries and promotes the ones
// whose RSI has recovered, each guarded by a conditional delete so the
// outcome happens exactly once.
package watchlist

import (
	"context"
	"errors"
	"time"

	"github.com/Drknessheo/lunara-bot/internal/domain"
	"github.com/Drknessheo/lunara-bot/internal/indicators"
	"github.com/Drknessheo/lunara-bot/internal/ports"
)

// Market is the per-cycle market data view the manager reads from.
type Market interface {
	Price(symbol string) (float64, error)
	RSI(ctx context.Context, symbol string) (float64, error)
	Bollinger(ctx context.Context, symbol string) (*indicators.Bands, error)
	ATR(ctx context.Context, symbol string) (float64, error)
}

// Opener opens a position from a recovery signal.
type Opener interface {
	OpenFromSignal(ctx context.Context, userID int64, symbol string, price, rsi, atr float64, settings *domain.RiskSettings) (*domain.Position, error)
}

// Manager runs the watchlist pass of a monitoring cycle.
type Manager struct {
	watches   ports.WatchlistRepository
	positions ports.PositionRepository
	settings  ports.SettingsProvider
	opener    Opener
	notifier  ports.Notifier
	logger    ports.Logger
	now       func() time.Time
}

// NewManager creates a watchlist manager.
func NewManager(watches ports.WatchlistRepository, positions ports.PositionRepository, settings ports.SettingsProvider, opener Opener, notifier ports.Notifier, logger ports.Logger) *Manager {
	return &Manager{
		watches:   watches,
		positions: positions,
		settings:  settings,
		opener:    opener,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Process walks every watchlist entry once. Each entry is handled
// independently: a failure on one is logged and never aborts the pass.
// Expiry is checked before promotion, so an entry that timed out this cycle
// cannot be promoted in the same pass.
func (m *Manager) Process(ctx context.Context, market Market) error {
	entries, err := m.watches.Watchlist(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := m.processEntry(ctx, market, entry); err != nil {
			m.logger.Error(ctx, err, "Watchlist entry processing failed", map[string]interface{}{
				"user_id": entry.UserID,
				"symbol":  entry.Symbol,
			})
		}
	}
	return nil
}

func (m *Manager) processEntry(ctx context.Context, market Market, entry *domain.WatchlistEntry) error {
	settings, err := m.settings.Effective(ctx, entry.UserID)
	if err != nil {
		return err
	}

	if entry.Expired(m.now(), settings.WatchlistTimeout) {
		removed, err := m.watches.RemoveWatch(ctx, entry.ID)
		if err != nil {
			return err
		}
		if !removed {
			return nil
		}
		m.notify(ctx, entry.UserID, domain.Event{
			Kind:    domain.EventWatchExpired,
			Symbol:  entry.Symbol,
			Message: "Watchlist entry expired without a recovery signal",
		})
		return nil
	}

	rsi, err := market.RSI(ctx, entry.Symbol)
	if err != nil {
		if errors.Is(err, ports.ErrInsufficientData) {
			return nil
		}
		return err
	}
	if rsi <= settings.RSIRecoveryThreshold {
		return nil
	}

	price, err := market.Price(entry.Symbol)
	if err != nil {
		if errors.Is(err, ports.ErrPriceUnavailable) {
			m.logger.Warn(ctx, "Skipping watchlist promotion, price unavailable", map[string]interface{}{"symbol": entry.Symbol})
			return nil
		}
		return err
	}

	// Claim the entry before acting on it. Losing the delete race means
	// another actor already promoted or expired this entry.
	removed, err := m.watches.RemoveWatch(ctx, entry.ID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}

	// Best effort; a missing ATR only disables the volatility stop.
	atr, err := market.ATR(ctx, entry.Symbol)
	if err != nil {
		atr = 0
	}

	if _, err := m.opener.OpenFromSignal(ctx, entry.UserID, entry.Symbol, price, rsi, atr, settings); err != nil {
		return err
	}
	return nil
}

// Scan adds oversold symbols to the user's watchlist. A symbol is skipped
// when the user already holds it open or is already watching it. When
// Bollinger confirmation is enabled for the tier, the price must also sit
// under the lower band.
func (m *Manager) Scan(ctx context.Context, market Market, userID int64, symbols []string) error {
	settings, err := m.settings.Effective(ctx, userID)
	if err != nil {
		return err
	}
	for _, symbol := range symbols {
		if err := m.scanSymbol(ctx, market, userID, symbol, settings); err != nil {
			m.logger.Error(ctx, err, "Watchlist scan failed for symbol", map[string]interface{}{
				"user_id": userID,
				"symbol":  symbol,
			})
		}
	}
	return nil
}

func (m *Manager) scanSymbol(ctx context.Context, market Market, userID int64, symbol string, settings *domain.RiskSettings) error {
	open, err := m.positions.FindOpenByUserSymbol(ctx, userID, symbol)
	if err != nil {
		return err
	}
	if open != nil {
		return nil
	}
	watching, err := m.watches.OnWatchlist(ctx, userID, symbol)
	if err != nil {
		return err
	}
	if watching {
		return nil
	}

	rsi, err := market.RSI(ctx, symbol)
	if err != nil {
		if errors.Is(err, ports.ErrInsufficientData) {
			return nil
		}
		return err
	}
	if rsi >= settings.RSIBuyThreshold {
		return nil
	}

	if settings.UseBollingerConfirmation {
		price, err := market.Price(symbol)
		if err != nil {
			return err
		}
		bands, err := market.Bollinger(ctx, symbol)
		if err != nil {
			return err
		}
		if price >= bands.Lower {
			return nil
		}
	}

	if err := m.watches.AddWatch(ctx, userID, symbol); err != nil {
		return err
	}
	m.logger.Info(ctx, "Symbol added to watchlist", map[string]interface{}{
		"user_id": userID,
		"symbol":  symbol,
		"rsi":     rsi,
	})
	return nil
}

func (m *Manager) notify(ctx context.Context, userID int64, event domain.Event) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, userID, event); err != nil {
		m.logger.Warn(ctx, "Notification delivery failed", map[string]interface{}{
			"kind":   string(event.Kind),
			"symbol": event.Symbol,
		})
	}
}
