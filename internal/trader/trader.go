// Package trader turns signals into orders and orders into persisted
// position state. It is the only component that talks to both an
// OrderExecutor and the position store, so every open and close follows the
// same ordering rules regardless of who triggered it.
package trader

import (
	"context"
	"fmt"
	"time"

	"github.com/Drknessheo/lunara-bot/internal/domain"
	"github.com/Drknessheo/lunara-bot/internal/ports"
	"github.com/Drknessheo/lunara-bot/internal/risk"
)

// Config holds the trader's sizing and stop parameters.
type Config struct {
	Sizing risk.SizingConfig
	// ATRStopMultiple scales the volatility stop for live entries. Zero
	// disables it.
	ATRStopMultiple float64
	// PaperStartingBalance seeds a reset paper account.
	PaperStartingBalance float64
}

// Trader opens and closes positions through the mode-appropriate executor.
type Trader struct {
	cfg       Config
	positions ports.PositionRepository
	accounts  ports.AccountRepository
	settings  ports.SettingsProvider
	live      ports.OrderExecutor
	paper     ports.OrderExecutor
	guard     *risk.Guard
	notifier  ports.Notifier
	logger    ports.Logger
	now       func() time.Time
}

// New creates a trader. Either executor may be nil when the deployment runs
// a single mode; opening in a mode without an executor fails with
// ErrConfiguration.
func New(cfg Config, positions ports.PositionRepository, accounts ports.AccountRepository, settings ports.SettingsProvider, live, paper ports.OrderExecutor, guard *risk.Guard, notifier ports.Notifier, logger ports.Logger) *Trader {
	return &Trader{
		cfg:       cfg,
		positions: positions,
		accounts:  accounts,
		settings:  settings,
		live:      live,
		paper:     paper,
		guard:     guard,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

func (t *Trader) executorFor(mode domain.TradeMode) (ports.OrderExecutor, error) {
	switch mode {
	case domain.ModeLive:
		if t.live == nil {
			return nil, fmt.Errorf("%w: live trading is not configured", ports.ErrConfiguration)
		}
		return t.live, nil
	case domain.ModePaper:
		if t.paper == nil {
			return nil, fmt.Errorf("%w: paper trading is not configured", ports.ErrConfiguration)
		}
		return t.paper, nil
	default:
		return nil, fmt.Errorf("%w: unknown trading mode %q", ports.ErrConfiguration, mode)
	}
}

// OpenFromSignal opens a position for a recovery signal: size the trade,
// submit the buy, persist the open row, announce it. A fill whose row cannot
// be created is unwound so funds are not stranded.
func (t *Trader) OpenFromSignal(ctx context.Context, userID int64, symbol string, price, rsi, atr float64, settings *domain.RiskSettings) (*domain.Position, error) {
	mode, err := t.settings.TradingMode(ctx, userID)
	if err != nil {
		return nil, err
	}
	exec, err := t.executorFor(mode)
	if err != nil {
		return nil, err
	}

	existing, err := t.positions.FindOpenByUserSymbol(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("position already open for user %d on %s: %w", userID, symbol, ports.ErrDuplicateRow)
	}

	balance, err := exec.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if t.guard != nil && t.guard.ShouldPause(ctx, balance) {
		t.logger.Warn(ctx, "Daily drawdown limit reached, skipping entry", map[string]interface{}{
			"user_id": userID,
			"symbol":  symbol,
		})
		return nil, nil
	}
	notional := t.cfg.Sizing.TradeSize(balance)
	if notional <= 0 {
		return nil, fmt.Errorf("user %d cannot fund a trade on %s: %w", userID, symbol, ports.ErrInsufficientFunds)
	}

	fill, err := exec.Open(ctx, userID, symbol, notional, price)
	if err != nil {
		t.notify(ctx, userID, domain.Event{
			Kind:    domain.EventOrderRejected,
			Symbol:  symbol,
			Message: fmt.Sprintf("Buy order rejected: %v", err),
		})
		return nil, err
	}

	stopLoss := fill.EntryPrice * (1 - settings.StopLossPercent/100)
	if mode == domain.ModeLive && atr > 0 && t.cfg.ATRStopMultiple > 0 {
		// The volatility stop may tighten the configured stop, never widen it.
		if atrStop := risk.ATRStop(fill.EntryPrice, atr, t.cfg.ATRStopMultiple); atrStop > stopLoss {
			stopLoss = atrStop
		}
	}

	pos := &domain.Position{
		UserID:     userID,
		Symbol:     symbol,
		Mode:       mode,
		EntryPrice: fill.EntryPrice,
		Quantity:   fill.Quantity,
		Notional:   notional,
		RSIAtEntry: rsi,
		OpenedAt:   t.now(),
		Status:     domain.StatusOpen,
		StopLoss:   stopLoss,
		TakeProfit: fill.EntryPrice * (1 + settings.ProfitTargetPercent/100),
	}
	id, err := t.positions.Create(ctx, pos)
	if err != nil {
		if uerr := exec.Unwind(ctx, userID, symbol, fill); uerr != nil {
			t.logger.Error(ctx, uerr, "Failed to unwind fill after create failure", map[string]interface{}{
				"user_id": userID,
				"symbol":  symbol,
			})
		}
		return nil, fmt.Errorf("failed to record position for user %d on %s: %w", userID, symbol, err)
	}
	pos.ID = id

	t.logger.Info(ctx, "Position opened", map[string]interface{}{
		"position_id": id,
		"user_id":     userID,
		"symbol":      symbol,
		"mode":        string(mode),
		"entry_price": fill.EntryPrice,
		"quantity":    fill.Quantity,
		"notional":    notional,
	})
	t.notify(ctx, userID, domain.Event{
		Kind:       domain.EventPositionOpened,
		Symbol:     symbol,
		PositionID: id,
		Price:      fill.EntryPrice,
		Message:    fmt.Sprintf("Opened %s at %.8f", symbol, fill.EntryPrice),
	})
	return pos, nil
}

// Close exits the position at the given price for the given reason. The
// sell order is submitted first; the conditional close then decides whether
// this caller owns the terminal transition. It returns true when this caller
// closed the position and false when a concurrent actor closed it first (the
// database state is authoritative either way, so losing the race takes no
// further side effects).
func (t *Trader) Close(ctx context.Context, pos *domain.Position, price float64, reason domain.CloseReason) (bool, error) {
	exec, err := t.executorFor(pos.Mode)
	if err != nil {
		return false, err
	}

	outcome, err := exec.Close(ctx, pos.UserID, pos.Symbol, pos.Quantity, price)
	if err != nil {
		t.notify(ctx, pos.UserID, domain.Event{
			Kind:       domain.EventOrderRejected,
			Symbol:     pos.Symbol,
			PositionID: pos.ID,
			Message:    fmt.Sprintf("Sell order rejected: %v", err),
		})
		return false, err
	}

	pnl := pos.PnLPercentAt(outcome.ClosePrice)
	won, err := t.positions.ClosePosition(ctx, ports.CloseRequest{
		PositionID:  pos.ID,
		ClosePrice:  outcome.ClosePrice,
		Reason:      reason,
		PnLPercent:  pnl,
		WinLoss:     domain.OutcomeFor(pnl),
		ClosedAt:    t.now(),
		QuotePnL:    (outcome.ClosePrice - pos.EntryPrice) * pos.Quantity,
		PaperCredit: outcome.PaperCredit,
		UserID:      pos.UserID,
	})
	if err != nil {
		return false, err
	}
	if !won {
		t.logger.Info(ctx, "Position already closed by a concurrent actor", map[string]interface{}{
			"position_id": pos.ID,
			"symbol":      pos.Symbol,
		})
		return false, nil
	}

	t.logger.Info(ctx, "Position closed", map[string]interface{}{
		"position_id": pos.ID,
		"user_id":     pos.UserID,
		"symbol":      pos.Symbol,
		"reason":      string(reason),
		"close_price": outcome.ClosePrice,
		"pnl_percent": pnl,
	})
	t.notify(ctx, pos.UserID, domain.Event{
		Kind:       domain.EventPositionClosed,
		Symbol:     pos.Symbol,
		PositionID: pos.ID,
		Price:      outcome.ClosePrice,
		Reason:     reason,
		PnLPercent: pnl,
		Message:    fmt.Sprintf("Closed %s at %.8f (%+.2f%%, %s)", pos.Symbol, outcome.ClosePrice, pnl, reason),
	})
	return true, nil
}

// ManualClose closes one of the user's positions at the current market
// price. It may interleave with a running cycle; the conditional close
// resolves the race.
func (t *Trader) ManualClose(ctx context.Context, userID, positionID int64, price float64) error {
	pos, err := t.positions.FindByID(ctx, positionID)
	if err != nil {
		return err
	}
	if pos == nil || pos.UserID != userID {
		return fmt.Errorf("position %d: %w", positionID, ports.ErrNotFound)
	}
	if !pos.IsOpen() {
		return nil
	}
	_, err = t.Close(ctx, pos, price, domain.CloseReasonManual)
	return err
}

// ResetPaper restores the user's virtual balance to the starting amount and
// closes their open paper positions.
func (t *Trader) ResetPaper(ctx context.Context, userID int64) error {
	if err := t.accounts.ResetPaperAccount(ctx, userID, t.cfg.PaperStartingBalance); err != nil {
		return err
	}
	t.logger.Info(ctx, "Paper account reset", map[string]interface{}{
		"user_id": userID,
		"balance": t.cfg.PaperStartingBalance,
	})
	return nil
}

func (t *Trader) notify(ctx context.Context, userID int64, event domain.Event) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.Notify(ctx, userID, event); err != nil {
		t.logger.Warn(ctx, "Notification delivery failed", map[string]interface{}{
			"kind":   string(event.Kind),
			"symbol": event.Symbol,
		})
	}
}
