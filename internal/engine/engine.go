package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Drknessheo/lunara-bot/internal/domain"
	"github.com/Drknessheo/lunara-bot/internal/marketdata"
	"github.com/Drknessheo/lunara-bot/internal/ports"
	"github.com/Drknessheo/lunara-bot/internal/trader"
	"github.com/Drknessheo/lunara-bot/internal/watchlist"
)

// Config holds the cycle scheduling parameters.
type Config struct {
	// Interval is the fixed delay between monitoring cycles.
	Interval time.Duration
	// CycleTimeout bounds one full cycle; a cycle that overruns is
	// cancelled rather than allowed to pile up behind the next tick.
	CycleTimeout time.Duration
	// ScanSymbols is the universe scanned for new watchlist entries.
	ScanSymbols []string
}

// Params collects the engine's collaborators.
type Params struct {
	Config    Config
	CacheCfg  marketdata.CacheConfig
	Alerts    AlertConfig
	Source    ports.MarketDataSource
	Positions ports.PositionRepository
	Watches   ports.WatchlistRepository
	Accounts  ports.AccountRepository
	Settings  ports.SettingsProvider
	Manager   *watchlist.Manager
	Trader    *trader.Trader
	Notifier  ports.Notifier
	Logger    ports.Logger
}

// Engine drives the monitoring loop: every cycle it refreshes market data,
// runs the watchlist pass, then evaluates each open position against the
// exit rules. Cycles never overlap.
type Engine struct {
	cfg       Config
	cacheCfg  marketdata.CacheConfig
	alerts    AlertConfig
	source    ports.MarketDataSource
	positions ports.PositionRepository
	watches   ports.WatchlistRepository
	accounts  ports.AccountRepository
	settings  ports.SettingsProvider
	manager   *watchlist.Manager
	trader    *trader.Trader
	notifier  ports.Notifier
	logger    ports.Logger

	mu sync.Mutex
}

// New creates the lifecycle engine.
func New(p Params) *Engine {
	return &Engine{
		cfg:       p.Config,
		cacheCfg:  p.CacheCfg,
		alerts:    p.Alerts,
		source:    p.Source,
		positions: p.Positions,
		watches:   p.Watches,
		accounts:  p.Accounts,
		settings:  p.Settings,
		manager:   p.Manager,
		trader:    p.Trader,
		notifier:  p.Notifier,
		logger:    p.Logger,
	}
}

// Run executes monitoring cycles at the configured interval until ctx is
// cancelled. The first cycle runs immediately.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info(ctx, "Engine started", map[string]interface{}{
		"interval": e.cfg.Interval.String(),
		"symbols":  len(e.cfg.ScanSymbols),
	})
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info(ctx, "Engine stopped", nil)
			return ctx.Err()
		case <-ticker.C:
			e.runCycle(ctx)
		}
	}
}

// runCycle runs one cycle if no previous cycle is still holding the slot.
func (e *Engine) runCycle(ctx context.Context) {
	if !e.mu.TryLock() {
		e.logger.Warn(ctx, "Previous cycle still running, skipping tick", nil)
		return
	}
	defer e.mu.Unlock()

	cctx := ctx
	var cancel context.CancelFunc
	if e.cfg.CycleTimeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, e.cfg.CycleTimeout)
		defer cancel()
	}
	started := time.Now()
	if err := e.Cycle(cctx); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Error(ctx, err, "Monitoring cycle failed", nil)
		return
	}
	e.logger.Debug(ctx, "Monitoring cycle finished", map[string]interface{}{
		"duration": time.Since(started).String(),
	})
}

// Cycle performs one full monitoring pass: batch price refresh, watchlist
// scan and promotion, then exit-rule evaluation of every open position.
// Positions opened during this cycle are first evaluated on the next one.
func (e *Engine) Cycle(ctx context.Context) error {
	open, err := e.positions.FindOpen(ctx)
	if err != nil {
		return fmt.Errorf("failed to load open positions: %w", err)
	}
	entries, err := e.watches.Watchlist(ctx)
	if err != nil {
		return fmt.Errorf("failed to load watchlist: %w", err)
	}

	symbols := e.cycleSymbols(open, entries)
	cache, err := marketdata.NewCache(ctx, e.cacheCfg, e.source, e.logger, symbols)
	if err != nil {
		return err
	}

	users, err := e.accounts.ActiveUsers(ctx)
	if err != nil {
		e.logger.Error(ctx, err, "Failed to list users, scan pass skipped", nil)
	} else {
		for _, userID := range users {
			if err := e.manager.Scan(ctx, cache, userID, e.cfg.ScanSymbols); err != nil {
				e.logger.Error(ctx, err, "Watchlist scan failed", map[string]interface{}{"user_id": userID})
			}
		}
	}

	if err := e.manager.Process(ctx, cache); err != nil {
		e.logger.Error(ctx, err, "Watchlist pass failed", nil)
	}

	for _, pos := range open {
		e.evaluate(ctx, cache, pos)
	}
	return nil
}

// cycleSymbols unions the open-position, watchlist and scan symbols for the
// batch price fetch.
func (e *Engine) cycleSymbols(open []*domain.Position, entries []*domain.WatchlistEntry) []string {
	seen := make(map[string]struct{})
	var symbols []string
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		symbols = append(symbols, s)
	}
	for _, pos := range open {
		add(pos.Symbol)
	}
	for _, entry := range entries {
		add(entry.Symbol)
	}
	for _, s := range e.cfg.ScanSymbols {
		add(s)
	}
	return symbols
}

// evaluate applies the exit rules to one open position. Failures and panics
// are contained: one bad position never stops the rest of the pass.
func (e *Engine) evaluate(ctx context.Context, cache *marketdata.Cache, pos *domain.Position) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, fmt.Errorf("panic: %v", r), "Position evaluation panicked", map[string]interface{}{
				"position_id": pos.ID,
				"symbol":      pos.Symbol,
			})
		}
	}()

	settings, err := e.settings.Effective(ctx, pos.UserID)
	if err != nil {
		e.logger.Error(ctx, err, "Failed to resolve settings, position skipped", map[string]interface{}{
			"position_id": pos.ID,
			"user_id":     pos.UserID,
		})
		return
	}

	price, err := cache.Price(pos.Symbol)
	if err != nil {
		e.logger.Warn(ctx, "Price unavailable, position skipped this cycle", map[string]interface{}{
			"position_id": pos.ID,
			"symbol":      pos.Symbol,
		})
		return
	}

	rsi, err := cache.RSI(ctx, pos.Symbol)
	if err != nil {
		// A neutral value at the sell threshold cannot trigger the
		// reversal exit; every other rule works without RSI.
		rsi = settings.RSISellThreshold
		e.logger.Debug(ctx, "RSI unavailable, reversal exit disabled this cycle", map[string]interface{}{
			"symbol": pos.Symbol,
		})
	}

	d := EvaluatePosition(pos, price, rsi, settings)

	if d.NewPeak > 0 {
		if err := e.positions.UpdatePeak(ctx, pos.ID, d.NewPeak); err != nil {
			e.logger.Error(ctx, err, "Failed to update peak price", map[string]interface{}{"position_id": pos.ID})
		} else {
			pos.PeakPrice = &d.NewPeak
		}
	}

	switch {
	case d.Close:
		if _, err := e.trader.Close(ctx, pos, price, d.CloseReason); err != nil {
			e.logger.Error(ctx, err, "Failed to close position", map[string]interface{}{
				"position_id": pos.ID,
				"symbol":      pos.Symbol,
				"reason":      string(d.CloseReason),
			})
		}
		return
	case d.ArmPeak > 0:
		if err := e.positions.ArmTrailing(ctx, pos.ID, d.ArmPeak); err != nil {
			e.logger.Error(ctx, err, "Failed to arm trailing stop", map[string]interface{}{"position_id": pos.ID})
			return
		}
		pos.PeakPrice = &d.ArmPeak
		e.logger.Info(ctx, "Trailing stop armed", map[string]interface{}{
			"position_id": pos.ID,
			"symbol":      pos.Symbol,
			"peak":        d.ArmPeak,
		})
		e.notify(ctx, pos.UserID, domain.Event{
			Kind:       domain.EventTrailingArmed,
			Symbol:     pos.Symbol,
			PositionID: pos.ID,
			Price:      price,
			Message:    fmt.Sprintf("Trailing stop armed on %s at %.8f", pos.Symbol, price),
		})
	case d.RaiseStopTo > 0:
		if err := e.positions.RaiseStop(ctx, pos.ID, d.RaiseStopTo, d.NewStage); err != nil {
			e.logger.Error(ctx, err, "Failed to raise ladder stop", map[string]interface{}{"position_id": pos.ID})
			return
		}
		if d.RaiseStopTo > pos.StopLoss {
			pos.StopLoss = d.RaiseStopTo
		}
		pos.LadderStage = d.NewStage
		e.logger.Info(ctx, "Ladder stop raised", map[string]interface{}{
			"position_id": pos.ID,
			"symbol":      pos.Symbol,
			"stop":        pos.StopLoss,
			"stage":       d.NewStage,
		})
	}

	e.maybeAlert(ctx, pos, price)
}

func (e *Engine) notify(ctx context.Context, userID int64, event domain.Event) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, userID, event); err != nil {
		e.logger.Warn(ctx, "Notification delivery failed", map[string]interface{}{
			"kind":   string(event.Kind),
			"symbol": event.Symbol,
		})
	}
}
