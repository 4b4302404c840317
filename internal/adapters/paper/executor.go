// Package paper implements the simulated order executor. Orders fill
// instantly at the caller's reference price against a virtual balance; no
// exchange call is ever made.
package paper

import (
	"context"
	"fmt"

	"github.com/Drknessheo/lunara-bot/internal/ports"
)

// Executor simulates order execution against the persisted virtual balance.
type Executor struct {
	accounts ports.AccountRepository
	logger   ports.Logger
}

// NewExecutor creates a paper executor over the account store.
func NewExecutor(accounts ports.AccountRepository, logger ports.Logger) *Executor {
	return &Executor{accounts: accounts, logger: logger}
}

// Open debits the virtual balance by notional and synthesizes a fill at the
// reference price.
func (e *Executor) Open(ctx context.Context, userID int64, symbol string, notional, price float64) (*ports.Fill, error) {
	if price <= 0 {
		return nil, fmt.Errorf("no reference price for %s: %w", symbol, ports.ErrPriceUnavailable)
	}
	if err := e.accounts.DebitPaperBalance(ctx, userID, notional); err != nil {
		return nil, err
	}
	e.logger.Debug(ctx, "Paper buy filled", map[string]interface{}{
		"user_id":  userID,
		"symbol":   symbol,
		"notional": notional,
		"price":    price,
	})
	return &ports.Fill{EntryPrice: price, Quantity: notional / price}, nil
}

// Close fills the sell at the reference price. The credit is returned, not
// applied; the store settles it inside the conditional close transaction.
func (e *Executor) Close(ctx context.Context, userID int64, symbol string, quantity, price float64) (*ports.CloseOutcome, error) {
	if price <= 0 {
		return nil, fmt.Errorf("no reference price for %s: %w", symbol, ports.ErrPriceUnavailable)
	}
	return &ports.CloseOutcome{ClosePrice: price, PaperCredit: quantity * price}, nil
}

// Unwind refunds the notional of a fill whose position row was never
// created.
func (e *Executor) Unwind(ctx context.Context, userID int64, symbol string, fill *ports.Fill) error {
	return e.accounts.CreditPaperBalance(ctx, userID, fill.EntryPrice*fill.Quantity)
}

// Balance returns the virtual balance available for sizing.
func (e *Executor) Balance(ctx context.Context, userID int64) (float64, error) {
	return e.accounts.PaperBalance(ctx, userID)
}
