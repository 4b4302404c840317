package ports

import "context"

// Fill describes the outcome of an opening order.
type Fill struct {
	EntryPrice float64
	Quantity   float64
}

// CloseOutcome describes the outcome of a closing order. PaperCredit is the
// virtual-balance settlement for PAPER closes (zero for LIVE); it is applied
// by the store inside the conditional close transaction, never by the
// executor itself, so a lost close race cannot double-credit.
type CloseOutcome struct {
	ClosePrice  float64
	PaperCredit float64
}

// OrderExecutor places buy and sell orders, or simulates them against a
// virtual balance. Implementations: the live exchange backend and the paper
// backend. The price argument is the caller's current reference price: the
// paper backend fills at it, the live backend ignores it and reports the
// real fill.
type OrderExecutor interface {
	// Open buys the requested quote-currency notional and returns the fill.
	// Fails with ErrOrderRejected (or ErrInsufficientFunds /
	// ErrBelowMinNotional) when exchange constraints or balance forbid it.
	Open(ctx context.Context, userID int64, symbol string, notional, price float64) (*Fill, error)
	// Close sells the held quantity and returns the close outcome. LIVE
	// submits a market sell rounded to the symbol's lot-size step; PAPER
	// performs no external call.
	Close(ctx context.Context, userID int64, symbol string, quantity, price float64) (*CloseOutcome, error)
	// Unwind reverses a fill whose position could not be recorded, so the
	// committed funds are not stranded.
	Unwind(ctx context.Context, userID int64, symbol string, fill *Fill) error
	// Balance returns the quote-currency balance available for sizing.
	Balance(ctx context.Context, userID int64) (float64, error)
}
