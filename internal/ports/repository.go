package ports

import (
	"context"
	"time"

	"github.com/Drknessheo/lunara-bot/internal/domain"
)

// CloseRequest carries the terminal fields for a conditional position close.
type CloseRequest struct {
	PositionID int64
	ClosePrice float64
	Reason     domain.CloseReason
	PnLPercent float64
	WinLoss    domain.WinLoss
	ClosedAt   time.Time

	// QuotePnL is the realized profit in quote currency, accumulated into
	// the daily P/L row for ClosedAt's date.
	QuotePnL float64

	// PaperCredit, when positive, is the virtual-balance credit for PAPER
	// closes. The store applies it in the same transaction as the
	// conditional update, so a lost close race never credits the balance.
	PaperCredit float64
	UserID      int64
}

// PositionRepository defines the interface for storing and retrieving
// trading positions.
type PositionRepository interface {
	// Create saves a new open position and returns its assigned ID.
	// At most one open row may exist per (user, symbol).
	Create(ctx context.Context, pos *domain.Position) (int64, error)
	// FindOpen retrieves every open position across all users.
	FindOpen(ctx context.Context) ([]*domain.Position, error)
	// FindOpenByUserSymbol retrieves the open position for a user+symbol.
	// Returns nil, nil if none is open.
	FindOpenByUserSymbol(ctx context.Context, userID int64, symbol string) (*domain.Position, error)
	// FindByID retrieves a position by its unique ID. Returns nil, nil if
	// not found.
	FindByID(ctx context.Context, id int64) (*domain.Position, error)
	// ClosePosition performs the single atomic conditional close:
	// "set terminal fields WHERE id = ? AND status = 'open'". It returns
	// true when this caller won the close (one row affected) and false when
	// a concurrent actor closed the position first. On success the
	// performance aggregate, daily P/L and any paper credit are updated in
	// the same transaction.
	ClosePosition(ctx context.Context, req CloseRequest) (bool, error)
	// RaiseStop raises the stop-loss price and advances the ladder stage.
	// Only applies while the position is open; stop and stage never move
	// backward.
	RaiseStop(ctx context.Context, positionID int64, newStop float64, newStage int) error
	// ArmTrailing records the initial peak price, arming the trailing stop.
	ArmTrailing(ctx context.Context, positionID int64, peak float64) error
	// UpdatePeak raises the recorded peak price. The stored value is
	// monotonically non-decreasing.
	UpdatePeak(ctx context.Context, positionID int64, peak float64) error
	// SetLastAlerted persists the proximity-alert dedup state.
	SetLastAlerted(ctx context.Context, positionID int64, cond domain.AlertCondition) error
}

// WatchlistRepository defines the interface for watchlist entries.
type WatchlistRepository interface {
	// AddWatch inserts an entry, ignoring duplicates per (user, symbol).
	AddWatch(ctx context.Context, userID int64, symbol string) error
	// Watchlist retrieves every watchlist entry across all users.
	Watchlist(ctx context.Context) ([]*domain.WatchlistEntry, error)
	// RemoveWatch deletes an entry by ID and reports whether a row was
	// deleted. The affected-row count is the exactly-once guard for
	// promotion and expiry: only the actor that removed the row may act on
	// it.
	RemoveWatch(ctx context.Context, id int64) (bool, error)
	// OnWatchlist reports whether a (user, symbol) entry is present.
	OnWatchlist(ctx context.Context, userID int64, symbol string) (bool, error)
}

// PerformanceRepository reads the per-symbol performance aggregates.
// Writes happen only inside PositionRepository.ClosePosition.
type PerformanceRepository interface {
	// PerformanceBySymbol returns the aggregate for one symbol, or nil, nil
	// when no close has been recorded for it.
	PerformanceBySymbol(ctx context.Context, symbol string) (*domain.PerformanceAggregate, error)
	// AllPerformance returns every aggregate row.
	AllPerformance(ctx context.Context) ([]*domain.PerformanceAggregate, error)
}

// AccountRepository manages virtual balances, account settings and the
// daily P/L book.
type AccountRepository interface {
	// PaperBalance returns the user's virtual balance, creating the account
	// with the configured starting balance on first use.
	PaperBalance(ctx context.Context, userID int64) (float64, error)
	// DebitPaperBalance subtracts amount, guarded so the balance cannot go
	// negative. Returns ErrInsufficientFunds when the guard fails.
	DebitPaperBalance(ctx context.Context, userID int64, amount float64) error
	// CreditPaperBalance adds amount back. Used only to unwind a paper fill
	// whose position row could not be created; normal close settlement goes
	// through PositionRepository.ClosePosition.
	CreditPaperBalance(ctx context.Context, userID int64, amount float64) error
	// ResetPaperAccount restores the starting balance and closes any open
	// paper positions for the user.
	ResetPaperAccount(ctx context.Context, userID int64, startingBalance float64) error
	// DailyPnL returns the accumulated realized P/L for an ISO date (UTC).
	DailyPnL(ctx context.Context, day string) (float64, error)
	// ActiveUsers lists every user with an account row, for the scan pass.
	ActiveUsers(ctx context.Context) ([]int64, error)
	// Tier returns the user's subscription tier name.
	Tier(ctx context.Context, userID int64) (string, error)
	// TradingMode returns the user's execution mode.
	TradingMode(ctx context.Context, userID int64) (domain.TradeMode, error)
}
