package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Drknessheo/lunara-bot/internal/domain"
	"github.com/Drknessheo/lunara-bot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the position, watchlist, performance and account
// repository ports using SQLite.
type Repository struct {
	db              *sql.DB
	logger          ports.Logger
	startingBalance float64
	defaultTier     string
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
	// PaperStartingBalance is the virtual balance assigned to accounts on
	// first use.
	PaperStartingBalance float64
	// DefaultTier is assigned to accounts on first use.
	DefaultTier string
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/lunara_bot.db"
	}
	if cfg.PaperStartingBalance <= 0 {
		cfg.PaperStartingBalance = 10000.0
	}
	if cfg.DefaultTier == "" {
		cfg.DefaultTier = "FREE"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode so the scheduled cycle and manual actions can interleave.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{
		db:              db,
		logger:          cfg.Logger,
		startingBalance: cfg.PaperStartingBalance,
		defaultTier:     cfg.DefaultTier,
	}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		mode TEXT NOT NULL,
		entry_price REAL NOT NULL,
		quantity REAL NOT NULL,
		notional REAL NOT NULL,
		rsi_at_entry REAL NOT NULL DEFAULT 0,
		opened_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		peak_price REAL DEFAULT NULL,
		ladder_stage INTEGER NOT NULL DEFAULT 0,
		close_price REAL DEFAULT NULL,
		close_reason TEXT DEFAULT NULL,
		pnl_percent REAL DEFAULT NULL,
		win_loss TEXT DEFAULT NULL,
		closed_at TIMESTAMP DEFAULT NULL,
		last_alerted TEXT NOT NULL DEFAULT ''
	);
	-- One open position per (user, symbol).
	CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open_user_symbol
		ON positions (user_id, symbol) WHERE status = 'open';
	CREATE INDEX IF NOT EXISTS idx_positions_status ON positions (status);

	CREATE TABLE IF NOT EXISTS watchlist (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		added_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, symbol)
	);

	CREATE TABLE IF NOT EXISTS coin_performance (
		symbol TEXT PRIMARY KEY,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		total_pnl_percent REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS accounts (
		user_id INTEGER PRIMARY KEY,
		tier TEXT NOT NULL,
		trading_mode TEXT NOT NULL,
		paper_balance REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_pl (
		day TEXT PRIMARY KEY,
		pnl REAL NOT NULL DEFAULT 0
	);`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// CloseDB closes the database connection.
func (r *Repository) CloseDB() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- PositionRepository Implementation ---

// Create saves a new open position and returns its assigned ID. The partial
// unique index rejects a second open row for the same (user, symbol).
func (r *Repository) Create(ctx context.Context, pos *domain.Position) (int64, error) {
	const query = `
	INSERT INTO positions (user_id, symbol, mode, entry_price, quantity, notional,
	                       rsi_at_entry, opened_at, status, stop_loss, take_profit, ladder_stage)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		pos.UserID, pos.Symbol, pos.Mode, pos.EntryPrice, pos.Quantity, pos.Notional,
		pos.RSIAtEntry, pos.OpenedAt, pos.Status, pos.StopLoss, pos.TakeProfit, pos.LadderStage)
	if err != nil {
		return 0, fmt.Errorf("failed to insert position for %s/%d: %w", pos.Symbol, pos.UserID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for position %s: %w", pos.Symbol, err)
	}
	pos.ID = id
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": id, "symbol": pos.Symbol, "userID": pos.UserID})
	return id, nil
}

const positionColumns = `
	id, user_id, symbol, mode, entry_price, quantity, notional, rsi_at_entry,
	opened_at, status, stop_loss, take_profit, peak_price, ladder_stage,
	COALESCE(close_price, 0), close_reason, COALESCE(pnl_percent, 0), win_loss,
	closed_at, last_alerted`

// FindOpen retrieves every open position across all users.
func (r *Repository) FindOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status = ? ORDER BY opened_at`
	rows, err := r.db.QueryContext(ctx, query, domain.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position during FindOpen: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// FindOpenByUserSymbol retrieves the open position for a user+symbol, if any.
func (r *Repository) FindOpenByUserSymbol(ctx context.Context, userID int64, symbol string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE user_id = ? AND symbol = ? AND status = ?`
	row := r.db.QueryRowContext(ctx, query, userID, symbol, domain.StatusOpen)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query open position for %s/%d: %w", symbol, userID, err)
	}
	return pos, nil
}

// FindByID retrieves a position by its unique ID.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query position by ID %d: %w", id, err)
	}
	return pos, nil
}

// Close performs the atomic conditional close. The affected-row count of the
// guarded UPDATE decides the race: one row means this caller closed the
// position and the performance aggregate, daily P/L and paper credit commit
// with it; zero rows means a concurrent actor won and nothing is changed.
func (r *Repository) ClosePosition(ctx context.Context, req ports.CloseRequest) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin close transaction for position %d: %w", req.PositionID, err)
	}
	defer tx.Rollback()

	var symbol string
	err = tx.QueryRowContext(ctx, `SELECT symbol FROM positions WHERE id = ?`, req.PositionID).Scan(&symbol)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("position %d: %w", req.PositionID, ports.ErrNotFound)
		}
		return false, fmt.Errorf("failed to load position %d for close: %w", req.PositionID, err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE positions
		SET status = ?, close_price = ?, close_reason = ?, pnl_percent = ?, win_loss = ?, closed_at = ?
		WHERE id = ? AND status = ?`,
		domain.StatusClosed, req.ClosePrice, req.Reason, req.PnLPercent, req.WinLoss, req.ClosedAt,
		req.PositionID, domain.StatusOpen)
	if err != nil {
		return false, fmt.Errorf("failed to close position %d: %w", req.PositionID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected closing position %d: %w", req.PositionID, err)
	}
	if affected == 0 {
		// Lost the race to a concurrent close. Not an error.
		return false, nil
	}

	wins, losses := 0, 0
	switch req.WinLoss {
	case domain.OutcomeWin:
		wins = 1
	case domain.OutcomeLoss:
		losses = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO coin_performance (symbol, wins, losses, total_pnl_percent)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			wins = wins + excluded.wins,
			losses = losses + excluded.losses,
			total_pnl_percent = total_pnl_percent + excluded.total_pnl_percent`,
		symbol, wins, losses, req.PnLPercent)
	if err != nil {
		return false, fmt.Errorf("failed to record performance for %s: %w", symbol, err)
	}

	day := req.ClosedAt.UTC().Format("2006-01-02")
	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_pl (day, pnl) VALUES (?, ?)
		ON CONFLICT(day) DO UPDATE SET pnl = pnl + excluded.pnl`,
		day, req.QuotePnL)
	if err != nil {
		return false, fmt.Errorf("failed to record daily P/L for %s: %w", day, err)
	}

	if req.PaperCredit > 0 {
		if err := r.ensureAccountTx(ctx, tx, req.UserID); err != nil {
			return false, err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE accounts SET paper_balance = paper_balance + ? WHERE user_id = ?`,
			req.PaperCredit, req.UserID)
		if err != nil {
			return false, fmt.Errorf("failed to credit paper balance for user %d: %w", req.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit close of position %d: %w", req.PositionID, err)
	}
	r.logger.Debug(ctx, "Position closed", map[string]interface{}{
		"positionID": req.PositionID, "symbol": symbol, "reason": req.Reason, "pnlPercent": req.PnLPercent,
	})
	return true, nil
}

// RaiseStop raises the stop-loss and ladder stage for an open position.
// The guards keep both monotonic even under concurrent writers.
func (r *Repository) RaiseStop(ctx context.Context, positionID int64, newStop float64, newStage int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE positions
		SET stop_loss = MAX(stop_loss, ?), ladder_stage = MAX(ladder_stage, ?)
		WHERE id = ? AND status = ?`,
		newStop, newStage, positionID, domain.StatusOpen)
	if err != nil {
		return fmt.Errorf("failed to raise stop for position %d: %w", positionID, err)
	}
	return nil
}

// ArmTrailing records the initial peak price for an open position.
func (r *Repository) ArmTrailing(ctx context.Context, positionID int64, peak float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE positions SET peak_price = ?
		WHERE id = ? AND status = ? AND peak_price IS NULL`,
		peak, positionID, domain.StatusOpen)
	if err != nil {
		return fmt.Errorf("failed to arm trailing stop for position %d: %w", positionID, err)
	}
	return nil
}

// UpdatePeak raises the recorded peak price; it never lowers it.
func (r *Repository) UpdatePeak(ctx context.Context, positionID int64, peak float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE positions SET peak_price = MAX(COALESCE(peak_price, 0), ?)
		WHERE id = ? AND status = ? AND peak_price IS NOT NULL`,
		peak, positionID, domain.StatusOpen)
	if err != nil {
		return fmt.Errorf("failed to update peak for position %d: %w", positionID, err)
	}
	return nil
}

// SetLastAlerted persists the proximity-alert dedup state.
func (r *Repository) SetLastAlerted(ctx context.Context, positionID int64, cond domain.AlertCondition) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE positions SET last_alerted = ? WHERE id = ? AND status = ?`,
		cond, positionID, domain.StatusOpen)
	if err != nil {
		return fmt.Errorf("failed to set alert state for position %d: %w", positionID, err)
	}
	return nil
}

// --- WatchlistRepository Implementation ---

// AddWatch inserts a watchlist entry; duplicates per (user, symbol) are
// ignored.
func (r *Repository) AddWatch(ctx context.Context, userID int64, symbol string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO watchlist (user_id, symbol, added_at) VALUES (?, ?, ?)`,
		userID, symbol, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add %s to watchlist for user %d: %w", symbol, userID, err)
	}
	return nil
}

// Watchlist retrieves every watchlist entry across all users.
func (r *Repository) Watchlist(ctx context.Context) ([]*domain.WatchlistEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, symbol, added_at FROM watchlist ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.WatchlistEntry, 0)
	for rows.Next() {
		e := &domain.WatchlistEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Symbol, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watchlist rows: %w", err)
	}
	return entries, nil
}

// RemoveWatch deletes a watchlist entry by ID. The affected-row count is
// the exactly-once guard: only the caller that observes true may promote or
// expire the entry.
func (r *Repository) RemoveWatch(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM watchlist WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to remove watchlist entry %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected removing watchlist entry %d: %w", id, err)
	}
	return affected > 0, nil
}

// OnWatchlist reports whether a (user, symbol) watchlist entry is present.
func (r *Repository) OnWatchlist(ctx context.Context, userID int64, symbol string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM watchlist WHERE user_id = ? AND symbol = ?`, userID, symbol).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check watchlist for %s/%d: %w", symbol, userID, err)
	}
	return true, nil
}

// --- PerformanceRepository Implementation ---

// PerformanceBySymbol returns the performance aggregate for one symbol, or
// nil, nil when no close has been recorded for it.
func (r *Repository) PerformanceBySymbol(ctx context.Context, symbol string) (*domain.PerformanceAggregate, error) {
	agg := &domain.PerformanceAggregate{}
	err := r.db.QueryRowContext(ctx, `
		SELECT symbol, wins, losses, total_pnl_percent FROM coin_performance WHERE symbol = ?`,
		symbol).Scan(&agg.Symbol, &agg.Wins, &agg.Losses, &agg.TotalPnLPercent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query performance for %s: %w", symbol, err)
	}
	return agg, nil
}

// AllPerformance returns every performance aggregate row.
func (r *Repository) AllPerformance(ctx context.Context) ([]*domain.PerformanceAggregate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT symbol, wins, losses, total_pnl_percent FROM coin_performance ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance aggregates: %w", err)
	}
	defer rows.Close()

	aggs := make([]*domain.PerformanceAggregate, 0)
	for rows.Next() {
		agg := &domain.PerformanceAggregate{}
		if err := rows.Scan(&agg.Symbol, &agg.Wins, &agg.Losses, &agg.TotalPnLPercent); err != nil {
			return nil, fmt.Errorf("failed to scan performance aggregate: %w", err)
		}
		aggs = append(aggs, agg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating performance rows: %w", err)
	}
	return aggs, nil
}

// --- AccountRepository Implementation ---

func (r *Repository) ensureAccountTx(ctx context.Context, tx *sql.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO accounts (user_id, tier, trading_mode, paper_balance)
		VALUES (?, ?, ?, ?)`,
		userID, r.defaultTier, domain.ModePaper, r.startingBalance)
	if err != nil {
		return fmt.Errorf("failed to ensure account for user %d: %w", userID, err)
	}
	return nil
}

func (r *Repository) ensureAccount(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO accounts (user_id, tier, trading_mode, paper_balance)
		VALUES (?, ?, ?, ?)`,
		userID, r.defaultTier, domain.ModePaper, r.startingBalance)
	if err != nil {
		return fmt.Errorf("failed to ensure account for user %d: %w", userID, err)
	}
	return nil
}

// PaperBalance returns the user's virtual balance, creating the account on
// first use.
func (r *Repository) PaperBalance(ctx context.Context, userID int64) (float64, error) {
	if err := r.ensureAccount(ctx, userID); err != nil {
		return 0, err
	}
	var balance float64
	err := r.db.QueryRowContext(ctx,
		`SELECT paper_balance FROM accounts WHERE user_id = ?`, userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to query paper balance for user %d: %w", userID, err)
	}
	return balance, nil
}

// DebitPaperBalance subtracts amount from the user's virtual balance. The
// conditional update refuses to drive the balance negative.
func (r *Repository) DebitPaperBalance(ctx context.Context, userID int64, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %v", amount)
	}
	if err := r.ensureAccount(ctx, userID); err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET paper_balance = paper_balance - ?
		WHERE user_id = ? AND paper_balance >= ?`,
		amount, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit paper balance for user %d: %w", userID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected debiting user %d: %w", userID, err)
	}
	if affected == 0 {
		return fmt.Errorf("user %d: %w", userID, ports.ErrInsufficientFunds)
	}
	return nil
}

// CreditPaperBalance adds amount back to the user's virtual balance. Close
// settlement never goes through here; this exists to unwind a paper fill
// whose position row could not be created.
func (r *Repository) CreditPaperBalance(ctx context.Context, userID int64, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %v", amount)
	}
	if err := r.ensureAccount(ctx, userID); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET paper_balance = paper_balance + ?
		WHERE user_id = ?`,
		amount, userID); err != nil {
		return fmt.Errorf("failed to credit paper balance for user %d: %w", userID, err)
	}
	return nil
}

// ResetPaperAccount restores the starting balance and closes any open paper
// positions for the user in one transaction.
func (r *Repository) ResetPaperAccount(ctx context.Context, userID int64, startingBalance float64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset transaction for user %d: %w", userID, err)
	}
	defer tx.Rollback()

	if err := r.ensureAccountTx(ctx, tx, userID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET paper_balance = ? WHERE user_id = ?`, startingBalance, userID)
	if err != nil {
		return fmt.Errorf("failed to reset paper balance for user %d: %w", userID, err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE positions
		SET status = ?, close_price = entry_price, close_reason = ?, pnl_percent = 0, win_loss = ?, closed_at = ?
		WHERE user_id = ? AND mode = ? AND status = ?`,
		domain.StatusClosed, domain.CloseReasonReset, domain.OutcomeBreakEven, time.Now().UTC(),
		userID, domain.ModePaper, domain.StatusOpen)
	if err != nil {
		return fmt.Errorf("failed to close open paper positions for user %d: %w", userID, err)
	}
	return tx.Commit()
}

// DailyPnL returns the accumulated realized P/L for an ISO date (UTC).
func (r *Repository) DailyPnL(ctx context.Context, day string) (float64, error) {
	var pnl float64
	err := r.db.QueryRowContext(ctx, `SELECT pnl FROM daily_pl WHERE day = ?`, day).Scan(&pnl)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query daily P/L for %s: %w", day, err)
	}
	return pnl, nil
}

// ActiveUsers lists every user with an account row.
func (r *Repository) ActiveUsers(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active users: %w", err)
	}
	return users, nil
}

// Tier returns the user's subscription tier name.
func (r *Repository) Tier(ctx context.Context, userID int64) (string, error) {
	if err := r.ensureAccount(ctx, userID); err != nil {
		return "", err
	}
	var tier string
	err := r.db.QueryRowContext(ctx,
		`SELECT tier FROM accounts WHERE user_id = ?`, userID).Scan(&tier)
	if err != nil {
		return "", fmt.Errorf("failed to query tier for user %d: %w", userID, err)
	}
	return tier, nil
}

// SetTier updates the user's subscription tier.
func (r *Repository) SetTier(ctx context.Context, userID int64, tier string) error {
	if err := r.ensureAccount(ctx, userID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET tier = ? WHERE user_id = ?`, tier, userID)
	if err != nil {
		return fmt.Errorf("failed to set tier for user %d: %w", userID, err)
	}
	return nil
}

// TradingMode returns the user's execution mode.
func (r *Repository) TradingMode(ctx context.Context, userID int64) (domain.TradeMode, error) {
	if err := r.ensureAccount(ctx, userID); err != nil {
		return "", err
	}
	var mode string
	err := r.db.QueryRowContext(ctx,
		`SELECT trading_mode FROM accounts WHERE user_id = ?`, userID).Scan(&mode)
	if err != nil {
		return "", fmt.Errorf("failed to query trading mode for user %d: %w", userID, err)
	}
	return domain.TradeMode(mode), nil
}

// SetTradingMode updates the user's execution mode.
func (r *Repository) SetTradingMode(ctx context.Context, userID int64, mode domain.TradeMode) error {
	if err := r.ensureAccount(ctx, userID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET trading_mode = ? WHERE user_id = ?`, mode, userID)
	if err != nil {
		return fmt.Errorf("failed to set trading mode for user %d: %w", userID, err)
	}
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPosition scans a row into a domain.Position struct.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var (
		mode        string
		status      string
		peak        sql.NullFloat64
		closeReason sql.NullString
		winLoss     sql.NullString
		closedAt    sql.NullTime
		lastAlerted string
	)
	err := s.Scan(
		&p.ID, &p.UserID, &p.Symbol, &mode, &p.EntryPrice, &p.Quantity, &p.Notional, &p.RSIAtEntry,
		&p.OpenedAt, &status, &p.StopLoss, &p.TakeProfit, &peak, &p.LadderStage,
		&p.ClosePrice, &closeReason, &p.PnLPercent, &winLoss, &closedAt, &lastAlerted)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	p.Mode = domain.TradeMode(mode)
	p.Status = domain.PositionStatus(status)
	if peak.Valid {
		v := peak.Float64
		p.PeakPrice = &v
	}
	if closeReason.Valid {
		p.CloseReason = domain.CloseReason(closeReason.String)
	}
	if winLoss.Valid {
		p.WinLoss = domain.WinLoss(winLoss.String)
	}
	if closedAt.Valid {
		p.ClosedAt = closedAt.Time
	}
	p.LastAlerted = domain.AlertCondition(lastAlerted)
	return p, nil
}
