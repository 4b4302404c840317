package trader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Drknessheo/lunara-bot/internal/domain"
	"github.com/Drknessheo/lunara-bot/internal/ports"
	"github.com/Drknessheo/lunara-bot/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type fakeSettings struct{ mode domain.TradeMode }

func (f *fakeSettings) Effective(ctx context.Context, userID int64) (*domain.RiskSettings, error) {
	return &domain.RiskSettings{
		StopLossPercent:     5,
		ProfitTargetPercent: 25,
		RSISellThreshold:    70,
		WatchlistTimeout:    24 * time.Hour,
	}, nil
}

func (f *fakeSettings) TradingMode(ctx context.Context, userID int64) (domain.TradeMode, error) {
	return f.mode, nil
}

// fakePositions records creates and scripted close outcomes.
type fakePositions struct {
	ports.PositionRepository

	created   []*domain.Position
	createErr error

	existing *domain.Position

	closeWon  bool
	closeReqs []ports.CloseRequest
}

func (f *fakePositions) Create(ctx context.Context, pos *domain.Position) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created = append(f.created, pos)
	return 11, nil
}

func (f *fakePositions) FindOpenByUserSymbol(ctx context.Context, userID int64, symbol string) (*domain.Position, error) {
	return f.existing, nil
}

func (f *fakePositions) ClosePosition(ctx context.Context, req ports.CloseRequest) (bool, error) {
	f.closeReqs = append(f.closeReqs, req)
	return f.closeWon, nil
}

// fakeExecutor scripts fills and records unwinds.
type fakeExecutor struct {
	balance  float64
	openErr  error
	closeErr error
	unwound  bool
	opens    int
}

func (f *fakeExecutor) Open(ctx context.Context, userID int64, symbol string, notional, price float64) (*ports.Fill, error) {
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &ports.Fill{EntryPrice: price, Quantity: notional / price}, nil
}

func (f *fakeExecutor) Close(ctx context.Context, userID int64, symbol string, quantity, price float64) (*ports.CloseOutcome, error) {
	if f.closeErr != nil {
		return nil, f.closeErr
	}
	return &ports.CloseOutcome{ClosePrice: price, PaperCredit: quantity * price}, nil
}

func (f *fakeExecutor) Unwind(ctx context.Context, userID int64, symbol string, fill *ports.Fill) error {
	f.unwound = true
	return nil
}

func (f *fakeExecutor) Balance(ctx context.Context, userID int64) (float64, error) {
	return f.balance, nil
}

type fakeNotifier struct{ events []domain.Event }

func (f *fakeNotifier) Notify(ctx context.Context, userID int64, event domain.Event) error {
	f.events = append(f.events, event)
	return nil
}

type fakeBook struct{ pnl float64 }

func (f *fakeBook) DailyPnL(ctx context.Context, day string) (float64, error) { return f.pnl, nil }

func testConfig() Config {
	return Config{
		Sizing:               risk.SizingConfig{MinTradeSize: 5, RiskFraction: 0.05, MaxDailyDrawdown: 0.10},
		ATRStopMultiple:      1.5,
		PaperStartingBalance: 10000,
	}
}

func newTestTrader(positions *fakePositions, exec *fakeExecutor, notifier *fakeNotifier, book risk.DailyBook) *Trader {
	cfg := testConfig()
	guard := risk.NewGuard(cfg.Sizing, book, nopLogger{})
	return New(cfg, positions, nil, &fakeSettings{mode: domain.ModePaper}, nil, exec, guard, notifier, nopLogger{})
}

func testSettingsForOpen() *domain.RiskSettings {
	return &domain.RiskSettings{StopLossPercent: 5, ProfitTargetPercent: 25, RSISellThreshold: 70}
}

func TestTrader_OpenFromSignal(t *testing.T) {
	positions := &fakePositions{}
	exec := &fakeExecutor{balance: 10000}
	notifier := &fakeNotifier{}
	trd := newTestTrader(positions, exec, notifier, &fakeBook{})

	pos, err := trd.OpenFromSignal(context.Background(), 1, "BTCUSDT", 100, 33, 0, testSettingsForOpen())
	require.NoError(t, err)
	require.NotNil(t, pos)

	require.Len(t, positions.created, 1)
	assert.Equal(t, int64(11), pos.ID)
	assert.InDelta(t, 100, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 500, pos.Notional, 1e-9, "5% of the balance")
	assert.InDelta(t, 5, pos.Quantity, 1e-9)
	assert.InDelta(t, 95, pos.StopLoss, 1e-9)
	assert.InDelta(t, 125, pos.TakeProfit, 1e-9)
	assert.InDelta(t, 33, pos.RSIAtEntry, 1e-9)
	assert.Equal(t, domain.StatusOpen, pos.Status)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, domain.EventPositionOpened, notifier.events[0].Kind)
}

func TestTrader_OpenFromSignal_AlreadyOpen(t *testing.T) {
	positions := &fakePositions{existing: &domain.Position{ID: 3, Status: domain.StatusOpen}}
	exec := &fakeExecutor{balance: 10000}
	trd := newTestTrader(positions, exec, &fakeNotifier{}, &fakeBook{})

	_, err := trd.OpenFromSignal(context.Background(), 1, "BTCUSDT", 100, 33, 0, testSettingsForOpen())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrDuplicateRow))
	assert.Zero(t, exec.opens, "no order is placed for a held symbol")
}

func TestTrader_OpenFromSignal_DrawdownPause(t *testing.T) {
	positions := &fakePositions{}
	exec := &fakeExecutor{balance: 1000}
	trd := newTestTrader(positions, exec, &fakeNotifier{}, &fakeBook{pnl: -500})

	pos, err := trd.OpenFromSignal(context.Background(), 1, "BTCUSDT", 100, 33, 0, testSettingsForOpen())
	require.NoError(t, err)
	assert.Nil(t, pos)
	assert.Zero(t, exec.opens)
}

func TestTrader_OpenFromSignal_RejectedOrderNotifies(t *testing.T) {
	positions := &fakePositions{}
	exec := &fakeExecutor{balance: 10000, openErr: ports.ErrOrderRejected}
	notifier := &fakeNotifier{}
	trd := newTestTrader(positions, exec, notifier, &fakeBook{})

	_, err := trd.OpenFromSignal(context.Background(), 1, "BTCUSDT", 100, 33, 0, testSettingsForOpen())
	require.Error(t, err)
	assert.Empty(t, positions.created)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, domain.EventOrderRejected, notifier.events[0].Kind)
}

func TestTrader_OpenFromSignal_UnwindsOnCreateFailure(t *testing.T) {
	positions := &fakePositions{createErr: errors.New("disk full")}
	exec := &fakeExecutor{balance: 10000}
	trd := newTestTrader(positions, exec, &fakeNotifier{}, &fakeBook{})

	_, err := trd.OpenFromSignal(context.Background(), 1, "BTCUSDT", 100, 33, 0, testSettingsForOpen())
	require.Error(t, err)
	assert.True(t, exec.unwound, "the fill must be unwound when the row cannot be created")
}

func openPaperPosition() *domain.Position {
	return &domain.Position{
		ID:         7,
		UserID:     1,
		Symbol:     "BTCUSDT",
		Mode:       domain.ModePaper,
		EntryPrice: 100,
		Quantity:   5,
		Notional:   500,
		Status:     domain.StatusOpen,
		StopLoss:   95,
		TakeProfit: 125,
	}
}

func TestTrader_Close_Winner(t *testing.T) {
	positions := &fakePositions{closeWon: true}
	notifier := &fakeNotifier{}
	trd := newTestTrader(positions, &fakeExecutor{}, notifier, &fakeBook{})

	won, err := trd.Close(context.Background(), openPaperPosition(), 110, domain.CloseReasonTakeProfit)
	require.NoError(t, err)
	assert.True(t, won)

	require.Len(t, positions.closeReqs, 1)
	req := positions.closeReqs[0]
	assert.InDelta(t, 110, req.ClosePrice, 1e-9)
	assert.InDelta(t, 10, req.PnLPercent, 1e-9)
	assert.Equal(t, domain.OutcomeWin, req.WinLoss)
	assert.InDelta(t, 50, req.QuotePnL, 1e-9)
	assert.InDelta(t, 550, req.PaperCredit, 1e-9)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, domain.EventPositionClosed, notifier.events[0].Kind)
}

func TestTrader_Close_LostRaceHasNoSideEffects(t *testing.T) {
	positions := &fakePositions{closeWon: false}
	notifier := &fakeNotifier{}
	trd := newTestTrader(positions, &fakeExecutor{}, notifier, &fakeBook{})

	won, err := trd.Close(context.Background(), openPaperPosition(), 110, domain.CloseReasonStopLoss)
	require.NoError(t, err)
	assert.False(t, won)
	assert.Empty(t, notifier.events, "the losing closer announces nothing")
}

func TestTrader_Close_RejectedSellKeepsPositionOpen(t *testing.T) {
	positions := &fakePositions{closeWon: true}
	notifier := &fakeNotifier{}
	exec := &fakeExecutor{closeErr: ports.ErrOrderRejected}
	trd := newTestTrader(positions, exec, notifier, &fakeBook{})

	_, err := trd.Close(context.Background(), openPaperPosition(), 110, domain.CloseReasonTakeProfit)
	require.Error(t, err)
	assert.Empty(t, positions.closeReqs, "no conditional close is attempted without a fill")
	require.Len(t, notifier.events, 1)
	assert.Equal(t, domain.EventOrderRejected, notifier.events[0].Kind)
}
