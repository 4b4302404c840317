package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizingConfig_TradeSize(t *testing.T) {
	cfg := SizingConfig{MinTradeSize: 5, RiskFraction: 0.05}

	tests := []struct {
		name    string
		balance float64
		want    float64
	}{
		{name: "fraction above the floor", balance: 1000, want: 50},
		{name: "floor applies on small balances", balance: 40, want: 5},
		{name: "capped at the available balance", balance: 3, want: 3},
		{name: "zero balance funds nothing", balance: 0, want: 0},
		{name: "negative balance funds nothing", balance: -10, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cfg.TradeSize(tt.balance), 1e-9)
		})
	}
}

func TestATRStop(t *testing.T) {
	assert.InDelta(t, 97, ATRStop(100, 2, 1.5), 1e-9)
	assert.InDelta(t, 100, ATRStop(100, 0, 1.5), 1e-9)
}

type fakeAccounts struct {
	dailyPnL float64
	err      error
}

func (f *fakeAccounts) DailyPnL(ctx context.Context, day string) (float64, error) {
	return f.dailyPnL, f.err
}

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestGuard_ShouldPause(t *testing.T) {
	cfg := SizingConfig{MinTradeSize: 5, RiskFraction: 0.05, MaxDailyDrawdown: 0.10}
	ctx := context.Background()

	t.Run("under the limit keeps trading", func(t *testing.T) {
		g := NewGuard(cfg, &fakeAccounts{dailyPnL: -50}, nopLogger{})
		assert.False(t, g.ShouldPause(ctx, 1000))
	})

	t.Run("past the limit pauses", func(t *testing.T) {
		g := NewGuard(cfg, &fakeAccounts{dailyPnL: -150}, nopLogger{})
		assert.True(t, g.ShouldPause(ctx, 1000))
	})

	t.Run("profit never pauses", func(t *testing.T) {
		g := NewGuard(cfg, &fakeAccounts{dailyPnL: 500}, nopLogger{})
		assert.False(t, g.ShouldPause(ctx, 1000))
	})

	t.Run("ledger errors fail open", func(t *testing.T) {
		g := NewGuard(cfg, &fakeAccounts{err: assert.AnError}, nopLogger{})
		assert.False(t, g.ShouldPause(ctx, 1000))
	})
}
