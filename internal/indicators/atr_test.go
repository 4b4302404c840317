package indicators

import (
	"context"
	"errors"
	"testing"

	"github.com/Drknessheo/lunara-bot/internal/domain"
	"github.com/Drknessheo/lunara-bot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candle(high, low, closePrice float64) *domain.Candle {
	return &domain.Candle{High: high, Low: low, Close: closePrice}
}

func TestATR_Calculate(t *testing.T) {
	atr := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 2}})
	ctx := context.Background()

	t.Run("insufficient data", func(t *testing.T) {
		_, err := atr.Calculate(ctx, []*domain.Candle{candle(10, 9, 9.5), candle(11, 10, 10.5)})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ports.ErrInsufficientData))
	})

	t.Run("mean of the last period true ranges", func(t *testing.T) {
		candles := []*domain.Candle{
			candle(10.5, 9.5, 10),
			candle(12, 9, 11),     // tr = max(3, 2, 1) = 3
			candle(11, 10, 10.5),  // tr = max(1, 0, 1) = 1
		}
		got, err := atr.Calculate(ctx, candles)
		require.NoError(t, err)
		assert.InDelta(t, 2, got, 1e-9)
	})

	t.Run("gap up uses the previous close", func(t *testing.T) {
		candles := []*domain.Candle{
			candle(10.5, 9.5, 10),
			candle(12, 9, 11),   // tr = 3
			candle(15, 14, 14.5), // gap: tr = max(1, 4, 3) = 4
		}
		got, err := atr.Calculate(ctx, candles)
		require.NoError(t, err)
		assert.InDelta(t, 3.5, got, 1e-9)
	})
}

func TestATR_RequiredDataPoints(t *testing.T) {
	atr := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 14}})
	assert.Equal(t, 15, atr.RequiredDataPoints())
}
