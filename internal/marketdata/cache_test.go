package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Drknessheo/lunara-bot/internal/domain"
	"github.com/Drknessheo/lunara-bot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// fakeSource counts calls so memoization can be asserted.
type fakeSource struct {
	priceCalls  int
	candleCalls int
	prices      map[string]float64
	closes      []float64
}

func (f *fakeSource) Prices(ctx context.Context, symbols []string) (map[string]ports.Quote, error) {
	f.priceCalls++
	out := make(map[string]ports.Quote, len(symbols))
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = ports.Quote{Price: p, FetchedAt: time.Now()}
		}
	}
	return out, nil
}

func (f *fakeSource) Candles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error) {
	f.candleCalls++
	candles := make([]*domain.Candle, len(f.closes))
	for i, c := range f.closes {
		candles[i] = &domain.Candle{
			Symbol: symbol, Interval: interval,
			Open: c, High: c + 1, Low: c - 1, Close: c,
		}
	}
	return candles, nil
}

func testCacheConfig() CacheConfig {
	return CacheConfig{
		CandleInterval:  "1h",
		CandleLimit:     100,
		RSIPeriod:       14,
		BollingerPeriod: 20,
		BollingerMult:   2,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		ATRPeriod:       14,
		StalenessBound:  90 * time.Second,
	}
}

func risingCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestCache_BatchPriceFetch(t *testing.T) {
	source := &fakeSource{prices: map[string]float64{"BTCUSDT": 50000, "ETHUSDT": 3000}}
	cache, err := NewCache(context.Background(), testCacheConfig(), source, nopLogger{}, []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	assert.Equal(t, 1, source.priceCalls, "one batched call for all symbols")

	price, err := cache.Price("BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 50000, price, 1e-9)

	_, err = cache.Price("DOGEUSDT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrPriceUnavailable))
}

func TestCache_StalenessBound(t *testing.T) {
	source := &fakeSource{prices: map[string]float64{"BTCUSDT": 50000}}
	cache, err := NewCache(context.Background(), testCacheConfig(), source, nopLogger{}, []string{"BTCUSDT"})
	require.NoError(t, err)

	_, err = cache.Price("BTCUSDT")
	require.NoError(t, err)

	// Pretend 91 seconds have passed since the fetch.
	cache.now = func() time.Time { return time.Now().Add(91 * time.Second) }
	_, err = cache.Price("BTCUSDT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrPriceUnavailable))
}

func TestCache_IndicatorsMemoized(t *testing.T) {
	source := &fakeSource{
		prices: map[string]float64{"BTCUSDT": 50000},
		closes: risingCloses(60),
	}
	cache, err := NewCache(context.Background(), testCacheConfig(), source, nopLogger{}, []string{"BTCUSDT"})
	require.NoError(t, err)
	ctx := context.Background()

	rsi, err := cache.RSI(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 100, rsi, 1e-9, "strictly rising closes")

	_, err = cache.Bollinger(ctx, "BTCUSDT")
	require.NoError(t, err)
	_, err = cache.MACD(ctx, "BTCUSDT")
	require.NoError(t, err)
	_, err = cache.ATR(ctx, "BTCUSDT")
	require.NoError(t, err)

	// All four indicators share one candle fetch.
	assert.Equal(t, 1, source.candleCalls)

	for i := 0; i < 3; i++ {
		_, err = cache.RSI(ctx, "BTCUSDT")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, source.candleCalls, "repeat reads hit the memo")
}

func TestCache_InsufficientDataPropagates(t *testing.T) {
	source := &fakeSource{
		prices: map[string]float64{"BTCUSDT": 50000},
		closes: risingCloses(5),
	}
	cache, err := NewCache(context.Background(), testCacheConfig(), source, nopLogger{}, []string{"BTCUSDT"})
	require.NoError(t, err)

	_, err = cache.RSI(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrInsufficientData))
}

func TestCache_EmptySymbolSetSkipsFetch(t *testing.T) {
	source := &fakeSource{}
	_, err := NewCache(context.Background(), testCacheConfig(), source, nopLogger{}, nil)
	require.NoError(t, err)
	assert.Zero(t, source.priceCalls)
}
