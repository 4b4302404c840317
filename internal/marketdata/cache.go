// Package marketdata provides the per-cycle market data cache. A cache is
// built at the start of a monitoring pass with the full symbol set, serves
// every price and indicator read during that pass, and is discarded when
// the pass ends.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/Drknessheo/lunara-bot/internal/domain"
	"github.com/Drknessheo/lunara-bot/internal/indicators"
	"github.com/Drknessheo/lunara-bot/internal/ports"
)

// CacheConfig carries the indicator parameters and freshness bound the
// cache computes with.
type CacheConfig struct {
	CandleInterval string
	CandleLimit    int

	RSIPeriod       int
	BollingerPeriod int
	BollingerMult   float64
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	ATRPeriod       int

	// StalenessBound is the maximum quote age Price will serve.
	StalenessBound time.Duration
}

// Cache memoizes quotes, candles and derived indicators for one monitoring
// cycle. It is not safe for concurrent use; a cycle evaluates positions
// sequentially.
type Cache struct {
	cfg    CacheConfig
	source ports.MarketDataSource
	logger ports.Logger
	now    func() time.Time

	quotes  map[string]ports.Quote
	candles map[string][]*domain.Candle
	rsi     map[string]float64
	bands   map[string]*indicators.Bands
	macd    map[string]*indicators.Lines
	atr     map[string]float64
}

// NewCache builds a cycle cache and fetches quotes for all symbols in one
// batched call. Symbols whose quotes are missing from the response are
// simply absent; reads for them fail per symbol rather than failing the
// cycle.
func NewCache(ctx context.Context, cfg CacheConfig, source ports.MarketDataSource, logger ports.Logger, symbols []string) (*Cache, error) {
	c := &Cache{
		cfg:     cfg,
		source:  source,
		logger:  logger,
		now:     time.Now,
		quotes:  make(map[string]ports.Quote),
		candles: make(map[string][]*domain.Candle),
		rsi:     make(map[string]float64),
		bands:   make(map[string]*indicators.Bands),
		macd:    make(map[string]*indicators.Lines),
		atr:     make(map[string]float64),
	}
	if len(symbols) == 0 {
		return c, nil
	}
	quotes, err := source.Prices(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	c.quotes = quotes
	return c, nil
}

// Price returns the cached quote for symbol. It returns
// ports.ErrPriceUnavailable when no quote was fetched or the quote is older
// than the staleness bound.
func (c *Cache) Price(symbol string) (float64, error) {
	q, ok := c.quotes[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: no quote for %s", ports.ErrPriceUnavailable, symbol)
	}
	if c.cfg.StalenessBound > 0 && c.now().Sub(q.FetchedAt) > c.cfg.StalenessBound {
		return 0, fmt.Errorf("%w: quote for %s is stale", ports.ErrPriceUnavailable, symbol)
	}
	return q.Price, nil
}

// Candles returns the candle series for symbol, fetching it on first use.
func (c *Cache) Candles(ctx context.Context, symbol string) ([]*domain.Candle, error) {
	if cs, ok := c.candles[symbol]; ok {
		return cs, nil
	}
	cs, err := c.source.Candles(ctx, symbol, c.cfg.CandleInterval, c.cfg.CandleLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s: %w", symbol, err)
	}
	c.candles[symbol] = cs
	return cs, nil
}

// RSI returns the memoized RSI for symbol.
func (c *Cache) RSI(ctx context.Context, symbol string) (float64, error) {
	if v, ok := c.rsi[symbol]; ok {
		return v, nil
	}
	candles, err := c.Candles(ctx, symbol)
	if err != nil {
		return 0, err
	}
	v, err := indicators.RSIFromCloses(domain.Closes(candles), c.cfg.RSIPeriod)
	if err != nil {
		return 0, err
	}
	c.rsi[symbol] = v
	return v, nil
}

// Bollinger returns the memoized Bollinger bands for symbol.
func (c *Cache) Bollinger(ctx context.Context, symbol string) (*indicators.Bands, error) {
	if b, ok := c.bands[symbol]; ok {
		return b, nil
	}
	candles, err := c.Candles(ctx, symbol)
	if err != nil {
		return nil, err
	}
	b, err := indicators.BollingerFromCloses(domain.Closes(candles), c.cfg.BollingerPeriod, c.cfg.BollingerMult)
	if err != nil {
		return nil, err
	}
	c.bands[symbol] = b
	return b, nil
}

// MACD returns the memoized MACD lines for symbol.
func (c *Cache) MACD(ctx context.Context, symbol string) (*indicators.Lines, error) {
	if m, ok := c.macd[symbol]; ok {
		return m, nil
	}
	candles, err := c.Candles(ctx, symbol)
	if err != nil {
		return nil, err
	}
	m, err := indicators.MACDFromCloses(domain.Closes(candles), c.cfg.MACDFast, c.cfg.MACDSlow, c.cfg.MACDSignal)
	if err != nil {
		return nil, err
	}
	c.macd[symbol] = m
	return m, nil
}

// ATR returns the memoized average true range for symbol.
func (c *Cache) ATR(ctx context.Context, symbol string) (float64, error) {
	if v, ok := c.atr[symbol]; ok {
		return v, nil
	}
	candles, err := c.Candles(ctx, symbol)
	if err != nil {
		return 0, err
	}
	atr := indicators.NewATR(indicators.ATRConfig{IndicatorConfig: indicators.IndicatorConfig{Period: c.cfg.ATRPeriod}})
	v, err := atr.Calculate(ctx, candles)
	if err != nil {
		return 0, err
	}
	c.atr[symbol] = v
	return v, nil
}
