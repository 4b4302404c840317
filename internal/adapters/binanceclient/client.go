// Package binanceclient adapts the Binance spot API to the market data and
// order execution ports.
package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Drknessheo/lunara-bot/internal/domain"
	"github.com/Drknessheo/lunara-bot/internal/ports"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"golang.org/x/time/rate"
)

const (
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"
)

// symbolFilters is the subset of exchange filters order sizing needs.
type symbolFilters struct {
	stepSize    float64
	minQuantity float64
	minNotional float64
}

// Client implements ports.MarketDataSource and the live ports.OrderExecutor
// over the Binance spot API. The account is the one behind the API keys;
// userID arguments identify the bot user, not an exchange subaccount.
type Client struct {
	spot           *binance.Client
	logger         ports.Logger
	limiter        *rate.Limiter
	quoteAsset     string
	requestTimeout time.Duration

	mu      sync.Mutex
	filters map[string]symbolFilters
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey         string
	SecretKey      string
	UseTestnet     bool
	Logger         ports.Logger
	QuoteAsset     string        // Settlement asset, e.g. "USDT"
	RequestTimeout time.Duration // Per API call
	RequestsPerSec float64       // Client-side rate limit
}

// New creates a new Binance spot client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required for Binance client", ports.ErrConfiguration)
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	quoteAsset := cfg.QuoteAsset
	if quoteAsset == "" {
		quoteAsset = "USDT"
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}

	return &Client{
		spot:           client,
		logger:         cfg.Logger,
		limiter:        rate.NewLimiter(rate.Limit(rps), int(math.Max(1, rps))),
		quoteAsset:     quoteAsset,
		requestTimeout: requestTimeout,
		filters:        make(map[string]symbolFilters),
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1013: // Filter failure (LOT_SIZE, MIN_NOTIONAL, ...)
			mappedErr = ports.ErrBelowMinNotional
		case -1021: // Timestamp outside of recvWindow
			mappedErr = ports.ErrTimeout
		case -2010: // New order rejected
			if strings.Contains(strings.ToLower(apiErr.Message), "insufficient balance") {
				mappedErr = ports.ErrInsufficientFunds
			} else {
				mappedErr = ports.ErrOrderRejected
			}
		case -2014, -2015: // API key invalid or lacking permissions
			mappedErr = ports.ErrConfiguration
		default:
			if apiErr.Code <= -1000 && apiErr.Code > -1100 {
				mappedErr = ports.ErrExchangeUnavailable
			} else {
				mappedErr = ports.ErrUnknown
			}
		}
		c.logger.Error(ctx, err, "Binance API error", fields)
		return fmt.Errorf("%s: %w: %s", operation, mappedErr, apiErr.Message)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		c.logger.Error(ctx, err, "Binance request timed out", fields)
		return fmt.Errorf("%s: %w", operation, ports.ErrTimeout)
	}

	c.logger.Error(ctx, err, "Binance request failed", fields)
	return fmt.Errorf("%s: %w", operation, err)
}

// wait applies the client-side rate limit before an API call.
func (c *Client) wait(ctx context.Context, operation string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, ports.ErrRateLimited)
	}
	return nil
}

// Prices fetches the current prices for all requested symbols in a single
// batched call.
func (c *Client) Prices(ctx context.Context, symbols []string) (map[string]ports.Quote, error) {
	op := "Prices"
	if len(symbols) == 0 {
		return map[string]ports.Quote{}, nil
	}
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	prices, err := c.spot.NewListPricesService().Symbols(symbols).Do(cctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	fetchedAt := time.Now()
	quotes := make(map[string]ports.Quote, len(prices))
	for _, p := range prices {
		value, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			c.logger.Warn(ctx, "Could not parse ticker price", map[string]interface{}{"symbol": p.Symbol, "price": p.Price})
			continue
		}
		quotes[p.Symbol] = ports.Quote{Price: value, FetchedAt: fetchedAt}
	}
	return quotes, nil
}

// Candles retrieves up to limit historical candles for the symbol, ordered
// oldest to newest.
func (c *Client) Candles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error) {
	op := "Candles"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	klines, err := c.spot.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(cctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	candles := make([]*domain.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := translateKline(k, symbol, interval)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// Open submits a market buy for the requested quote notional. The reference
// price is ignored; the exchange fill is authoritative.
func (c *Client) Open(ctx context.Context, userID int64, symbol string, notional, price float64) (*ports.Fill, error) {
	op := "Open"
	filters, err := c.symbolFilters(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if notional < filters.minNotional {
		return nil, fmt.Errorf("%s: notional %.2f under exchange minimum %.2f for %s: %w",
			op, notional, filters.minNotional, symbol, ports.ErrBelowMinNotional)
	}
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	order, err := c.spot.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(strconv.FormatFloat(notional, 'f', 8, 64)).
		Do(cctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	quantity, avgPrice, err := fillTotals(order)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, "Market buy filled", map[string]interface{}{
		"user_id":  userID,
		"symbol":   symbol,
		"order_id": order.OrderID,
		"price":    avgPrice,
		"quantity": quantity,
	})
	return &ports.Fill{EntryPrice: avgPrice, Quantity: quantity}, nil
}

// Close submits a market sell for the held quantity, rounded down to the
// symbol's lot-size step.
func (c *Client) Close(ctx context.Context, userID int64, symbol string, quantity, price float64) (*ports.CloseOutcome, error) {
	op := "Close"
	filters, err := c.symbolFilters(ctx, symbol)
	if err != nil {
		return nil, err
	}
	rounded := roundToStep(quantity, filters.stepSize)
	if rounded <= 0 || rounded < filters.minQuantity {
		return nil, fmt.Errorf("%s: quantity %.8f rounds under the lot size for %s: %w",
			op, quantity, symbol, ports.ErrOrderRejected)
	}
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	order, err := c.spot.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideTypeSell).
		Type(binance.OrderTypeMarket).
		Quantity(formatQuantity(rounded, filters.stepSize)).
		Do(cctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	_, avgPrice, err := fillTotals(order)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, "Market sell filled", map[string]interface{}{
		"user_id":  userID,
		"symbol":   symbol,
		"order_id": order.OrderID,
		"price":    avgPrice,
		"quantity": rounded,
	})
	return &ports.CloseOutcome{ClosePrice: avgPrice}, nil
}

// Unwind sells back a fill whose position row could not be recorded.
func (c *Client) Unwind(ctx context.Context, userID int64, symbol string, fill *ports.Fill) error {
	c.logger.Warn(ctx, "Unwinding orphaned fill", map[string]interface{}{
		"user_id":  userID,
		"symbol":   symbol,
		"quantity": fill.Quantity,
	})
	_, err := c.Close(ctx, userID, symbol, fill.Quantity, fill.EntryPrice)
	return err
}

// Balance returns the free balance of the quote asset.
func (c *Client) Balance(ctx context.Context, userID int64) (float64, error) {
	op := "Balance"
	if err := c.wait(ctx, op); err != nil {
		return 0, err
	}
	cctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	account, err := c.spot.NewGetAccountService().Do(cctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	for _, bal := range account.Balances {
		if bal.Asset == c.quoteAsset {
			free, err := strconv.ParseFloat(bal.Free, 64)
			if err != nil {
				parseErr := fmt.Errorf("could not parse balance '%s' for asset %s: %w", bal.Free, c.quoteAsset, err)
				return 0, c.handleError(ctx, parseErr, op)
			}
			return free, nil
		}
	}
	err = fmt.Errorf("asset %s not found in account balance", c.quoteAsset)
	return 0, c.handleError(ctx, err, op)
}

// symbolFilters returns the cached sizing filters for a symbol, fetching
// exchange info on first use.
func (c *Client) symbolFilters(ctx context.Context, symbol string) (symbolFilters, error) {
	op := "symbolFilters"
	c.mu.Lock()
	cached, ok := c.filters[symbol]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	if err := c.wait(ctx, op); err != nil {
		return symbolFilters{}, err
	}
	cctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	info, err := c.spot.NewExchangeInfoService().Symbols(symbol).Do(cctx)
	if err != nil {
		return symbolFilters{}, c.handleError(ctx, err, op)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		var f symbolFilters
		for _, raw := range s.Filters {
			switch raw["filterType"] {
			case "LOT_SIZE":
				f.stepSize = parseFilterFloat(raw["stepSize"])
				f.minQuantity = parseFilterFloat(raw["minQty"])
			case "NOTIONAL", "MIN_NOTIONAL":
				f.minNotional = parseFilterFloat(raw["minNotional"])
			}
		}
		c.mu.Lock()
		c.filters[symbol] = f
		c.mu.Unlock()
		return f, nil
	}
	return symbolFilters{}, fmt.Errorf("%s: no exchange info for symbol %s: %w", op, symbol, ports.ErrNotFound)
}

// fillTotals sums the order fills into executed quantity and average price.
func fillTotals(order *binance.CreateOrderResponse) (quantity, avgPrice float64, err error) {
	quantity, err = strconv.ParseFloat(order.ExecutedQuantity, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("could not parse executed quantity '%s': %w", order.ExecutedQuantity, err)
	}
	quote, err := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("could not parse quote quantity '%s': %w", order.CummulativeQuoteQuantity, err)
	}
	if quantity <= 0 {
		return 0, 0, fmt.Errorf("order %d executed zero quantity: %w", order.OrderID, ports.ErrOrderRejected)
	}
	return quantity, quote / quantity, nil
}

// roundToStep floors quantity to the lot-size step.
func roundToStep(quantity, step float64) float64 {
	if step <= 0 {
		return quantity
	}
	return math.Floor(quantity/step) * step
}

// formatQuantity renders a quantity with the step's decimal precision.
func formatQuantity(quantity, step float64) string {
	decimals := 8
	if step > 0 {
		decimals = 0
		for s := step; s < 1 && decimals < 8; s *= 10 {
			decimals++
		}
	}
	return strconv.FormatFloat(quantity, 'f', decimals, 64)
}

// parseFilterFloat parses an exchange filter value, treating a missing or
// malformed value as zero (filter disabled).
func parseFilterFloat(raw interface{}) float64 {
	s, ok := raw.(string)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// translateKline converts a Binance kline to the domain candle.
func translateKline(k *binance.Kline, symbol, interval string) (*domain.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse open '%s': %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse high '%s': %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse low '%s': %w", k.Low, err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse close '%s': %w", k.Close, err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse volume '%s': %w", k.Volume, err)
	}
	return &domain.Candle{
		OpenTime:  time.UnixMilli(k.OpenTime),
		CloseTime: time.UnixMilli(k.CloseTime),
		Symbol:    symbol,
		Interval:  interval,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}
