package indicators

import (
	"context"
	"fmt"

	"github.com/Drknessheo/lunara-bot/internal/domain"
	"github.com/Drknessheo/lunara-bot/internal/ports"
)

// RSIConfig holds configuration for the RSI indicator.
type RSIConfig struct {
	IndicatorConfig
	Overbought float64
	Oversold   float64
}

// RSI implements the Relative Strength Index indicator.
type RSI struct {
	BaseIndicator
	config RSIConfig
}

// NewRSI creates a new RSI indicator instance.
func NewRSI(config RSIConfig) *RSI {
	return &RSI{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator.
func (r *RSI) Name() string {
	return "RSI"
}

// RequiredDataPoints returns the minimum number of candles needed: one more
// than the period, since RSI works on deltas.
func (r *RSI) RequiredDataPoints() int {
	return r.Config.Period + 1
}

// Calculate computes the RSI value using Wilder's smoothing method.
// A window of only gains yields 100 (the down-average is zero, so RS is
// treated as infinite rather than a division failure); only losses yields 0;
// a completely flat window yields the neutral 50.
func (r *RSI) Calculate(ctx context.Context, candles []*domain.Candle) (float64, error) {
	return RSIFromCloses(domain.Closes(candles), r.Config.Period)
}

// RSIFromCloses computes Wilder RSI over a raw closing-price series.
func RSIFromCloses(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("RSI period must be positive, got %d", period)
	}
	if len(closes) <= period {
		return 0, fmt.Errorf("%w: need %d closes for RSI period %d, got %d",
			ports.ErrInsufficientData, period+1, period, len(closes))
	}

	changes := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		changes = append(changes, closes[i]-closes[i-1])
	}

	// Initial averages over the first period of deltas.
	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss -= changes[i]
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder's smoothing over the remainder of the series.
	for i := period; i < len(changes); i++ {
		gain, loss := 0.0, 0.0
		if changes[i] > 0 {
			gain = changes[i]
		} else {
			loss = -changes[i]
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	if rsi > 100 {
		rsi = 100
	} else if rsi < 0 {
		rsi = 0
	}
	return rsi, nil
}

// IsOverbought checks if the RSI value indicates an overbought condition.
func (r *RSI) IsOverbought(value float64) bool {
	return value >= r.config.Overbought
}

// IsOversold checks if the RSI value indicates an oversold condition.
func (r *RSI) IsOversold(value float64) bool {
	return value <= r.config.Oversold
}
