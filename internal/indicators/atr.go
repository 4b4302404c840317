package indicators

import (
	"context"
	"fmt"
	"math"

	"github.com/Drknessheo/lunara-bot/internal/domain"
	"github.com/Drknessheo/lunara-bot/internal/ports"
)

// ATRConfig holds configuration for the Average True Range indicator.
type ATRConfig struct {
	IndicatorConfig
}

// ATR implements the Average True Range indicator: the arithmetic mean of
// the last period true-range values.
type ATR struct {
	config ATRConfig
}

// NewATR creates a new Average True Range indicator instance.
func NewATR(config ATRConfig) *ATR {
	return &ATR{config: config}
}

// Name returns the name of the indicator.
func (a *ATR) Name() string {
	return "ATR"
}

// RequiredDataPoints returns the minimum number of candles needed: the true
// range uses the previous close, so one extra candle is required.
func (a *ATR) RequiredDataPoints() int {
	return a.config.Period + 1
}

// Calculate computes the ATR value for the given candle series.
func (a *ATR) Calculate(ctx context.Context, candles []*domain.Candle) (float64, error) {
	period := a.config.Period
	if period <= 0 {
		return 0, fmt.Errorf("ATR period must be positive, got %d", period)
	}
	if len(candles) < period+1 {
		return 0, fmt.Errorf("%w: need %d candles for ATR period %d, got %d",
			ports.ErrInsufficientData, period+1, period, len(candles))
	}

	// True range is the greatest of high-low, |high-prevClose| and
	// |low-prevClose|.
	trueRanges := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trueRanges = append(trueRanges, tr)
	}

	var sum float64
	for _, tr := range trueRanges[len(trueRanges)-period:] {
		sum += tr
	}
	return sum / float64(period), nil
}
