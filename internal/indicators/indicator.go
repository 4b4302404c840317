package indicators

import (
	"context"

	"github.com/Drknessheo/lunara-bot/internal/domain"
)

// Indicator represents a technical indicator computed from an ordered candle
// series (oldest to newest). Implementations are pure: identical input
// produces bit-identical output.
type Indicator interface {
	// Calculate computes the indicator value for the given candle series.
	Calculate(ctx context.Context, candles []*domain.Candle) (float64, error)

	// RequiredDataPoints returns the minimum number of candles needed.
	RequiredDataPoints() int

	// Name returns the name of the indicator.
	Name() string
}

// IndicatorConfig holds common configuration for indicators.
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators.
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of candles needed.
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}
