package indicators

import (
	"fmt"
	"math"

	"github.com/Drknessheo/lunara-bot/internal/ports"
)

// Bands holds one Bollinger Bands calculation result.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
	StdDev float64
}

// BollingerConfig holds configuration for the Bollinger Bands indicator.
type BollingerConfig struct {
	IndicatorConfig
	StdDevMultiplier float64
}

// BollingerBands computes a moving average plus/minus a multiple of the
// population standard deviation over the most recent period.
type BollingerBands struct {
	BaseIndicator
	config BollingerConfig
}

// NewBollingerBands creates a new Bollinger Bands indicator instance.
func NewBollingerBands(config BollingerConfig) *BollingerBands {
	return &BollingerBands{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator.
func (b *BollingerBands) Name() string {
	return "BOLL"
}

// Compute calculates the bands over a closing-price series.
func (b *BollingerBands) Compute(closes []float64) (*Bands, error) {
	return BollingerFromCloses(closes, b.Config.Period, b.config.StdDevMultiplier)
}

// BollingerFromCloses computes Bollinger Bands over the last period closes
// using the simple moving average and population standard deviation.
func BollingerFromCloses(closes []float64, period int, mult float64) (*Bands, error) {
	if period <= 0 {
		return nil, fmt.Errorf("Bollinger period must be positive, got %d", period)
	}
	if len(closes) < period {
		return nil, fmt.Errorf("%w: need %d closes for Bollinger period %d, got %d",
			ports.ErrInsufficientData, period, period, len(closes))
	}

	window := closes[len(closes)-period:]
	var sum float64
	for _, c := range window {
		sum += c
	}
	mean := sum / float64(period)

	var variance float64
	for _, c := range window {
		d := c - mean
		variance += d * d
	}
	variance /= float64(period)
	std := math.Sqrt(variance)

	return &Bands{
		Upper:  mean + std*mult,
		Middle: mean,
		Lower:  mean - std*mult,
		StdDev: std,
	}, nil
}

// Squeeze reports whether the band width relative to the middle band is
// under the given threshold, signalling a volatility squeeze.
func (bb *Bands) Squeeze(threshold float64) bool {
	if bb.Middle == 0 {
		return false
	}
	return (bb.Upper-bb.Lower)/bb.Middle < threshold
}
