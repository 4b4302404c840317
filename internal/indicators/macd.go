package indicators

import (
	"fmt"

	"github.com/Drknessheo/lunara-bot/internal/ports"
)

// Lines holds one MACD calculation result.
type Lines struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACDConfig holds configuration for the MACD indicator.
type MACDConfig struct {
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
}

// MACD implements the Moving Average Convergence Divergence indicator:
// the difference of a fast and slow EMA plus an EMA of that difference.
type MACD struct {
	config MACDConfig
}

// NewMACD creates a new MACD indicator instance.
func NewMACD(config MACDConfig) *MACD {
	return &MACD{config: config}
}

// Name returns the name of the indicator.
func (m *MACD) Name() string {
	return "MACD"
}

// RequiredDataPoints returns the minimum number of closes needed.
func (m *MACD) RequiredDataPoints() int {
	return m.config.SlowPeriod + m.config.SignalPeriod
}

// Compute calculates the most recent MACD, signal and histogram values.
func (m *MACD) Compute(closes []float64) (*Lines, error) {
	return MACDFromCloses(closes, m.config.FastPeriod, m.config.SlowPeriod, m.config.SignalPeriod)
}

// MACDFromCloses computes MACD over a closing-price series. Each EMA is
// seeded with the simple average of its first period and then rolled forward
// with the standard 2/(period+1) multiplier.
func MACDFromCloses(closes []float64, fast, slow, signal int) (*Lines, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return nil, fmt.Errorf("MACD periods must be positive, got fast=%d slow=%d signal=%d", fast, slow, signal)
	}
	if fast >= slow {
		return nil, fmt.Errorf("MACD fast period (%d) must be shorter than slow period (%d)", fast, slow)
	}
	if len(closes) < slow+signal {
		return nil, fmt.Errorf("%w: need %d closes for MACD(%d,%d,%d), got %d",
			ports.ErrInsufficientData, slow+signal, fast, slow, signal, len(closes))
	}

	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)

	// The MACD line is defined from the first index where the slow EMA
	// exists.
	macdLine := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		macdLine = append(macdLine, fastEMA[i]-slowEMA[i])
	}

	signalEMA := emaSeries(macdLine, signal)

	last := len(macdLine) - 1
	macd := macdLine[last]
	sig := signalEMA[last]
	return &Lines{
		MACD:      macd,
		Signal:    sig,
		Histogram: macd - sig,
	}, nil
}

// emaSeries returns an EMA value for every index of the series. Indexes
// before period-1 carry the simple running average as a seed region; from
// period-1 onward the values are the true EMA.
func emaSeries(series []float64, period int) []float64 {
	out := make([]float64, len(series))
	multiplier := 2.0 / float64(period+1)

	var sum float64
	for i, v := range series {
		if i < period {
			sum += v
			out[i] = sum / float64(i+1)
			continue
		}
		out[i] = (v-out[i-1])*multiplier + out[i-1]
	}
	return out
}
