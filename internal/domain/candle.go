package domain

import "time"

// Candle represents a single candlestick data point, ordered oldest to newest
// when carried in a slice.
type Candle struct {
	OpenTime  time.Time
	CloseTime time.Time
	Symbol    string
	Interval  string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Closes extracts the closing prices from a candle series, preserving order.
func Closes(candles []*Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
