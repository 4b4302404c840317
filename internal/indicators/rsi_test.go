package indicators

import (
	"errors"
	"testing"

	"github.com/Drknessheo/lunara-bot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSIFromCloses(t *testing.T) {
	tests := []struct {
		name    string
		closes  []float64
		period  int
		want    float64
		wantErr error
	}{
		{
			name:    "insufficient data",
			closes:  []float64{1, 2, 3},
			period:  14,
			wantErr: ports.ErrInsufficientData,
		},
		{
			name:    "exactly period closes is still one short",
			closes:  []float64{1, 2, 3, 4, 5},
			period:  5,
			wantErr: ports.ErrInsufficientData,
		},
		{
			name:   "all gains yields 100",
			closes: []float64{1, 2, 3, 4, 5, 6},
			period: 5,
			want:   100,
		},
		{
			name:   "all losses yields 0",
			closes: []float64{6, 5, 4, 3, 2, 1},
			period: 5,
			want:   0,
		},
		{
			name:   "flat series yields neutral 50",
			closes: []float64{3, 3, 3, 3, 3, 3},
			period: 5,
			want:   50,
		},
		{
			name:   "balanced gains and losses yields 50",
			closes: []float64{1, 2, 3, 2},
			period: 2,
			want:   50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RSIFromCloses(tt.closes, tt.period)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRSIFromCloses_Bounded(t *testing.T) {
	closes := []float64{10, 11, 9, 12, 8, 13, 7, 14, 6, 15, 5, 16, 4, 17, 3, 18}
	got, err := RSIFromCloses(closes, 14)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, 0.0)
	assert.LessOrEqual(t, got, 100.0)
}

func TestRSI_Thresholds(t *testing.T) {
	r := NewRSI(RSIConfig{
		IndicatorConfig: IndicatorConfig{Period: 14},
		Overbought:      70,
		Oversold:        30,
	})
	assert.True(t, r.IsOverbought(70))
	assert.False(t, r.IsOverbought(69.9))
	assert.True(t, r.IsOversold(30))
	assert.False(t, r.IsOversold(30.1))
	assert.Equal(t, 15, r.RequiredDataPoints())
}
