package indicators

import (
	"errors"
	"math"
	"testing"

	"github.com/Drknessheo/lunara-bot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBollingerFromCloses(t *testing.T) {
	t.Run("insufficient data", func(t *testing.T) {
		_, err := BollingerFromCloses([]float64{1, 2, 3}, 5, 2)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ports.ErrInsufficientData))
	})

	t.Run("population std over the window", func(t *testing.T) {
		bands, err := BollingerFromCloses([]float64{1, 2, 3, 4, 5}, 5, 2)
		require.NoError(t, err)

		wantStd := math.Sqrt(2) // variance (4+1+0+1+4)/5
		assert.InDelta(t, 3, bands.Middle, 1e-9)
		assert.InDelta(t, wantStd, bands.StdDev, 1e-9)
		assert.InDelta(t, 3+2*wantStd, bands.Upper, 1e-9)
		assert.InDelta(t, 3-2*wantStd, bands.Lower, 1e-9)
	})

	t.Run("only the last period closes are used", func(t *testing.T) {
		withHistory, err := BollingerFromCloses([]float64{100, 200, 1, 2, 3, 4, 5}, 5, 2)
		require.NoError(t, err)
		bare, err := BollingerFromCloses([]float64{1, 2, 3, 4, 5}, 5, 2)
		require.NoError(t, err)
		assert.Equal(t, bare, withHistory)
	})

	t.Run("flat window collapses the bands", func(t *testing.T) {
		bands, err := BollingerFromCloses([]float64{7, 7, 7, 7}, 4, 2)
		require.NoError(t, err)
		assert.Zero(t, bands.StdDev)
		assert.Equal(t, bands.Middle, bands.Upper)
		assert.Equal(t, bands.Middle, bands.Lower)
	})
}

func TestBands_Squeeze(t *testing.T) {
	wide := Bands{Upper: 12, Middle: 10, Lower: 8}
	assert.False(t, wide.Squeeze(0.1))
	assert.True(t, wide.Squeeze(0.5))

	degenerate := Bands{Upper: 1, Middle: 0, Lower: -1}
	assert.False(t, degenerate.Squeeze(0.5))
}
