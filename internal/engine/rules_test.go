package engine

import (
	"testing"
	"time"

	"github.com/Drknessheo/lunara-bot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() *domain.RiskSettings {
	return &domain.RiskSettings{
		Tier:                 "TEST",
		RSIBuyThreshold:      30,
		RSIRecoveryThreshold: 32,
		RSISellThreshold:     70,
		StopLossPercent:      5,
		ProfitTargetPercent:  25,
		WatchlistTimeout:     24 * time.Hour,
	}
}

func openPosition(entry float64, s *domain.RiskSettings) *domain.Position {
	return &domain.Position{
		ID:         1,
		UserID:     42,
		Symbol:     "BTCUSDT",
		Mode:       domain.ModePaper,
		EntryPrice: entry,
		Quantity:   1,
		Notional:   entry,
		Status:     domain.StatusOpen,
		StopLoss:   entry * (1 - s.StopLossPercent/100),
		TakeProfit: entry * (1 + s.ProfitTargetPercent/100),
		OpenedAt:   time.Now(),
	}
}

// applyDecision folds a decision back into the in-memory position the way
// the engine persists it, so multi-cycle sequences can be replayed.
func applyDecision(pos *domain.Position, d Decision) {
	if d.NewPeak > 0 {
		peak := d.NewPeak
		pos.PeakPrice = &peak
	}
	if d.ArmPeak > 0 {
		peak := d.ArmPeak
		pos.PeakPrice = &peak
	}
	if d.RaiseStopTo > 0 {
		if d.RaiseStopTo > pos.StopLoss {
			pos.StopLoss = d.RaiseStopTo
		}
		pos.LadderStage = d.NewStage
	}
	if d.Close {
		pos.Status = domain.StatusClosed
	}
}

func TestEvaluatePosition_FixedStopLossSequence(t *testing.T) {
	s := testSettings()
	pos := openPosition(100, s)

	neutral := s.RSISellThreshold

	d := EvaluatePosition(pos, 100, neutral, s)
	assert.False(t, d.Close)

	d = EvaluatePosition(pos, 98, neutral, s)
	assert.False(t, d.Close)

	d = EvaluatePosition(pos, 94, neutral, s)
	require.True(t, d.Close)
	assert.Equal(t, domain.CloseReasonStopLoss, d.CloseReason)
	assert.InDelta(t, -6.0, pos.PnLPercentAt(94), 1e-9)
}

func TestEvaluatePosition_TrailingStopSequence(t *testing.T) {
	s := testSettings()
	s.UseTrailingStop = true
	s.TrailingActivatePercent = 7
	s.TrailingDropPercent = 3
	pos := openPosition(100, s)

	neutral := s.RSISellThreshold
	prices := []float64{100, 108, 112, 109, 106, 104, 108.64}

	var closed bool
	var reason domain.CloseReason
	var closeTick int
	for i, price := range prices {
		d := EvaluatePosition(pos, price, neutral, s)
		applyDecision(pos, d)
		if d.Close {
			closed = true
			reason = d.CloseReason
			closeTick = i
			break
		}
	}

	require.True(t, closed)
	assert.Equal(t, domain.CloseReasonTrailingStop, reason)
	// Arms at 108, peak tracks to 112, threshold 112*0.97 = 108.64; the
	// first price at or under it is 106.
	assert.Equal(t, 4, closeTick)
	require.NotNil(t, pos.PeakPrice)
	assert.InDelta(t, 112, *pos.PeakPrice, 1e-9)
}

func TestEvaluatePosition_TrailingDropBand(t *testing.T) {
	s := testSettings()
	s.UseTrailingStop = true
	s.TrailingActivatePercent = 7
	s.TrailingDropPercent = 3
	pos := openPosition(100, s)
	peak := 112.0
	pos.PeakPrice = &peak

	// Just inside the band: stays open.
	d := EvaluatePosition(pos, 108.7, s.RSISellThreshold, s)
	assert.False(t, d.Close)

	// Under the 112*0.97 threshold: trailing stop fires.
	d = EvaluatePosition(pos, 108.6, s.RSISellThreshold, s)
	require.True(t, d.Close)
	assert.Equal(t, domain.CloseReasonTrailingStop, d.CloseReason)
}

func TestEvaluatePosition_TrailingArmsOnce(t *testing.T) {
	s := testSettings()
	s.UseTrailingStop = true
	s.TrailingActivatePercent = 7
	s.TrailingDropPercent = 3
	pos := openPosition(100, s)

	d := EvaluatePosition(pos, 108, s.RSISellThreshold, s)
	require.False(t, d.Close)
	assert.InDelta(t, 108, d.ArmPeak, 1e-9)
	applyDecision(pos, d)

	// Same price next cycle: already armed, no re-arm, no close.
	d = EvaluatePosition(pos, 108, s.RSISellThreshold, s)
	assert.Zero(t, d.ArmPeak)
	assert.False(t, d.Close)
}

func TestEvaluatePosition_PeakMonotonic(t *testing.T) {
	s := testSettings()
	s.UseTrailingStop = true
	s.TrailingActivatePercent = 7
	s.TrailingDropPercent = 10
	pos := openPosition(100, s)

	prices := []float64{108, 110, 109, 111, 108, 115, 112}
	var lastPeak float64
	for _, price := range prices {
		d := EvaluatePosition(pos, price, s.RSISellThreshold, s)
		require.False(t, d.Close)
		applyDecision(pos, d)
		require.NotNil(t, pos.PeakPrice)
		assert.GreaterOrEqual(t, *pos.PeakPrice, lastPeak)
		lastPeak = *pos.PeakPrice
	}
	assert.InDelta(t, 115, lastPeak, 1e-9)
}

func TestEvaluatePosition_StopLossDominatesEverything(t *testing.T) {
	s := testSettings()
	s.UseTrailingStop = true
	s.TrailingActivatePercent = 7
	s.TrailingDropPercent = 3
	s.Ladder = []domain.LadderRung{{ProfitPercent: 5, StopPercent: 0}}
	pos := openPosition(100, s)
	// Force a degenerate state where everything would fire at once.
	pos.StopLoss = 120
	pos.TakeProfit = 110
	peak := 130.0
	pos.PeakPrice = &peak
	pos.RSIAtEntry = 80

	d := EvaluatePosition(pos, 115, 60, s)
	require.True(t, d.Close)
	assert.Equal(t, domain.CloseReasonStopLoss, d.CloseReason)
}

func TestEvaluatePosition_TakeProfitOnlyWhenNotArmed(t *testing.T) {
	s := testSettings()
	s.UseTrailingStop = true
	s.TrailingActivatePercent = 7
	s.TrailingDropPercent = 10
	pos := openPosition(100, s)
	peak := 130.0
	pos.PeakPrice = &peak

	// Above the fixed target but within the trailing band: no exit.
	d := EvaluatePosition(pos, 126, s.RSISellThreshold, s)
	assert.False(t, d.Close)

	// Trailing disabled: the same price takes profit.
	s2 := testSettings()
	pos2 := openPosition(100, s2)
	d = EvaluatePosition(pos2, 126, s2.RSISellThreshold, s2)
	require.True(t, d.Close)
	assert.Equal(t, domain.CloseReasonTakeProfit, d.CloseReason)
}

func TestEvaluatePosition_LadderAdvances(t *testing.T) {
	s := testSettings()
	s.Ladder = []domain.LadderRung{
		{ProfitPercent: 5, StopPercent: 0},
		{ProfitPercent: 8, StopPercent: 3},
		{ProfitPercent: 12, StopPercent: 6},
	}
	pos := openPosition(100, s)

	// First rung: break-even stop.
	d := EvaluatePosition(pos, 105, s.RSISellThreshold, s)
	require.False(t, d.Close)
	assert.Equal(t, 1, d.NewStage)
	assert.InDelta(t, 100, d.RaiseStopTo, 1e-9)
	applyDecision(pos, d)

	// Jumping straight past two rungs lands on the highest one crossed.
	d = EvaluatePosition(pos, 113, s.RSISellThreshold, s)
	require.False(t, d.Close)
	assert.Equal(t, 3, d.NewStage)
	assert.InDelta(t, 106, d.RaiseStopTo, 1e-9)
	applyDecision(pos, d)

	// Profit falling back never lowers the stop or the stage.
	d = EvaluatePosition(pos, 107, s.RSISellThreshold, s)
	assert.Zero(t, d.RaiseStopTo)
	assert.False(t, d.Close)
	assert.Equal(t, 3, pos.LadderStage)
	assert.InDelta(t, 106, pos.StopLoss, 1e-9)

	// And dropping to the raised stop closes as a stop-loss.
	d = EvaluatePosition(pos, 106, s.RSISellThreshold, s)
	require.True(t, d.Close)
	assert.Equal(t, domain.CloseReasonStopLoss, d.CloseReason)
}

func TestEvaluatePosition_SameRungNotReapplied(t *testing.T) {
	s := testSettings()
	s.Ladder = []domain.LadderRung{{ProfitPercent: 5, StopPercent: 0}}
	pos := openPosition(100, s)

	d := EvaluatePosition(pos, 106, s.RSISellThreshold, s)
	require.Equal(t, 1, d.NewStage)
	applyDecision(pos, d)

	d = EvaluatePosition(pos, 106, s.RSISellThreshold, s)
	assert.Zero(t, d.NewStage)
	assert.Zero(t, d.RaiseStopTo)
}

func TestEvaluatePosition_IndicatorReversalExit(t *testing.T) {
	s := testSettings()

	t.Run("fires on a reversal in profit", func(t *testing.T) {
		pos := openPosition(100, s)
		pos.RSIAtEntry = 75
		d := EvaluatePosition(pos, 102, 65, s)
		require.True(t, d.Close)
		assert.Equal(t, domain.CloseReasonIndicatorExit, d.CloseReason)
	})

	t.Run("loss guard blocks a deep-loss exit", func(t *testing.T) {
		pos := openPosition(100, s)
		pos.RSIAtEntry = 75
		d := EvaluatePosition(pos, 98, 65, s)
		assert.False(t, d.Close)
	})

	t.Run("requires the entry RSI to have been above the threshold", func(t *testing.T) {
		pos := openPosition(100, s)
		pos.RSIAtEntry = 50
		d := EvaluatePosition(pos, 102, 65, s)
		assert.False(t, d.Close)
	})
}
