// Package engine runs the position lifecycle: the non-overlapping
// monitoring cycle and the fixed-priority exit rules applied to every open
// position.
package engine

import (
	"github.com/Drknessheo/lunara-bot/internal/domain"
)

// rsiExitLossGuard blocks the indicator-reversal exit when the position is
// more than this far underwater, so a reversal signal cannot realize a deep
// loss that the stop-loss should own.
const rsiExitLossGuard = -1.0

// Decision is the outcome of evaluating one open position for one cycle.
// At most one of Close, ArmPeak and RaiseStopTo is set; NewPeak may
// accompany Close when the peak advanced before the trailing stop fired.
type Decision struct {
	// NewPeak, when positive, raises the stored peak price before anything
	// else is acted on.
	NewPeak float64

	Close       bool
	CloseReason domain.CloseReason

	// ArmPeak, when positive, arms the trailing stop at this price.
	ArmPeak float64

	// RaiseStopTo, when positive, raises the stop-loss and advances the
	// ladder stage to NewStage.
	RaiseStopTo float64
	NewStage    int
}

// EvaluatePosition applies the exit rules to one open position in fixed
// priority order; the first rule that matches decides the cycle and no later
// rule runs. Order: stop-loss, trailing stop, trailing arming, take-profit,
// ladder stop adjustment, indicator-reversal exit.
func EvaluatePosition(pos *domain.Position, price, rsi float64, settings *domain.RiskSettings) Decision {
	var d Decision

	if price <= pos.StopLoss {
		d.Close = true
		d.CloseReason = domain.CloseReasonStopLoss
		return d
	}

	if settings.UseTrailingStop && pos.TrailingArmed() {
		peak := *pos.PeakPrice
		if price > peak {
			d.NewPeak = price
			peak = price
		}
		if price <= peak*(1-settings.TrailingDropPercent/100) {
			d.Close = true
			d.CloseReason = domain.CloseReasonTrailingStop
			return d
		}
	}

	pnl := pos.PnLPercentAt(price)

	if settings.UseTrailingStop && !pos.TrailingArmed() && pnl >= settings.TrailingActivatePercent {
		d.ArmPeak = price
		return d
	}

	// Once trailing is armed the trailing stop owns the upside exit.
	if (!settings.UseTrailingStop || !pos.TrailingArmed()) && price >= pos.TakeProfit {
		d.Close = true
		d.CloseReason = domain.CloseReasonTakeProfit
		return d
	}

	if stop, stage, ok := ladderAdvance(pos, pnl, settings.Ladder); ok {
		d.RaiseStopTo = stop
		d.NewStage = stage
		return d
	}

	if pos.RSIAtEntry > settings.RSISellThreshold && rsi < settings.RSISellThreshold && pnl > rsiExitLossGuard {
		d.Close = true
		d.CloseReason = domain.CloseReasonIndicatorExit
		return d
	}

	return d
}

// ladderAdvance walks the ascending profit thresholds and reports the
// highest rung the PnL has crossed beyond the stage already recorded. Stage
// n means rung n-1 has been applied; stage and stop only move forward.
func ladderAdvance(pos *domain.Position, pnl float64, ladder []domain.LadderRung) (stop float64, stage int, ok bool) {
	target := 0
	var rung domain.LadderRung
	for i, r := range ladder {
		if pnl >= r.ProfitPercent {
			target = i + 1
			rung = r
		}
	}
	if target <= pos.LadderStage {
		return 0, 0, false
	}
	stop = pos.EntryPrice * (1 + rung.StopPercent/100)
	if stop <= pos.StopLoss {
		// The stop never moves down; still record the stage so the rung is
		// not re-applied every cycle.
		stop = pos.StopLoss
	}
	return stop, target, true
}
