package domain

import (
	"fmt"
	"time"
)

// LadderRung is one step of the staged stop-loss ladder: once unrealized
// profit crosses ProfitPercent, the stop-loss is raised to
// entry * (1 + StopPercent/100).
type LadderRung struct {
	ProfitPercent float64
	StopPercent   float64
}

// RiskSettings are the effective risk parameters for one user, resolved from
// their subscription tier plus any per-user overrides. Read-only from the
// engine's perspective.
type RiskSettings struct {
	Tier string

	RSIBuyThreshold      float64 // Add to watchlist when RSI dips under this
	RSIRecoveryThreshold float64 // Promote from watchlist when RSI recovers above this
	RSISellThreshold     float64 // Indicator-reversal exit reference level

	StopLossPercent     float64 // Fixed stop distance below entry, in percent
	ProfitTargetPercent float64 // Fixed take-profit distance above entry, in percent

	UseTrailingStop          bool
	TrailingActivatePercent  float64 // Arm trailing once PnL reaches this
	TrailingDropPercent      float64 // Close once price drops this far from the peak
	UseBollingerConfirmation bool

	Ladder []LadderRung // Ascending profit thresholds; empty disables the ladder

	WatchlistTimeout time.Duration
}

// Validate rejects malformed risk settings. It is called once at settings
// load so a bad configuration can never surface mid-cycle for a single
// symbol.
func (s *RiskSettings) Validate() error {
	if s.StopLossPercent <= 0 || s.StopLossPercent >= 100 {
		return fmt.Errorf("stop-loss percent must be in (0, 100), got %v", s.StopLossPercent)
	}
	if s.ProfitTargetPercent <= 0 {
		return fmt.Errorf("profit target percent must be positive, got %v", s.ProfitTargetPercent)
	}
	if s.RSIBuyThreshold < 0 || s.RSIBuyThreshold > 100 ||
		s.RSISellThreshold < 0 || s.RSISellThreshold > 100 ||
		s.RSIRecoveryThreshold < 0 || s.RSIRecoveryThreshold > 100 {
		return fmt.Errorf("RSI thresholds must be within [0, 100]")
	}
	if s.UseTrailingStop {
		if s.TrailingActivatePercent <= 0 {
			return fmt.Errorf("trailing activation percent must be positive, got %v", s.TrailingActivatePercent)
		}
		if s.TrailingDropPercent <= 0 || s.TrailingDropPercent >= 100 {
			return fmt.Errorf("trailing drop percent must be in (0, 100), got %v", s.TrailingDropPercent)
		}
	}
	for i, rung := range s.Ladder {
		if rung.ProfitPercent <= 0 {
			return fmt.Errorf("ladder rung %d: profit threshold must be positive", i)
		}
		if i > 0 && rung.ProfitPercent <= s.Ladder[i-1].ProfitPercent {
			return fmt.Errorf("ladder rung %d: profit thresholds must be strictly ascending", i)
		}
		if i > 0 && rung.StopPercent < s.Ladder[i-1].StopPercent {
			return fmt.Errorf("ladder rung %d: stop levels must be non-decreasing", i)
		}
	}
	if s.WatchlistTimeout <= 0 {
		return fmt.Errorf("watchlist timeout must be positive, got %v", s.WatchlistTimeout)
	}
	return nil
}
