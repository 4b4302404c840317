package engine

import (
	"context"
	"fmt"

	"github.com/Drknessheo/lunara-bot/internal/domain"
)

// AlertConfig sets how close, in percent of the threshold price, a position
// must get before a proximity alert fires.
type AlertConfig struct {
	NearStopLossPercent   float64
	NearTakeProfitPercent float64
}

// classifyProximity returns the alert condition the price currently sits in.
// Stop-loss proximity wins when both somehow apply.
func classifyProximity(pos *domain.Position, price float64, cfg AlertConfig) domain.AlertCondition {
	if pos.StopLoss > 0 && cfg.NearStopLossPercent > 0 {
		if price > pos.StopLoss && price <= pos.StopLoss*(1+cfg.NearStopLossPercent/100) {
			return domain.AlertNearStopLoss
		}
	}
	if pos.TakeProfit > 0 && cfg.NearTakeProfitPercent > 0 {
		if price < pos.TakeProfit && price >= pos.TakeProfit*(1-cfg.NearTakeProfitPercent/100) {
			return domain.AlertNearTakeProfit
		}
	}
	return domain.AlertNone
}

// maybeAlert sends a proximity alert when the position has newly entered a
// near-stop or near-target band. The last sent condition is persisted with
// the position, so a restart does not repeat the alert and leaving the band
// re-arms it.
func (e *Engine) maybeAlert(ctx context.Context, pos *domain.Position, price float64) {
	cond := classifyProximity(pos, price, e.alerts)
	if cond == pos.LastAlerted {
		return
	}
	if err := e.positions.SetLastAlerted(ctx, pos.ID, cond); err != nil {
		e.logger.Error(ctx, err, "Failed to persist alert state", map[string]interface{}{"position_id": pos.ID})
		return
	}
	pos.LastAlerted = cond

	var event domain.Event
	switch cond {
	case domain.AlertNearStopLoss:
		event = domain.Event{
			Kind:       domain.EventNearStopLoss,
			Symbol:     pos.Symbol,
			PositionID: pos.ID,
			Price:      price,
			Message:    fmt.Sprintf("%s at %.8f is near its stop-loss %.8f", pos.Symbol, price, pos.StopLoss),
		}
	case domain.AlertNearTakeProfit:
		event = domain.Event{
			Kind:       domain.EventNearTakeProfit,
			Symbol:     pos.Symbol,
			PositionID: pos.ID,
			Price:      price,
			Message:    fmt.Sprintf("%s at %.8f is near its take-profit %.8f", pos.Symbol, price, pos.TakeProfit),
		}
	default:
		// Left the band; state reset, nothing to send.
		return
	}
	e.notify(ctx, pos.UserID, event)
}
