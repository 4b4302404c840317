package domain

// TradeMode selects the execution backend for a position.
type TradeMode string

const (
	ModeLive  TradeMode = "LIVE"
	ModePaper TradeMode = "PAPER"
)

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss      CloseReason = "STOP_LOSS"
	CloseReasonTakeProfit    CloseReason = "TAKE_PROFIT"
	CloseReasonTrailingStop  CloseReason = "TRAILING_STOP"
	CloseReasonIndicatorExit CloseReason = "INDICATOR_EXIT"
	CloseReasonManual        CloseReason = "MANUAL"
	CloseReasonReset         CloseReason = "RESET"
	CloseReasonUnknown       CloseReason = "UNKNOWN"
)

// WinLoss classifies a closed position's outcome.
type WinLoss string

const (
	OutcomeWin       WinLoss = "win"
	OutcomeLoss      WinLoss = "loss"
	OutcomeBreakEven WinLoss = "break_even"
)

// OutcomeFor classifies a PnL percentage.
func OutcomeFor(pnlPercent float64) WinLoss {
	switch {
	case pnlPercent > 0:
		return OutcomeWin
	case pnlPercent < 0:
		return OutcomeLoss
	default:
		return OutcomeBreakEven
	}
}

// AlertCondition is the proximity alert last sent for a position.
// Persisted with the position so restarts neither duplicate nor drop alerts.
type AlertCondition string

const (
	AlertNone           AlertCondition = ""
	AlertNearStopLoss   AlertCondition = "NEAR_STOP_LOSS"
	AlertNearTakeProfit AlertCondition = "NEAR_TAKE_PROFIT"
)
