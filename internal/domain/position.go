package domain

import "time"

// Position represents one trading attempt for one user and symbol.
//
// EntryPrice, Quantity, Notional, RSIAtEntry and OpenedAt are immutable once
// the position is created. StopLoss, TakeProfit, PeakPrice, LadderStage and
// LastAlerted advance while the position is open; everything is frozen after
// the status flips to closed.
type Position struct {
	ID     int64
	UserID int64
	Symbol string
	Mode   TradeMode

	EntryPrice float64   // Price at which the position was entered
	Quantity   float64   // Size of the position in base units
	Notional   float64   // Quote-currency size committed at entry
	RSIAtEntry float64   // RSI snapshot taken when the position was opened (0 if unknown)
	OpenedAt   time.Time // Timestamp when the position was entered

	Status      PositionStatus
	StopLoss    float64  // Current stop-loss price, raised by the ladder, never lowered
	TakeProfit  float64  // Fixed take-profit price
	PeakPrice   *float64 // Highest price seen since trailing armed; nil until armed
	LadderStage int      // Highest ladder threshold index reached so far, starts at 0

	ClosePrice  float64 // Price at which the position was exited (0 while open)
	CloseReason CloseReason
	PnLPercent  float64
	WinLoss     WinLoss
	ClosedAt    time.Time // Zero value while open

	LastAlerted AlertCondition
}

// IsOpen reports whether the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// TrailingArmed reports whether the trailing stop has been armed
// (a peak price has been recorded).
func (p *Position) TrailingArmed() bool {
	return p.PeakPrice != nil
}

// PnLPercentAt returns the unrealized PnL percentage at the given price.
func (p *Position) PnLPercentAt(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}
