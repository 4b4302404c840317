package domain

// EventKind identifies a notification sent through the Notification Channel.
type EventKind string

const (
	EventPositionOpened EventKind = "PositionOpened"
	EventPositionClosed EventKind = "PositionClosed"
	EventTrailingArmed  EventKind = "TrailingArmed"
	EventWatchExpired   EventKind = "WatchExpired"
	EventNearStopLoss   EventKind = "NearStopLoss"
	EventNearTakeProfit EventKind = "NearTakeProfit"
	EventOrderRejected  EventKind = "OrderRejected"
)

// Event is a one-way notification payload. Delivery is best-effort: the
// engine never blocks on it and failures are logged, not retried.
type Event struct {
	Kind       EventKind
	Symbol     string
	PositionID int64
	Price      float64
	Reason     CloseReason
	PnLPercent float64
	Message    string
}
