package domain

import "time"

// WatchlistEntry is a symbol a user is waiting to enter after a dip.
// Unique per (user, symbol); removed on promotion to a Position or on timeout.
type WatchlistEntry struct {
	ID      int64
	UserID  int64
	Symbol  string
	AddedAt time.Time
}

// Expired reports whether the entry has outlived the timeout window at the
// given instant.
func (e *WatchlistEntry) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(e.AddedAt) > timeout
}
