package domain

// PerformanceAggregate accumulates closed-position outcomes for one symbol.
// Created lazily on the first close for a symbol, updated exactly once per
// close, never deleted.
type PerformanceAggregate struct {
	Symbol          string
	Wins            int
	Losses          int
	TotalPnLPercent float64
}

// Trades returns the number of closes recorded for the symbol.
func (a *PerformanceAggregate) Trades() int {
	return a.Wins + a.Losses
}

// WinRate returns the fraction of recorded closes that were wins,
// or 0 if nothing has been recorded yet.
func (a *PerformanceAggregate) WinRate() float64 {
	if a.Trades() == 0 {
		return 0
	}
	return float64(a.Wins) / float64(a.Trades())
}
