// Package performance builds read-side summaries over the per-symbol
// aggregates the store accumulates at close time.
package performance

import (
	"context"
	"sort"

	"github.com/Drknessheo/lunara-bot/internal/domain"
	"github.com/Drknessheo/lunara-bot/internal/ports"
)

// SymbolSummary is one symbol's accumulated outcome.
type SymbolSummary struct {
	Symbol          string
	Trades          int
	Wins            int
	Losses          int
	WinRate         float64 // Percent of closed trades that won
	TotalPnLPercent float64
}

// Summary is the portfolio-wide view across every traded symbol.
type Summary struct {
	Symbols []SymbolSummary // Sorted by cumulative PnL, best first

	TotalTrades     int
	TotalWins       int
	TotalLosses     int
	OverallWinRate  float64
	TotalPnLPercent float64

	Best  *SymbolSummary // nil until at least one close
	Worst *SymbolSummary
}

// Reporter reads the performance ledger.
type Reporter struct {
	perf ports.PerformanceRepository
}

// NewReporter creates a reporter over the performance store.
func NewReporter(perf ports.PerformanceRepository) *Reporter {
	return &Reporter{perf: perf}
}

// BySymbol returns the summary for one symbol, or nil when the symbol has no
// closed trades yet.
func (r *Reporter) BySymbol(ctx context.Context, symbol string) (*SymbolSummary, error) {
	agg, err := r.perf.PerformanceBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return nil, nil
	}
	s := summarize(agg)
	return &s, nil
}

// Overall returns the portfolio-wide summary.
func (r *Reporter) Overall(ctx context.Context) (*Summary, error) {
	aggs, err := r.perf.AllPerformance(ctx)
	if err != nil {
		return nil, err
	}

	out := &Summary{}
	for _, agg := range aggs {
		s := summarize(agg)
		out.Symbols = append(out.Symbols, s)
		out.TotalTrades += s.Trades
		out.TotalWins += s.Wins
		out.TotalLosses += s.Losses
		out.TotalPnLPercent += s.TotalPnLPercent
	}
	if out.TotalTrades > 0 {
		out.OverallWinRate = float64(out.TotalWins) / float64(out.TotalTrades) * 100
	}

	sort.Slice(out.Symbols, func(i, j int) bool {
		return out.Symbols[i].TotalPnLPercent > out.Symbols[j].TotalPnLPercent
	})
	if len(out.Symbols) > 0 {
		out.Best = &out.Symbols[0]
		out.Worst = &out.Symbols[len(out.Symbols)-1]
	}
	return out, nil
}

func summarize(agg *domain.PerformanceAggregate) SymbolSummary {
	return SymbolSummary{
		Symbol:          agg.Symbol,
		Trades:          agg.Trades(),
		Wins:            agg.Wins,
		Losses:          agg.Losses,
		WinRate:         agg.WinRate() * 100,
		TotalPnLPercent: agg.TotalPnLPercent,
	}
}
