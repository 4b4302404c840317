// Command perfreport prints the accumulated per-symbol trading performance
// from the bot's database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/Drknessheo/lunara-bot/config"
	"github.com/Drknessheo/lunara-bot/internal/adapters/logger"
	"github.com/Drknessheo/lunara-bot/internal/adapters/sqlite"
	"github.com/Drknessheo/lunara-bot/internal/performance"
)

func main() {
	symbol := flag.String("symbol", "", "report a single symbol instead of the whole portfolio")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.New(logger.LevelError, "")

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath:               cfg.DBPath,
		Logger:               appLogger,
		PaperStartingBalance: cfg.PaperStartingBalance,
		DefaultTier:          cfg.DefaultTier,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to open database: %v", err)
	}
	defer repo.CloseDB()

	ctx := context.Background()
	reporter := performance.NewReporter(repo)

	if *symbol != "" {
		s, err := reporter.BySymbol(ctx, *symbol)
		if err != nil {
			log.Fatalf("FATAL: Failed to read performance: %v", err)
		}
		if s == nil {
			fmt.Printf("No closed trades recorded for %s\n", *symbol)
			return
		}
		printRows([]performance.SymbolSummary{*s})
		return
	}

	summary, err := reporter.Overall(ctx)
	if err != nil {
		log.Fatalf("FATAL: Failed to read performance: %v", err)
	}
	if summary.TotalTrades == 0 {
		fmt.Println("No closed trades recorded yet")
		return
	}

	printRows(summary.Symbols)
	fmt.Printf("\nTotal: %d trades, %d wins, %d losses (%.1f%% win rate), cumulative PnL %+.2f%%\n",
		summary.TotalTrades, summary.TotalWins, summary.TotalLosses,
		summary.OverallWinRate, summary.TotalPnLPercent)
	if summary.Best != nil {
		fmt.Printf("Best: %s (%+.2f%%)  Worst: %s (%+.2f%%)\n",
			summary.Best.Symbol, summary.Best.TotalPnLPercent,
			summary.Worst.Symbol, summary.Worst.TotalPnLPercent)
	}
}

func printRows(rows []performance.SymbolSummary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tTRADES\tWINS\tLOSSES\tWIN RATE\tPNL %")
	for _, s := range rows {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.1f%%\t%+.2f\n",
			s.Symbol, s.Trades, s.Wins, s.Losses, s.WinRate, s.TotalPnLPercent)
	}
	w.Flush()
}
