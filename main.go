package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"

	"github.com/Drknessheo/lunara-bot/config"
	"github.com/Drknessheo/lunara-bot/internal/adapters/binanceclient"
	"github.com/Drknessheo/lunara-bot/internal/adapters/logger"
	"github.com/Drknessheo/lunara-bot/internal/adapters/paper"
	"github.com/Drknessheo/lunara-bot/internal/adapters/sqlite"
	"github.com/Drknessheo/lunara-bot/internal/adapters/telegram"
	"github.com/Drknessheo/lunara-bot/internal/engine"
	"github.com/Drknessheo/lunara-bot/internal/marketdata"
	"github.com/Drknessheo/lunara-bot/internal/ports"
	"github.com/Drknessheo/lunara-bot/internal/risk"
	"github.com/Drknessheo/lunara-bot/internal/settings"
	"github.com/Drknessheo/lunara-bot/internal/trader"
	"github.com/Drknessheo/lunara-bot/internal/watchlist"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel, cfg.LogFile)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath:               cfg.DBPath,
		Logger:               appLogger,
		PaperStartingBalance: cfg.PaperStartingBalance,
		DefaultTier:          cfg.DefaultTier,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.CloseDB(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized", map[string]interface{}{"path": cfg.DBPath})

	// 4. Initialize Exchange Client (market data for all modes, orders for LIVE)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:         cfg.APIKey,
		SecretKey:      cfg.SecretKey,
		UseTestnet:     cfg.IsTestnet,
		Logger:         appLogger,
		RequestTimeout: cfg.RequestTimeout,
		RequestsPerSec: cfg.RequestsPerSec,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(ctx, "Binance client initialized")

	// 5. Initialize Notifier (optional)
	var notifier ports.Notifier
	if cfg.TelegramToken != "" {
		tg, err := telegram.NewNotifier(cfg.TelegramToken, appLogger)
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize Telegram notifier")
			log.Fatalf("FATAL: Failed to initialize Telegram notifier: %v", err)
		}
		notifier = tg
		appLogger.Info(ctx, "Telegram notifier initialized")
	} else {
		appLogger.Warn(ctx, "TELEGRAM_BOT_TOKEN is empty, notifications disabled")
	}

	// 6. Assemble the trading components
	sizing := risk.SizingConfig{
		MinTradeSize:     cfg.MinTradeSize,
		RiskFraction:     cfg.RiskFraction,
		MaxDailyDrawdown: cfg.MaxDailyDrawdown,
	}
	guard := risk.NewGuard(sizing, repo, appLogger)
	settingsProvider := settings.NewProvider(cfg, repo, appLogger)
	paperExec := paper.NewExecutor(repo, appLogger)

	trd := trader.New(trader.Config{
		Sizing:               sizing,
		ATRStopMultiple:      cfg.ATRStopMultiple,
		PaperStartingBalance: cfg.PaperStartingBalance,
	}, repo, repo, settingsProvider, binanceClient, paperExec, guard, notifier, appLogger)

	manager := watchlist.NewManager(repo, repo, settingsProvider, trd, notifier, appLogger)

	// 7. Initialize and run the lifecycle engine
	eng := engine.New(engine.Params{
		Config: engine.Config{
			Interval:     cfg.MonitorInterval,
			CycleTimeout: cfg.CycleTimeout,
			ScanSymbols:  cfg.ScanSymbols,
		},
		CacheCfg: marketdata.CacheConfig{
			CandleInterval:  cfg.CandleInterval,
			CandleLimit:     cfg.CandleLimit,
			RSIPeriod:       cfg.RSIPeriod,
			BollingerPeriod: cfg.BollPeriod,
			BollingerMult:   cfg.BollStdDev,
			MACDFast:        cfg.MACDFastPeriod,
			MACDSlow:        cfg.MACDSlowPeriod,
			MACDSignal:      cfg.MACDSignal,
			ATRPeriod:       cfg.ATRPeriod,
			StalenessBound:  cfg.StalenessBound,
		},
		Alerts: engine.AlertConfig{
			NearStopLossPercent:   cfg.NearStopLossPercent,
			NearTakeProfitPercent: cfg.NearTakeProfitPercent,
		},
		Source:    binanceClient,
		Positions: repo,
		Watches:   repo,
		Accounts:  repo,
		Settings:  settingsProvider,
		Manager:   manager,
		Trader:    trd,
		Notifier:  notifier,
		Logger:    appLogger,
	})

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error(ctx, err, "Engine exited with error")
		log.Fatalf("FATAL: Engine exited with error: %v", err)
	}
	appLogger.Info(context.Background(), "Application finished gracefully.")
}
