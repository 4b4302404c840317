package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Drknessheo/lunara-bot/internal/adapters/logger"
	"github.com/Drknessheo/lunara-bot/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Scheduling
	MonitorInterval time.Duration // Fixed interval between monitoring cycles
	CycleTimeout    time.Duration // Upper bound for one full cycle

	// Market data
	ScanSymbols     []string      // Universe scanned for watchlist entries
	CandleInterval  string        // Interval used for indicator candles
	CandleLimit     int           // Candles fetched per indicator request
	StalenessBound  time.Duration // Prices older than this are unavailable
	RequestTimeout  time.Duration // Per network call
	RequestsPerSec  float64       // Rate limit for exchange requests
	RSIPeriod       int
	BollPeriod      int
	BollStdDev      float64
	MACDFastPeriod  int
	MACDSlowPeriod  int
	MACDSignal      int
	ATRPeriod       int
	ATRStopMultiple float64

	// Sizing and risk
	MinTradeSize     float64 // Floor for one trade's notional
	RiskFraction     float64 // Fraction of balance committed per trade
	MaxDailyDrawdown float64 // Pause promotions past this fraction of balance lost today

	// Paper trading
	PaperStartingBalance float64

	// Alerts
	NearStopLossPercent   float64
	NearTakeProfitPercent float64

	// Tiers
	DefaultTier string
	Tiers       map[string]*domain.RiskSettings

	// Database
	DBPath string

	// Notifications
	TelegramToken string

	// Logging
	LogLevel logger.LogLevel
	LogFile  string // Empty disables file output
}

// Load reads configuration from environment variables (.env file) and fails
// fast on any malformed risk setting.
func Load() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars).
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true)

	intervalSec := getEnvAsInt("MONITOR_INTERVAL_SECONDS", 60)
	if intervalSec <= 0 {
		errs = append(errs, "MONITOR_INTERVAL_SECONDS must be positive")
	}
	cfg.MonitorInterval = time.Duration(intervalSec) * time.Second

	cycleTimeoutSec := getEnvAsInt("CYCLE_TIMEOUT_SECONDS", 55)
	if cycleTimeoutSec <= 0 {
		errs = append(errs, "CYCLE_TIMEOUT_SECONDS must be positive")
	}
	cfg.CycleTimeout = time.Duration(cycleTimeoutSec) * time.Second

	cfg.ScanSymbols = splitSymbols(getEnv("SCAN_SYMBOLS", "BTCUSDT,ETHUSDT,SOLUSDT,BNBUSDT"))
	if len(cfg.ScanSymbols) == 0 {
		errs = append(errs, "SCAN_SYMBOLS must name at least one symbol")
	}

	cfg.CandleInterval = getEnv("CANDLE_INTERVAL", "1h")
	cfg.CandleLimit = getEnvAsInt("CANDLE_LIMIT", 100)
	if cfg.CandleLimit <= 0 {
		errs = append(errs, "CANDLE_LIMIT must be positive")
	}

	stalenessSec := getEnvAsInt("PRICE_STALENESS_SECONDS", 90)
	if stalenessSec <= 0 {
		errs = append(errs, "PRICE_STALENESS_SECONDS must be positive")
	}
	cfg.StalenessBound = time.Duration(stalenessSec) * time.Second

	requestTimeoutSec := getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 10)
	if requestTimeoutSec <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT_SECONDS must be positive")
	}
	cfg.RequestTimeout = time.Duration(requestTimeoutSec) * time.Second

	cfg.RequestsPerSec = getEnvAsFloat("EXCHANGE_REQUESTS_PER_SECOND", 10)
	if cfg.RequestsPerSec <= 0 {
		errs = append(errs, "EXCHANGE_REQUESTS_PER_SECOND must be positive")
	}

	cfg.RSIPeriod = getEnvAsInt("RSI_PERIOD", 14)
	cfg.BollPeriod = getEnvAsInt("BOLL_PERIOD", 20)
	cfg.BollStdDev = getEnvAsFloat("BOLL_STD_DEV", 2.0)
	cfg.MACDFastPeriod = getEnvAsInt("MACD_FAST_PERIOD", 12)
	cfg.MACDSlowPeriod = getEnvAsInt("MACD_SLOW_PERIOD", 26)
	cfg.MACDSignal = getEnvAsInt("MACD_SIGNAL_PERIOD", 9)
	cfg.ATRPeriod = getEnvAsInt("ATR_PERIOD", 14)
	cfg.ATRStopMultiple = getEnvAsFloat("ATR_STOP_MULTIPLIER", 1.5)
	if cfg.RSIPeriod <= 0 || cfg.BollPeriod <= 0 || cfg.ATRPeriod <= 0 {
		errs = append(errs, "indicator periods (RSI, BOLL, ATR) must be positive")
	}
	if cfg.MACDFastPeriod <= 0 || cfg.MACDSlowPeriod <= 0 || cfg.MACDSignal <= 0 {
		errs = append(errs, "MACD periods must be positive")
	} else if cfg.MACDFastPeriod >= cfg.MACDSlowPeriod {
		errs = append(errs, "MACD_FAST_PERIOD must be less than MACD_SLOW_PERIOD")
	}

	cfg.MinTradeSize, err = getEnvAsFloatRequired("MIN_TRADE_SIZE_USDT", 5.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_TRADE_SIZE_USDT: %v", err))
	} else if cfg.MinTradeSize <= 0 {
		errs = append(errs, "MIN_TRADE_SIZE_USDT must be positive")
	}

	cfg.RiskFraction, err = getEnvAsFloatRequired("TRADE_RISK_FRACTION", 0.05)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRADE_RISK_FRACTION: %v", err))
	} else if cfg.RiskFraction <= 0 || cfg.RiskFraction > 1 {
		errs = append(errs, "TRADE_RISK_FRACTION must be in (0, 1]")
	}

	cfg.MaxDailyDrawdown, err = getEnvAsFloatRequired("MAX_DAILY_DRAWDOWN", 0.10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DAILY_DRAWDOWN: %v", err))
	} else if cfg.MaxDailyDrawdown <= 0 || cfg.MaxDailyDrawdown >= 1 {
		errs = append(errs, "MAX_DAILY_DRAWDOWN must be in (0, 1)")
	}

	cfg.PaperStartingBalance = getEnvAsFloat("PAPER_STARTING_BALANCE", 10000.0)
	if cfg.PaperStartingBalance <= 0 {
		errs = append(errs, "PAPER_STARTING_BALANCE must be positive")
	}

	cfg.NearStopLossPercent = getEnvAsFloat("NEAR_STOP_LOSS_PERCENT", 2.0)
	cfg.NearTakeProfitPercent = getEnvAsFloat("NEAR_TAKE_PROFIT_PERCENT", 2.0)

	cfg.DBPath = getEnv("DB_PATH", "./data/lunara_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")

	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFile = getEnv("LOG_FILE", "")

	cfg.DefaultTier = strings.ToUpper(getEnv("DEFAULT_TIER", "FREE"))
	cfg.Tiers = defaultTiers()
	if ladderSpec := getEnv("PREMIUM_DSL_LADDER", ""); ladderSpec != "" {
		ladder, parseErr := ParseLadder(ladderSpec)
		if parseErr != nil {
			errs = append(errs, fmt.Sprintf("invalid PREMIUM_DSL_LADDER: %v", parseErr))
		} else {
			cfg.Tiers["PREMIUM"].Ladder = ladder
		}
	}
	if _, ok := cfg.Tiers[cfg.DefaultTier]; !ok {
		errs = append(errs, fmt.Sprintf("unknown DEFAULT_TIER %q", cfg.DefaultTier))
	}
	for name, tier := range cfg.Tiers {
		if vErr := tier.Validate(); vErr != nil {
			errs = append(errs, fmt.Sprintf("tier %s: %v", name, vErr))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// Tier returns the risk settings for the named subscription tier, falling
// back to the FREE tier when the name is unknown.
func (c *Config) Tier(name string) *domain.RiskSettings {
	if tier, ok := c.Tiers[strings.ToUpper(name)]; ok {
		return tier
	}
	return c.Tiers["FREE"]
}

// defaultTiers builds the built-in FREE and PREMIUM risk parameter sets.
func defaultTiers() map[string]*domain.RiskSettings {
	return map[string]*domain.RiskSettings{
		"FREE": {
			Tier:                 "FREE",
			RSIBuyThreshold:      30.0,
			RSIRecoveryThreshold: 32.0,
			RSISellThreshold:     70.0,
			StopLossPercent:      5.0,
			ProfitTargetPercent:  1.0,
			UseTrailingStop:      false,
			WatchlistTimeout:     24 * time.Hour,
		},
		"PREMIUM": {
			Tier:                     "PREMIUM",
			RSIBuyThreshold:          30.0,
			RSIRecoveryThreshold:     32.0,
			RSISellThreshold:         70.0,
			StopLossPercent:          4.0,
			ProfitTargetPercent:      1.0,
			UseTrailingStop:          true,
			TrailingActivatePercent:  7.0,
			TrailingDropPercent:      3.0,
			UseBollingerConfirmation: true,
			Ladder: []domain.LadderRung{
				{ProfitPercent: 5.0, StopPercent: 0.0},
				{ProfitPercent: 8.0, StopPercent: 3.0},
				{ProfitPercent: 12.0, StopPercent: 6.0},
			},
			WatchlistTimeout: 24 * time.Hour,
		},
	}
}

// ParseLadder parses a stop-ladder definition of the form
// "profit:stop,profit:stop,..." (e.g. "5:0,8:3,12:6").
func ParseLadder(spec string) ([]domain.LadderRung, error) {
	parts := strings.Split(spec, ",")
	ladder := make([]domain.LadderRung, 0, len(parts))
	for _, part := range parts {
		pair := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(pair) != 2 {
			return nil, fmt.Errorf("rung %q must be profit:stop", part)
		}
		profit, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			return nil, fmt.Errorf("rung %q: bad profit threshold: %w", part, err)
		}
		stop, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			return nil, fmt.Errorf("rung %q: bad stop level: %w", part, err)
		}
		ladder = append(ladder, domain.LadderRung{ProfitPercent: profit, StopPercent: stop})
	}
	return ladder, nil
}

// --- Env Var Helpers ---

// splitSymbols parses a comma-separated symbol list, uppercasing and
// dropping empty items.
func splitSymbols(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.ToUpper(strings.TrimSpace(part)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
