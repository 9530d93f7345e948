package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	VenueExchange    = "exchange"
	VenueAlpacaPaper = "alpaca_paper"
)

type Config struct {
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Execution ExecutionConfig `yaml:"execution"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Purchase  PurchaseConfig  `yaml:"purchase"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Filter    FilterConfig    `yaml:"filter"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
}

type ExchangeConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	SecretKey      string `yaml:"secret_key"`
	RecvWindowMs   int    `yaml:"recv_window_ms"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// where purchase orders and the balance read go
type ExecutionConfig struct {
	Venue           string `yaml:"venue"`
	DryRun          bool   `yaml:"dry_run"`
	AlpacaBaseURL   string `yaml:"alpaca_base_url"`
	AlpacaAPIKey    string `yaml:"alpaca_api_key"`
	AlpacaSecretKey string `yaml:"alpaca_secret_key"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type ScannerConfig struct {
	MaxPairs        int      `yaml:"max_pairs"`
	MinQuoteVolume  float64  `yaml:"min_quote_volume"`
	QuoteAsset      string   `yaml:"quote_asset"`
	Workers         int      `yaml:"workers"`
	KlineInterval   string   `yaml:"kline_interval"`
	KlineLimit      int      `yaml:"kline_limit"`
	MinCandles      int      `yaml:"min_candles"`
	ExcludedSymbols []string `yaml:"excluded_symbols"`
	FallbackSymbols []string `yaml:"fallback_symbols"`
}

type PurchaseConfig struct {
	MinActBalance float64 `yaml:"min_act_balance"`
	MinUSDT       float64 `yaml:"min_usdt"`
	MaxUSDT       float64 `yaml:"max_usdt"`
	PctOfBalance  float64 `yaml:"pct_of_balance"` // percent, 30 = 30%
}

type ScheduleConfig struct {
	ScanIntervalSeconds     int `yaml:"scan_interval_seconds"`
	MinTradeCooldownSeconds int `yaml:"min_trade_cooldown_seconds"`
	RecoveryDelaySeconds    int `yaml:"recovery_delay_seconds"`
}

type FilterConfig struct {
	Enabled              bool    `yaml:"enabled"`
	ImpulseATRMultiplier float64 `yaml:"impulse_atr_multiplier"`
	DCAATRMultiplier     float64 `yaml:"dca_atr_multiplier"`
	RSIOverbought        float64 `yaml:"rsi_overbought"`
	RSIOversold          float64 `yaml:"rsi_oversold"`
	RSINeutral           float64 `yaml:"rsi_neutral"`
	EMADeviation         float64 `yaml:"ema_deviation"`
	CacheTTLSeconds      int     `yaml:"cache_ttl_seconds"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type APIConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	JWTSecret string `yaml:"jwt_secret"`
	AdminKey  string `yaml:"admin_key"`
}

var defaultFallbackSymbols = []string{
	"BNBUSDT", "ADAUSDT", "SOLUSDT", "DOTUSDT", "LINKUSDT", "MATICUSDT",
	"AVAXUSDT", "UNIUSDT", "ATOMUSDT", "LTCUSDT", "XRPUSDT", "BCHUSDT",
	"ETCUSDT", "FILUSDT", "NEARUSDT", "ALGOUSDT", "VETUSDT", "ICPUSDT",
}

func Default() *Config {
	cfg := &Config{}
	cfg.Exchange = ExchangeConfig{
		BaseURL:        "https://api.mexc.com",
		RecvWindowMs:   5000,
		TimeoutSeconds: 10,
	}
	cfg.Execution = ExecutionConfig{
		Venue:         VenueExchange,
		AlpacaBaseURL: "https://paper-api.alpaca.markets",
	}
	cfg.Scanner = ScannerConfig{
		MaxPairs:        200,
		MinQuoteVolume:  10000,
		QuoteAsset:      "USDT",
		Workers:         10,
		KlineInterval:   "15m",
		KlineLimit:      24,
		MinCandles:      20,
		ExcludedSymbols: []string{"USDCUSDT", "BTCUSDT", "ETHUSDT"},
		FallbackSymbols: append([]string(nil), defaultFallbackSymbols...),
	}
	cfg.Purchase = PurchaseConfig{
		MinActBalance: 6.0,
		MinUSDT:       5.0,
		MaxUSDT:       50.0,
		PctOfBalance:  30,
	}
	cfg.Schedule = ScheduleConfig{
		ScanIntervalSeconds:     600,
		MinTradeCooldownSeconds: 300,
		RecoveryDelaySeconds:    60,
	}
	cfg.Filter = FilterConfig{
		Enabled:              true,
		ImpulseATRMultiplier: 3.0,
		DCAATRMultiplier:     2.0,
		RSIOverbought:        65,
		RSIOversold:          45,
		RSINeutral:           55,
		EMADeviation:         0.03,
		CacheTTLSeconds:      120,
	}
	cfg.Database = DatabaseConfig{
		Host:    "localhost",
		Port:    "5432",
		User:    "postgres",
		DBName:  "mogulscan",
		SSLMode: "disable",
	}
	cfg.API = APIConfig{
		Addr: ":8080",
	}
	return cfg
}

// LoadConfig reads config.yaml over the defaults and then applies
// environment overrides. A missing file is not an error.
func LoadConfig() (*Config, error) {
	// Resolve path relative to this file first
	_, filePath, _, ok := runtime.Caller(0)
	var basePath string
	if ok {
		basePath = filepath.Dir(filePath)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	possiblePaths := []string{}
	if p := os.Getenv("MOGULSCAN_CONFIG"); p != "" {
		possiblePaths = append(possiblePaths, p)
	}
	possiblePaths = append(possiblePaths,
		"config.yaml",
		filepath.Join(cwd, "Internal", "utils", "config", "config.yaml"),
		filepath.Join("Internal", "utils", "config", "config.yaml"),
	)
	if basePath != "" {
		possiblePaths = append(possiblePaths, filepath.Join(basePath, "config.yaml"))
	}

	cfg := Default()
	for _, path := range possiblePaths {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		log.Printf("⚙️  Config loaded from: %s", path)
		break
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and a few knobs from the process environment
func (c *Config) ApplyEnv() {
	setString(&c.Exchange.APIKey, "MEXC_API_KEY")
	setString(&c.Exchange.SecretKey, "MEXC_SECRET_KEY")
	setString(&c.Exchange.BaseURL, "MEXC_BASE_URL")
	setString(&c.Execution.Venue, "EXECUTION_VENUE")
	setString(&c.Execution.AlpacaAPIKey, "ALPACA_API_KEY")
	setString(&c.Execution.AlpacaSecretKey, "ALPACA_API_SECRET")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.DBName, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	setString(&c.API.JWTSecret, "JWT_SECRET_KEY")
	setString(&c.API.AdminKey, "API_ADMIN_KEY")
	setString(&c.API.Addr, "API_ADDR")

	setBool(&c.Execution.DryRun, "DRY_RUN")
	setBool(&c.Database.Enabled, "DB_ENABLED")
	setBool(&c.API.Enabled, "API_ENABLED")

	if c.Telegram.BotToken != "" && c.Telegram.ChatID != "" && os.Getenv("TELEGRAM_ENABLED") == "" {
		c.Telegram.Enabled = true
	}
	setBool(&c.Telegram.Enabled, "TELEGRAM_ENABLED")

	if v := os.Getenv("EXCLUDED_SYMBOLS"); v != "" {
		c.Scanner.ExcludedSymbols = splitSymbols(v)
	}
}

func (c *Config) Validate() error {
	p := c.Purchase
	switch {
	case p.MinUSDT <= 0:
		return fmt.Errorf("purchase.min_usdt must be > 0, got %v", p.MinUSDT)
	case p.MaxUSDT < p.MinUSDT:
		return fmt.Errorf("purchase.max_usdt (%v) must be >= min_usdt (%v)", p.MaxUSDT, p.MinUSDT)
	case p.PctOfBalance <= 0 || p.PctOfBalance > 100:
		return fmt.Errorf("purchase.pct_of_balance must be in (0, 100], got %v", p.PctOfBalance)
	case p.MinActBalance <= 0:
		return fmt.Errorf("purchase.min_act_balance must be > 0, got %v", p.MinActBalance)
	}

	s := c.Scanner
	switch {
	case s.MaxPairs < 1:
		return fmt.Errorf("scanner.max_pairs must be >= 1, got %d", s.MaxPairs)
	case s.Workers < 1:
		return fmt.Errorf("scanner.workers must be >= 1, got %d", s.Workers)
	case s.KlineLimit < s.MinCandles:
		return fmt.Errorf("scanner.kline_limit (%d) must be >= min_candles (%d)", s.KlineLimit, s.MinCandles)
	case s.QuoteAsset == "":
		return fmt.Errorf("scanner.quote_asset must not be empty")
	}

	if c.Schedule.ScanIntervalSeconds <= 0 {
		return fmt.Errorf("schedule.scan_interval_seconds must be > 0, got %d", c.Schedule.ScanIntervalSeconds)
	}
	if c.Schedule.MinTradeCooldownSeconds < 0 || c.Schedule.RecoveryDelaySeconds < 0 {
		return fmt.Errorf("schedule durations must not be negative")
	}

	switch c.Execution.Venue {
	case VenueExchange, VenueAlpacaPaper:
	default:
		return fmt.Errorf("execution.venue must be %q or %q, got %q", VenueExchange, VenueAlpacaPaper, c.Execution.Venue)
	}

	if c.API.Enabled && c.API.JWTSecret == "" {
		return fmt.Errorf("api.jwt_secret is required when the status API is enabled")
	}
	return nil
}

func (c *Config) MinActBalance() decimal.Decimal {
	return decimal.NewFromFloat(c.Purchase.MinActBalance)
}

func (c *Config) MinPurchase() decimal.Decimal {
	return decimal.NewFromFloat(c.Purchase.MinUSDT)
}

func (c *Config) MaxPurchase() decimal.Decimal {
	return decimal.NewFromFloat(c.Purchase.MaxUSDT)
}

// PurchaseFraction returns pct_of_balance as a fraction (30 -> 0.30)
func (c *Config) PurchaseFraction() decimal.Decimal {
	return decimal.NewFromFloat(c.Purchase.PctOfBalance).Div(decimal.NewFromInt(100))
}

func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Schedule.ScanIntervalSeconds) * time.Second
}

func (c *Config) TradeCooldown() time.Duration {
	return time.Duration(c.Schedule.MinTradeCooldownSeconds) * time.Second
}

func (c *Config) RecoveryDelay() time.Duration {
	return time.Duration(c.Schedule.RecoveryDelaySeconds) * time.Second
}

func (c *Config) FilterCacheTTL() time.Duration {
	return time.Duration(c.Filter.CacheTTLSeconds) * time.Second
}

func (c *Config) ExchangeTimeout() time.Duration {
	return time.Duration(c.Exchange.TimeoutSeconds) * time.Second
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("⚠️  Ignoring %s=%q: %v", key, v, err)
		return
	}
	*dst = b
}

func splitSymbols(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
