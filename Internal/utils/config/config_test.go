package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
	if !cfg.MinActBalance().Equal(decimal.NewFromFloat(6.0)) {
		t.Errorf("MinActBalance() = %s, want 6", cfg.MinActBalance())
	}
	if !cfg.PurchaseFraction().Equal(decimal.NewFromFloat(0.3)) {
		t.Errorf("PurchaseFraction() = %s, want 0.3", cfg.PurchaseFraction())
	}
	if cfg.ScanInterval() != 10*time.Minute {
		t.Errorf("ScanInterval() = %v, want 10m", cfg.ScanInterval())
	}
	if len(cfg.Scanner.FallbackSymbols) != 18 {
		t.Errorf("fallback symbols = %d, want 18", len(cfg.Scanner.FallbackSymbols))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "zero min purchase", mutate: func(c *Config) { c.Purchase.MinUSDT = 0 }, wantErr: true},
		{name: "max below min", mutate: func(c *Config) { c.Purchase.MaxUSDT = 1 }, wantErr: true},
		{name: "pct above 100", mutate: func(c *Config) { c.Purchase.PctOfBalance = 150 }, wantErr: true},
		{name: "no workers", mutate: func(c *Config) { c.Scanner.Workers = 0 }, wantErr: true},
		{name: "kline limit below min candles", mutate: func(c *Config) { c.Scanner.KlineLimit = 10 }, wantErr: true},
		{name: "unknown venue", mutate: func(c *Config) { c.Execution.Venue = "ftx" }, wantErr: true},
		{name: "alpaca venue", mutate: func(c *Config) { c.Execution.Venue = VenueAlpacaPaper }, wantErr: false},
		{name: "api without secret", mutate: func(c *Config) { c.API.Enabled = true }, wantErr: true},
		{name: "zero interval", mutate: func(c *Config) { c.Schedule.ScanIntervalSeconds = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MEXC_API_KEY", "key")
	t.Setenv("MEXC_SECRET_KEY", "secret")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("EXCLUDED_SYMBOLS", " dogeusdt, PEPEUSDT ,")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Exchange.APIKey != "key" || cfg.Exchange.SecretKey != "secret" {
		t.Errorf("exchange keys not applied: %+v", cfg.Exchange)
	}
	if !cfg.Telegram.Enabled {
		t.Errorf("telegram should be enabled when token and chat id are set")
	}
	if !cfg.Execution.DryRun {
		t.Errorf("DryRun = false, want true")
	}
	want := []string{"DOGEUSDT", "PEPEUSDT"}
	if len(cfg.Scanner.ExcludedSymbols) != len(want) {
		t.Fatalf("ExcludedSymbols = %v, want %v", cfg.Scanner.ExcludedSymbols, want)
	}
	for i := range want {
		if cfg.Scanner.ExcludedSymbols[i] != want[i] {
			t.Errorf("ExcludedSymbols[%d] = %q, want %q", i, cfg.Scanner.ExcludedSymbols[i], want[i])
		}
	}
}

func TestLoadConfig_FromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	data := []byte("purchase:\n  min_usdt: 7\n  max_usdt: 70\nscanner:\n  max_pairs: 25\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MOGULSCAN_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Purchase.MinUSDT != 7 || cfg.Purchase.MaxUSDT != 70 {
		t.Errorf("purchase = %+v, want min 7 max 70", cfg.Purchase)
	}
	if cfg.Scanner.MaxPairs != 25 {
		t.Errorf("MaxPairs = %d, want 25", cfg.Scanner.MaxPairs)
	}
	// untouched keys keep defaults
	if cfg.Purchase.PctOfBalance != 30 {
		t.Errorf("PctOfBalance = %v, want default 30", cfg.Purchase.PctOfBalance)
	}
}

func TestDisplayConfiguration_MasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.Exchange.APIKey = "mx0-secret-key-1234"

	var buf bytes.Buffer
	DisplayConfiguration(&buf, cfg)
	out := buf.String()

	if strings.Contains(out, "mx0-secret") {
		t.Errorf("API key leaked into output:\n%s", out)
	}
	if !strings.Contains(out, "****1234") {
		t.Errorf("masked key missing:\n%s", out)
	}
	if !strings.Contains(out, "Scan Interval: 10m0s") {
		t.Errorf("schedule section missing:\n%s", out)
	}
}

func TestMask(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "(not set)"},
		{"abc", "****"},
		{"abcdefgh", "****efgh"},
	}
	for _, tt := range tests {
		if got := mask(tt.in); got != tt.want {
			t.Errorf("mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
