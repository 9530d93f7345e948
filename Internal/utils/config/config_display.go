package config

import (
	"fmt"
	"io"
	"strings"
)

// DisplayConfiguration prints the effective configuration with secrets masked
func DisplayConfiguration(w io.Writer, cfg *Config) {
	fmt.Fprintln(w, "\n📋 Current Configuration:")

	fmt.Fprintln(w, "\n=== Exchange ===")
	fmt.Fprintf(w, "Base URL: %s\n", cfg.Exchange.BaseURL)
	fmt.Fprintf(w, "API Key: %s\n", mask(cfg.Exchange.APIKey))
	fmt.Fprintf(w, "Timeout: %s\n", cfg.ExchangeTimeout())

	fmt.Fprintln(w, "\n=== Execution ===")
	fmt.Fprintf(w, "Venue: %s\n", cfg.Execution.Venue)
	fmt.Fprintf(w, "Dry Run: %v\n", enabledStr(cfg.Execution.DryRun))
	if cfg.Execution.Venue == VenueAlpacaPaper {
		fmt.Fprintf(w, "Alpaca Key: %s\n", mask(cfg.Execution.AlpacaAPIKey))
	}

	fmt.Fprintln(w, "\n=== Scanner ===")
	fmt.Fprintf(w, "Quote Asset: %s\n", cfg.Scanner.QuoteAsset)
	fmt.Fprintf(w, "Max Pairs: %d (min quote volume %.0f)\n", cfg.Scanner.MaxPairs, cfg.Scanner.MinQuoteVolume)
	fmt.Fprintf(w, "Workers: %d\n", cfg.Scanner.Workers)
	fmt.Fprintf(w, "Klines: %d x %s (need %d)\n", cfg.Scanner.KlineLimit, cfg.Scanner.KlineInterval, cfg.Scanner.MinCandles)
	fmt.Fprintf(w, "Excluded: %s\n", strings.Join(cfg.Scanner.ExcludedSymbols, ", "))

	fmt.Fprintln(w, "\n=== Purchase ===")
	fmt.Fprintf(w, "Min Balance To Act: $%s\n", cfg.MinActBalance().StringFixed(2))
	fmt.Fprintf(w, "Order Size: %.0f%% of balance, $%s - $%s\n",
		cfg.Purchase.PctOfBalance, cfg.MinPurchase().StringFixed(2), cfg.MaxPurchase().StringFixed(2))

	fmt.Fprintln(w, "\n=== Schedule ===")
	fmt.Fprintf(w, "Scan Interval: %s\n", cfg.ScanInterval())
	fmt.Fprintf(w, "Trade Cooldown: %s\n", cfg.TradeCooldown())
	fmt.Fprintf(w, "Recovery Delay: %s\n", cfg.RecoveryDelay())

	fmt.Fprintln(w, "\n=== Anti-Hype Filter ===")
	fmt.Fprintf(w, "Enabled: %v\n", enabledStr(cfg.Filter.Enabled))
	fmt.Fprintf(w, "Impulse ATR x%.1f, DCA ATR x%.1f\n", cfg.Filter.ImpulseATRMultiplier, cfg.Filter.DCAATRMultiplier)
	fmt.Fprintf(w, "RSI %.0f / %.0f / %.0f\n", cfg.Filter.RSIOversold, cfg.Filter.RSINeutral, cfg.Filter.RSIOverbought)
	fmt.Fprintf(w, "Cache TTL: %s\n", cfg.FilterCacheTTL())

	fmt.Fprintln(w, "\n=== Integrations ===")
	fmt.Fprintf(w, "Telegram: %v\n", enabledStr(cfg.Telegram.Enabled))
	fmt.Fprintf(w, "Journal DB: %v\n", enabledStr(cfg.Database.Enabled))
	fmt.Fprintf(w, "Status API: %v %s\n", enabledStr(cfg.API.Enabled), cfg.API.Addr)
}

func enabledStr(enabled bool) string {
	if enabled {
		return "✅ Enabled"
	}
	return "❌ Disabled"
}

// mask keeps the last 4 characters of a secret
func mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
