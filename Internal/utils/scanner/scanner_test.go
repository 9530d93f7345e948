package scanner

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/fazecat/mogulscan/Internal/utils/config"
	"github.com/shopspring/decimal"
)

type fakeTickers struct {
	tickers []types.Ticker24h
	err     error
}

func (f *fakeTickers) Get24hTickers(context.Context) ([]types.Ticker24h, error) {
	return f.tickers, f.err
}

func ticker(symbol string, volume int64) types.Ticker24h {
	return types.Ticker24h{Symbol: symbol, QuoteVolume: decimal.NewFromInt(volume)}
}

func testScannerConfig() config.ScannerConfig {
	cfg := config.Default().Scanner
	cfg.ExcludedSymbols = []string{"BTCUSDT", "USDCUSDT"}
	cfg.FallbackSymbols = []string{"BTCUSDT", "SOLUSDT", "ADAUSDT", "XRPUSDT"}
	return cfg
}

func TestUniverseSelector_Select(t *testing.T) {
	src := &fakeTickers{tickers: []types.Ticker24h{
		ticker("ADAUSDT", 50_000),
		ticker("BTCUSDT", 9_000_000),
		ticker("SOLUSDT", 800_000),
		ticker("ETHBTC", 1_000_000),
		ticker("DOGEUSDT", 10_000),
		ticker("XRPUSDT", 120_000),
		ticker("USDCUSDT", 5_000_000),
		ticker("PEPEUSDT", 800_000),
	}}

	tests := []struct {
		name     string
		maxCount int
		want     []string
	}{
		{name: "all eligible sorted by volume", maxCount: 10, want: []string{"SOLUSDT", "PEPEUSDT", "XRPUSDT", "ADAUSDT"}},
		{name: "truncated after exclusion", maxCount: 2, want: []string{"SOLUSDT", "PEPEUSDT"}},
		{name: "zero means no limit", maxCount: 0, want: []string{"SOLUSDT", "PEPEUSDT", "XRPUSDT", "ADAUSDT"}},
	}

	sel := NewUniverseSelector(src, testScannerConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Symbols(sel.Select(context.Background(), tt.maxCount))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Select() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUniverseSelector_VolumeThresholdIsStrict(t *testing.T) {
	src := &fakeTickers{tickers: []types.Ticker24h{ticker("AAAUSDT", 10_000), ticker("BBBUSDT", 10_001)}}
	got := Symbols(NewUniverseSelector(src, testScannerConfig()).Select(context.Background(), 10))
	if !reflect.DeepEqual(got, []string{"BBBUSDT"}) {
		t.Errorf("Select() = %v, want [BBBUSDT]", got)
	}
}

func TestUniverseSelector_FallbackOnError(t *testing.T) {
	src := &fakeTickers{err: errors.New("connection reset")}
	sel := NewUniverseSelector(src, testScannerConfig())

	got := sel.Select(context.Background(), 10)
	if want := []string{"SOLUSDT", "ADAUSDT", "XRPUSDT"}; !reflect.DeepEqual(Symbols(got), want) {
		t.Fatalf("fallback = %v, want %v", Symbols(got), want)
	}
	for _, c := range got {
		if !c.QuoteVolume24h.IsZero() {
			t.Errorf("fallback %s volume = %v, want 0", c.Symbol, c.QuoteVolume24h)
		}
	}

	if got := Symbols(sel.Select(context.Background(), 2)); len(got) != 2 {
		t.Errorf("fallback with maxCount 2 returned %v", got)
	}
}
