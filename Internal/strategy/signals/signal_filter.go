package signals

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fazecat/mogulscan/Internal/strategy/indicators"
	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/fazecat/mogulscan/Internal/utils/config"
)

const filterKlineLimit = 50

type KlineSource interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
}

type cachedDecision struct {
	at       time.Time
	decision types.PermissionDecision
}

// AntiHypeFilter vetoes buys into symbols that just pumped, are overbought
// against their short EMA, or trade below the long-term EMA.
// Safe for concurrent use by analyzer workers.
type AntiHypeFilter struct {
	source   KlineSource
	settings config.FilterConfig
	ttl      time.Duration
	now      func() time.Time

	// short/long timeframes, each with a fallback interval
	shortIntervals []string
	longIntervals  []string

	cacheMutex sync.Mutex
	cache      map[string]cachedDecision
}

func NewAntiHypeFilter(source KlineSource, settings config.FilterConfig) *AntiHypeFilter {
	return &AntiHypeFilter{
		source:         source,
		settings:       settings,
		ttl:            time.Duration(settings.CacheTTLSeconds) * time.Second,
		now:            time.Now,
		shortIntervals: []string{"60m", "15m"},
		longIntervals:  []string{"4h", "60m"},
		cache:          make(map[string]cachedDecision),
	}
}

func (f *AntiHypeFilter) CheckPermission(ctx context.Context, symbol string) types.PermissionDecision {
	if !f.settings.Enabled {
		return types.PermissionDecision{Allowed: true, Reason: "filter_disabled", SizeMultiplier: 1.0}
	}

	if d, ok := f.cached(symbol); ok {
		return d
	}

	short, shortErr := f.fetchFirst(ctx, symbol, f.shortIntervals)
	long, longErr := f.fetchFirst(ctx, symbol, f.longIntervals)

	if ctx.Err() != nil {
		// not cached: the next cycle should re-evaluate
		return types.PermissionDecision{Allowed: true, Reason: "error_fallback", SizeMultiplier: 1.0}
	}

	if len(short) == 0 || len(long) == 0 {
		log.Printf("⚠️  No filter candles for %s (short: %v, long: %v)", symbol, shortErr, longErr)
		return f.store(symbol, types.PermissionDecision{Allowed: true, Reason: "no_data", SizeMultiplier: 1.0})
	}

	return f.store(symbol, f.Evaluate(short, long))
}

// Evaluate applies the block/boost rules to already fetched candles (oldest first).
func (f *AntiHypeFilter) Evaluate(short, long []types.Candle) types.PermissionDecision {
	s := f.settings
	currentPrice := short[len(short)-1].Close
	if currentPrice <= 0 {
		return types.PermissionDecision{Allowed: true, Reason: "error_fallback", SizeMultiplier: 1.0}
	}

	shortCloses := indicators.Closes(short)
	longCloses := indicators.Closes(long)

	atrLong := indicators.ATR(long, 14)
	rsiShort := indicators.RSI(shortCloses, 14)
	ema20Short, _ := indicators.EMALast(shortCloses, 20)
	ema200Long, hasEMA200 := indicators.EMALast(longCloses, 200)
	change := lastChangePercent(longCloses)
	atrPercent := atrLong / currentPrice * 100

	if change > atrPercent*s.ImpulseATRMultiplier {
		return types.PermissionDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("hype_block_impulse_%.1f%%", change),
		}
	}

	if rsiShort > s.RSIOverbought && currentPrice > ema20Short*(1+s.EMADeviation) {
		return types.PermissionDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("hype_block_overbought_RSI%.0f", rsiShort),
		}
	}

	if hasEMA200 && currentPrice < ema200Long {
		return types.PermissionDecision{Allowed: false, Reason: "bear_trend_below_ema200"}
	}

	if change < -atrPercent*s.DCAATRMultiplier && rsiShort < s.RSIOversold {
		return types.PermissionDecision{
			Allowed:        true,
			Reason:         fmt.Sprintf("dca_boost_fall_%.1f%%", -change),
			SizeMultiplier: 1.0,
		}
	}

	if rsiShort < s.RSINeutral {
		return types.PermissionDecision{
			Allowed:        true,
			Reason:         fmt.Sprintf("normal_buy_RSI%.0f", rsiShort),
			SizeMultiplier: 1.0,
		}
	}

	return types.PermissionDecision{
		Allowed:        true,
		Reason:         fmt.Sprintf("neutral_zone_RSI%.0f", rsiShort),
		SizeMultiplier: 0.7,
	}
}

func (f *AntiHypeFilter) fetchFirst(ctx context.Context, symbol string, intervals []string) ([]types.Candle, error) {
	var lastErr error
	for _, interval := range intervals {
		candles, err := f.source.GetKlines(ctx, symbol, interval, filterKlineLimit)
		if err == nil && len(candles) > 0 {
			return candles, nil
		}
		if err != nil {
			lastErr = err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (f *AntiHypeFilter) cached(symbol string) (types.PermissionDecision, bool) {
	f.cacheMutex.Lock()
	defer f.cacheMutex.Unlock()

	entry, ok := f.cache[symbol]
	if !ok {
		return types.PermissionDecision{}, false
	}
	if f.now().Sub(entry.at) >= f.ttl {
		delete(f.cache, symbol)
		return types.PermissionDecision{}, false
	}
	return entry.decision, true
}

func (f *AntiHypeFilter) store(symbol string, d types.PermissionDecision) types.PermissionDecision {
	f.cacheMutex.Lock()
	f.cache[symbol] = cachedDecision{at: f.now(), decision: d}
	f.cacheMutex.Unlock()
	return d
}

func lastChangePercent(closes []float64) float64 {
	if len(closes) < 2 || closes[len(closes)-2] == 0 {
		return 0
	}
	prev := closes[len(closes)-2]
	return (closes[len(closes)-1] - prev) / prev * 100
}
