package scanner

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/fazecat/mogulscan/Internal/utils/config"
	"github.com/shopspring/decimal"
)

type TickerSource interface {
	Get24hTickers(ctx context.Context) ([]types.Ticker24h, error)
}

// UniverseSelector ranks quote-asset pairs by 24h quote volume.
type UniverseSelector struct {
	source         TickerSource
	quoteAsset     string
	minQuoteVolume decimal.Decimal
	excluded       map[string]struct{}
	fallback       []string
}

func NewUniverseSelector(source TickerSource, cfg config.ScannerConfig) *UniverseSelector {
	excluded := make(map[string]struct{}, len(cfg.ExcludedSymbols))
	for _, s := range cfg.ExcludedSymbols {
		excluded[strings.ToUpper(s)] = struct{}{}
	}
	return &UniverseSelector{
		source:         source,
		quoteAsset:     cfg.QuoteAsset,
		minQuoteVolume: decimal.NewFromFloat(cfg.MinQuoteVolume),
		excluded:       excluded,
		fallback:       cfg.FallbackSymbols,
	}
}

// Select never fails: on transport errors it returns the fallback list.
func (s *UniverseSelector) Select(ctx context.Context, maxCount int) []types.SymbolCandidate {
	tickers, err := s.source.Get24hTickers(ctx)
	if err != nil {
		log.Printf("⚠️  Ticker fetch failed, using fallback pairs: %v", err)
		return s.Fallback(maxCount)
	}

	candidates := make([]types.SymbolCandidate, 0, len(tickers))
	for _, t := range tickers {
		if !strings.HasSuffix(t.Symbol, s.quoteAsset) || !t.QuoteVolume.GreaterThan(s.minQuoteVolume) {
			continue
		}
		if s.isExcluded(t.Symbol) {
			continue
		}
		candidates = append(candidates, types.SymbolCandidate{
			Symbol:         t.Symbol,
			QuoteVolume24h: t.QuoteVolume,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].QuoteVolume24h.GreaterThan(candidates[j].QuoteVolume24h)
	})

	if maxCount > 0 && len(candidates) > maxCount {
		candidates = candidates[:maxCount]
	}

	if len(candidates) > 0 {
		top := make([]string, 0, 5)
		for i := 0; i < len(candidates) && i < 5; i++ {
			top = append(top, candidates[i].Symbol)
		}
		log.Printf("✅ Selected %d trading pairs, top by volume: %v", len(candidates), top)
	}
	return candidates
}

func (s *UniverseSelector) Fallback(maxCount int) []types.SymbolCandidate {
	out := make([]types.SymbolCandidate, 0, len(s.fallback))
	for _, sym := range s.fallback {
		if s.isExcluded(sym) {
			continue
		}
		out = append(out, types.SymbolCandidate{Symbol: sym, QuoteVolume24h: decimal.Zero})
		if maxCount > 0 && len(out) == maxCount {
			break
		}
	}
	return out
}

func (s *UniverseSelector) isExcluded(symbol string) bool {
	_, ok := s.excluded[symbol]
	return ok
}

func Symbols(candidates []types.SymbolCandidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Symbol
	}
	return out
}
