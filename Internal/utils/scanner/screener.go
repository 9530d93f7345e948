package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/fazecat/mogulscan/Internal/utils"
	"github.com/fazecat/mogulscan/Internal/utils/config"
	"github.com/fazecat/mogulscan/Internal/utils/scoring"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientCandles = errors.New("insufficient candles")
	ErrAnalysisCancelled   = errors.New("analysis cancelled")
)

type MarketData interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
	GetTickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type IndicatorEngine interface {
	Compute(candles []types.Candle) (*types.IndicatorSnapshot, error)
}

type PermissionFilter interface {
	CheckPermission(ctx context.Context, symbol string) types.PermissionDecision
}

// Analyzer fans per-symbol analysis out over a bounded worker pool.
type Analyzer struct {
	market MarketData
	engine IndicatorEngine
	filter PermissionFilter

	MaxWorkers    int
	KlineInterval string
	KlineLimit    int
	MinCandles    int
	KlineRetry    utils.RetryConfig
	PriceRetry    utils.RetryConfig
	Now           func() time.Time
}

func NewAnalyzer(market MarketData, engine IndicatorEngine, filter PermissionFilter, cfg config.ScannerConfig) *Analyzer {
	return &Analyzer{
		market:        market,
		engine:        engine,
		filter:        filter,
		MaxWorkers:    cfg.Workers,
		KlineInterval: cfg.KlineInterval,
		KlineLimit:    cfg.KlineLimit,
		MinCandles:    cfg.MinCandles,
		KlineRetry:    utils.FixedRetryConfig(3, 400*time.Millisecond),
		PriceRetry:    utils.FixedRetryConfig(3, 300*time.Millisecond),
		Now:           time.Now,
	}
}

// WorkerCount is min(maxWorkers, n)
func WorkerCount(maxWorkers, n int) int {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if n < maxWorkers {
		return n
	}
	return maxWorkers
}

type symbolJob struct {
	index  int
	symbol string
}

type symbolResult struct {
	index       int
	symbol      string
	opportunity types.Opportunity
	err         error
}

// Analyze scores every symbol and partitions the results into buy, neutral
// and blocked buckets sorted by score (ties keep input order). Failed or
// cancelled symbols end up in ErrorSymbols only.
func (a *Analyzer) Analyze(ctx context.Context, symbols []string) types.ScanResult {
	result := types.ScanResult{
		Timestamp:        a.Now(),
		TotalCount:       len(symbols),
		BuyOpportunities: []types.Opportunity{},
		NeutralPairs:     []types.Opportunity{},
		BlockedPairs:     []types.Opportunity{},
		ErrorSymbols:     []string{},
	}
	if len(symbols) == 0 {
		return result
	}

	workers := WorkerCount(a.MaxWorkers, len(symbols))
	jobs := make(chan symbolJob)
	results := make(chan symbolResult, len(symbols))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- a.runJob(ctx, job)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, sym := range symbols {
			select {
			case <-ctx.Done():
				for _, rest := range symbols[i:] {
					results <- symbolResult{symbol: rest, err: ErrAnalysisCancelled}
				}
				return
			case jobs <- symbolJob{index: i, symbol: sym}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// fan-in in completion order, then restore discovery order before sorting
	collected := make([]*symbolResult, len(symbols))
	for r := range results {
		r := r
		if r.err != nil {
			if !errors.Is(r.err, ErrAnalysisCancelled) {
				log.Printf("⚠️  Skipping %s: %v", r.symbol, r.err)
			}
			result.ErrorSymbols = append(result.ErrorSymbols, r.symbol)
			continue
		}
		collected[r.index] = &r
	}

	for _, r := range collected {
		if r == nil {
			continue
		}
		result.AnalyzedCount++
		switch scoring.Classify(r.opportunity.Score) {
		case scoring.BucketBuy:
			result.BuyOpportunities = append(result.BuyOpportunities, r.opportunity)
		case scoring.BucketBlocked:
			result.BlockedPairs = append(result.BlockedPairs, r.opportunity)
		default:
			result.NeutralPairs = append(result.NeutralPairs, r.opportunity)
		}
	}

	sortByScore(result.BuyOpportunities)
	sortByScore(result.NeutralPairs)
	sortByScore(result.BlockedPairs)
	return result
}

func (a *Analyzer) runJob(ctx context.Context, job symbolJob) (res symbolResult) {
	res = symbolResult{index: job.index, symbol: job.symbol}
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("panic during analysis: %v", r)
		}
	}()
	if ctx.Err() != nil {
		res.err = ErrAnalysisCancelled
		return res
	}
	res.opportunity, res.err = a.AnalyzeSymbol(ctx, job.symbol)
	if res.err != nil && ctx.Err() != nil {
		res.err = ErrAnalysisCancelled
	}
	return res
}

// AnalyzeSymbol runs candles -> price -> indicators -> filter -> score for one symbol.
func (a *Analyzer) AnalyzeSymbol(ctx context.Context, symbol string) (types.Opportunity, error) {
	var candles []types.Candle
	err := utils.RetryWithBackoff(ctx, func() error {
		var err error
		candles, err = a.market.GetKlines(ctx, symbol, a.KlineInterval, a.KlineLimit)
		if err != nil {
			return err
		}
		if len(candles) < a.MinCandles {
			return fmt.Errorf("%w: got %d, need %d", ErrInsufficientCandles, len(candles), a.MinCandles)
		}
		return nil
	}, a.KlineRetry)
	if err != nil {
		return types.Opportunity{}, fmt.Errorf("klines: %w", err)
	}

	var price decimal.Decimal
	err = utils.RetryWithBackoff(ctx, func() error {
		var err error
		price, err = a.market.GetTickerPrice(ctx, symbol)
		return err
	}, a.PriceRetry)
	if err != nil {
		return types.Opportunity{}, fmt.Errorf("price: %w", err)
	}

	snapshot, err := a.engine.Compute(candles)
	if err != nil || snapshot == nil {
		return types.Opportunity{}, fmt.Errorf("indicators unavailable: %v", err)
	}

	permission := a.filter.CheckPermission(ctx, symbol)
	return scoring.BuildOpportunity(symbol, price, *snapshot, permission), nil
}

func sortByScore(opps []types.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Score > opps[j].Score
	})
}
