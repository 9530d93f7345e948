package strategy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPriceUnavailable    = errors.New("price unavailable")
	ErrStrategiesExhausted = errors.New("all quantity strategies exhausted")
)

const (
	StrategyRules  = "rules"
	StrategyDryRun = "dry_run"

	fallbackDigits = 3
)

type PriceSource interface {
	GetTickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type OrderPlacer interface {
	PlaceMarketOrder(ctx context.Context, req types.MarketOrderRequest) (types.OrderAck, error)
	GetSymbolRules(ctx context.Context, symbol string) (*types.SymbolRules, error)
}

// QuantityStrategy turns the raw amount/price quantity into something the
// exchange might accept.
type QuantityStrategy struct {
	Name     string
	Quantity func(ctx context.Context, symbol string, raw decimal.Decimal) decimal.Decimal
}

// OrderResolver places a market buy, trying each quantity strategy in order
// until one is accepted.
type OrderResolver struct {
	prices      PriceSource
	placer      OrderPlacer
	Strategies  []QuantityStrategy
	DryRun      bool
	NewClientID func() string
}

func NewOrderResolver(prices PriceSource, placer OrderPlacer, dryRun bool) *OrderResolver {
	r := &OrderResolver{
		prices:      prices,
		placer:      placer,
		DryRun:      dryRun,
		NewClientID: func() string { return uuid.NewString() },
	}
	r.Strategies = r.DefaultStrategies()
	return r
}

// DefaultStrategies: exchange rules first, then fixed decimal places 3, 4, 5, 6, 2.
func (r *OrderResolver) DefaultStrategies() []QuantityStrategy {
	strategies := []QuantityStrategy{{Name: StrategyRules, Quantity: r.rulesQuantity}}
	for _, digits := range []int32{3, 4, 5, 6, 2} {
		strategies = append(strategies, DigitsStrategy(digits))
	}
	return strategies
}

func DigitsStrategy(digits int32) QuantityStrategy {
	return QuantityStrategy{
		Name: fmt.Sprintf("%d_digits", digits),
		Quantity: func(_ context.Context, _ string, raw decimal.Decimal) decimal.Decimal {
			return raw.Round(digits)
		},
	}
}

func (r *OrderResolver) rulesQuantity(ctx context.Context, symbol string, raw decimal.Decimal) decimal.Decimal {
	rules, err := r.placer.GetSymbolRules(ctx, symbol)
	if err != nil || rules == nil {
		log.Printf("⚠️  No lot size rules for %s, rounding to %d digits: %v", symbol, fallbackDigits, err)
		return raw.Round(fallbackDigits)
	}
	return ApplySymbolRules(raw, *rules)
}

// ApplySymbolRules rounds to the symbol precision, lifts to the minimum
// quantity and snaps to the nearest step.
func ApplySymbolRules(raw decimal.Decimal, rules types.SymbolRules) decimal.Decimal {
	qty := raw.Round(rules.QuantityPrecision)
	if rules.MinQty.IsPositive() && qty.LessThan(rules.MinQty) {
		qty = rules.MinQty
	}
	if rules.StepSize.IsPositive() {
		qty = qty.Div(rules.StepSize).Round(0).Mul(rules.StepSize)
	}
	return qty
}

// Execute buys plan.USDTAmount worth of plan.Symbol. A price failure aborts
// before any strategy runs; rejections and transport errors move on to the
// next strategy.
func (r *OrderResolver) Execute(ctx context.Context, plan types.PurchasePlan) types.OrderAttemptResult {
	result := types.OrderAttemptResult{Attempts: []types.AttemptRecord{}}

	price, err := r.prices.GetTickerPrice(ctx, plan.Symbol)
	if err != nil || !price.IsPositive() {
		if err == nil {
			err = fmt.Errorf("non-positive price %s", price)
		}
		result.Error = fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, plan.Symbol, err).Error()
		log.Printf("❌ Purchase of %s aborted: %s", plan.Symbol, result.Error)
		return result
	}
	result.Price = price
	raw := plan.USDTAmount.Div(price)

	log.Printf("🛒 Buying %s for $%s at %s (raw qty %s)", plan.Symbol, plan.USDTAmount.StringFixed(2), price, raw.StringFixed(8))

	var failures []string
	for i, strategy := range r.Strategies {
		if ctx.Err() != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", strategy.Name, ctx.Err()))
			break
		}

		qty := strategy.Quantity(ctx, plan.Symbol, raw)
		record := types.AttemptRecord{Strategy: strategy.Name, Quantity: qty}
		if !qty.IsPositive() {
			record.Skipped = true
			result.Attempts = append(result.Attempts, record)
			failures = append(failures, fmt.Sprintf("%s: quantity %s not positive", strategy.Name, qty))
			continue
		}

		if r.DryRun {
			result.Attempts = append(result.Attempts, record)
			result.Success = true
			result.StrategyUsed = StrategyDryRun
			result.AttemptIndex = i + 1
			result.Quantity = qty
			log.Printf("🧪 Dry run: would buy %s %s via %s", qty, plan.Symbol, strategy.Name)
			return result
		}

		ack, err := r.placer.PlaceMarketOrder(ctx, types.MarketOrderRequest{
			Symbol:        plan.Symbol,
			Side:          "BUY",
			Quantity:      qty,
			ClientOrderID: r.NewClientID(),
		})
		if err == nil && ack.OrderID == "" {
			err = errors.New("empty order id")
		}
		if err != nil {
			record.Error = err.Error()
			result.Attempts = append(result.Attempts, record)
			failures = append(failures, fmt.Sprintf("%s: %v", strategy.Name, err))
			log.Printf("🔁 %s attempt %d (%s, qty %s) failed: %v", plan.Symbol, i+1, strategy.Name, qty, err)
			continue
		}

		result.Attempts = append(result.Attempts, record)
		result.Success = true
		result.StrategyUsed = strategy.Name
		result.AttemptIndex = i + 1
		result.OrderID = ack.OrderID
		result.Quantity = qty
		log.Printf("✅ Order %s placed: %s %s via %s", ack.OrderID, qty, plan.Symbol, strategy.Name)
		return result
	}

	result.AttemptIndex = len(result.Attempts)
	result.Error = fmt.Errorf("%w for %s: %s", ErrStrategiesExhausted, plan.Symbol, strings.Join(failures, "; ")).Error()
	log.Printf("❌ %s", result.Error)
	return result
}
