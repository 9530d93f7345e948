package risk

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/fazecat/mogulscan/Internal/utils/config"
	"github.com/shopspring/decimal"
)

type Outcome int

const (
	OutcomeNone Outcome = iota // cooldown active or no buy signal
	OutcomeInsufficientFunds
	OutcomeAmountTooSmall
	OutcomePlanned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInsufficientFunds:
		return "INSUFFICIENT_FUNDS"
	case OutcomeAmountTooSmall:
		return "AMOUNT_TOO_SMALL"
	case OutcomePlanned:
		return "PLANNED"
	default:
		return "NONE"
	}
}

// Decision is the gate's answer for one cycle. Plan is only set for
// OutcomePlanned; Amount is set for OutcomeAmountTooSmall and OutcomePlanned.
type Decision struct {
	Outcome          Outcome
	Plan             *types.PurchasePlan
	Amount           decimal.Decimal
	Balance          decimal.Decimal
	OpportunityCount int
}

// Limits for sizing a single purchase, all in quote currency
type Limits struct {
	MinActBalance decimal.Decimal // below this nothing is bought
	MinPurchase   decimal.Decimal
	MaxPurchase   decimal.Decimal
	Fraction      decimal.Decimal // share of free balance, 0.3 = 30%
}

func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		MinActBalance: cfg.MinActBalance(),
		MinPurchase:   cfg.MinPurchase(),
		MaxPurchase:   cfg.MaxPurchase(),
		Fraction:      cfg.PurchaseFraction(),
	}
}

type Gate struct {
	Limits Limits
}

func NewGate(limits Limits) *Gate {
	return &Gate{Limits: limits}
}

// Size computes the purchase amount for a balance:
// base = balance*fraction, lifted to MinPurchase when the balance allows, capped at MaxPurchase.
func (g *Gate) Size(balance decimal.Decimal) decimal.Decimal {
	base := balance.Mul(g.Limits.Fraction)
	if balance.GreaterThanOrEqual(g.Limits.MinPurchase) {
		base = decimal.Max(g.Limits.MinPurchase, base)
	}
	return decimal.Min(base, g.Limits.MaxPurchase)
}

// Plan decides whether this cycle buys and how much. The winner is the first
// entry of the already sorted buy bucket.
func (g *Gate) Plan(balance decimal.Decimal, scan *types.ScanResult, cooldownActive bool) Decision {
	d := Decision{Outcome: OutcomeNone, Balance: balance}
	if cooldownActive || scan == nil || len(scan.BuyOpportunities) == 0 {
		return d
	}
	d.OpportunityCount = len(scan.BuyOpportunities)

	if balance.LessThan(g.Limits.MinActBalance) {
		d.Outcome = OutcomeInsufficientFunds
		log.Printf("💸 %d buy signals but only $%s USDT free (need $%s)",
			d.OpportunityCount, balance.StringFixed(2), g.Limits.MinActBalance.StringFixed(2))
		return d
	}

	d.Amount = g.Size(balance)
	if d.Amount.LessThan(g.Limits.MinPurchase) {
		d.Outcome = OutcomeAmountTooSmall
		log.Printf("💸 Purchase amount $%s below minimum $%s", d.Amount.StringFixed(2), g.Limits.MinPurchase.StringFixed(2))
		return d
	}

	best := scan.BuyOpportunities[0]
	d.Outcome = OutcomePlanned
	d.Plan = &types.PurchasePlan{
		Symbol:      best.Symbol,
		USDTAmount:  d.Amount,
		Opportunity: best,
	}
	log.Printf("🎯 Planned purchase: %s for $%s (score %d)", best.Symbol, d.Amount.StringFixed(2), best.Score)
	return d
}

// Cooldown tracks the time of the last purchase attempt.
type Cooldown struct {
	window        time.Duration
	lastTradeTime time.Time
	mutex         sync.RWMutex
}

func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{window: window}
}

func (c *Cooldown) Active(now time.Time) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.lastTradeTime.IsZero() {
		return false
	}
	return now.Sub(c.lastTradeTime) < c.window
}

func (c *Cooldown) Mark(now time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.lastTradeTime = now
}

func (c *Cooldown) LastTrade() time.Time {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.lastTradeTime
}

func (c *Cooldown) Remaining(now time.Time) time.Duration {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.lastTradeTime.IsZero() {
		return 0
	}
	left := c.window - now.Sub(c.lastTradeTime)
	if left < 0 {
		return 0
	}
	return left
}

func (d Decision) String() string {
	switch d.Outcome {
	case OutcomePlanned:
		return fmt.Sprintf("%s %s $%s", d.Outcome, d.Plan.Symbol, d.Amount.StringFixed(2))
	case OutcomeAmountTooSmall:
		return fmt.Sprintf("%s $%s", d.Outcome, d.Amount.StringFixed(2))
	case OutcomeInsufficientFunds:
		return fmt.Sprintf("%s balance $%s", d.Outcome, d.Balance.StringFixed(2))
	default:
		return d.Outcome.String()
	}
}
