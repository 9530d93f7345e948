package risk

import (
	"testing"
	"time"

	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/fazecat/mogulscan/Internal/utils/config"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func defaultGate() *Gate {
	return NewGate(LimitsFromConfig(config.Default()))
}

func scanWithBuys(symbols ...string) *types.ScanResult {
	res := &types.ScanResult{}
	for i, s := range symbols {
		res.BuyOpportunities = append(res.BuyOpportunities, types.Opportunity{Symbol: s, Score: 9 - i})
	}
	return res
}

func TestGate_Size(t *testing.T) {
	tests := []struct {
		balance string
		want    string
	}{
		{balance: "100", want: "30"},
		{balance: "10", want: "5"},   // 3 lifted to min
		{balance: "500", want: "50"}, // capped
		{balance: "4", want: "1.2"},  // below min, not lifted
		{balance: "20", want: "6"},
	}
	g := defaultGate()
	for _, tt := range tests {
		if got := g.Size(d(tt.balance)); !got.Equal(d(tt.want)) {
			t.Errorf("Size(%s) = %s, want %s", tt.balance, got, tt.want)
		}
	}
}

func TestGate_Plan(t *testing.T) {
	tests := []struct {
		name       string
		balance    string
		scan       *types.ScanResult
		cooldown   bool
		want       Outcome
		wantAmount string
		wantSymbol string
		wantCount  int
	}{
		{
			name:       "best opportunity planned",
			balance:    "50",
			scan:       scanWithBuys("BTCUSDT", "ADAUSDT"),
			want:       OutcomePlanned,
			wantAmount: "15",
			wantSymbol: "BTCUSDT",
			wantCount:  2,
		},
		{
			name:      "low balance reports count",
			balance:   "5",
			scan:      scanWithBuys("SOLUSDT", "ADAUSDT", "XRPUSDT"),
			want:      OutcomeInsufficientFunds,
			wantCount: 3,
		},
		{
			name:       "balance just above floor lifts to min",
			balance:    "6",
			scan:       scanWithBuys("SOLUSDT"),
			want:       OutcomePlanned,
			wantAmount: "5",
			wantSymbol: "SOLUSDT",
			wantCount:  1,
		},
		{
			name:       "small share lifted when balance covers min",
			balance:    "15",
			scan:       scanWithBuys("SOLUSDT"),
			want:       OutcomePlanned,
			wantAmount: "5",
			wantSymbol: "SOLUSDT",
			wantCount:  1,
		},
		{
			name:     "cooldown skips gate",
			balance:  "100",
			scan:     scanWithBuys("SOLUSDT"),
			cooldown: true,
			want:     OutcomeNone,
		},
		{
			name:    "no buy signals",
			balance: "100",
			scan:    &types.ScanResult{},
			want:    OutcomeNone,
		},
		{
			name:    "nil scan",
			balance: "100",
			want:    OutcomeNone,
		},
	}

	g := defaultGate()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Plan(d(tt.balance), tt.scan, tt.cooldown)
			if got.Outcome != tt.want {
				t.Fatalf("Outcome = %v, want %v", got.Outcome, tt.want)
			}
			if got.OpportunityCount != tt.wantCount {
				t.Errorf("OpportunityCount = %d, want %d", got.OpportunityCount, tt.wantCount)
			}
			if tt.want != OutcomePlanned {
				if got.Plan != nil {
					t.Errorf("unexpected plan %+v", got.Plan)
				}
				return
			}
			if got.Plan.Symbol != tt.wantSymbol || !got.Plan.USDTAmount.Equal(d(tt.wantAmount)) {
				t.Errorf("plan = %s $%s, want %s $%s", got.Plan.Symbol, got.Plan.USDTAmount, tt.wantSymbol, tt.wantAmount)
			}
		})
	}
}

func TestGate_AmountTooSmall(t *testing.T) {
	g := NewGate(Limits{
		MinActBalance: d("6"),
		MinPurchase:   d("10"),
		MaxPurchase:   d("50"),
		Fraction:      d("0.3"),
	})
	// balance under the minimum purchase is not lifted, so 30% of it is too small
	got := g.Plan(d("8"), scanWithBuys("SOLUSDT"), false)
	if got.Outcome != OutcomeAmountTooSmall || !got.Amount.Equal(d("2.4")) {
		t.Errorf("decision = %s, want AMOUNT_TOO_SMALL $2.40", got)
	}
}

// never plans below the activation balance or below the minimum purchase
func TestGate_NeverPlansBelowLimits(t *testing.T) {
	g := defaultGate()
	scan := scanWithBuys("SOLUSDT")
	for cents := int64(0); cents <= 20000; cents += 37 {
		balance := decimal.New(cents, -2)
		got := g.Plan(balance, scan, false)
		if got.Outcome != OutcomePlanned {
			continue
		}
		if balance.LessThan(g.Limits.MinActBalance) || got.Amount.LessThan(g.Limits.MinPurchase) || got.Amount.GreaterThan(g.Limits.MaxPurchase) {
			t.Fatalf("balance %s planned $%s", balance, got.Amount)
		}
	}
}

func TestCooldown(t *testing.T) {
	c := NewCooldown(5 * time.Minute)
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	if c.Active(start) {
		t.Fatal("fresh cooldown should be inactive")
	}
	c.Mark(start)
	if !c.Active(start.Add(4 * time.Minute)) {
		t.Error("cooldown should be active after 4m")
	}
	if got := c.Remaining(start.Add(4 * time.Minute)); got != time.Minute {
		t.Errorf("Remaining = %v, want 1m", got)
	}
	if c.Active(start.Add(5 * time.Minute)) {
		t.Error("cooldown should expire at the window boundary")
	}
	if !c.LastTrade().Equal(start) {
		t.Errorf("LastTrade = %v", c.LastTrade())
	}
}
