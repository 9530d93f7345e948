package formatting

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/shopspring/decimal"
)

const (
	reportTopBuys    = 5
	reportTopOthers  = 3
	clockLayout      = "15:04:05"
	timestampLayout  = "02.01.2006 15:04:05"
	recommendFloorUS = 10
)

func esc(s string) string { return html.EscapeString(s) }

// FormatScanReport renders one scan as a Telegram HTML message.
func FormatScanReport(scanNumber int, scan *types.ScanResult, balance decimal.Decimal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 <b>MARKET SCAN #%d</b>\n", scanNumber)
	fmt.Fprintf(&b, "⏰ %s\n", scan.Timestamp.Format(timestampLayout))
	fmt.Fprintf(&b, "💰 USDT balance: %s\n\n", Money(balance))

	b.WriteString("📈 <b>STATISTICS:</b>\n")
	fmt.Fprintf(&b, "🔍 Analyzed: %d/%d\n", scan.AnalyzedCount, scan.TotalCount)
	fmt.Fprintf(&b, "✅ Buy opportunities: %d\n", len(scan.BuyOpportunities))
	fmt.Fprintf(&b, "⚠️ Neutral: %d\n", len(scan.NeutralPairs))
	fmt.Fprintf(&b, "🚫 Blocked: %d\n", len(scan.BlockedPairs))
	fmt.Fprintf(&b, "❌ Errors: %d\n\n", len(scan.ErrorSymbols))

	if len(scan.BuyOpportunities) > 0 {
		b.WriteString("🎯 <b>BEST OPPORTUNITIES:</b>\n")
		for i, opp := range head(scan.BuyOpportunities, reportTopBuys) {
			fmt.Fprintf(&b, "%d. <b>%s</b> %s\n", i+1, esc(opp.Symbol), Price(opp.Price))
			fmt.Fprintf(&b, "   ⭐ Score: %d | RSI: %.1f\n", opp.Score, opp.Indicators.RSI)
			fmt.Fprintf(&b, "   🔍 %s\n\n", esc(FirstN(opp.Reasons, 3)))
		}
	}

	if len(scan.NeutralPairs) > 0 {
		b.WriteString("⚖️ <b>NEUTRAL (top 3):</b>\n")
		for i, opp := range head(scan.NeutralPairs, reportTopOthers) {
			fmt.Fprintf(&b, "%d. %s (score: %d, RSI: %.1f)\n", i+1, esc(opp.Symbol), opp.Score, opp.Indicators.RSI)
		}
		b.WriteString("\n")
	}

	if len(scan.BlockedPairs) > 0 {
		b.WriteString("🚫 <b>BLOCKED (top 3):</b>\n")
		for i, opp := range head(scan.BlockedPairs, reportTopOthers) {
			fmt.Fprintf(&b, "%d. %s - %s\n", i+1, esc(opp.Symbol), esc(opp.Permission.Reason))
		}
		b.WriteString("\n")
	}

	switch {
	case balance.LessThan(decimal.NewFromInt(recommendFloorUS)):
		fmt.Fprintf(&b, "💡 <b>RECOMMENDATION:</b> Not enough USDT (need $%d+)\n", recommendFloorUS)
	case len(scan.BuyOpportunities) > 0:
		b.WriteString("💡 <b>RECOMMENDATION:</b> Buying opportunities available!\n")
	default:
		b.WriteString("💡 <b>RECOMMENDATION:</b> Waiting for better opportunities\n")
	}

	return b.String()
}

func head(opps []types.Opportunity, n int) []types.Opportunity {
	if len(opps) > n {
		return opps[:n]
	}
	return opps
}

// Reasoning is the human explanation attached to a successful purchase.
type Reasoning struct {
	Why      []string
	Forecast string
}

const (
	ForecastRebound  = "Expect a 1-3% rebound within 2-6 hours if volume holds"
	ForecastPullback = "Likely technical move of 0.5-2% back toward the middle band"
	ForecastDecline  = "Risk of further decline or sideways drift, a lower entry is possible"
	ForecastSideways = "Sideways with a pull toward the mean, keep risk tight"
)

// BuildReasoning expands the indicator snapshot into verbose reasons and a
// short-term forecast picked from the number of bullish signals.
func BuildReasoning(opp types.Opportunity) Reasoning {
	ind := opp.Indicators
	why := []string{}

	switch {
	case ind.RSI < 30:
		why = append(why, "RSI below 30, oversold, a technical bounce is expected")
	case ind.RSI < 45:
		why = append(why, "RSI in the lower zone, buyers have the edge on a reversal")
	}
	if ind.BollingerPosition < 0.2 {
		why = append(why, "Price near the lower Bollinger band, a return to the mean is likely")
	}
	switch {
	case ind.VolumeRatio > 1.5:
		why = append(why, "Volume above normal, higher chance of an impulse")
	case ind.VolumeRatio > 1.2:
		why = append(why, "Volume normalising, enough liquidity to enter")
	}
	switch {
	case ind.MACDHistogram > 0:
		why = append(why, "MACD histogram positive, momentum is turning")
	case ind.MACDHistogram < 0:
		why = append(why, "MACD negative, counter-trend entry with small risk only")
	}
	if opp.Permission.Reason != "" {
		why = append(why, "Anti-hype filter: "+opp.Permission.Reason)
	}
	if len(why) == 0 {
		why = append(why, "Technical setup matches the entry rules")
	}

	bullish := 0
	for _, ok := range []bool{ind.RSI < 35, ind.BollingerPosition < 0.3, ind.MACDHistogram > 0, ind.VolumeRatio > 1.2} {
		if ok {
			bullish++
		}
	}

	forecast := ForecastSideways
	switch {
	case bullish >= 3:
		forecast = ForecastRebound
	case bullish == 2:
		forecast = ForecastPullback
	case ind.MACDHistogram < 0 || ind.RSI > 70 || ind.BollingerPosition > 0.8:
		forecast = ForecastDecline
	}

	return Reasoning{Why: why, Forecast: forecast}
}

func FormatStartup(interval time.Duration, pairCount int, dryRun bool) string {
	var b strings.Builder
	b.WriteString("🤖 <b>MARKET SCANNER STARTED</b>\n\n")
	fmt.Fprintf(&b, "⏰ Interval: %s\n", interval)
	fmt.Fprintf(&b, "📊 Pairs to analyze: %d\n", pairCount)
	b.WriteString("📱 Reports are sent every second scan\n")
	if dryRun {
		b.WriteString("🧪 Dry run: no orders will be placed\n")
	}
	b.WriteString("\n🔄 Scanning is active...")
	return b.String()
}

func FormatPurchaseStarted(plan types.PurchasePlan) string {
	return fmt.Sprintf("🔄 <b>PURCHASE STARTED</b>\n\n📈 <b>%s</b>\n💰 Amount: %s USDT\n⭐ Score: %d\n🛡️ Filter: %s",
		esc(plan.Symbol), Money(plan.USDTAmount), plan.Opportunity.Score, esc(plan.Opportunity.Permission.Reason))
}

func FormatPurchaseSuccess(plan types.PurchasePlan, res types.OrderAttemptResult, now time.Time) string {
	r := BuildReasoning(plan.Opportunity)

	var b strings.Builder
	b.WriteString("✅ <b>PURCHASE SUCCESSFUL!</b>\n\n")
	fmt.Fprintf(&b, "📈 <b>%s</b>\n", esc(plan.Symbol))
	fmt.Fprintf(&b, "💰 Amount: %s USDT\n", Money(plan.USDTAmount))
	fmt.Fprintf(&b, "📊 Method: %s (attempt %d)\n", esc(res.StrategyUsed), res.AttemptIndex)
	fmt.Fprintf(&b, "📈 Quantity: %s\n", res.Quantity.String())
	fmt.Fprintf(&b, "💵 Price: $%s\n", res.Price.StringFixed(6))
	if res.OrderID != "" {
		fmt.Fprintf(&b, "🆔 Order: <code>%s</code>\n", esc(res.OrderID))
	}
	b.WriteString("\n🎯 <b>ANALYSIS:</b>\n")
	fmt.Fprintf(&b, "⭐ Score: %d (confidence %s)\n", plan.Opportunity.Score, Percent(plan.Opportunity.Confidence))
	fmt.Fprintf(&b, "📊 RSI: %.1f\n", plan.Opportunity.Indicators.RSI)
	if m := plan.Opportunity.Permission.SizeMultiplier; m > 0 && m != 1 {
		fmt.Fprintf(&b, "⚖️ Filter size hint: x%.1f\n", m)
	}
	b.WriteString("🔍 Reasons:")
	for _, w := range r.Why {
		fmt.Fprintf(&b, "\n   • %s", esc(w))
	}
	fmt.Fprintf(&b, "\n\n🧭 <b>FORECAST (2-6 h):</b> %s\n\n", r.Forecast)
	fmt.Fprintf(&b, "⏰ Time: %s", now.Format(clockLayout))
	return b.String()
}

func FormatPurchaseFailure(plan types.PurchasePlan, res types.OrderAttemptResult, now time.Time) string {
	var b strings.Builder
	b.WriteString("❌ <b>PURCHASE FAILED</b>\n\n")
	fmt.Fprintf(&b, "📈 <b>%s</b>\n", esc(plan.Symbol))
	fmt.Fprintf(&b, "💰 Amount: %s USDT\n", Money(plan.USDTAmount))
	fmt.Fprintf(&b, "🔁 Attempts: %d\n", len(res.Attempts))
	fmt.Fprintf(&b, "⚠️ Error: %s\n\n", esc(res.Error))
	fmt.Fprintf(&b, "⏰ Time: %s", now.Format(clockLayout))
	return b.String()
}

func FormatInsufficientFunds(opportunities int, balance, minimum decimal.Decimal, now time.Time) string {
	return fmt.Sprintf("💰 <b>NOT ENOUGH FUNDS TO BUY</b>\n\n📊 Opportunities found: %d\n💵 USDT balance: %s\n⚠️ Minimum to buy: %s\n\n⏰ Time: %s",
		opportunities, Money(balance), Money(minimum), now.Format(clockLayout))
}

func FormatAmountTooSmall(opportunities int, amount, balance, minimum decimal.Decimal, now time.Time) string {
	return fmt.Sprintf("💰 <b>PURCHASE AMOUNT TOO SMALL</b>\n\n📊 Opportunities found: %d\n🧮 Computed amount: %s\n💳 Available balance: %s\n⚠️ Minimum purchase: %s\n\n⏰ Time: %s",
		opportunities, Money(amount), Money(balance), Money(minimum), now.Format(clockLayout))
}
