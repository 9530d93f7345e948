package scoring

import (
	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/fazecat/mogulscan/Internal/utils"
	"github.com/shopspring/decimal"
)

const (
	BuyThreshold   = 2  // score > BuyThreshold is a buy
	BlockThreshold = -5 // score < BlockThreshold is blocked
	VetoScore      = -10

	minConfidence = 0.1
	maxConfidence = 0.9
)

type Bucket int

const (
	BucketNeutral Bucket = iota
	BucketBuy
	BucketBlocked
)

func (b Bucket) String() string {
	switch b {
	case BucketBuy:
		return "buy"
	case BucketBlocked:
		return "blocked"
	default:
		return "neutral"
	}
}

// ScoreSignals sums the independent indicator contributions. A denied
// permission overrides everything with VetoScore.
func ScoreSignals(ind types.IndicatorSnapshot, perm types.PermissionDecision) (int, []string) {
	score := 0
	reasons := []string{}

	switch {
	case ind.RSI < 30:
		score += 3
		reasons = append(reasons, "oversold")
	case ind.RSI < 45:
		score += 2
		reasons = append(reasons, "low-RSI")
	case ind.RSI > 70:
		score--
		reasons = append(reasons, "overbought")
	}

	switch {
	case ind.VolumeRatio > 1.5:
		score += 2
		reasons = append(reasons, "high-volume")
	case ind.VolumeRatio > 1.2:
		score++
		reasons = append(reasons, "normal-volume")
	}

	switch {
	case ind.MACDHistogram > 0:
		score += 2
		reasons = append(reasons, "macd-buy")
	case ind.MACDHistogram < 0:
		score--
		reasons = append(reasons, "macd-sell")
	}

	switch {
	case ind.BollingerPosition < 0.2:
		score += 2
		reasons = append(reasons, "lower-band")
	case ind.BollingerPosition > 0.8:
		score--
		reasons = append(reasons, "upper-band")
	}

	if !perm.Allowed {
		score = VetoScore
		reasons = append(reasons, "blocked: "+perm.Reason)
	}

	return score, reasons
}

// Confidence = clamp((score+5)/10, 0.1, 0.9)
func Confidence(score int) float64 {
	return utils.Clamp(float64(score+5)/10, minConfidence, maxConfidence)
}

func Classify(score int) Bucket {
	switch {
	case score > BuyThreshold:
		return BucketBuy
	case score < BlockThreshold:
		return BucketBlocked
	default:
		return BucketNeutral
	}
}

func BuildOpportunity(symbol string, price decimal.Decimal, ind types.IndicatorSnapshot, perm types.PermissionDecision) types.Opportunity {
	score, reasons := ScoreSignals(ind, perm)
	return types.Opportunity{
		Symbol:     symbol,
		Price:      price,
		Score:      score,
		Confidence: Confidence(score),
		Reasons:    reasons,
		Indicators: ind,
		Permission: perm,
	}
}

func ScoreCategory(score int) string {
	if score >= 6 {
		return "🟢 Excellent"
	}
	if score > BuyThreshold {
		return "🟢 Good"
	}
	if score >= 0 {
		return "🟡 Fair"
	}
	if score >= BlockThreshold {
		return "🟠 Weak"
	}
	return "🔴 Blocked"
}
