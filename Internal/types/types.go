package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Candle struct {
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// 24h rolling statistics for one symbol
type Ticker24h struct {
	Symbol      string
	LastPrice   decimal.Decimal
	QuoteVolume decimal.Decimal
}

type SymbolCandidate struct {
	Symbol         string
	QuoteVolume24h decimal.Decimal
}

type IndicatorSnapshot struct {
	RSI               float64 `json:"rsi"`
	MACDHistogram     float64 `json:"macd_histogram"`
	SMA20             float64 `json:"sma20"`
	EMA12             float64 `json:"ema12"`
	VolumeRatio       float64 `json:"volume_ratio"`
	BollingerPosition float64 `json:"bollinger_position"` // 0 = lower band, 1 = upper band
}

type PermissionDecision struct {
	Allowed        bool    `json:"allowed"`
	Reason         string  `json:"reason"`
	SizeMultiplier float64 `json:"size_multiplier"`
}

type Opportunity struct {
	Symbol     string             `json:"symbol"`
	Price      decimal.Decimal    `json:"price"`
	Score      int                `json:"score"`
	Confidence float64            `json:"confidence"`
	Reasons    []string           `json:"reasons"`
	Indicators IndicatorSnapshot  `json:"indicators"`
	Permission PermissionDecision `json:"permission"`
}

type ScanResult struct {
	Timestamp        time.Time     `json:"timestamp"`
	BuyOpportunities []Opportunity `json:"buy_opportunities"`
	NeutralPairs     []Opportunity `json:"neutral_pairs"`
	BlockedPairs     []Opportunity `json:"blocked_pairs"`
	AnalyzedCount    int           `json:"analyzed_count"`
	TotalCount       int           `json:"total_count"`
	ErrorSymbols     []string      `json:"error_symbols"`
}

type PurchasePlan struct {
	Symbol      string
	USDTAmount  decimal.Decimal
	Opportunity Opportunity
}

// Exchange lot-size rules for one symbol
type SymbolRules struct {
	Symbol            string
	QuantityPrecision int32
	StepSize          decimal.Decimal
	MinQty            decimal.Decimal
}

type MarketOrderRequest struct {
	Symbol        string
	Side          string // "BUY" or "SELL"
	Quantity      decimal.Decimal
	ClientOrderID string
}

type OrderAck struct {
	OrderID       string
	ClientOrderID string
	Status        string
}

// one placement made by the order resolver
type AttemptRecord struct {
	Strategy string          `json:"strategy"`
	Quantity decimal.Decimal `json:"quantity"`
	Skipped  bool            `json:"skipped"`
	Error    string          `json:"error,omitempty"`
}

// OrderAttemptResult is Ok when Success is true (OrderID and Quantity set) and
// Err otherwise (Error set). AttemptIndex is 1-based and zero when nothing was tried.
type OrderAttemptResult struct {
	Success      bool            `json:"success"`
	StrategyUsed string          `json:"strategy_used,omitempty"`
	AttemptIndex int             `json:"attempt_index"`
	OrderID      string          `json:"order_id,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Error        string          `json:"error,omitempty"`
	Attempts     []AttemptRecord `json:"attempts"`
}
