package datafeed

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/shopspring/decimal"
)

type PurchaseRecord struct {
	ID           int64           `json:"id"`
	Symbol       string          `json:"symbol"`
	USDTAmount   decimal.Decimal `json:"usdt_amount"`
	Score        int             `json:"score"`
	Confidence   float64         `json:"confidence"`
	Success      bool            `json:"success"`
	StrategyUsed string          `json:"strategy_used,omitempty"`
	AttemptIndex int             `json:"attempt_index"`
	OrderID      string          `json:"order_id,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func NewPurchaseRecord(plan types.PurchasePlan, result types.OrderAttemptResult) PurchaseRecord {
	return PurchaseRecord{
		Symbol:       plan.Symbol,
		USDTAmount:   plan.USDTAmount,
		Score:        plan.Opportunity.Score,
		Confidence:   plan.Opportunity.Confidence,
		Success:      result.Success,
		StrategyUsed: result.StrategyUsed,
		AttemptIndex: result.AttemptIndex,
		OrderID:      result.OrderID,
		Quantity:     result.Quantity,
		Price:        result.Price,
		Error:        result.Error,
	}
}

func (j *Journal) LogPurchaseAttempt(ctx context.Context, plan types.PurchasePlan, result types.OrderAttemptResult) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("database not initialized")
	}

	rec := NewPurchaseRecord(plan, result)
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO purchase_attempts
			(symbol, usdt_amount, score, confidence, success, strategy_used, attempt_index, order_id, quantity, price, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.Symbol,
		rec.USDTAmount.String(),
		rec.Score,
		rec.Confidence,
		rec.Success,
		nullString(rec.StrategyUsed),
		rec.AttemptIndex,
		nullString(rec.OrderID),
		rec.Quantity.String(),
		rec.Price.String(),
		nullString(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to log purchase attempt: %w", err)
	}

	log.Printf("✅ Purchase attempt logged to database: %s $%s success=%v", rec.Symbol, rec.USDTAmount.StringFixed(2), rec.Success)
	return nil
}

func (j *Journal) LogScanRun(ctx context.Context, scanNumber int, result *types.ScanResult) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("database not initialized")
	}

	var topSymbol sql.NullString
	var topScore sql.NullInt32
	if len(result.BuyOpportunities) > 0 {
		topSymbol = sql.NullString{String: result.BuyOpportunities[0].Symbol, Valid: true}
		topScore = sql.NullInt32{Int32: int32(result.BuyOpportunities[0].Score), Valid: true}
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO scan_runs
			(scan_number, analyzed_count, total_count, buy_count, neutral_count, blocked_count, error_count, top_symbol, top_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		scanNumber,
		result.AnalyzedCount,
		result.TotalCount,
		len(result.BuyOpportunities),
		len(result.NeutralPairs),
		len(result.BlockedPairs),
		len(result.ErrorSymbols),
		topSymbol,
		topScore,
	)
	if err != nil {
		return fmt.Errorf("failed to log scan run: %w", err)
	}
	return nil
}

func (j *Journal) RecentPurchases(ctx context.Context, symbol string, limit int) ([]PurchaseRecord, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, symbol, usdt_amount, score, confidence, success,
		       COALESCE(strategy_used, ''), attempt_index, COALESCE(order_id, ''),
		       COALESCE(quantity, '0'), COALESCE(price, '0'), COALESCE(error, ''), created_at
		FROM purchase_attempts
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY created_at DESC
		LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch purchase history: %w", err)
	}
	defer rows.Close()

	var out []PurchaseRecord
	for rows.Next() {
		var rec PurchaseRecord
		var amount, qty, price string
		if err := rows.Scan(&rec.ID, &rec.Symbol, &amount, &rec.Score, &rec.Confidence, &rec.Success,
			&rec.StrategyUsed, &rec.AttemptIndex, &rec.OrderID, &qty, &price, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase row: %w", err)
		}
		rec.USDTAmount, _ = decimal.NewFromString(amount)
		rec.Quantity, _ = decimal.NewFromString(qty)
		rec.Price, _ = decimal.NewFromString(price)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
