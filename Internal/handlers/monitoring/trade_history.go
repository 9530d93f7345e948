package monitoring

import (
	"context"
	"sync"
	"time"

	datafeed "github.com/fazecat/mogulscan/Internal/database"
	"github.com/fazecat/mogulscan/Internal/types"
)

const defaultHistorySize = 100

// PurchaseHistory keeps the most recent purchase outcomes in memory so the
// status API has something to show when the journal database is off.
type PurchaseHistory struct {
	mutex   sync.RWMutex
	records []datafeed.PurchaseRecord
	size    int
	nextID  int64
}

func NewPurchaseHistory(size int) *PurchaseHistory {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &PurchaseHistory{size: size}
}

func (h *PurchaseHistory) Add(plan types.PurchasePlan, result types.OrderAttemptResult, at time.Time) datafeed.PurchaseRecord {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.nextID++
	rec := datafeed.NewPurchaseRecord(plan, result)
	rec.ID = h.nextID
	rec.CreatedAt = at

	h.records = append(h.records, rec)
	if len(h.records) > h.size {
		h.records = h.records[len(h.records)-h.size:]
	}
	return rec
}

// RecentPurchases returns newest first, optionally filtered by symbol.
// It matches the journal's query so either can back the API.
func (h *PurchaseHistory) RecentPurchases(_ context.Context, symbol string, limit int) ([]datafeed.PurchaseRecord, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]datafeed.PurchaseRecord, 0, limit)
	for i := len(h.records) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol != "" && h.records[i].Symbol != symbol {
			continue
		}
		out = append(out, h.records[i])
	}
	return out, nil
}

// Totals returns (attempts, successes) over the retained records.
func (h *PurchaseHistory) Totals() (int, int) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	ok := 0
	for _, r := range h.records {
		if r.Success {
			ok++
		}
	}
	return len(h.records), ok
}
