package monitoring

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fazecat/mogulscan/Internal/handlers/risk"
	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/fazecat/mogulscan/Internal/utils"
	"github.com/fazecat/mogulscan/Internal/utils/config"
	"github.com/fazecat/mogulscan/Internal/utils/formatting"
	"github.com/fazecat/mogulscan/Internal/utils/scanner"
	"github.com/shopspring/decimal"
)

type State int

const (
	StateIdle State = iota
	StateScanning
	StateSkipped
	StateActed
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateSkipped:
		return "skipped"
	case StateActed:
		return "acted"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type UniverseSelector interface {
	Select(ctx context.Context, maxCount int) []types.SymbolCandidate
}

type Analyzer interface {
	Analyze(ctx context.Context, symbols []string) types.ScanResult
}

type Account interface {
	GetFreeBalance(ctx context.Context, asset string) (decimal.Decimal, error)
}

type Executor interface {
	Execute(ctx context.Context, plan types.PurchasePlan) types.OrderAttemptResult
}

type Notifier interface {
	Send(ctx context.Context, message string)
}

// Journal is optional; a nil Journal disables persistence.
type Journal interface {
	LogScanRun(ctx context.Context, scanNumber int, result *types.ScanResult) error
	LogPurchaseAttempt(ctx context.Context, plan types.PurchasePlan, result types.OrderAttemptResult) error
}

// Components wires the scheduler to the rest of the engine.
type Components struct {
	Selector UniverseSelector
	Analyzer Analyzer
	Account  Account
	Gate     *risk.Gate
	Executor Executor
	Notifier Notifier
	Journal  Journal
}

type ScanSummary struct {
	Timestamp time.Time `json:"timestamp"`
	Analyzed  int       `json:"analyzed"`
	Total     int       `json:"total"`
	Buy       int       `json:"buy"`
	Neutral   int       `json:"neutral"`
	Blocked   int       `json:"blocked"`
	Errors    int       `json:"errors"`
	TopBuys   []string  `json:"top_buys"`
}

type Stats struct {
	State               State        `json:"state"`
	ScanCount           int          `json:"scan_count"`
	ReportCounter       int          `json:"report_counter"`
	ReportsSent         int          `json:"reports_sent"`
	LastScanTime        time.Time    `json:"last_scan_time"`
	LastTradeTime       time.Time    `json:"last_trade_time"`
	LastBalance         string       `json:"last_balance"`
	PurchaseAttempts    int          `json:"purchase_attempts"`
	SuccessfulPurchases int          `json:"successful_purchases"`
	LastScan            *ScanSummary `json:"last_scan,omitempty"`
	DryRun              bool         `json:"dry_run"`
}

// Scheduler runs one scan-and-maybe-buy cycle per interval. It owns all
// counters; analyzer workers never touch them.
type Scheduler struct {
	c        Components
	cooldown *risk.Cooldown
	history  *PurchaseHistory

	QuoteAsset    string
	MaxPairs      int
	Interval      time.Duration
	RecoveryDelay time.Duration
	DryRun        bool
	Now           func() time.Time
	Sleep         utils.SleepFunc

	statsMutex    sync.RWMutex
	state         State
	scanCount     int
	reportCounter int
	reportsSent   int
	lastScanTime  time.Time
	lastBalance   decimal.Decimal
	lastScan      *types.ScanResult
}

func NewScheduler(c Components, cfg *config.Config) *Scheduler {
	return &Scheduler{
		c:             c,
		cooldown:      risk.NewCooldown(cfg.TradeCooldown()),
		history:       NewPurchaseHistory(defaultHistorySize),
		QuoteAsset:    cfg.Scanner.QuoteAsset,
		MaxPairs:      cfg.Scanner.MaxPairs,
		Interval:      cfg.ScanInterval(),
		RecoveryDelay: cfg.RecoveryDelay(),
		DryRun:        cfg.Execution.DryRun,
		Now:           time.Now,
		Sleep:         utils.ContextSleep,
	}
}

func (s *Scheduler) History() *PurchaseHistory { return s.history }

// Run loops until ctx is cancelled. A failed cycle waits RecoveryDelay
// instead of Interval. Returns after the in-flight cycle has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("🚀 Market scanner started: interval %s, up to %d pairs", s.Interval, s.MaxPairs)
	s.notify(ctx, formatting.FormatStartup(s.Interval, s.MaxPairs, s.DryRun))

	for {
		wait := s.Interval
		if _, err := s.safeCycle(ctx); err != nil {
			log.Printf("❌ Scan cycle failed: %v (retrying in %s)", err, s.RecoveryDelay)
			wait = s.RecoveryDelay
		}
		if ctx.Err() != nil {
			log.Println("🛑 Market scanner stopped")
			return nil
		}
		if err := s.Sleep(ctx, wait); err != nil {
			log.Println("🛑 Market scanner stopped")
			return nil
		}
	}
}

func (s *Scheduler) safeCycle(ctx context.Context) (state State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in scan cycle: %v", r)
			s.setState(StateIdle)
		}
	}()
	return s.RunCycle(ctx), nil
}

// RunCycle performs one scan cycle and returns the state it ended in.
func (s *Scheduler) RunCycle(ctx context.Context) State {
	s.statsMutex.Lock()
	s.scanCount++
	scanNumber := s.scanCount
	s.lastScanTime = s.Now()
	s.statsMutex.Unlock()

	balance, err := s.c.Account.GetFreeBalance(ctx, s.QuoteAsset)
	if err != nil {
		log.Printf("⚠️  Balance check failed: %v", err)
		balance = decimal.Zero
	}
	s.setBalance(balance)

	if balance.LessThan(s.c.Gate.Limits.MinActBalance) {
		log.Printf("⏭️  Skipping scan #%d: %s=%s < %s", scanNumber, s.QuoteAsset,
			formatting.Money(balance), formatting.Money(s.c.Gate.Limits.MinActBalance))
		s.setState(StateSkipped)
		return StateSkipped
	}

	s.setState(StateScanning)
	log.Printf("🔄 Scan #%d started", scanNumber)

	candidates := s.c.Selector.Select(ctx, s.MaxPairs)
	scan := s.c.Analyzer.Analyze(ctx, scanner.Symbols(candidates))
	log.Printf("📊 Scan #%d: %d/%d analyzed, %d buy, %d neutral, %d blocked, %d errors",
		scanNumber, scan.AnalyzedCount, scan.TotalCount, len(scan.BuyOpportunities),
		len(scan.NeutralPairs), len(scan.BlockedPairs), len(scan.ErrorSymbols))

	s.statsMutex.Lock()
	s.lastScan = &scan
	s.reportCounter++
	sendReport := s.reportCounter%2 == 0
	if sendReport {
		s.reportsSent++
	}
	s.statsMutex.Unlock()

	if s.c.Journal != nil {
		if err := s.c.Journal.LogScanRun(ctx, scanNumber, &scan); err != nil {
			log.Printf("⚠️  Failed to journal scan #%d: %v", scanNumber, err)
		}
	}

	if sendReport {
		s.notify(ctx, formatting.FormatScanReport(scanNumber, &scan, balance))
		log.Printf("📨 Report #%d sent", scanNumber)
	} else {
		log.Printf("🔕 Report #%d skipped", scanNumber)
	}

	if ctx.Err() != nil {
		s.setState(StateIdle)
		return StateIdle
	}

	state := s.purchase(ctx, &scan)
	s.setState(state)
	return state
}

func (s *Scheduler) purchase(ctx context.Context, scan *types.ScanResult) State {
	if len(scan.BuyOpportunities) == 0 {
		log.Println("🤷 No buy opportunities this cycle")
		return StateIdle
	}

	now := s.Now()
	if s.cooldown.Active(now) {
		log.Printf("⏰ Trade cooldown active, %s left", s.cooldown.Remaining(now).Round(time.Second))
		return StateIdle
	}

	// sizing always uses a fresh balance
	balance, err := s.c.Account.GetFreeBalance(ctx, s.QuoteAsset)
	if err != nil {
		log.Printf("⚠️  Balance refresh failed, purchase skipped: %v", err)
		return StateIdle
	}
	s.setBalance(balance)

	decision := s.c.Gate.Plan(balance, scan, false)
	switch decision.Outcome {
	case risk.OutcomeInsufficientFunds:
		s.notify(ctx, formatting.FormatInsufficientFunds(decision.OpportunityCount, balance, s.c.Gate.Limits.MinActBalance, s.Now()))
		return StateIdle
	case risk.OutcomeAmountTooSmall:
		s.notify(ctx, formatting.FormatAmountTooSmall(decision.OpportunityCount, decision.Amount, balance, s.c.Gate.Limits.MinPurchase, s.Now()))
		return StateIdle
	case risk.OutcomePlanned:
	default:
		return StateIdle
	}

	plan := *decision.Plan
	s.notify(ctx, formatting.FormatPurchaseStarted(plan))

	result := s.c.Executor.Execute(ctx, plan)
	finished := s.Now()
	s.cooldown.Mark(finished)
	s.history.Add(plan, result, finished)

	if s.c.Journal != nil {
		if err := s.c.Journal.LogPurchaseAttempt(ctx, plan, result); err != nil {
			log.Printf("⚠️  Failed to journal purchase of %s: %v", plan.Symbol, err)
		}
	}

	if result.Success {
		s.notify(ctx, formatting.FormatPurchaseSuccess(plan, result, finished))
	} else {
		s.notify(ctx, formatting.FormatPurchaseFailure(plan, result, finished))
	}
	return StateActed
}

func (s *Scheduler) notify(ctx context.Context, msg string) {
	if s.c.Notifier != nil {
		s.c.Notifier.Send(ctx, msg)
	}
}

func (s *Scheduler) setState(st State) {
	s.statsMutex.Lock()
	s.state = st
	s.statsMutex.Unlock()
}

func (s *Scheduler) setBalance(b decimal.Decimal) {
	s.statsMutex.Lock()
	s.lastBalance = b
	s.statsMutex.Unlock()
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	attempts, ok := s.history.Totals()

	s.statsMutex.RLock()
	defer s.statsMutex.RUnlock()

	st := Stats{
		State:               s.state,
		ScanCount:           s.scanCount,
		ReportCounter:       s.reportCounter,
		ReportsSent:         s.reportsSent,
		LastScanTime:        s.lastScanTime,
		LastTradeTime:       s.cooldown.LastTrade(),
		LastBalance:         s.lastBalance.StringFixed(2),
		PurchaseAttempts:    attempts,
		SuccessfulPurchases: ok,
		DryRun:              s.DryRun,
	}
	if s.lastScan != nil {
		st.LastScan = summarize(s.lastScan)
	}
	return st
}

// LastScan returns the most recent full scan result, or nil before the first scan.
func (s *Scheduler) LastScan() *types.ScanResult {
	s.statsMutex.RLock()
	defer s.statsMutex.RUnlock()
	if s.lastScan == nil {
		return nil
	}
	cp := *s.lastScan
	return &cp
}

func summarize(r *types.ScanResult) *ScanSummary {
	top := make([]string, 0, 5)
	for i := 0; i < len(r.BuyOpportunities) && i < 5; i++ {
		top = append(top, r.BuyOpportunities[i].Symbol)
	}
	return &ScanSummary{
		Timestamp: r.Timestamp,
		Analyzed:  r.AnalyzedCount,
		Total:     r.TotalCount,
		Buy:       len(r.BuyOpportunities),
		Neutral:   len(r.NeutralPairs),
		Blocked:   len(r.BlockedPairs),
		Errors:    len(r.ErrorSymbols),
		TopBuys:   top,
	}
}
