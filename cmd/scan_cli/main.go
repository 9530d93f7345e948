package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	datafeed "github.com/fazecat/mogulscan/Internal/database"
	"github.com/fazecat/mogulscan/Internal/handlers/risk"
	"github.com/fazecat/mogulscan/Internal/strategy/indicators"
	"github.com/fazecat/mogulscan/Internal/strategy/signals"
	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/fazecat/mogulscan/Internal/utils/config"
	"github.com/fazecat/mogulscan/Internal/utils/formatting"
	"github.com/fazecat/mogulscan/Internal/utils/scanner"
	"github.com/fazecat/mogulscan/Internal/utils/scoring"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// One scan, printed to stdout. Never places orders.
func main() {
	pairs := flag.Int("pairs", 0, "number of pairs to scan (0 = config value)")
	balanceFlag := flag.Float64("balance", -1, "balance to size against instead of reading the account")
	showConfig := flag.Bool("show-config", false, "print the effective configuration before scanning")
	flag.Parse()

	_ = godotenv.Load(".env")
	_ = godotenv.Load("../../.env")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *showConfig {
		config.DisplayConfiguration(os.Stdout, cfg)
	}
	if *pairs > 0 {
		cfg.Scanner.MaxPairs = *pairs
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mexc := datafeed.NewMEXCClient(cfg.Exchange)
	selector := scanner.NewUniverseSelector(mexc, cfg.Scanner)
	analyzer := scanner.NewAnalyzer(mexc, indicators.NewEngine(), signals.NewAntiHypeFilter(mexc, cfg.Filter), cfg.Scanner)

	balance := decimal.NewFromFloat(*balanceFlag)
	if *balanceFlag < 0 {
		balance, err = mexc.GetFreeBalance(ctx, cfg.Scanner.QuoteAsset)
		if err != nil {
			log.Printf("⚠️  Balance check failed, assuming 0: %v", err)
			balance = decimal.Zero
		}
	}

	fmt.Println("Fetching market universe...")
	candidates := selector.Select(ctx, cfg.Scanner.MaxPairs)
	fmt.Printf("Analyzing %d pairs with %d workers...\n", len(candidates), scanner.WorkerCount(cfg.Scanner.Workers, len(candidates)))

	scan := analyzer.Analyze(ctx, scanner.Symbols(candidates))
	printScan(&scan)

	decision := risk.NewGate(risk.LimitsFromConfig(cfg)).Plan(balance, &scan, false)
	fmt.Println("\n" + formatting.Separator(80))
	fmt.Printf("Balance: %s\n", formatting.Money(balance))
	fmt.Printf("Decision: %s\n", decision)
	fmt.Println(formatting.Separator(80))
}

func printScan(scan *types.ScanResult) {
	fmt.Println("\n" + formatting.Separator(80))
	fmt.Printf("SCAN RESULT  %d/%d analyzed, %d errors\n", scan.AnalyzedCount, scan.TotalCount, len(scan.ErrorSymbols))
	fmt.Println(formatting.Separator(80))

	printGroup("BUY", scan.BuyOpportunities, 10)
	printGroup("NEUTRAL", scan.NeutralPairs, 5)
	printGroup("BLOCKED", scan.BlockedPairs, 5)

	if len(scan.ErrorSymbols) > 0 {
		fmt.Printf("\nErrors: %s\n", formatting.FirstN(scan.ErrorSymbols, 10))
	}
}

func printGroup(title string, opps []types.Opportunity, n int) {
	fmt.Printf("\n%s (%d)\n", title, len(opps))
	for i, opp := range opps {
		if i >= n {
			break
		}
		fmt.Printf(" %2d. %-12s score %+3d %-12s conf %s  price %s\n",
			i+1, opp.Symbol, opp.Score, scoring.ScoreCategory(opp.Score), formatting.Percent(opp.Confidence), formatting.Price(opp.Price))
		if !opp.Permission.Allowed {
			fmt.Printf("     blocked: %s\n", opp.Permission.Reason)
			continue
		}
		r := formatting.BuildReasoning(opp)
		fmt.Printf("     %s\n     -> %s\n", formatting.FirstN(r.Why, 2), r.Forecast)
	}
}
