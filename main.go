package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fazecat/mogulscan/Internal/api"
	datafeed "github.com/fazecat/mogulscan/Internal/database"
	"github.com/fazecat/mogulscan/Internal/handlers/monitoring"
	"github.com/fazecat/mogulscan/Internal/handlers/notify"
	"github.com/fazecat/mogulscan/Internal/handlers/risk"
	"github.com/fazecat/mogulscan/Internal/strategy"
	"github.com/fazecat/mogulscan/Internal/strategy/indicators"
	"github.com/fazecat/mogulscan/Internal/strategy/signals"
	"github.com/fazecat/mogulscan/Internal/utils/config"
	"github.com/fazecat/mogulscan/Internal/utils/scanner"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables only")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mexc := datafeed.NewMEXCClient(cfg.Exchange)
	log.Printf("✅ MEXC client ready (%s)", cfg.Exchange.BaseURL)

	var account monitoring.Account = mexc
	var placer strategy.OrderPlacer = mexc
	if cfg.Execution.Venue == config.VenueAlpacaPaper {
		trader, err := datafeed.NewAlpacaTrader(cfg.Execution)
		if err != nil {
			log.Fatalf("Failed to initialize Alpaca paper venue: %v", err)
		}
		account, placer = trader, trader
		log.Println("✅ Purchases routed to Alpaca paper account")
	}
	if cfg.Execution.DryRun {
		log.Println("🧪 Dry run: no orders will be placed")
	}

	var journal *datafeed.Journal
	if cfg.Database.Enabled {
		journal, err = datafeed.OpenJournal(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to open journal database: %v", err)
		}
		defer journal.Close()
		log.Println("✅ Journal database connected")
	}

	filter := signals.NewAntiHypeFilter(mexc, cfg.Filter)
	components := monitoring.Components{
		Selector: scanner.NewUniverseSelector(mexc, cfg.Scanner),
		Analyzer: scanner.NewAnalyzer(mexc, indicators.NewEngine(), filter, cfg.Scanner),
		Account:  account,
		Gate:     risk.NewGate(risk.LimitsFromConfig(cfg)),
		Executor: strategy.NewOrderResolver(mexc, placer, cfg.Execution.DryRun),
		Notifier: notify.NewTelegram(cfg.Telegram),
	}
	if journal != nil {
		components.Journal = journal
	}

	sched := monitoring.NewScheduler(components, cfg)

	if cfg.API.Enabled {
		statusAPI := &api.API{
			Status:     sched,
			Purchases:  sched.History(),
			JWTManager: api.NewJWTManager(cfg.API.JWTSecret),
			AdminKey:   cfg.API.AdminKey,
		}
		if journal != nil {
			statusAPI.Purchases = journal
			statusAPI.HealthCheck = journal.HealthCheck
		}
		go func() {
			if err := api.Serve(ctx, cfg.API.Addr, api.NewRouter(statusAPI)); err != nil {
				log.Printf("❌ Status API stopped: %v", err)
			}
		}()
	}

	if err := sched.Run(ctx); err != nil {
		log.Printf("❌ Scanner exited: %v", err)
	}
	log.Println("Goodbye!")
}
