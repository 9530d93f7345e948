package datafeed

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/fazecat/mogulscan/Internal/utils/config"
	_ "github.com/lib/pq"
)

// Journal is an append-only Postgres audit log of scans and purchase attempts.
// The engine never reads it back.
type Journal struct {
	db *sql.DB
}

func ConnectionString(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

func OpenJournal(ctx context.Context, cfg config.DatabaseConfig) (*Journal, error) {
	db, err := sql.Open("postgres", ConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	j := &Journal{db: db}
	if err := j.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	log.Println("🗄️  Journal database connected")
	return j, nil
}

func (j *Journal) initializeSchema(ctx context.Context) error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS scan_runs (
		id SERIAL PRIMARY KEY,
		scan_number INTEGER NOT NULL,
		analyzed_count INTEGER NOT NULL,
		total_count INTEGER NOT NULL,
		buy_count INTEGER NOT NULL,
		neutral_count INTEGER NOT NULL,
		blocked_count INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		top_symbol TEXT,
		top_score INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS purchase_attempts (
		id SERIAL PRIMARY KEY,
		symbol TEXT NOT NULL,
		usdt_amount TEXT NOT NULL,
		score INTEGER NOT NULL,
		confidence REAL NOT NULL,
		success BOOLEAN NOT NULL,
		strategy_used TEXT,
		attempt_index INTEGER NOT NULL,
		order_id TEXT,
		quantity TEXT,
		price TEXT,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_purchase_attempts_symbol ON purchase_attempts(symbol);
	CREATE INDEX IF NOT EXISTS idx_purchase_attempts_created ON purchase_attempts(created_at);
	`

	_, err := j.db.ExecContext(ctx, schemaSQL)
	return err
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) HealthCheck(ctx context.Context) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return j.db.PingContext(ctx)
}
