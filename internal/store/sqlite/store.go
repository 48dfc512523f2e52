// Package sqlite provides the strategy and signal persistence used by the
// registry, the emission sink, and the signal monitor.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a single SQLite database holding strategies and signals.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates the Store, initializes WAL mode, and ensures the schema.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Info("sqlite store opened", "path", path)
	return &Store{db: db, log: log}, nil
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS strategies (
			id         TEXT    PRIMARY KEY,
			name       TEXT    NOT NULL,
			symbol     TEXT    NOT NULL,
			timeframe  TEXT    NOT NULL DEFAULT '1m',
			segment    TEXT,
			is_system  INTEGER NOT NULL DEFAULT 0,
			action     TEXT,
			rules      TEXT    NOT NULL DEFAULT '{"condition":"AND","rules":[]}',
			active     INTEGER NOT NULL DEFAULT 1,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE INDEX IF NOT EXISTS idx_strategies_symbol ON strategies(symbol) WHERE active = 1;

		CREATE TABLE IF NOT EXISTS signals (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			strategy_id  TEXT    NOT NULL,
			symbol       TEXT    NOT NULL,
			segment      TEXT,
			direction    TEXT    NOT NULL,
			entry_price  REAL    NOT NULL,
			stop_loss    REAL    NOT NULL,
			targets      TEXT    NOT NULL DEFAULT '[]',
			reason       TEXT,
			status       TEXT    NOT NULL DEFAULT 'Active',
			exit_price   REAL,
			generated_at INTEGER NOT NULL,
			closed_at    INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_signals_open ON signals(symbol) WHERE status = 'Active';

		CREATE TABLE IF NOT EXISTS candles (
			symbol         TEXT    NOT NULL,
			bucket_seconds INTEGER NOT NULL,
			bucket_start   INTEGER NOT NULL,
			open           REAL    NOT NULL,
			high           REAL    NOT NULL,
			low            REAL    NOT NULL,
			close          REAL    NOT NULL,
			PRIMARY KEY (symbol, bucket_seconds, bucket_start)
		);
	`)
	return err
}
