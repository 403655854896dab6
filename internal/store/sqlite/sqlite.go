// Package sqlite implements the store.Store surface on top of
// modernc.org/sqlite: a single-connection pool with WAL, busy_timeout and
// foreign_keys pragmas, and a schema managed by versioned goose
// migrations embedded in the binary.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"tableengine/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const defaultLocalDBName = "tableengine_local.db"

// Store is the SQLite-backed store.Store implementation.
type Store struct {
	db *sql.DB
}

// NewStoreFromEnv opens (creating if necessary) the local SQLite database
// at TABLEENGINE_SQLITE_PATH, or ./tableengine_local.db by default.
func NewStoreFromEnv() (*Store, error) {
	path := strings.TrimSpace(os.Getenv("TABLEENGINE_SQLITE_PATH"))
	if path == "" {
		path = defaultLocalDBName
	}
	return NewStore(path)
}

// NewStore opens a SQLite store at dbPath ("" and ":memory:" both mean an
// in-process database).
func NewStore(dbPath string) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		dbPath = ":memory:"
	}
	if dbPath != ":memory:" {
		if parent := filepath.Dir(dbPath); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTable inserts a new poker table row outside of any per-table Tx —
// it runs before the table exists, so there is nothing to serialize
// against yet.
func (s *Store) CreateTable(ctx context.Context, t *store.PokerTable) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO poker_tables (id, name, dealer_id, small_blind, big_blind, max_seats, step_seconds, blind_mult, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, t.ID, t.Name, t.DealerID, t.SmallBlind, t.BigBlind, t.MaxSeats, t.StepSeconds, t.BlindMult, nowMs())
	return err
}

func (s *Store) Begin(ctx context.Context, tableID string) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, tableID: tableID}, nil
}
