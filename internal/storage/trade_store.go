// Package storage persists the trade journal and process metadata in SQLite.
// The in-memory risk window stays authoritative; this store exists so a
// restart does not reset daily limits and cooldowns, and to back /trades.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/markremover/futures-oracle/internal/domain"
)

// TradeStore handles persistent storage of trade records in SQLite.
type TradeStore struct {
	db *sql.DB
}

// NewTradeStore opens (or creates) the database with WAL mode enabled.
func NewTradeStore(dbPath string) (*TradeStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			pair TEXT NOT NULL,
			side TEXT NOT NULL,
			opened_at INTEGER NOT NULL,
			closed_at INTEGER,
			result TEXT NOT NULL DEFAULT 'PENDING',
			pnl_usd REAL NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create trades table: %w", err)
	}
	if _, err = db.Exec("CREATE INDEX IF NOT EXISTS idx_trades_opened_at ON trades(opened_at);"); err != nil {
		return nil, fmt.Errorf("failed to create trades index: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata table: %w", err)
	}

	return &TradeStore{db: db}, nil
}

// Insert stores a freshly opened trade record.
func (s *TradeStore) Insert(rec domain.TradeRecord) error {
	_, err := s.db.Exec(
		"INSERT INTO trades (id, pair, side, opened_at, result, pnl_usd) VALUES (?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Pair, string(rec.Side), rec.OpenedAt.UnixMilli(), string(rec.Result), rec.PnLUSD,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// MarkClosed records the outcome of a pending trade.
func (s *TradeStore) MarkClosed(id string, result domain.TradeResult, pnlUSD float64, at time.Time) error {
	_, err := s.db.Exec(
		"UPDATE trades SET result = ?, pnl_usd = ?, closed_at = ? WHERE id = ?",
		string(result), pnlUSD, at.UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to close trade: %w", err)
	}
	return nil
}

// LoadSince returns all trades opened at or after the cutoff, oldest first.
// Used to reseed the risk gate's rolling window at startup.
func (s *TradeStore) LoadSince(ctx context.Context, cutoff time.Time) ([]domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, pair, side, opened_at, closed_at, result, pnl_usd FROM trades WHERE opened_at >= ? ORDER BY opened_at ASC",
		cutoff.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var records []domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		var side, result string
		var openedAt int64
		var closedAt sql.NullInt64

		if err := rows.Scan(&rec.ID, &rec.Pair, &side, &openedAt, &closedAt, &result, &rec.PnLUSD); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		rec.Side = domain.Side(side)
		rec.Result = domain.TradeResult(result)
		rec.OpenedAt = time.UnixMilli(openedAt)
		if closedAt.Valid {
			rec.ClosedAt = time.UnixMilli(closedAt.Int64)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return records, nil
}

// UpsertMetadata saves a key-value pair to the metadata table.
func (s *TradeStore) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	return err
}

// GetMetadata retrieves a value from the metadata table. Missing keys return
// an empty string, not an error.
func (s *TradeStore) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Close closes the database connection.
func (s *TradeStore) Close() error {
	return s.db.Close()
}
