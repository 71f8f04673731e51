// Package store persists trades and sessions to an embedded SQLite database
// and computes P&L analytics on demand. It is append-only: the hot path
// never reads this package's tables before writing.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/polycopy/trader/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	start_time       DATETIME NOT NULL,
	end_time         DATETIME,
	mode             TEXT NOT NULL,
	detection_method TEXT NOT NULL,
	leader_address   TEXT NOT NULL,
	poll_count       INTEGER NOT NULL DEFAULT 0,
	trades_detected  INTEGER NOT NULL DEFAULT 0,
	trades_executed  INTEGER NOT NULL DEFAULT 0,
	total_pnl        REAL NOT NULL DEFAULT 0,
	start_balance    REAL NOT NULL,
	end_balance      REAL
);

CREATE TABLE IF NOT EXISTS trades (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id        INTEGER NOT NULL,
	token_id          TEXT NOT NULL,
	market_id         TEXT NOT NULL,
	side              TEXT NOT NULL,
	size              REAL NOT NULL,
	fill_price        REAL NOT NULL,
	cost              REAL NOT NULL,
	pnl               REAL,
	status            TEXT NOT NULL,
	detection_latency_ms INTEGER NOT NULL,
	execution_latency_ms INTEGER NOT NULL,
	total_latency_ms     INTEGER NOT NULL,
	calibrated        INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_session ON trades(session_id);
CREATE INDEX IF NOT EXISTS idx_trades_token ON trades(token_id);
CREATE INDEX IF NOT EXISTS idx_trades_created_at ON trades(created_at);
`

// Store wraps a database/sql handle over modernc.org/sqlite, the pack's
// pure-Go embedded driver.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) a WAL-mode SQLite database at path and
// applies the schema.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer WAL; avoid SQLITE_BUSY from concurrent writers

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// OpenSession stamps a new session row and returns its id. Exactly one
// session is open at a time in a process, enforced by the caller.
func (s *Store) OpenSession(sess domain.Session) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO sessions (start_time, mode, detection_method, leader_address, start_balance) VALUES (?, ?, ?, ?, ?)`,
		sess.StartTime, string(sess.Mode), sess.DetectionMethod, sess.LeaderAddress, sess.StartBalance,
	)
	if err != nil {
		return 0, fmt.Errorf("store: open session: %w", err)
	}
	return res.LastInsertId()
}

// CloseSession stamps the final stats and end time for a session.
func (s *Store) CloseSession(sessionID int64, endTime time.Time, pollCount, tradesDetected, tradesExecuted int, totalPnL, endBalance float64) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET end_time=?, poll_count=?, trades_detected=?, trades_executed=?, total_pnl=?, end_balance=? WHERE id=?`,
		endTime, pollCount, tradesDetected, tradesExecuted, totalPnL, endBalance, sessionID,
	)
	if err != nil {
		return fmt.Errorf("store: close session: %w", err)
	}
	return nil
}

// RecordTrade inserts a denormalized trade row. Any error is the caller's to
// log; it must never be allowed to abort the hot path (see LogOnError).
func (s *Store) RecordTrade(sessionID int64, rec domain.TradeRecord) error {
	cost := rec.Size * rec.FillPrice
	var pnl sql.NullFloat64
	if rec.PnL != nil {
		pnl = sql.NullFloat64{Float64: *rec.PnL, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO trades (session_id, token_id, market_id, side, size, fill_price, cost, pnl, status,
			detection_latency_ms, execution_latency_ms, total_latency_ms, calibrated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, rec.TokenID, rec.MarketID, string(rec.Side), rec.Size, rec.FillPrice, cost, pnl, string(rec.Status),
		rec.DetectionLatency.Milliseconds(), rec.ExecutionLatency.Milliseconds(), rec.TotalLatency.Milliseconds(),
		boolToInt(rec.Calibrated), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: record trade: %w", err)
	}
	return nil
}

// LogOnError records err if non-nil, the hot path's escape hatch for
// store writes: a persistence failure must never propagate.
func LogOnError(op string, err error) {
	if err != nil {
		log.Printf("store: %s failed: %v", op, err)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
