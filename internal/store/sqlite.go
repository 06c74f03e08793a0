package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/healthguard/internal/domain"
	"github.com/ashureev/healthguard/internal/shared"
	_ "modernc.org/sqlite"
)

const defaultListLimit = 50

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serialises writers to keep SQLITE_BUSY rare
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		query TEXT NOT NULL,
		verdict TEXT,
		outcome TEXT NOT NULL,
		error TEXT,
		latency_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, id);
	CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordExchange appends one exchange.
// Retries with exponential backoff when the database is locked.
func (s *SQLiteStore) RecordExchange(ctx context.Context, ex *domain.Exchange) error {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}

	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		id, err := s.insertExchangeOnce(ctx, ex)
		if err == nil {
			ex.ID = id
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms
			slog.Debug("RecordExchange hit a locked database, retrying",
				"session_id", ex.SessionID,
				"attempt", i+1,
				"delay", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return fmt.Errorf("record exchange: %w", ctx.Err())
			}
		}

		return fmt.Errorf("record exchange after %d attempts: %w", i+1, err)
	}

	return nil
}

func (s *SQLiteStore) insertExchangeOnce(ctx context.Context, ex *domain.Exchange) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query := `
	INSERT INTO exchanges (user_id, session_id, query, verdict, outcome, error, latency_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		ex.UserID, ex.SessionID, ex.Query,
		nullString(ex.Verdict), string(ex.Outcome), nullString(ex.Error),
		ex.LatencyMS, ex.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert exchange: %w", err)
	}
	return result.LastInsertId()
}

// ListExchanges returns the most recent exchanges of a session, newest first.
func (s *SQLiteStore) ListExchanges(ctx context.Context, sessionID string, limit int) ([]*domain.Exchange, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, user_id, session_id, query, verdict, outcome, error, latency_ms, created_at
		FROM exchanges WHERE session_id = ? ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close exchange rows", "error", closeErr)
		}
	}()

	var out []*domain.Exchange
	for rows.Next() {
		var ex domain.Exchange
		var verdict, errText sql.NullString
		var outcome string
		var createdAt int64

		if err := rows.Scan(
			&ex.ID, &ex.UserID, &ex.SessionID, &ex.Query,
			&verdict, &outcome, &errText, &ex.LatencyMS, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan exchange row: %w", err)
		}

		ex.Verdict = verdict.String
		ex.Error = errText.String
		ex.Outcome = domain.Outcome(outcome)
		ex.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, &ex)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}

	return out, nil
}

// CleanupExpired removes exchanges older than ttl.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	threshold := time.Now().Add(-ttl).UnixMilli()
	result, err := s.db.ExecContext(ctx, `DELETE FROM exchanges WHERE created_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired exchanges: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
