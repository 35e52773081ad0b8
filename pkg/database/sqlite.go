package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteConfig holds SQLite connection configuration.
type SQLiteConfig struct {
	// Path of the database file. ":memory:" opens a private in-memory database.
	Path        string
	BusyTimeout time.Duration
	// MaxOpenConns caps the pool. SQLite serialises writers anyway.
	MaxOpenConns int
}

// DefaultSQLiteConfig returns defaults for a single-user local store.
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:         path,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
	}
}

// DSN returns the modernc.org/sqlite data source name with WAL journaling,
// a busy timeout and NORMAL synchronous mode.
func (c SQLiteConfig) DSN() string {
	if c.Path == ":memory:" {
		return "file::memory:?_pragma=busy_timeout(5000)"
	}
	busy := c.BusyTimeout.Milliseconds()
	if busy <= 0 {
		busy = 5000
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		filepath.ToSlash(filepath.Clean(c.Path)), busy)
}

const (
	defaultRetryAttempts = 3
	defaultRetryBaseWait = 200 * time.Millisecond
	retryJitterFraction  = 0.25
)

// retryBackoff returns the backoff for attempt (0-indexed) with ±25% jitter.
func retryBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := defaultRetryBaseWait << attempt
	jitter := time.Duration(float64(base) * retryJitterFraction * (2*rand.Float64() - 1)) // #nosec G404 -- retry jitter
	return base + jitter
}

// isBusyError reports whether err is SQLite lock contention, which is worth
// retrying, as opposed to a schema or constraint error.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}

// OpenSQLite opens the database, creating the parent directory when needed,
// and verifies it with a ping. A busy database is retried a few times since
// another storefront process may hold the write lock briefly.
func OpenSQLite(ctx context.Context, cfg SQLiteConfig, logger *slog.Logger) (*sql.DB, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if cfg.Path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	var lastErr error
	for attempt := 0; attempt < defaultRetryAttempts; attempt++ {
		if lastErr = db.PingContext(ctx); lastErr == nil {
			return db, nil
		}
		if !isBusyError(lastErr) || attempt == defaultRetryAttempts-1 {
			break
		}
		wait := retryBackoff(attempt)
		if logger != nil {
			logger.Warn("sqlite busy, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", defaultRetryAttempts),
				slog.Duration("backoff", wait),
			)
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("ping sqlite db: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	_ = db.Close()
	return nil, fmt.Errorf("ping sqlite db: %w", lastErr)
}
