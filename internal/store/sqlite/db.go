// Package sqlite is the persistence layer backing every component: stream
// and EPG source definitions, filters, data-mapping rules, proxies, relay
// profiles, cached logos, and last-known codec probes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/m3uproxy/m3uproxy/internal/apperr"
)

// Config holds the SQLite operational parameters shared by every pooled
// connection: WAL mode is always on, busy_timeout is the driver-level wait
// before a write returns SQLITE_BUSY, and app-level retry in WithRetry is
// the second line of defense against lock contention from concurrent
// pipeline runs.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns the defaults for a single-writer, multi-reader WAL
// database shared by the ingestion scheduler, pipeline orchestrator, and
// HTTP API: a 30-second busy_timeout, matching the "database is locked"
// retry budget the rest of the persistence layer is tuned around.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  30 * time.Second,
		MaxOpenConns: 25,
	}
}

// pragmaDSN builds a modernc.org/sqlite DSN carrying the mandatory pragmas
// as query parameters, so they apply to every connection the pool opens
// rather than needing a per-connection callback.
func pragmaDSN(path string, extra ...string) string {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path,
	)
	for _, p := range extra {
		dsn += "&" + p
	}
	return dsn
}

// ParameterLimit is SQLite's default maximum number of bound parameters per
// statement (SQLITE_MAX_VARIABLE_NUMBER). Batch inserts must clamp their
// batch size so that batchSize*fieldsPerRecord never exceeds this.
const ParameterLimit = 32766

// BatchSize returns the largest number of records per batch insert that
// keeps bound-parameter count within ParameterLimit for a record with the
// given field count.
func BatchSize(fieldsPerRecord int) int {
	if fieldsPerRecord <= 0 {
		return ParameterLimit
	}
	n := ParameterLimit / fieldsPerRecord
	if n < 1 {
		return 1
	}
	return n
}

// DB wraps *sql.DB. The retry-with-jitter policy for transient
// SQLITE_BUSY/SQLITE_LOCKED errors is not part of DB: repositories wrap
// their writes in WithRetry.
type DB struct {
	*sql.DB
}

// Open initializes a SQLite connection pool against path with the
// mandatory pragmas applied to every pooled connection through the DSN,
// and confirms the pool is actually reachable before handing it back.
func Open(path string, cfg Config) (*DB, error) {
	busyTimeoutMS := cfg.BusyTimeout.Milliseconds()
	dsn := pragmaDSN(path, fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeoutMS))

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxOpenConns)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	return &DB{conn}, nil
}

// VerifyIntegrity opens path read-only and runs PRAGMA quick_check (or, when
// full is true, the slower integrity_check), returning the diagnostic rows
// SQLite reports. A single "ok" row is reported as nil diagnostics. Nothing
// in the daemon or the admin CLI calls it.
func VerifyIntegrity(path string, full bool) ([]string, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(2000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open for verification failed: %w", err)
	}
	defer conn.Close()

	check := "quick_check"
	if full {
		check = "integrity_check"
	}

	rows, err := conn.Query("PRAGMA " + check)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s failed: %w", check, err)
	}
	defer rows.Close()

	var diagnostics []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s result: %w", check, err)
		}
		diagnostics = append(diagnostics, line)
	}
	switch {
	case len(diagnostics) == 1 && strings.EqualFold(diagnostics[0], "ok"):
		return nil, nil
	case len(diagnostics) == 0:
		return []string{fmt.Sprintf("%s returned no rows", check)}, nil
	default:
		return diagnostics, nil
	}
}

// retryable reports whether err is a transient SQLite condition worth
// retrying: busy_timeout is the driver's own wait, but under write-heavy
// pipeline publishes a retry loop on top gives a second line of defense
// rather than surfacing a spurious failure to the caller.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// WithRetry runs fn up to 3 attempts in all (the first try plus at most two
// retries) for "database is locked" conditions, with exponential backoff
// plus jitter on transient SQLITE_BUSY/SQLITE_LOCKED errors.
func WithRetry(ctx context.Context, fn func() error) error {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		backoff := time.Duration(1<<uint(attempt)) * 20 * time.Millisecond
		jitter := time.Duration(rand.Int63n(int64(backoff / 2)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}
	return apperr.Database(lastErr, "sqlite: exhausted retries")
}

// ErrNotFound is returned by repository Get methods when no row matches.
var ErrNotFound = errors.New("sqlite: not found")
