package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/example/canteen-reservation/internal/persistence"
	"github.com/example/canteen-reservation/internal/persistence/sqlite/migration"
)

// ConnectionPool manages SQLite database connections with transaction support.
type ConnectionPool struct {
	db    *sqlx.DB
	retry *RetryHelper
}

// NewConnectionPool opens a SQLite database for the provided DSN. The pool is
// capped at a single open connection: SQLite serializes writers anyway, and a
// single connection turns "database is locked" races into queueing. Lock
// errors that still surface, for example from another process holding the
// file, are retried with backoff.
func NewConnectionPool(dsn string) (*ConnectionPool, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &ConnectionPool{db: db, retry: NewRetryHelper(DefaultRetryConfig())}, nil
}

// DB returns the underlying sqlx handle.
func (cp *ConnectionPool) DB() *sqlx.DB {
	return cp.db
}

// Close closes the connection pool.
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Ping tests the database connection.
func (cp *ConnectionPool) Ping(ctx context.Context) error {
	return cp.db.PingContext(ctx)
}

// Migrate applies all pending schema migrations.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	return migration.Apply(ctx, cp.db.DB)
}

// TransactionFunc represents a function that executes within a transaction.
type TransactionFunc func(tx *sqlx.Tx) error

// WithTransaction executes a function within a database transaction. If the
// function returns an error or panics the transaction is rolled back,
// otherwise it is committed. Transient lock failures re-run the whole
// transaction; every repository operation is written to be idempotent on
// retry, so a re-run either succeeds once or surfaces the same sentinel.
func (cp *ConnectionPool) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	if cp.retry == nil {
		return cp.runTransaction(ctx, fn)
	}
	return cp.retry.WithRetry(ctx, func() error {
		return cp.runTransaction(ctx, fn)
	})
}

func (cp *ConnectionPool) runTransaction(ctx context.Context, fn TransactionFunc) error {
	tx, err := cp.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ErrorMapper maps SQLite errors to persistence layer sentinels.
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper.
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError maps SQLite specific errors to the persistence sentinels, leaving
// unrecognised errors untouched.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	errStr := err.Error()

	if containsAny(errStr, []string{"UNIQUE constraint failed", "PRIMARY KEY constraint failed"}) {
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	}
	if containsAny(errStr, []string{"FOREIGN KEY constraint failed", "foreign key constraint"}) {
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	}
	if containsAny(errStr, []string{"CHECK constraint failed", "NOT NULL constraint failed"}) {
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}

	return err
}

// IsRetryable reports whether the error is a transient lock contention
// failure that is safe to retry at the operation level.
func (em *ErrorMapper) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(), []string{"database is locked", "database table is locked", "SQLITE_BUSY"})
}

func containsAny(s string, substrings []string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// RetryConfig configures retry behavior for transient database failures.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a retry configuration with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryHelper retries operations that fail with transient lock errors. Both
// submission and confirmation are idempotent on retry, so re-running the
// whole operation is safe.
type RetryHelper struct {
	config RetryConfig
	mapper *ErrorMapper
}

// NewRetryHelper creates a new retry helper.
func NewRetryHelper(config RetryConfig) *RetryHelper {
	return &RetryHelper{config: config, mapper: NewErrorMapper()}
}

// RetryableFunc represents a function that can be retried.
type RetryableFunc func() error

// WithRetry executes fn, retrying with exponential backoff while it fails
// with a transient lock error. The last error is returned once retries are
// exhausted.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn RetryableFunc) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
			if delay > rh.config.MaxDelay {
				delay = rh.config.MaxDelay
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !rh.mapper.IsRetryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("retries exhausted: %w", lastErr)
}
