package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/apperror"
	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type contextKey string

const txKey contextKey = "tx"

// DefaultMaxRetries is how often a conflicting transaction is re-run before the conflict is surfaced
const DefaultMaxRetries = 3

// DB wraps sql.DB and implements TransactionManager.
// The pool must be opened with _txlock=immediate so every transaction takes the
// write lock at BEGIN and concurrent decisions are serialized.
type DB struct {
	*sql.DB
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

// Option configures DB
type Option func(*DB)

// WithMaxRetries sets the number of retries for conflicting transactions
func WithMaxRetries(n int) Option {
	return func(db *DB) {
		if n >= 0 {
			db.maxRetries = n
		}
	}
}

// WithRetryDelay sets the base delay between retries
func WithRetryDelay(d time.Duration) Option {
	return func(db *DB) {
		db.retryDelay = d
	}
}

// NewDB creates a new database wrapper
func NewDB(sqlDB *sql.DB, logger *zap.Logger, opts ...Option) *DB {
	db := &DB{
		DB:         sqlDB,
		logger:     logger,
		maxRetries: DefaultMaxRetries,
		retryDelay: 20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// WithTransaction implements port.TransactionManager.
// Nested calls join the outer transaction. An outermost unit that fails with a
// concurrency conflict is re-run from scratch up to maxRetries times.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := extractTx(ctx); tx != nil {
		return fn(ctx)
	}

	var err error
	for attempt := 0; attempt <= db.maxRetries; attempt++ {
		if attempt > 0 {
			db.logger.Warn("Retrying transaction after conflict",
				zap.Int("attempt", attempt),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * db.retryDelay):
			}
		}

		err = db.runOnce(ctx, fn)
		if err == nil || !apperror.IsConflict(err) {
			return err
		}
	}

	return err
}

func (db *DB) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return TranslateError("transaction", fmt.Errorf("failed to begin transaction: %w", err))
	}

	txCtx := context.WithValue(ctx, txKey, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return TranslateError("transaction", err)
	}

	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return TranslateError("transaction", fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// extractTx retrieves transaction from context if present
func extractTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ExecutorFrom returns the transaction carried by ctx, or db when there is none
func ExecutorFrom(ctx context.Context, db *sql.DB) Executor {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return db
}

// TranslateError turns SQLite busy/locked failures into ConcurrencyConflictError.
// Other errors are returned unchanged.
func TranslateError(resource string, err error) error {
	if err == nil || apperror.IsConflict(err) {
		return err
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return &apperror.ConcurrencyConflictError{Resource: resource, Cause: err}
		}
	}
	return err
}

// Verify interface compliance
var _ port.TransactionManager = (*DB)(nil)
