package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/infrastructure/persistence/sqlite"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// conn returns the transaction carried by ctx, falling back to db
func conn(ctx context.Context, db *sql.DB) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, db)
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// notFoundOr maps sql.ErrNoRows onto a typed NotFoundError
func notFoundOr(err error, entityName string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(entityName, id)
	}
	return err
}

// requireAffected turns a zero-row conditional update into a concurrency conflict
func requireAffected(result sql.Result, resource string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &apperror.ConcurrencyConflictError{Resource: resource}
	}
	return nil
}
