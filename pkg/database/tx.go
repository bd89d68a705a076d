package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// DefaultTxTimeout bounds every transactional operation so a cancelled or
// stalled caller never leaves a row lock held.
const DefaultTxTimeout = 15 * time.Second

// InTx runs fn inside a transaction with a bounded deadline. The transaction
// rolls back on error or context cancellation.
func InTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTxTimeout)
		defer cancel()
	}
	return db.WithContext(ctx).Transaction(fn)
}

// Postgres error codes that signal a transient locking conflict.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// IsRetryable reports whether err is a transient transaction conflict worth
// retrying (serialization failure, deadlock, lock timeout).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return true
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access")
}

// Postgres error codes raised when concurrent workers create the same object.
const (
	codeDuplicateTable  = "42P07"
	codeDuplicateObject = "42710"
)

// IsDuplicateObject reports whether err means the table or index already
// exists, which happens when multiple workers race the same DDL at startup.
func IsDuplicateObject(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeDuplicateTable, codeDuplicateObject:
			return true
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeDuplicateTable, codeDuplicateObject:
			return true
		}
	}

	return strings.Contains(err.Error(), "already exists")
}
