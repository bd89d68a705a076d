package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsRetryable(t *testing.T) {
	retryable := []error{
		&pgconn.PgError{Code: "40001"},
		&pgconn.PgError{Code: "40P01"},
		&pgconn.PgError{Code: "55P03"},
		&pq.Error{Code: "40001"},
		&pq.Error{Code: "40P01"},
		errors.New("deadlock detected"),
		errors.New("could not serialize access due to concurrent update"),
		fmt.Errorf("apply movement: %w", &pgconn.PgError{Code: "40001"}),
	}
	for _, err := range retryable {
		if !IsRetryable(err) {
			t.Errorf("IsRetryable(%v) = false, want true", err)
		}
	}

	permanent := []error{
		nil,
		errors.New("permission denied"),
		&pgconn.PgError{Code: "23505"},
		&pq.Error{Code: "42601"},
	}
	for _, err := range permanent {
		if IsRetryable(err) {
			t.Errorf("IsRetryable(%v) = true, want false", err)
		}
	}
}

func TestIsDuplicateObject(t *testing.T) {
	duplicates := []error{
		&pgconn.PgError{Code: "42P07"},
		&pgconn.PgError{Code: "42710"},
		&pq.Error{Code: "42P07"},
		errors.New(`pq: relation "licenses_web" already exists`),
		fmt.Errorf("failed to create licenses table: %w", &pgconn.PgError{Code: "42P07"}),
	}
	for _, err := range duplicates {
		if !IsDuplicateObject(err) {
			t.Errorf("IsDuplicateObject(%v) = false, want true", err)
		}
	}

	other := []error{
		nil,
		errors.New("connection refused"),
		&pgconn.PgError{Code: "40001"},
	}
	for _, err := range other {
		if IsDuplicateObject(err) {
			t.Errorf("IsDuplicateObject(%v) = true, want false", err)
		}
	}
}
