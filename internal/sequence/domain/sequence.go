package domain

import (
	"context"
	"errors"
	"time"
)

// ErrRetriesExhausted is returned when a sequence transaction keeps
// conflicting past the retry budget.
var ErrRetriesExhausted = errors.New("sequence retries exhausted")

// Well-known scope types
const (
	ScopeProduct = "PRODUCT"
	ScopeLot     = "LOT"
)

// Scope identifies one counter within a tenant: a scope type plus an
// optional qualifier (e.g. the product code for per-product lot numbers).
type Scope struct {
	Type      string
	Qualifier string
}

// Counter is one row of the per-tenant sequence table. Values issued for a
// fixed key are strictly increasing by 1 with no duplicates and no gaps.
type Counter struct {
	ID             uint      `gorm:"primaryKey"`
	Company        string    `gorm:"size:100;not null;uniqueIndex:idx_seq_scope,priority:1"`
	Branch         string    `gorm:"size:100;not null;uniqueIndex:idx_seq_scope,priority:2"`
	ScopeType      string    `gorm:"size:30;not null;uniqueIndex:idx_seq_scope,priority:3"`
	ScopeQualifier string    `gorm:"size:100;not null;default:'';uniqueIndex:idx_seq_scope,priority:4"`
	Current        int64     `gorm:"not null;default:0"`
	UpdatedAt      time.Time
}

// TableName specifies the table name
func (Counter) TableName() string {
	return "sequence_counters"
}

// Generator issues gap-free sequence numbers for one tenant database
type Generator interface {
	// Next returns the next value for the scope, creating the counter at
	// zero on first use. Safe for concurrent callers; callers on different
	// scopes never block each other beyond row-lock granularity.
	Next(ctx context.Context, company, branch string, scope Scope) (int64, error)
}
