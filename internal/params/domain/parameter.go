package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when no row exists for a parameter key
var ErrNotFound = errors.New("parameter not found")

// Parameter keys consumed by the stock core
const (
	KeyStockControlEnabled  = "stock_control_enabled"
	KeyAllowNegativeStock   = "allow_negative_stock"
	KeyLotTrackingEnabled   = "lot_tracking_enabled"
	KeyOrdersMoveStock      = "orders_move_stock"
	KeyQuotesMoveStock      = "quotes_move_stock"
	KeyProductionMovesStock = "production_moves_stock"
)

// Spec describes one registered parameter and its built-in default
type Spec struct {
	Default     interface{}
	Description string
}

// Registry is the static set of parameters the core ships with. Absent
// database rows fall back to these defaults.
var Registry = map[string]Spec{
	KeyStockControlEnabled:  {Default: true, Description: "Stock movements mutate balances"},
	KeyAllowNegativeStock:   {Default: false, Description: "Outbound movements may drive quantity below zero"},
	KeyLotTrackingEnabled:   {Default: false, Description: "Movements allocate and consume lot records"},
	KeyOrdersMoveStock:      {Default: true, Description: "Sales orders generate stock movements"},
	KeyQuotesMoveStock:      {Default: false, Description: "Quotes generate stock movements"},
	KeyProductionMovesStock: {Default: true, Description: "Production orders generate stock movements"},
}

// Parameter is one per-tenant configuration row, keyed by company, branch
// and parameter key; values are JSON-encoded.
type Parameter struct {
	ID        uint      `gorm:"primaryKey"`
	Company   string    `gorm:"size:100;not null;uniqueIndex:idx_param_key,priority:1"`
	Branch    string    `gorm:"size:100;not null;uniqueIndex:idx_param_key,priority:2"`
	Key       string    `gorm:"size:100;not null;uniqueIndex:idx_param_key,priority:3"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName specifies the table name
func (Parameter) TableName() string {
	return "parameters"
}

// ChangeLog is one audit row recorded for parameter writes
type ChangeLog struct {
	ID        uint      `gorm:"primaryKey"`
	Table     string    `gorm:"column:table_name;size:100;not null"`
	RecordKey string    `gorm:"size:200;not null"`
	Action    string    `gorm:"size:20;not null"`
	OldValue  string    `gorm:"type:text"`
	NewValue  string    `gorm:"type:text"`
	Actor     string    `gorm:"size:100"`
	CreatedAt time.Time
}

// TableName specifies the table name
func (ChangeLog) TableName() string {
	return "parameter_logs"
}

// Store defines the contract for parameter persistence
type Store interface {
	// Get returns the JSON value for a key or ErrNotFound.
	Get(ctx context.Context, company, branch, key string) (json.RawMessage, error)

	// Put upserts the JSON value for a key and returns the previous value
	// when one existed.
	Put(ctx context.Context, company, branch, key string, value json.RawMessage) (json.RawMessage, error)

	// EnsureDefaults creates missing rows for every registered parameter.
	// Idempotent. Returns the number created.
	EnsureDefaults(ctx context.Context, company, branch string) (int, error)

	// AppendLog records an audit entry for a parameter write.
	AppendLog(ctx context.Context, entry ChangeLog) error
}
