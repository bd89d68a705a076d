package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	lotdomain "github.com/spsweb/erp-core/internal/lot/domain"
	seqdomain "github.com/spsweb/erp-core/internal/sequence/domain"
)

// Movement layer errors
var (
	ErrInvalidQuantity   = errors.New("movement quantity must be positive")
	ErrInvalidDirection  = errors.New("movement direction must be in or out")
	ErrUnitCostRequired  = errors.New("unit cost required on inbound movements")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrMovementConflict  = errors.New("movement transaction conflict")
)

// Direction of a stock movement
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// StockMovement is the immutable audit record of one applied movement
type StockMovement struct {
	ID         string          `json:"id" gorm:"size:36;primaryKey"`
	Company    string          `json:"company" gorm:"size:100;not null;index:idx_movement_key,priority:1"`
	Branch     string          `json:"branch" gorm:"size:100;not null;index:idx_movement_key,priority:2"`
	Warehouse  string          `json:"warehouse" gorm:"size:100;not null;index:idx_movement_key,priority:3"`
	Item       string          `json:"item" gorm:"size:60;not null;index:idx_movement_key,priority:4"`
	Direction  Direction       `json:"direction" gorm:"size:3;not null"`
	Quantity   decimal.Decimal `json:"quantity" gorm:"type:decimal(20,6);not null"`
	UnitCost   decimal.Decimal `json:"unit_cost" gorm:"type:decimal(20,6);not null"`
	TotalCost  decimal.Decimal `json:"total_cost" gorm:"type:decimal(20,2);not null"`
	Actor      string          `json:"actor" gorm:"size:100"`
	Reference  string          `json:"reference" gorm:"size:200"`
	LotNumber  *int64          `json:"lot_number,omitempty"`
	OccurredAt time.Time       `json:"occurred_at" gorm:"not null"`
}

// TableName specifies the table name
func (StockMovement) TableName() string {
	return "stock_movements"
}

// MovementHistory is the denormalized copy of a movement kept for reporting
type MovementHistory struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	MovementID string          `json:"movement_id" gorm:"size:36;not null;index"`
	Company    string          `json:"company" gorm:"size:100;not null"`
	Branch     string          `json:"branch" gorm:"size:100;not null"`
	Warehouse  string          `json:"warehouse" gorm:"size:100;not null"`
	Item       string          `json:"item" gorm:"size:60;not null"`
	Direction  Direction       `json:"direction" gorm:"size:3;not null"`
	Quantity   decimal.Decimal `json:"quantity" gorm:"type:decimal(20,6);not null"`
	UnitCost   decimal.Decimal `json:"unit_cost" gorm:"type:decimal(20,6);not null"`
	Actor      string          `json:"actor" gorm:"size:100"`
	Reference  string          `json:"reference" gorm:"size:200"`
	OccurredAt time.Time       `json:"occurred_at" gorm:"not null"`
}

// TableName specifies the table name
func (MovementHistory) TableName() string {
	return "stock_movement_history"
}

// LedgerTx is the scope handed to the movement engine while the balance row
// for one key is locked. Everything done through it commits or rolls back
// atomically with the balance mutation.
type LedgerTx interface {
	// Balance returns the locked balance row, created at zero when absent.
	Balance() *StockBalance

	// UpdateBalance persists the mutated balance row.
	UpdateBalance(b *StockBalance) error

	// InsertMovement appends the immutable movement record.
	InsertMovement(m *StockMovement) error

	// InsertHistory appends the denormalized reporting row.
	InsertHistory(h *MovementHistory) error

	// NextSequence mints a sequence number inside the same transaction.
	NextSequence(scope seqdomain.Scope) (int64, error)

	// ActiveLots returns the active lots for a product, oldest first.
	ActiveLots(product string) ([]*lotdomain.Lot, error)

	// SaveLot persists a created or mutated lot row.
	SaveLot(l *lotdomain.Lot) error
}

// LedgerRepository defines the contract for the stock ledger
type LedgerRepository interface {
	// ApplyLocked runs fn with the balance row for key locked for update.
	// fn's effects are all-or-nothing; an error rolls everything back.
	ApplyLocked(ctx context.Context, key BalanceKey, fn func(tx LedgerTx) error) error

	// Balance reads the current balance row without locking. Returns a
	// zero-valued balance when no row exists.
	Balance(ctx context.Context, key BalanceKey) (*StockBalance, error)

	// Movements lists the movement audit trail for a key, newest first.
	Movements(ctx context.Context, key BalanceKey, limit, offset int) ([]StockMovement, error)
}
