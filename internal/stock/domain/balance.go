package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AvgCostPlaces is the scale the weighted-average unit cost is stored at.
// Intermediate arithmetic is exact; only the persisted average is rounded.
const AvgCostPlaces = 6

// BalanceKey identifies one stock balance row within a tenant
type BalanceKey struct {
	Company   string
	Branch    string
	Warehouse string
	Item      string
}

// StockBalance is the running quantity and weighted-average unit cost for
// one warehouse/item pair. quantity * avg_unit_cost approximates total
// inventory value; the average changes only on inbound movements.
type StockBalance struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Company     string          `json:"company" gorm:"size:100;not null;uniqueIndex:idx_balance_key,priority:1"`
	Branch      string          `json:"branch" gorm:"size:100;not null;uniqueIndex:idx_balance_key,priority:2"`
	Warehouse   string          `json:"warehouse" gorm:"size:100;not null;uniqueIndex:idx_balance_key,priority:3"`
	Item        string          `json:"item" gorm:"size:60;not null;uniqueIndex:idx_balance_key,priority:4"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:decimal(20,6);not null"`
	AvgUnitCost decimal.Decimal `json:"avg_unit_cost" gorm:"type:decimal(20,6);not null"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName specifies the table name
func (StockBalance) TableName() string {
	return "stock_balances"
}

// Key returns the composite key of the balance row
func (b *StockBalance) Key() BalanceKey {
	return BalanceKey{Company: b.Company, Branch: b.Branch, Warehouse: b.Warehouse, Item: b.Item}
}

// WeightedAverage recomputes the blended unit cost after an inbound of qty
// at unitCost. This is a moving weighted average, not FIFO/LIFO: lot-level
// cost granularity is intentionally collapsed into a single rate.
func WeightedAverage(current StockBalance, qty, unitCost decimal.Decimal) decimal.Decimal {
	newQty := current.Quantity.Add(qty)
	if !newQty.IsPositive() {
		return decimal.Zero
	}
	existing := current.Quantity.Mul(current.AvgUnitCost)
	incoming := qty.Mul(unitCost)
	return existing.Add(incoming).DivRound(newQty, AvgCostPlaces)
}
