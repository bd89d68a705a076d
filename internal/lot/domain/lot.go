package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInsufficientLotStock is returned when active lots cannot cover an
// outbound quantity and negatives are not allowed.
var ErrInsufficientLotStock = errors.New("insufficient lot stock")

// Lot is one tracked batch of an item. Lot numbers are minted per product
// through the sequence generator.
type Lot struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	Company    string          `json:"company" gorm:"size:100;not null;uniqueIndex:idx_lot_key,priority:1"`
	Branch     string          `json:"branch" gorm:"size:100;not null;uniqueIndex:idx_lot_key,priority:2"`
	Product    string          `json:"product" gorm:"size:60;not null;uniqueIndex:idx_lot_key,priority:3"`
	Number     int64           `json:"number" gorm:"not null;uniqueIndex:idx_lot_key,priority:4"`
	UnitCost   decimal.Decimal `json:"unit_cost" gorm:"type:decimal(20,6);not null"`
	Balance    decimal.Decimal `json:"balance" gorm:"type:decimal(20,6);not null"`
	Active     bool            `json:"active" gorm:"not null;default:true"`
	ExpiresAt  *time.Time      `json:"expires_at"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TableName specifies the table name
func (Lot) TableName() string {
	return "stock_lots"
}

// Consume drains qty from lots oldest-first, mutating their balances in
// place. When the active balance cannot cover qty and allowNegative is
// false it fails without touching anything; otherwise the shortfall lands
// on the newest lot. Returns the lots that changed.
func Consume(lots []*Lot, qty decimal.Decimal, allowNegative bool) ([]*Lot, error) {
	available := decimal.Zero
	for _, l := range lots {
		if l.Active {
			available = available.Add(l.Balance)
		}
	}
	if !allowNegative && available.LessThan(qty) {
		return nil, ErrInsufficientLotStock
	}

	remaining := qty
	var touched []*Lot
	for _, l := range lots {
		if !l.Active || remaining.IsZero() {
			continue
		}
		take := decimal.Min(l.Balance, remaining)
		if take.IsPositive() {
			l.Balance = l.Balance.Sub(take)
			remaining = remaining.Sub(take)
			touched = append(touched, l)
		}
	}

	if remaining.IsPositive() {
		// Negatives allowed: the shortfall goes to the newest active lot.
		for i := len(lots) - 1; i >= 0; i-- {
			if !lots[i].Active {
				continue
			}
			lots[i].Balance = lots[i].Balance.Sub(remaining)
			if !containsLot(touched, lots[i]) {
				touched = append(touched, lots[i])
			}
			remaining = decimal.Zero
			break
		}
		if remaining.IsPositive() {
			return nil, ErrInsufficientLotStock
		}
	}
	return touched, nil
}

func containsLot(lots []*Lot, target *Lot) bool {
	for _, l := range lots {
		if l == target {
			return true
		}
	}
	return false
}
