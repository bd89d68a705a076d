package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	lotdomain "github.com/spsweb/erp-core/internal/lot/domain"
	seqdomain "github.com/spsweb/erp-core/internal/sequence/domain"
	seqrepo "github.com/spsweb/erp-core/internal/sequence/repository"
	"github.com/spsweb/erp-core/internal/stock/domain"
	"github.com/spsweb/erp-core/pkg/database"
)

// GormLedgerRepository persists the stock ledger in the tenant database.
// Balance and counter rows are guarded exclusively by row locks scoped to
// their composite keys; there is no optimistic path, since a lost update on
// avg_unit_cost is silent and unrecoverable after the fact.
type GormLedgerRepository struct {
	db *gorm.DB
}

func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

func (r *GormLedgerRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&domain.StockBalance{},
		&domain.StockMovement{},
		&domain.MovementHistory{},
		&lotdomain.Lot{},
	)
}

type gormLedgerTx struct {
	tx      *gorm.DB
	key     domain.BalanceKey
	balance *domain.StockBalance
}

func (t *gormLedgerTx) Balance() *domain.StockBalance {
	return t.balance
}

func (t *gormLedgerTx) UpdateBalance(b *domain.StockBalance) error {
	return t.tx.Model(&domain.StockBalance{}).
		Where("id = ?", b.ID).
		Updates(map[string]interface{}{
			"quantity":      b.Quantity,
			"avg_unit_cost": b.AvgUnitCost,
		}).Error
}

func (t *gormLedgerTx) InsertMovement(m *domain.StockMovement) error {
	return t.tx.Create(m).Error
}

func (t *gormLedgerTx) InsertHistory(h *domain.MovementHistory) error {
	return t.tx.Create(h).Error
}

func (t *gormLedgerTx) NextSequence(scope seqdomain.Scope) (int64, error) {
	return seqrepo.NextInTx(t.tx, t.key.Company, t.key.Branch, scope)
}

func (t *gormLedgerTx) ActiveLots(product string) ([]*lotdomain.Lot, error) {
	var lots []*lotdomain.Lot
	err := t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company = ? AND branch = ? AND product = ? AND active = ?",
			t.key.Company, t.key.Branch, product, true).
		Order("number").
		Find(&lots).Error
	return lots, err
}

func (t *gormLedgerTx) SaveLot(l *lotdomain.Lot) error {
	return t.tx.Save(l).Error
}

func (r *GormLedgerRepository) ApplyLocked(ctx context.Context, key domain.BalanceKey, fn func(tx domain.LedgerTx) error) error {
	return database.InTx(ctx, r.db, func(tx *gorm.DB) error {
		balance, err := lockBalance(tx, key)
		if err != nil {
			return err
		}
		return fn(&gormLedgerTx{tx: tx, key: key, balance: balance})
	})
}

// lockBalance acquires the row lock for key, creating the row at zero when
// absent. The create is conflict-tolerant so two first movements for the
// same key serialize on the winner's row instead of erroring.
func lockBalance(tx *gorm.DB, key domain.BalanceKey) (*domain.StockBalance, error) {
	var balance domain.StockBalance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company = ? AND branch = ? AND warehouse = ? AND item = ?",
			key.Company, key.Branch, key.Warehouse, key.Item).
		Take(&balance).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		balance = domain.StockBalance{
			Company:     key.Company,
			Branch:      key.Branch,
			Warehouse:   key.Warehouse,
			Item:        key.Item,
			Quantity:    decimal.Zero,
			AvgUnitCost: decimal.Zero,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&balance).Error; err != nil {
			return nil, err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("company = ? AND branch = ? AND warehouse = ? AND item = ?",
				key.Company, key.Branch, key.Warehouse, key.Item).
			Take(&balance).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *GormLedgerRepository) Balance(ctx context.Context, key domain.BalanceKey) (*domain.StockBalance, error) {
	var balance domain.StockBalance
	err := r.db.WithContext(ctx).
		Where("company = ? AND branch = ? AND warehouse = ? AND item = ?",
			key.Company, key.Branch, key.Warehouse, key.Item).
		Take(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.StockBalance{
			Company:     key.Company,
			Branch:      key.Branch,
			Warehouse:   key.Warehouse,
			Item:        key.Item,
			Quantity:    decimal.Zero,
			AvgUnitCost: decimal.Zero,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *GormLedgerRepository) Movements(ctx context.Context, key domain.BalanceKey, limit, offset int) ([]domain.StockMovement, error) {
	var movements []domain.StockMovement
	err := r.db.WithContext(ctx).
		Where("company = ? AND branch = ? AND warehouse = ? AND item = ?",
			key.Company, key.Branch, key.Warehouse, key.Item).
		Order("occurred_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&movements).Error
	return movements, err
}
