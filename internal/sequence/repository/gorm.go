package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spsweb/erp-core/internal/sequence/domain"
	"github.com/spsweb/erp-core/pkg/database"
)

// GormSequenceRepository issues sequence numbers from the tenant database
// using a pessimistic row lock on the counter row.
type GormSequenceRepository struct {
	db *gorm.DB
}

func NewGormSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

func (r *GormSequenceRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Counter{})
}

func (r *GormSequenceRepository) Next(ctx context.Context, company, branch string, scope domain.Scope) (int64, error) {
	var next int64
	err := database.InTx(ctx, r.db, func(tx *gorm.DB) error {
		var err error
		next, err = NextInTx(tx, company, branch, scope)
		return err
	})
	return next, err
}

// NextInTx increments the counter inside an already-open transaction. The
// movement engine uses this so a rolled-back movement also rolls back the
// lot number it minted, keeping the sequence gap-free.
func NextInTx(tx *gorm.DB, company, branch string, scope domain.Scope) (int64, error) {
	var counter domain.Counter
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company = ? AND branch = ? AND scope_type = ? AND scope_qualifier = ?",
			company, branch, scope.Type, scope.Qualifier).
		Take(&counter).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		counter = domain.Counter{
			Company:        company,
			Branch:         branch,
			ScopeType:      scope.Type,
			ScopeQualifier: scope.Qualifier,
			Current:        0,
		}
		// A racing transaction may create the row first; the conflict
		// clause turns that into a no-op, then we lock the winner's row.
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
			return 0, err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("company = ? AND branch = ? AND scope_type = ? AND scope_qualifier = ?",
				company, branch, scope.Type, scope.Qualifier).
			Take(&counter).Error; err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}

	counter.Current++
	if err := tx.Model(&domain.Counter{}).
		Where("id = ?", counter.ID).
		Update("current", counter.Current).Error; err != nil {
		return 0, err
	}
	return counter.Current, nil
}
