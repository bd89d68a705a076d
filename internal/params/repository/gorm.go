package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spsweb/erp-core/internal/params/domain"
	"github.com/spsweb/erp-core/pkg/database"
)

// GormParameterStore persists parameters in the tenant database
type GormParameterStore struct {
	db *gorm.DB
}

func NewGormParameterStore(db *gorm.DB) *GormParameterStore {
	return &GormParameterStore{db: db}
}

func (s *GormParameterStore) AutoMigrate() error {
	return s.db.AutoMigrate(&domain.Parameter{}, &domain.ChangeLog{})
}

func (s *GormParameterStore) Get(ctx context.Context, company, branch, key string) (json.RawMessage, error) {
	var row domain.Parameter
	err := s.db.WithContext(ctx).
		Where("company = ? AND branch = ? AND key = ?", company, branch, key).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(row.Value), nil
}

// Put upserts the value and returns the previous one. The read and the
// write share a transaction with the row locked, so concurrent writers
// observe a consistent previous value for their audit rows.
func (s *GormParameterStore) Put(ctx context.Context, company, branch, key string, value json.RawMessage) (json.RawMessage, error) {
	var previous json.RawMessage
	err := database.InTx(ctx, s.db, func(tx *gorm.DB) error {
		var existing domain.Parameter
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("company = ? AND branch = ? AND key = ?", company, branch, key).
			Take(&existing).Error
		if err == nil {
			previous = json.RawMessage(existing.Value)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		row := domain.Parameter{
			Company: company,
			Branch:  branch,
			Key:     key,
			Value:   string(value),
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company"}, {Name: "branch"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save parameter %s: %w", key, err)
	}
	return previous, nil
}

func (s *GormParameterStore) EnsureDefaults(ctx context.Context, company, branch string) (int, error) {
	created := 0
	for key, spec := range domain.Registry {
		value, err := json.Marshal(spec.Default)
		if err != nil {
			return created, err
		}
		row := domain.Parameter{
			Company: company,
			Branch:  branch,
			Key:     key,
			Value:   string(value),
		}
		result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company"}, {Name: "branch"}, {Name: "key"}},
			DoNothing: true,
		}).Create(&row)
		if result.Error != nil {
			return created, result.Error
		}
		if result.RowsAffected > 0 {
			created++
		}
	}
	return created, nil
}

func (s *GormParameterStore) AppendLog(ctx context.Context, entry domain.ChangeLog) error {
	return s.db.WithContext(ctx).Create(&entry).Error
}
