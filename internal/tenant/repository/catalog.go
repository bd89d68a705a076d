package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spsweb/erp-core/internal/tenant/domain"
	"github.com/spsweb/erp-core/pkg/database"
	"github.com/spsweb/erp-core/pkg/logger"
)

// seedEntry mirrors one record of the license seed file
type seedEntry struct {
	Slug    string   `json:"slug"`
	DocID   string   `json:"doc_id"`
	DBName  string   `json:"db_name"`
	DBHost  string   `json:"db_host"`
	DBPort  string   `json:"db_port"`
	Modules []string `json:"modules"`
}

// GormCatalogRepository reads licenses from the control database, creating
// and seeding the table on first use.
type GormCatalogRepository struct {
	db        *gorm.DB
	seedFile  string
	bootstrap sync.Once
}

func NewGormCatalogRepository(db *gorm.DB, seedFile string) *GormCatalogRepository {
	return &GormCatalogRepository{db: db, seedFile: seedFile}
}

func (r *GormCatalogRepository) ListTenants(ctx context.Context) ([]domain.License, error) {
	rows, err := r.query(ctx)
	if err != nil {
		// Table may not exist yet; bootstrap once and retry.
		if berr := r.Bootstrap(ctx); berr != nil {
			logger.Error(ctx).Err(berr).Msg("Catalog bootstrap failed")
			return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
		}
		rows, err = r.query(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
		}
	}

	valid := rows[:0]
	for _, lic := range rows {
		if !domain.ValidDoc(lic.DocID) {
			logger.Warn(ctx).
				Str("slug", lic.Slug).
				Str("doc_id", lic.DocID).
				Msg("Discarding license with invalid tax id")
			continue
		}
		if lic.DBHost == "" {
			logger.Warn(ctx).Str("slug", lic.Slug).Msg("Discarding license without db host")
			continue
		}
		lic.Slug = strings.ToLower(strings.TrimSpace(lic.Slug))
		lic.DocID = domain.NormalizeDoc(lic.DocID)
		valid = append(valid, lic)
	}
	return valid, nil
}

func (r *GormCatalogRepository) FindTenant(ctx context.Context, slug string) (*domain.License, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))

	tenants, err := r.ListTenants(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tenants {
		if tenants[i].Slug == slug {
			return &tenants[i], nil
		}
	}
	return nil, domain.ErrUnknownTenant
}

func (r *GormCatalogRepository) query(ctx context.Context) ([]domain.License, error) {
	var rows []domain.License
	err := r.db.WithContext(ctx).Order("slug").Find(&rows).Error
	return rows, err
}

// Bootstrap creates the licenses table when missing and upserts the seed
// file entries. Safe to run concurrently from multiple workers: the table
// creation is IF NOT EXISTS and seeding upserts on slug.
func (r *GormCatalogRepository) Bootstrap(ctx context.Context) error {
	var err error
	r.bootstrap.Do(func() {
		err = r.doBootstrap(ctx)
	})
	return err
}

func (r *GormCatalogRepository) doBootstrap(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&domain.License{}); err != nil {
		// Multiple workers bootstrap at startup; losing the table
		// creation race is not an error.
		if !database.IsDuplicateObject(err) {
			return fmt.Errorf("failed to create licenses table: %w", err)
		}
		logger.Debug(ctx).Err(err).Msg("Licenses table created by another worker")
	}

	entries, err := readSeedFile(r.seedFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn(ctx).Str("file", r.seedFile).Msg("No license seed file found")
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.Slug == "" {
			continue
		}
		mods, _ := json.Marshal(entry.Modules)
		user, password := seedCredentials(entry.Slug)
		lic := domain.License{
			Slug:       strings.ToLower(strings.TrimSpace(entry.Slug)),
			DocID:      domain.NormalizeDoc(entry.DocID),
			DBName:     entry.DBName,
			DBHost:     entry.DBHost,
			DBPort:     entry.DBPort,
			Modules:    string(mods),
			DBUser:     user,
			DBPassword: password,
		}
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"doc_id", "db_name", "db_host", "db_port", "modules",
				"db_user", "db_password", "updated_at",
			}),
		}).Create(&lic).Error
		if err != nil {
			return fmt.Errorf("failed to seed license %s: %w", entry.Slug, err)
		}
	}

	logger.Info(ctx).Int("count", len(entries)).Msg("License catalog bootstrapped from seed file")
	return nil
}

func readSeedFile(path string) ([]seedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []seedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid seed file %s: %w", path, err)
	}
	return entries, nil
}

// seedCredentials resolves database credentials for a seeded license from
// the environment, keyed by the upper-cased slug.
func seedCredentials(slug string) (string, string) {
	prefix := strings.ToUpper(strings.TrimSpace(slug))
	return os.Getenv(prefix + "_DB_USER"), os.Getenv(prefix + "_DB_PASSWORD")
}
