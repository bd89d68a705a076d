package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Catalog layer errors
var (
	ErrUnknownTenant      = errors.New("unknown tenant")
	ErrCatalogUnavailable = errors.New("license catalog unavailable")
)

// License is one customer's database coordinates, addressed by slug.
// Rows are written by the bootstrap/import path and read-only at request time.
type License struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Slug       string    `json:"slug" gorm:"size:64;uniqueIndex;not null"`
	DocID      string    `json:"doc_id" gorm:"column:doc_id;size:20;not null"`
	DBName     string    `json:"db_name" gorm:"size:100;not null"`
	DBHost     string    `json:"db_host" gorm:"size:200;not null"`
	DBPort     string    `json:"db_port" gorm:"size:10;not null"`
	Modules    string    `json:"modules" gorm:"type:text;not null;default:'[]'"`
	DBUser     string    `json:"-" gorm:"size:128;default:''"`
	DBPassword string    `json:"-" gorm:"size:256;default:''"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the control-plane table name
func (License) TableName() string {
	return "licenses_web"
}

// NormalizeDoc strips formatting characters from a tax id
func NormalizeDoc(doc string) string {
	r := strings.NewReplacer(".", "", "-", "", "/", "")
	return strings.TrimSpace(r.Replace(doc))
}

// ValidDoc reports whether doc normalizes to a 14-digit numeric tax id.
// Catalog rows failing this check are discarded as invalid.
func ValidDoc(doc string) bool {
	norm := NormalizeDoc(doc)
	if len(norm) != 14 {
		return false
	}
	for _, c := range norm {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CatalogRepository defines the contract for license catalog access
type CatalogRepository interface {
	// ListTenants returns every valid license, bootstrapping the catalog
	// from the seed file when the backing table is missing.
	ListTenants(ctx context.Context) ([]License, error)

	// FindTenant returns the license for slug or ErrUnknownTenant.
	FindTenant(ctx context.Context, slug string) (*License, error)
}
