package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/spsweb/erp-core/internal/tenant/domain"
)

// MemoryCatalogRepository is an in-memory catalog used by tests and by the
// import tooling before the control database is reachable.
type MemoryCatalogRepository struct {
	mu       sync.RWMutex
	licenses map[string]domain.License
}

func NewMemoryCatalogRepository(licenses ...domain.License) *MemoryCatalogRepository {
	r := &MemoryCatalogRepository{licenses: make(map[string]domain.License)}
	for _, lic := range licenses {
		r.Put(lic)
	}
	return r
}

func (r *MemoryCatalogRepository) Put(lic domain.License) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lic.Slug = strings.ToLower(strings.TrimSpace(lic.Slug))
	r.licenses[lic.Slug] = lic
}

func (r *MemoryCatalogRepository) ListTenants(ctx context.Context) ([]domain.License, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.License, 0, len(r.licenses))
	for _, lic := range r.licenses {
		if !domain.ValidDoc(lic.DocID) {
			continue
		}
		out = append(out, lic)
	}
	return out, nil
}

func (r *MemoryCatalogRepository) FindTenant(ctx context.Context, slug string) (*domain.License, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lic, ok := r.licenses[strings.ToLower(strings.TrimSpace(slug))]
	if !ok || !domain.ValidDoc(lic.DocID) {
		return nil, domain.ErrUnknownTenant
	}
	return &lic, nil
}
