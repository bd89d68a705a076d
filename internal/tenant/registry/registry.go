package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/spsweb/erp-core/internal/tenant/domain"
	"github.com/spsweb/erp-core/pkg/database"
	"github.com/spsweb/erp-core/pkg/logger"
	"github.com/spsweb/erp-core/pkg/metrics"
)

// Registry layer errors
var (
	ErrCredentialsMissing = errors.New("tenant credentials missing")
	ErrConnectionFailed   = errors.New("tenant connection failed")
)

// Opener opens and probes one tenant database. Swappable in tests.
type Opener func(ctx context.Context, cfg database.Config) (*gorm.DB, error)

// DefaultOpener opens a pooled GORM connection and runs a liveness probe
// before the handle is handed out.
func DefaultOpener(ctx context.Context, cfg database.Config) (*gorm.DB, error) {
	db, err := database.NewGormConnection(cfg)
	if err != nil {
		return nil, err
	}
	var one int
	if err := db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	return db, nil
}

// Registry maps license slugs to live database handles, provisioning them on
// demand. The handle cache is the only process-wide mutable shared state in
// the core; creation is serialized per slug, never globally, so unrelated
// tenants resolve in parallel.
type Registry struct {
	catalog domain.CatalogRepository
	creds   CredentialSource
	open    Opener

	handles sync.Map // slug -> *gorm.DB
	group   singleflight.Group
}

func New(catalog domain.CatalogRepository, creds CredentialSource, open Opener) *Registry {
	if open == nil {
		open = DefaultOpener
	}
	if creds == nil {
		creds = EnvCredentials{}
	}
	return &Registry{catalog: catalog, creds: creds, open: open}
}

// Resolve returns the database handle for slug, opening it on first use.
// Concurrent first-time callers for the same slug share a single open; a
// failed open is never cached. Resolution failures always surface to the
// caller: falling back to another tenant's handle would leak data across
// tenants.
func (r *Registry) Resolve(ctx context.Context, slug string) (*gorm.DB, error) {
	if h, ok := r.handles.Load(slug); ok {
		metrics.ResolveTotal.WithLabelValues("hit").Inc()
		return h.(*gorm.DB), nil
	}

	// Miss and error counts are recorded inside the flight so waiters
	// sharing one provisioning attempt count it once, not once each.
	v, err, _ := r.group.Do(slug, func() (interface{}, error) {
		// Re-check under the flight: a racing caller may have just
		// finished provisioning.
		if h, ok := r.handles.Load(slug); ok {
			metrics.ResolveTotal.WithLabelValues("hit").Inc()
			return h, nil
		}
		h, err := r.provision(ctx, slug)
		if err != nil {
			metrics.ResolveTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.ResolveTotal.WithLabelValues("miss").Inc()
		r.handles.Store(slug, h)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*gorm.DB), nil
}

func (r *Registry) provision(ctx context.Context, slug string) (*gorm.DB, error) {
	lic, err := r.catalog.FindTenant(ctx, slug)
	if err != nil {
		return nil, err
	}

	user, password := lic.DBUser, lic.DBPassword
	if user == "" || password == "" {
		var ok bool
		user, password, ok = r.creds.Lookup(slug)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrCredentialsMissing, slug)
		}
	}

	cfg := database.Config{
		Host:            lic.DBHost,
		Port:            lic.DBPort,
		User:            user,
		Password:        password,
		DBName:          lic.DBName,
		ConnectTimeout:  10 * time.Second,
		ApplicationName: "erp-core",
	}

	start := time.Now()
	h, err := r.open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionFailed, slug, err)
	}
	metrics.HandlesCreated.Inc()

	logger.Info(ctx).
		Str("slug", slug).
		Str("db", lic.DBName).
		Str("host", lic.DBHost).
		Dur("took", time.Since(start)).
		Msg("Tenant database handle opened")

	return h, nil
}

// PreloadAll warms a handle for every catalog tenant at startup. Individual
// failures are logged and skipped so one bad license never blocks the rest.
// Returns the number of handles resolved.
func (r *Registry) PreloadAll(ctx context.Context) (int, error) {
	tenants, err := r.catalog.ListTenants(ctx)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, lic := range tenants {
		if _, err := r.Resolve(ctx, lic.Slug); err != nil {
			logger.Warn(ctx).
				Err(err).
				Str("slug", lic.Slug).
				Msg("Skipping tenant during connection preload")
			continue
		}
		loaded++
	}

	logger.Info(ctx).
		Int("loaded", loaded).
		Int("total", len(tenants)).
		Msg("Connection preload finished")
	return loaded, nil
}

// Known reports whether a handle for slug is already cached
func (r *Registry) Known(slug string) bool {
	_, ok := r.handles.Load(slug)
	return ok
}

// Close closes every cached handle. Used on shutdown.
func (r *Registry) Close() {
	r.handles.Range(func(key, value interface{}) bool {
		if db, ok := value.(*gorm.DB); ok {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		r.handles.Delete(key)
		return true
	})
}
