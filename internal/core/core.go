// Package core wires the tenant registry, sequence generator and movement
// engine into the three-call surface the rest of the application depends
// on: Resolve, NextSequence and ApplyMovement.
package core

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/spsweb/erp-core/internal/params"
	paramsrepo "github.com/spsweb/erp-core/internal/params/repository"
	seqdomain "github.com/spsweb/erp-core/internal/sequence/domain"
	seqrepo "github.com/spsweb/erp-core/internal/sequence/repository"
	seqcommand "github.com/spsweb/erp-core/internal/sequence/usecase/command"
	"github.com/spsweb/erp-core/internal/stock/domain"
	stockrepo "github.com/spsweb/erp-core/internal/stock/repository"
	"github.com/spsweb/erp-core/internal/stock/usecase/command"
	"github.com/spsweb/erp-core/internal/stock/usecase/query"
	"github.com/spsweb/erp-core/internal/tenant/registry"
	"github.com/spsweb/erp-core/kafka"
	"github.com/spsweb/erp-core/pkg/database"
	"github.com/spsweb/erp-core/pkg/logger"
)

// Core is the application context owning the connection registry and the
// per-tenant engines built on top of it.
type Core struct {
	registry  *registry.Registry
	cache     *redis.Client
	publisher *kafka.Publisher
}

func New(reg *registry.Registry, cache *redis.Client, publisher *kafka.Publisher) *Core {
	return &Core{registry: reg, cache: cache, publisher: publisher}
}

// Registry exposes the connection registry for startup preloading
func (c *Core) Registry() *registry.Registry {
	return c.registry
}

// Resolve returns the database handle for a license slug
func (c *Core) Resolve(ctx context.Context, slug string) (*gorm.DB, error) {
	return c.registry.Resolve(ctx, slug)
}

// NextSequence mints the next gap-free number for a tenant-scoped counter
func (c *Core) NextSequence(ctx context.Context, slug, company, branch string, scope seqdomain.Scope) (int64, error) {
	handle, err := c.Resolve(ctx, slug)
	if err != nil {
		return 0, err
	}
	handler := seqcommand.NewNextNumberHandler(seqrepo.NewGormSequenceRepository(handle))
	return handler.Handle(ctx, seqcommand.NextNumberCommand{
		Company: company,
		Branch:  branch,
		Scope:   scope,
	})
}

// ApplyMovement applies one stock movement on the tenant resolved from slug
func (c *Core) ApplyMovement(ctx context.Context, slug string, cmd command.ApplyMovementCommand) (*domain.StockMovement, error) {
	handle, err := c.Resolve(ctx, slug)
	if err != nil {
		return nil, err
	}

	ledger := stockrepo.NewLedgerRepositoryWithTracing(stockrepo.NewGormLedgerRepository(handle))
	paramSvc := params.NewService(slug, paramsrepo.NewGormParameterStore(handle), c.cache)
	handler := command.NewApplyMovementHandler(ledger, paramSvc)

	movement, err := handler.Handle(ctx, cmd)
	if err != nil {
		return nil, err
	}

	if c.publisher != nil {
		// The ledger row is the source of truth; a publish failure is
		// logged and the movement still succeeds.
		if perr := c.publisher.PublishMovementApplied(ctx, kafka.NewMovementAppliedEvent(slug, movement)); perr != nil {
			logger.Error(ctx).Err(perr).Str("movement_id", movement.ID).Msg("Failed to publish movement event")
		}
	}
	return movement, nil
}

// Balance reads the current stock balance on the tenant resolved from slug
func (c *Core) Balance(ctx context.Context, slug string, q query.GetBalanceQuery) (*domain.StockBalance, error) {
	handle, err := c.Resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	ledger := stockrepo.NewLedgerRepositoryWithTracing(stockrepo.NewGormLedgerRepository(handle))
	return query.NewGetBalanceHandler(ledger).Handle(ctx, q)
}

// Movements lists the audit trail on the tenant resolved from slug
func (c *Core) Movements(ctx context.Context, slug string, q query.ListMovementsQuery) ([]domain.StockMovement, error) {
	handle, err := c.Resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	ledger := stockrepo.NewLedgerRepositoryWithTracing(stockrepo.NewGormLedgerRepository(handle))
	return query.NewListMovementsHandler(ledger).Handle(ctx, q)
}

// Params returns the parameter service bound to a tenant handle
func (c *Core) Params(ctx context.Context, slug string) (*params.Service, error) {
	handle, err := c.Resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	return params.NewService(slug, paramsrepo.NewGormParameterStore(handle), c.cache), nil
}

// Migrate runs the tenant-side schema migrations for one resolved handle.
// Called once per tenant during preload.
func (c *Core) Migrate(ctx context.Context, slug string) error {
	handle, err := c.Resolve(ctx, slug)
	if err != nil {
		return err
	}
	// Workers race these migrations at startup; losing the DDL race to
	// another worker is success.
	if err := stockrepo.NewGormLedgerRepository(handle).AutoMigrate(); err != nil && !database.IsDuplicateObject(err) {
		return err
	}
	if err := seqrepo.NewGormSequenceRepository(handle).AutoMigrate(); err != nil && !database.IsDuplicateObject(err) {
		return err
	}
	if err := paramsrepo.NewGormParameterStore(handle).AutoMigrate(); err != nil && !database.IsDuplicateObject(err) {
		return err
	}
	return nil
}
