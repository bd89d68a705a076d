//go:build wireinject
// +build wireinject

package core

import (
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"

	"github.com/spsweb/erp-core/internal/tenant/domain"
	"github.com/spsweb/erp-core/internal/tenant/registry"
	"github.com/spsweb/erp-core/kafka"
)

// ProvideRegistry provides the connection registry with default opener and
// environment credential source
func ProvideRegistry(catalog domain.CatalogRepository) *registry.Registry {
	return registry.New(catalog, registry.EnvCredentials{}, registry.DefaultOpener)
}

// Wire sets
var RegistrySet = wire.NewSet(
	ProvideRegistry,
)

// InitializeCore initializes the application core with all dependencies
func InitializeCore(catalog domain.CatalogRepository, cache *redis.Client, publisher *kafka.Publisher) *Core {
	wire.Build(
		RegistrySet,
		New,
	)
	return nil
}
