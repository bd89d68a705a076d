package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/spsweb/erp-core/internal/core"
	"github.com/spsweb/erp-core/internal/middleware"
	stockhttp "github.com/spsweb/erp-core/internal/stock/delivery/http"
	tenanthttp "github.com/spsweb/erp-core/internal/tenant/delivery/http"
	"github.com/spsweb/erp-core/internal/tenant/repository"
	"github.com/spsweb/erp-core/internal/tenant/registry"
	"github.com/spsweb/erp-core/kafka"
	"github.com/spsweb/erp-core/pkg/config"
	"github.com/spsweb/erp-core/pkg/database"
	"github.com/spsweb/erp-core/pkg/logger"
	"github.com/spsweb/erp-core/pkg/tracing"
)

func main() {
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.IsDevelopment())
	logger.SetLevel(cfg.LogLevel)

	logger.Logger.Info().
		Str("service", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ERP core service")

	// Tracing
	_, shutdownTracer, err := tracing.InitTracer(cfg.ServiceName)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("Tracing disabled")
	} else {
		defer shutdownTracer(context.Background())
	}

	// Control database
	controlDB, err := database.NewGormConnection(cfg.ControlDB)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to control database")
	}
	sqlDB, err := controlDB.DB()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to get control database instance")
	}
	defer sqlDB.Close()

	// Dedicated raw connection for the health endpoint, so probes never
	// compete with catalog queries for the gorm pool.
	healthDB, err := database.NewPostgresConnection(cfg.ControlDB)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to open control database health connection")
	}
	defer healthDB.Close()

	// License catalog
	catalog := repository.NewGormCatalogRepository(controlDB, cfg.SeedFile)
	if err := catalog.Bootstrap(context.Background()); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to bootstrap license catalog")
	}

	// Optional redis parameter cache
	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := cache.Ping(context.Background()).Err(); err != nil {
			logger.Logger.Warn().Err(err).Msg("Redis unreachable, parameter cache disabled")
			cache = nil
		}
	}

	// Optional kafka publisher
	var publisher *kafka.Publisher
	if cfg.KafkaBrokers != "" {
		publisher, err = kafka.NewPublisher(strings.Split(cfg.KafkaBrokers, ","))
		if err != nil {
			logger.Logger.Warn().Err(err).Msg("Kafka unreachable, movement events disabled")
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	// Connection registry and application core
	reg := registry.New(catalog, registry.EnvCredentials{}, registry.DefaultOpener)
	defer reg.Close()
	app := core.New(reg, cache, publisher)

	// Warm tenant connections; a bad license never blocks startup.
	preloadTenants(app, catalog)

	startHTTPServer(app, catalog, reg, healthDB, cfg.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down server...")
}

func preloadTenants(app *core.Core, catalog *repository.GormCatalogRepository) {
	ctx := context.Background()
	tenants, err := catalog.ListTenants(ctx)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("Connection preload skipped")
		return
	}
	loaded := 0
	for _, lic := range tenants {
		if err := app.Migrate(ctx, lic.Slug); err != nil {
			logger.Logger.Warn().Err(err).Str("slug", lic.Slug).Msg("Skipping tenant during preload")
			continue
		}
		loaded++
	}
	logger.Logger.Info().Int("loaded", loaded).Int("total", len(tenants)).Msg("Tenant preload finished")
}

func startHTTPServer(app *core.Core, catalog *repository.GormCatalogRepository, reg *registry.Registry, controlDB *sql.DB, port string) {
	router := mux.NewRouter()
	router.Use(middleware.Metrics)

	stockHandler := stockhttp.NewStockHandler(app)
	stockHandler.RegisterRoutes(router)

	tenantHandler := tenanthttp.NewTenantHandler(catalog, reg)
	tenantHandler.RegisterRoutes(router)
	tenantHandler.RegisterHealthCheck(router, controlDB)

	router.Handle("/metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := otelhttp.NewHandler(c.Handler(router), "erp-core")

	logger.Logger.Info().
		Str("port", port).
		Str("metrics_endpoint", "/metrics").
		Msg("HTTP server started")

	go func() {
		if err := http.ListenAndServe(":"+port, handler); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()
}
