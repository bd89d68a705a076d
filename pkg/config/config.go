package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/spsweb/erp-core/pkg/database"
)

// Config holds the service configuration
type Config struct {
	ServiceName  string
	Environment  string
	LogLevel     string
	HTTPPort     string
	ControlDB    database.Config
	SeedFile     string
	RedisAddr    string
	KafkaBrokers string
}

// Load reads configuration from the environment. A .env file is honoured
// when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName: getEnv("OTEL_SERVICE_NAME", "erp-core"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		ControlDB: database.Config{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "erpcontrol"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			ConnectTimeout:  10 * time.Second,
			ApplicationName: "erp-core",
		},
		SeedFile:     getEnv("LICENSE_SEED_FILE", "licenses.json"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
	}
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
