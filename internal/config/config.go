package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"storefront-engine/internal/utils"
)

// Config holds all configuration for the application
type Config struct {
	Port                string
	LogLevel            string
	Environment         string
	CatalogSource       string
	CatalogCacheTTL     string
	CatalogFetchTimeout string
	StorageBackend      string
	StorageDir          string
	CartMaxAge          string
	SearchCacheTTL      string
	SearchCacheSize     string
	EventLogSize        string
	APIKeys             string
	MetricsExporter     string
}

// Defaults used when a variable is unset or unparsable
const (
	DefaultCatalogCacheTTL     = 24 * time.Hour
	DefaultCatalogFetchTimeout = 10 * time.Second
	DefaultCartMaxAge          = 30 * 24 * time.Hour
	DefaultSearchCacheTTL      = 5 * time.Minute
	DefaultSearchCacheSize     = 256
	DefaultEventLogSize        = 1000
)

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() *Config {
	// Load .env file if it exists
	// This will not override existing environment variables
	err := godotenv.Load()
	if err != nil {
		slog.Warn("Could not load .env file, continuing with system environment variables only", "error", err)
	} else {
		slog.Info("Successfully loaded .env file")
	}

	config := FromEnv()

	// Configure slog based on log level
	utils.SetupLogging(config.LogLevel)

	slog.Info("Configuration loaded",
		"port", config.Port,
		"environment", config.Environment,
		"logLevel", config.LogLevel,
		"catalogSource", config.CatalogSource,
		"catalogCacheTTL", config.CatalogCacheTTL,
		"storageBackend", config.StorageBackend,
		"storageDir", config.StorageDir,
		"cartMaxAge", config.CartMaxAge,
		"searchCacheTTL", config.SearchCacheTTL,
		"searchCacheSize", config.SearchCacheSize,
		"metricsExporter", config.MetricsExporter)

	return config
}

// FromEnv reads the configuration from the process environment only
func FromEnv() *Config {
	return &Config{
		Port:                getEnvWithDefault("PORT", "8080"),
		LogLevel:            getEnvWithDefault("LOG_LEVEL", "info"),
		Environment:         getEnvWithDefault("ENVIRONMENT", "development"),
		CatalogSource:       getEnvWithDefault("CATALOG_SOURCE", "data/catalog.json"),
		CatalogCacheTTL:     getEnvWithDefault("CATALOG_CACHE_TTL", "24h"),
		CatalogFetchTimeout: getEnvWithDefault("CATALOG_FETCH_TIMEOUT", "10s"),
		StorageBackend:      getEnvWithDefault("STORAGE_BACKEND", "file"),
		StorageDir:          getEnvWithDefault("STORAGE_DIR", "./data/store"),
		CartMaxAge:          getEnvWithDefault("CART_MAX_AGE", "720h"),
		SearchCacheTTL:      getEnvWithDefault("SEARCH_CACHE_TTL", "5m"),
		SearchCacheSize:     getEnvWithDefault("SEARCH_CACHE_SIZE", "256"),
		EventLogSize:        getEnvWithDefault("EVENT_LOG_SIZE", "1000"),
		APIKeys:             getEnvWithDefault("API_KEYS", "demo"),
		MetricsExporter:     getEnvWithDefault("METRICS_EXPORTER", "scraper"),
	}
}

// getEnvWithDefault gets an environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// CacheTTL returns the catalog cache validity window
func (c *Config) CacheTTL() time.Duration {
	return parseDuration("CATALOG_CACHE_TTL", c.CatalogCacheTTL, DefaultCatalogCacheTTL)
}

// FetchTimeout returns the catalog fetch timeout
func (c *Config) FetchTimeout() time.Duration {
	return parseDuration("CATALOG_FETCH_TIMEOUT", c.CatalogFetchTimeout, DefaultCatalogFetchTimeout)
}

// MaxCartAge returns the age after which a persisted cart is discarded
func (c *Config) MaxCartAge() time.Duration {
	return parseDuration("CART_MAX_AGE", c.CartMaxAge, DefaultCartMaxAge)
}

// ResultCacheTTL returns how long advancedSearch results stay memoized
func (c *Config) ResultCacheTTL() time.Duration {
	return parseDuration("SEARCH_CACHE_TTL", c.SearchCacheTTL, DefaultSearchCacheTTL)
}

// ResultCacheSize returns the maximum number of memoized search results
func (c *Config) ResultCacheSize() int {
	return parsePositiveInt("SEARCH_CACHE_SIZE", c.SearchCacheSize, DefaultSearchCacheSize)
}

// EventLogCapacity returns the number of cart events kept for long polling
func (c *Config) EventLogCapacity() int {
	return parsePositiveInt("EVENT_LOG_SIZE", c.EventLogSize, DefaultEventLogSize)
}

// ValidAPIKeys returns the trimmed, non-empty admin API keys
func (c *Config) ValidAPIKeys() []string {
	var keys []string
	for _, key := range strings.Split(c.APIKeys, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func parseDuration(name, raw string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		slog.Warn("Invalid duration, using default", "setting", name, "provided", raw, "default", fallback.String(), "error", err)
		return fallback
	}
	return value
}

func parsePositiveInt(name, raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		slog.Warn("Invalid integer, using default", "setting", name, "provided", raw, "default", fallback, "error", err)
		return fallback
	}
	return value
}
