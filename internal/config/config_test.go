package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestFromEnv_Defaults tests the defaults applied when nothing is set
func TestFromEnv_Defaults(t *testing.T) {
	// Arrange
	t.Setenv("PORT", "")
	t.Setenv("CATALOG_SOURCE", "")
	t.Setenv("STORAGE_BACKEND", "")

	// Act
	cfg := FromEnv()

	// Assert
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "data/catalog.json", cfg.CatalogSource)
	assert.Equal(t, "file", cfg.StorageBackend)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL())
	assert.Equal(t, 30*24*time.Hour, cfg.MaxCartAge())
	assert.Equal(t, DefaultSearchCacheSize, cfg.ResultCacheSize())
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

// TestFromEnv_Overrides tests that environment variables take precedence
func TestFromEnv_Overrides(t *testing.T) {
	// Arrange
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CATALOG_CACHE_TTL", "1h")
	t.Setenv("SEARCH_CACHE_SIZE", "32")
	t.Setenv("API_KEYS", "alpha, beta ,,")

	// Act
	cfg := FromEnv()

	// Assert
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, time.Hour, cfg.CacheTTL())
	assert.Equal(t, 32, cfg.ResultCacheSize())
	assert.Equal(t, []string{"alpha", "beta"}, cfg.ValidAPIKeys())
}

// TestConfig_InvalidValuesFallBack tests typed accessors with unparsable values
func TestConfig_InvalidValuesFallBack(t *testing.T) {
	testCases := []struct {
		name   string
		config *Config
		check  func(t *testing.T, cfg *Config)
	}{
		{
			name:   "Invalid cache TTL",
			config: &Config{CatalogCacheTTL: "invalid"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultCatalogCacheTTL, cfg.CacheTTL())
			},
		},
		{
			name:   "Negative fetch timeout",
			config: &Config{CatalogFetchTimeout: "-5s"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultCatalogFetchTimeout, cfg.FetchTimeout())
			},
		},
		{
			name:   "Zero search cache size",
			config: &Config{SearchCacheSize: "0"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultSearchCacheSize, cfg.ResultCacheSize())
			},
		},
		{
			name:   "Non-numeric event log size",
			config: &Config{EventLogSize: "lots"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultEventLogSize, cfg.EventLogCapacity())
			},
		},
		{
			name:   "Empty cart max age",
			config: &Config{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultCartMaxAge, cfg.MaxCartAge())
				assert.Equal(t, DefaultSearchCacheTTL, cfg.ResultCacheTTL())
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, tc.config)
		})
	}
}
