package extension

import "time"

// Config holds the Entitled extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.entitled" or "entitled" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// ConflictRetries bounds how many optimistic-write collisions a single
	// engine operation absorbs before failing as transient (default: 3).
	ConflictRetries int `json:"conflict_retries" mapstructure:"conflict_retries" yaml:"conflict_retries"`

	// CatalogPath points at a YAML tier catalog override file. When empty
	// the built-in catalog is used.
	CatalogPath string `json:"catalog_path" mapstructure:"catalog_path" yaml:"catalog_path"`

	// RedisAddr enables the Redis profile cache in front of the store when
	// non-empty (host:port).
	RedisAddr string `json:"redis_addr" mapstructure:"redis_addr" yaml:"redis_addr"`

	// ProfileCacheTTL controls how long cached profiles may serve reads when
	// the Redis cache is enabled (default: 30s).
	ProfileCacheTTL time.Duration `json:"profile_cache_ttl" mapstructure:"profile_cache_ttl" yaml:"profile_cache_ttl"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConflictRetries: 3,
		ProfileCacheTTL: 30 * time.Second,
	}
}
