package extension

import (
	"time"

	entitled "github.com/fortunelabs/entitled"
	"github.com/fortunelabs/entitled/plugin"
	"github.com/fortunelabs/entitled/store"
)

// Option configures the Entitled Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes an entitled.Option through to the underlying engine.
func WithEngineOption(opt entitled.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, entitled.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithConflictRetries bounds the optimistic-write retry loop.
func WithConflictRetries(n int) Option {
	return func(e *Extension) { e.config.ConflictRetries = n }
}

// WithCatalogPath points the extension at a YAML tier catalog override.
func WithCatalogPath(path string) Option {
	return func(e *Extension) { e.config.CatalogPath = path }
}

// WithRedisCache enables the Redis profile cache in front of the store.
func WithRedisCache(addr string, ttl time.Duration) Option {
	return func(e *Extension) {
		e.config.RedisAddr = addr
		e.config.ProfileCacheTTL = ttl
	}
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
