// Package extension provides the Forge extension adapter for Entitled.
//
// It implements the forge.Extension interface to integrate the entitlement
// engine into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.entitled" or "entitled" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	entitled "github.com/fortunelabs/entitled"
	"github.com/fortunelabs/entitled/store"
	"github.com/fortunelabs/entitled/store/memory"
	"github.com/fortunelabs/entitled/store/rediscache"
	"github.com/fortunelabs/entitled/tier"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "entitled"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Subscription entitlement and usage accounting engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the entitlement engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *entitled.Engine
	store      store.Store
	engineOpts []entitled.Option
}

// New creates a new Entitled Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine instance.
// This is nil until Register is called.
func (e *Extension) Engine() *entitled.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	if e.config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: e.config.RedisAddr})
		e.store = rediscache.New(e.store, client,
			rediscache.WithTTL(e.config.ProfileCacheTTL),
		)
	}

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}

	e.engine = entitled.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*entitled.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("entitled: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("entitled: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs entitled.Option values from the resolved config.
func (e *Extension) buildEngineOpts() ([]entitled.Option, error) {
	opts := make([]entitled.Option, 0, len(e.engineOpts)+2)

	if e.config.ConflictRetries > 0 {
		opts = append(opts, entitled.WithConflictRetries(e.config.ConflictRetries))
	}

	if e.config.CatalogPath != "" {
		f, err := os.Open(e.config.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("entitled: open catalog override: %w", err)
		}
		defer f.Close()

		catalog, err := tier.LoadCatalog(f)
		if err != nil {
			return nil, fmt.Errorf("entitled: load catalog override: %w", err)
		}
		opts = append(opts, entitled.WithCatalog(catalog))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("entitled: configuration is required but not found in config files; " +
				"ensure 'extensions.entitled' or 'entitled' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("entitled: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("conflict_retries", e.config.ConflictRetries),
		forge.F("catalog_path", e.config.CatalogPath),
		forge.F("redis_addr", e.config.RedisAddr),
		forge.F("profile_cache_ttl", e.config.ProfileCacheTTL),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.entitled" first (namespaced pattern).
	if cm.IsSet("extensions.entitled") {
		if err := cm.Bind("extensions.entitled", &cfg); err == nil {
			e.Logger().Debug("entitled: loaded config from file",
				forge.F("key", "extensions.entitled"),
			)
			return cfg, true
		}
		e.Logger().Warn("entitled: failed to bind extensions.entitled config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "entitled" key.
	if cm.IsSet("entitled") {
		if err := cm.Bind("entitled", &cfg); err == nil {
			e.Logger().Debug("entitled: loaded config from file",
				forge.F("key", "entitled"),
			)
			return cfg, true
		}
		e.Logger().Warn("entitled: failed to bind entitled config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.ConflictRetries == 0 {
		cfg.ConflictRetries = defaults.ConflictRetries
	}
	if cfg.ProfileCacheTTL == 0 {
		cfg.ProfileCacheTTL = defaults.ProfileCacheTTL
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.CatalogPath == "" && programmaticConfig.CatalogPath != "" {
		yamlConfig.CatalogPath = programmaticConfig.CatalogPath
	}
	if yamlConfig.RedisAddr == "" && programmaticConfig.RedisAddr != "" {
		yamlConfig.RedisAddr = programmaticConfig.RedisAddr
	}

	// Numeric fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.ConflictRetries == 0 && programmaticConfig.ConflictRetries != 0 {
		yamlConfig.ConflictRetries = programmaticConfig.ConflictRetries
	}
	if yamlConfig.ProfileCacheTTL == 0 && programmaticConfig.ProfileCacheTTL != 0 {
		yamlConfig.ProfileCacheTTL = programmaticConfig.ProfileCacheTTL
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
