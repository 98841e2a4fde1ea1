package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onProfileCreated     []OnProfileCreated
	onProfileUpdated     []OnProfileUpdated
	onTierChanged        []OnTierChanged
	onAddonGranted       []OnAddonGranted
	onAddonRevoked       []OnAddonRevoked
	onUsageRecorded      []OnUsageRecorded
	onEntitlementChecked []OnEntitlementChecked
	onQuotaDenied        []OnQuotaDenied
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnProfileCreated); ok {
		r.onProfileCreated = append(r.onProfileCreated, v)
	}
	if v, ok := p.(OnProfileUpdated); ok {
		r.onProfileUpdated = append(r.onProfileUpdated, v)
	}
	if v, ok := p.(OnTierChanged); ok {
		r.onTierChanged = append(r.onTierChanged, v)
	}
	if v, ok := p.(OnAddonGranted); ok {
		r.onAddonGranted = append(r.onAddonGranted, v)
	}
	if v, ok := p.(OnAddonRevoked); ok {
		r.onAddonRevoked = append(r.onAddonRevoked, v)
	}
	if v, ok := p.(OnUsageRecorded); ok {
		r.onUsageRecorded = append(r.onUsageRecorded, v)
	}
	if v, ok := p.(OnEntitlementChecked); ok {
		r.onEntitlementChecked = append(r.onEntitlementChecked, v)
	}
	if v, ok := p.(OnQuotaDenied); ok {
		r.onQuotaDenied = append(r.onQuotaDenied, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitProfileCreated emits a profile created event.
func (r *Registry) EmitProfileCreated(ctx context.Context, profile interface{}) {
	r.mu.RLock()
	plugins := r.onProfileCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnProfileCreated(ctx, profile)
		}); err != nil {
			r.logger.Warn("plugin OnProfileCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitProfileUpdated emits a profile updated event.
func (r *Registry) EmitProfileUpdated(ctx context.Context, oldProfile, newProfile interface{}) {
	r.mu.RLock()
	plugins := r.onProfileUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnProfileUpdated(ctx, oldProfile, newProfile)
		}); err != nil {
			r.logger.Warn("plugin OnProfileUpdated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTierChanged emits a tier changed event.
func (r *Registry) EmitTierChanged(ctx context.Context, profile interface{}, from, to string, upgraded bool) {
	r.mu.RLock()
	plugins := r.onTierChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTierChanged(ctx, profile, from, to, upgraded)
		}); err != nil {
			r.logger.Warn("plugin OnTierChanged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAddonGranted emits an add-on granted event.
func (r *Registry) EmitAddonGranted(ctx context.Context, userID, addon string) {
	r.mu.RLock()
	plugins := r.onAddonGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAddonGranted(ctx, userID, addon)
		}); err != nil {
			r.logger.Warn("plugin OnAddonGranted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAddonRevoked emits an add-on revoked event.
func (r *Registry) EmitAddonRevoked(ctx context.Context, userID, addon string) {
	r.mu.RLock()
	plugins := r.onAddonRevoked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAddonRevoked(ctx, userID, addon)
		}); err != nil {
			r.logger.Warn("plugin OnAddonRevoked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitUsageRecorded emits a usage recorded event.
func (r *Registry) EmitUsageRecorded(ctx context.Context, entry interface{}) {
	r.mu.RLock()
	plugins := r.onUsageRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUsageRecorded(ctx, entry)
		}); err != nil {
			r.logger.Warn("plugin OnUsageRecorded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEntitlementChecked emits an entitlement checked event.
func (r *Registry) EmitEntitlementChecked(ctx context.Context, result interface{}) {
	r.mu.RLock()
	plugins := r.onEntitlementChecked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEntitlementChecked(ctx, result)
		}); err != nil {
			r.logger.Warn("plugin OnEntitlementChecked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitQuotaDenied emits a quota denied event.
func (r *Registry) EmitQuotaDenied(ctx context.Context, userID, action string, used, limit int64) {
	r.mu.RLock()
	plugins := r.onQuotaDenied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnQuotaDenied(ctx, userID, action, used, limit)
		}); err != nil {
			r.logger.Warn("plugin OnQuotaDenied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout bounds a plugin callback so a misbehaving plugin cannot
// stall the engine.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
