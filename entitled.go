package entitled

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fortunelabs/entitled/entitlement"
	"github.com/fortunelabs/entitled/plugin"
	"github.com/fortunelabs/entitled/profile"
	"github.com/fortunelabs/entitled/store"
	"github.com/fortunelabs/entitled/tier"
	"github.com/fortunelabs/entitled/types"
	"github.com/fortunelabs/entitled/usage"
)

// defaultConflictRetries bounds how many times a conditional write is retried
// after an optimistic-concurrency collision before the failure is surfaced as
// transient.
const defaultConflictRetries = 3

// Clock supplies the current instant. Injected so that the daily-reset logic
// is deterministic under test; calendar dates are always derived in UTC.
type Clock func() time.Time

// Engine is the session/profile manager: the only component external callers
// (HTTP handlers, UI backends) interact with. It owns profile lifecycle,
// entitlement checks, and the reset-and-increment usage protocol.
type Engine struct {
	store   store.Store
	catalog *tier.Catalog
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   Clock

	conflictRetries int
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:           s,
		catalog:         tier.DefaultCatalog(),
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		clock:           time.Now,
		conflictRetries: defaultConflictRetries,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithCatalog replaces the built-in tier catalog.
func WithCatalog(c *tier.Catalog) Option {
	return func(e *Engine) {
		if c != nil {
			e.catalog = c
		}
	}
}

// WithClock sets the time source. Dates are derived from it in UTC.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithConflictRetries sets how many optimistic-write collisions are absorbed
// before surfacing a transient failure.
func WithConflictRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.conflictRetries = n
		}
	}
}

// Catalog returns the tier catalog the engine evaluates against.
func (e *Engine) Catalog() *tier.Catalog { return e.catalog }

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("entitled engine started",
		"conflict_retries", e.conflictRetries,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

func (e *Engine) now() time.Time { return e.clock().UTC() }

func (e *Engine) today() types.Date { return types.DateOf(e.clock()) }

// ──────────────────────────────────────────────────
// Profile Management
// ──────────────────────────────────────────────────

// LoadOrCreateProfile fetches the profile for userID, creating the default
// free-tier profile on first access. Creation is idempotent: a concurrent
// creator that loses the insert race re-reads the winner's row.
func (e *Engine) LoadOrCreateProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}

	p, err := e.store.GetProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !IsNotFound(err) {
		return nil, wrapStoreErr(err)
	}

	p = profile.New(userID, e.today())
	err = e.store.CreateProfile(ctx, p)
	if err == nil {
		e.logger.Info("profile created", "user_id", userID, "tier", p.Tier)
		e.plugins.EmitProfileCreated(ctx, p)
		return p.Clone(), nil
	}
	if errors.Is(err, ErrProfileExists) {
		// Lost the creation race; the winner's row is authoritative.
		p, err = e.store.GetProfile(ctx, userID)
		if err != nil {
			return nil, wrapStoreErr(err)
		}
		return p, nil
	}
	return nil, wrapStoreErr(err)
}

// GetProfile fetches an existing profile without creating one.
func (e *Engine) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	p, err := e.store.GetProfile(ctx, userID)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, wrapStoreErr(err)
	}
	return p, nil
}

// UpdateProfile applies a partial update (tier, status, add-on set) through
// the optimistic-concurrency loop. Tier changes never touch the current day's
// usage counter: a downgrade may leave the counter above the new quota, which
// simply blocks further consumption today.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, ch profile.Changes) (*profile.Profile, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	if ch.Empty() {
		return e.GetProfile(ctx, userID)
	}

	// Unrecognized identifiers degrade instead of failing the request.
	if ch.Tier != nil {
		normalized := tier.ParseCode(string(*ch.Tier))
		ch.Tier = &normalized
	}
	if ch.Addons != nil {
		filtered := make([]tier.AddonID, 0, len(*ch.Addons))
		for _, a := range *ch.Addons {
			if tier.ValidAddon(a) {
				filtered = append(filtered, a)
			} else {
				e.logger.Warn("dropping unknown add-on from update", "user_id", userID, "addon", a)
			}
		}
		ch.Addons = &filtered
	}

	var updated *profile.Profile
	err := e.withConflictRetry(ctx, func() error {
		p, err := e.store.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		old := p.Clone()

		ch.Apply(p)
		if err := e.store.UpdateProfile(ctx, p); err != nil {
			return err
		}

		e.plugins.EmitProfileUpdated(ctx, old, p)
		if old.Tier != p.Tier {
			upgraded := tier.Compare(p.Tier, old.Tier) > 0
			e.logger.Info("tier changed",
				"user_id", userID,
				"from", old.Tier,
				"to", p.Tier,
				"upgraded", upgraded,
			)
			e.plugins.EmitTierChanged(ctx, p, string(old.Tier), string(p.Tier), upgraded)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangeTier moves the profile to the given tier code.
func (e *Engine) ChangeTier(ctx context.Context, userID string, code tier.Code) (*profile.Profile, error) {
	return e.UpdateProfile(ctx, userID, profile.Changes{Tier: &code})
}

// NextTier returns the tier immediately above the user's current one, or nil
// when the user is already on the top tier.
func (e *Engine) NextTier(ctx context.Context, userID string) (*tier.Tier, error) {
	p, err := e.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.catalog.Next(p.Tier), nil
}

// ──────────────────────────────────────────────────
// Add-on Management
// ──────────────────────────────────────────────────

// GrantAddon records an add-on (bundled selection or separate purchase) in
// the profile's active set. Granting is a no-op if the add-on is already
// active. Free-tier profiles cannot hold add-ons.
func (e *Engine) GrantAddon(ctx context.Context, userID string, addon tier.AddonID) (*profile.Profile, error) {
	if userID == "" || !tier.ValidAddon(addon) {
		return nil, ErrInvalidInput
	}

	var updated *profile.Profile
	err := e.withConflictRetry(ctx, func() error {
		p, err := e.store.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		if p.Tier == tier.Free {
			return ErrAddonNotPermitted
		}
		if p.HasAddon(addon) {
			updated = p
			return nil
		}

		p.Addons = append(p.Addons, addon)
		if err := e.store.UpdateProfile(ctx, p); err != nil {
			return err
		}

		e.logger.Info("addon granted", "user_id", userID, "addon", addon)
		e.plugins.EmitAddonGranted(ctx, userID, string(addon))
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RevokeAddon removes an add-on from the profile's active set. Revoking an
// inactive add-on is a no-op.
func (e *Engine) RevokeAddon(ctx context.Context, userID string, addon tier.AddonID) (*profile.Profile, error) {
	if userID == "" || !tier.ValidAddon(addon) {
		return nil, ErrInvalidInput
	}

	var updated *profile.Profile
	err := e.withConflictRetry(ctx, func() error {
		p, err := e.store.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		if !p.HasAddon(addon) {
			updated = p
			return nil
		}

		kept := make([]tier.AddonID, 0, len(p.Addons))
		for _, a := range p.Addons {
			if a != addon {
				kept = append(kept, a)
			}
		}
		p.Addons = kept
		if err := e.store.UpdateProfile(ctx, p); err != nil {
			return err
		}

		e.logger.Info("addon revoked", "user_id", userID, "addon", addon)
		e.plugins.EmitAddonRevoked(ctx, userID, string(addon))
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CanAccessAddon reports whether the add-on gated feature is available to the
// user under the tier policy. Read-only.
func (e *Engine) CanAccessAddon(ctx context.Context, userID string, addon tier.AddonID) (bool, error) {
	p, err := e.GetProfile(ctx, userID)
	if err != nil {
		return false, err
	}
	t := e.catalog.Get(p.Tier)
	return entitlement.CanAccessAddon(t, addon, p.Addons), nil
}

// ──────────────────────────────────────────────────
// Usage Accounting
// ──────────────────────────────────────────────────

// AuthorizeAndConsume is the composed operation used by the surrounding
// application: load (or create) the profile, evaluate the quota, and on
// success consume one unit and append a usage log entry.
//
// A denial is a normal Allowed=false result carrying the upgrade prompt
// reason — never an error. Store failures are surfaced as transient errors
// and are never interpreted as "quota exhausted".
//
// The read-check-increment sequence is serialized per user via the store's
// conditional write: a collision is retried with a fresh read, so two
// concurrent calls at remaining=1 yield exactly one success.
func (e *Engine) AuthorizeAndConsume(ctx context.Context, userID, action, detail string) (*entitlement.Result, error) {
	if userID == "" || action == "" {
		return nil, ErrInvalidInput
	}

	today := e.today()

	var result *entitlement.Result
	err := e.withConflictRetry(ctx, func() error {
		p, err := e.LoadOrCreateProfile(ctx, userID)
		if err != nil {
			return err
		}
		t := e.catalog.Get(p.Tier)

		res := entitlement.Evaluate(p, t, today)
		res.Action = action
		if !res.Allowed {
			res.Reason = entitlement.UpgradeMessage(t)
			e.plugins.EmitQuotaDenied(ctx, userID, action, res.Used, res.Limit)
			e.plugins.EmitEntitlementChecked(ctx, res)
			result = res
			return nil
		}

		// Reset-if-stale, then increment: the first action of a new day
		// always succeeds with a counter of 1.
		p.ResetIfStale(today)
		p.DailyUsageCount++
		if err := e.store.UpdateProfile(ctx, p); err != nil {
			return err
		}

		entry := usage.NewLogEntry(userID, action, detail, e.now())
		if err := e.store.AppendUsage(ctx, entry); err != nil {
			// The unit is already consumed; losing the audit row is better
			// than double-charging the user with a retry.
			e.logger.Warn("usage log append failed",
				"user_id", userID,
				"action", action,
				"error", err,
			)
		} else {
			e.plugins.EmitUsageRecorded(ctx, entry)
		}

		res = &entitlement.Result{
			Allowed:   true,
			Action:    action,
			Used:      p.EffectiveCount(today),
			Limit:     t.DailyQuota,
			Remaining: entitlement.Remaining(p, t, today),
		}
		e.plugins.EmitEntitlementChecked(ctx, res)
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Remaining returns the user's remaining quota for today, accounting for a
// pending lazy reset. Read-only: it never mutates the stored counter.
func (e *Engine) Remaining(ctx context.Context, userID string) (int64, error) {
	p, err := e.GetProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	t := e.catalog.Get(p.Tier)
	return entitlement.Remaining(p, t, e.today()), nil
}

// Check evaluates the quota without consuming. Read-only.
func (e *Engine) Check(ctx context.Context, userID string) (*entitlement.Result, error) {
	p, err := e.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	t := e.catalog.Get(p.Tier)
	return entitlement.Evaluate(p, t, e.today()), nil
}

// UsageHistory returns the user's usage log entries matching opts.
func (e *Engine) UsageHistory(ctx context.Context, userID string, opts usage.QueryOpts) ([]*usage.LogEntry, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	entries, err := e.store.QueryUsage(ctx, userID, opts)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return entries, nil
}

// PurgeUsage deletes usage log entries older than before. Retention helper
// for operators; profiles are never touched.
func (e *Engine) PurgeUsage(ctx context.Context, before time.Time) (int64, error) {
	n, err := e.store.PurgeUsage(ctx, before)
	if err != nil {
		return 0, wrapStoreErr(err)
	}
	if n > 0 {
		e.logger.Info("purged usage log entries", "count", n, "before", before)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// withConflictRetry runs fn, re-running it with a fresh read after each
// optimistic-write collision, up to the configured bound. Exhaustion is
// surfaced as a transient failure — never as a quota denial.
func (e *Engine) withConflictRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < e.conflictRetries; attempt++ {
		if ctx.Err() != nil {
			return wrapStoreErr(ctx.Err())
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			if IsNotFound(err) || errors.Is(err, ErrAddonNotPermitted) || errors.Is(err, ErrInvalidInput) {
				return err
			}
			return wrapStoreErr(err)
		}

		e.logger.Debug("conflict, retrying", "attempt", attempt+1)
	}
	return fmt.Errorf("%w (%d attempts): %w", ErrRetriesExceeded, e.conflictRetries, err)
}

// wrapStoreErr classifies unexpected store failures as transient so callers
// retry with backoff instead of misreading them as denials.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsConflict(err) || IsTransient(err) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
