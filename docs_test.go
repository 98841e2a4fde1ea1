package entitled_test

import (
	"context"
	"log"
	"log/slog"
	"testing"

	"github.com/fortunelabs/entitled"
	"github.com/fortunelabs/entitled/store/memory"
	"github.com/fortunelabs/entitled/tier"
	"github.com/fortunelabs/entitled/types"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		st := memory.New()

		// Initialize the engine
		eng := entitled.New(st,
			entitled.WithLogger(slog.Default()),
			entitled.WithConflictRetries(3),
		)

		// Start the engine
		ctx := context.Background()
		if err := eng.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer eng.Stop()

		// Profiles are created lazily; every user starts on the free tier
		p, err := eng.LoadOrCreateProfile(ctx, "user_123")
		if err != nil {
			t.Fatal(err)
		}
		if p.Tier != tier.Free {
			t.Fatalf("expected free tier, got %s", p.Tier)
		}

		// The composed check-and-consume call request handlers use
		result, err := eng.AuthorizeAndConsume(ctx, "user_123", "prediction", "powerball")
		if err != nil {
			t.Fatal(err)
		}

		if result.Allowed {
			log.Printf("prediction allowed. Remaining: %d\n", result.Remaining)
		} else {
			log.Printf("prediction denied: %s\n", result.Reason)
		}

		// Upgrade and buy an add-on
		if _, err := eng.ChangeTier(ctx, "user_123", tier.Pro); err != nil {
			t.Fatal(err)
		}
		if _, err := eng.GrantAddon(ctx, "user_123", tier.AddonCosmic); err != nil {
			t.Fatal(err)
		}

		ok, err := eng.CanAccessAddon(ctx, "user_123", tier.AddonCosmic)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatal("expected cosmic add-on to be accessible after grant")
		}
	})

	// Test Money type examples
	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.USD(499)    // $4.99
		_ = types.EUR(999)    // €9.99
		_ = types.Zero("usd") // $0.00

		// Arithmetic
		m1 := types.USD(100)
		m2 := types.USD(200)
		_ = m1.Add(m2)     // $3.00
		_ = m1.Multiply(3) // $3.00

		// Formatting
		_ = m1.String()      // "$1.00"
		_ = m1.FormatMajor() // "1.00"
	})
}
