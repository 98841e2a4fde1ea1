// Package entitled provides a subscription entitlement and usage accounting
// core for Go applications.
//
// Entitled is designed as a library, not a service. Import it directly into
// your Go application and wire it behind your HTTP handlers. It provides:
//
//   - A closed tier catalog (free, starter, pro, elite) with daily quotas,
//     pricing, and add-on bundle rules
//   - A pure entitlement evaluator: can this user perform a quota-gated
//     action right now?
//   - Lazy daily quota resets anchored to UTC calendar dates
//   - An append-only usage ledger for support and abuse investigation
//   - Optimistic-concurrency profile writes with bounded retry
//   - Pluggable storage: in-memory, Postgres, SQLite, MongoDB, plus a
//     Redis read-through cache decorator
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/fortunelabs/entitled"
//	    "github.com/fortunelabs/entitled/store/postgres"
//	)
//
//	st, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	eng := entitled.New(st)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// Profiles are created lazily on first touch; every user starts on the free
// tier:
//
//	p, err := eng.LoadOrCreateProfile(ctx, userID)
//
// The composed authorize-and-consume operation is what request handlers call
// for quota-gated actions:
//
//	res, err := eng.AuthorizeAndConsume(ctx, userID, "prediction", "powerball")
//	if err != nil {
//	    // transient failure: retry later, never treat as a denial
//	}
//	if !res.Allowed {
//	    // show res.Reason (the upgrade prompt) to the user
//	}
//
// A denial is a normal result, not an error. Error returns are reserved for
// store failures and invalid input.
//
// # Concurrency
//
// Profile writes are conditional on a version counter. A losing writer
// re-reads and retries up to a configurable bound; two concurrent consumes at
// one remaining unit yield exactly one success. Profile creation is
// idempotent under the same discipline.
//
// # TypeID
//
// Profiles and usage log entries use TypeID for globally unique, type-safe
// identifiers:
//
//	prof_01h2xcejqtf2nbrexx3vqjhp41  // Profile ID
//	ulog_01h455vb4pex5vsknk084sn02q  // Usage log entry ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package entitled
