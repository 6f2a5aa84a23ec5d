// Package api defines wire-format types and converters for the daemon's HTTP
// surface and the CLI's JSON output. It translates ledger entries, dependency
// checks, and runtime state into transport-friendly DTOs so consumers never
// couple to internal types.
//
// # Key Types
//
// LedgerEntry: one duplicate-prevention claim with its decoded result.
//
// DaemonStatus: running state, lock path, ledger totals, service flags, and
// dependency availability.
//
// HealthResponse: the unauthenticated /health payload.
//
// # Converters
//
// FromLedgerEntry, FromLedgerStats, FromDependencies.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to match the webhook responses. Ledger
// statuses are exposed as lowercase strings. Timestamps use RFC3339 with
// milliseconds in UTC. Stored result references are decoded back into
// result.Combined so operators see counts and transcripts, not an opaque
// string.
package api
