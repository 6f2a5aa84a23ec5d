// Package ledger records which Slack files have already been processed so the
// same upload is transcribed and published at most once per retention window.
//
// A Store claims fingerprints atomically, records the terminal outcome of a
// claim, and purges entries whose expiry has passed. Expired entries count as
// absent: the next claim replaces them. SQLite is the default backend and is
// safe across processes on one host; Postgres serves multi-host deployments;
// the memory backend exists for tests and one-shot CLI runs.
//
// The SQLite and Postgres backends share one implementation and differ only in
// schema text and placeholder style. Schema changes bump schemaVersion; the
// ledger is transient, so operators clear the database to adopt a new schema.
package ledger
