// Package daemon coordinates the long-running slackscribe process.
//
// It wires configuration, the ledger store, the pipeline, metrics, and the
// ledger janitor into a single lifecycle with flock-based locking to prevent
// multiple instances sharing a work directory. The daemon owns the HTTP
// listener: the Slack webhook, the health endpoint, the bearer-protected
// operator API, and the Prometheus scrape endpoint.
//
// Keep orchestration logic here: request handling lives in the pipeline
// package while the daemon focuses on startup, shutdown, transport, and
// mapping pipeline outcomes onto HTTP responses.
package daemon
