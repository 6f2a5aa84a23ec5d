// Package services defines shared utilities consumed by the ingestion pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp correlation IDs, source event IDs, stage
//     names, and asset indexes for logging.
//   - Structured error markers plus the Wrap helper. Markers give every
//     failure a stable kind, drive retry decisions, and pick the HTTP status
//     returned to webhook callers.
//   - Status and network classifiers shared by the Slack, transcription, and
//     ticketing clients.
//
// Subpackages hold the concrete upstream clients (Slack, transcription
// providers). Use these helpers when wiring a new integration so failure
// handling stays uniform across the pipeline.
package services
