// Package logging assembles structured slog loggers and formatting helpers used
// across slackscribe.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code automatically
// tags log lines with correlation IDs, source event IDs, stages, and asset
// indexes. A no-op logger is provided for tests and wiring code that cannot
// fail.
package logging
