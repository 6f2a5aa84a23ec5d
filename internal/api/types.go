package api

import (
	"slackscribe/internal/preflight"
	"slackscribe/internal/result"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// LedgerEntry describes a ledger claim in a transport-friendly format.
type LedgerEntry struct {
	Fingerprint string           `json:"fingerprint"`
	SourceID    string           `json:"source_id"`
	Status      string           `json:"status"`
	ClaimedAt   string           `json:"claimed_at,omitempty"`
	CompletedAt string           `json:"completed_at,omitempty"`
	ExpiresAt   string           `json:"expires_at,omitempty"`
	Result      *result.Combined `json:"result,omitempty"`
}

// LedgerStats summarizes ledger contents.
type LedgerStats struct {
	Total     int64 `json:"total"`
	Claimed   int64 `json:"claimed"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Expired   int64 `json:"expired"`
}

// LedgerListResponse wraps a collection of ledger entries.
type LedgerListResponse struct {
	Entries []LedgerEntry `json:"entries"`
}

// LedgerEntryResponse wraps a single ledger entry.
type LedgerEntryResponse struct {
	Entry LedgerEntry `json:"entry"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool                   `json:"running"`
	PID          int                    `json:"pid"`
	StartedAt    string                 `json:"started_at,omitempty"`
	LockFilePath string                 `json:"lock_file_path"`
	LedgerDriver string                 `json:"ledger_driver"`
	Ledger       LedgerStats            `json:"ledger"`
	LedgerError  string                 `json:"ledger_error,omitempty"`
	Services     preflight.ServiceFlags `json:"services"`
	Dependencies []DependencyStatus     `json:"dependencies"`
}

// HealthResponse is the unauthenticated health payload.
type HealthResponse struct {
	Status           string                 `json:"status"`
	Services         preflight.ServiceFlags `json:"services"`
	SupportedFormats []string               `json:"supported_formats"`
	Ledger           LedgerStats            `json:"ledger"`
	Dependencies     []DependencyStatus     `json:"dependencies"`
}
