package api

import (
	"time"

	"slackscribe/internal/deps"
	"slackscribe/internal/ledger"
	"slackscribe/internal/result"
)

// FromLedgerEntry converts a ledger record to its API representation.
func FromLedgerEntry(entry ledger.Entry) LedgerEntry {
	dto := LedgerEntry{
		Fingerprint: entry.Fingerprint,
		SourceID:    entry.SourceID,
		Status:      string(entry.Status),
		ClaimedAt:   formatTime(entry.ClaimedAt),
		CompletedAt: formatTime(entry.CompletedAt),
		ExpiresAt:   formatTime(entry.ExpiresAt),
	}
	if entry.ResultRef != "" {
		if combined, ok := result.ParseRef(entry.ResultRef); ok {
			dto.Result = &combined
		}
	}
	return dto
}

// FromLedgerEntries converts a slice of ledger records.
func FromLedgerEntries(entries []ledger.Entry) []LedgerEntry {
	out := make([]LedgerEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromLedgerEntry(entry))
	}
	return out
}

// FromLedgerStats converts ledger totals.
func FromLedgerStats(stats ledger.Stats) LedgerStats {
	return LedgerStats{
		Total:     stats.Total,
		Claimed:   stats.Claimed,
		Completed: stats.Completed,
		Failed:    stats.Failed,
		Expired:   stats.Expired,
	}
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// ProcessedAt is the moment a duplicate's first delivery finished, or when it
// was claimed if it is still in flight.
func ProcessedAt(entry ledger.Entry) string {
	if !entry.CompletedAt.IsZero() {
		return formatTime(entry.CompletedAt)
	}
	return formatTime(entry.ClaimedAt)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
