package api

import (
	"context"
	"errors"

	"slackscribe/internal/ledger"
)

// DefaultListLimit is the page size used when callers pass no limit.
const DefaultListLimit = 50

const maxListLimit = 500

// LedgerService exposes read-only ledger operations returning API DTOs.
type LedgerService struct {
	reader ledger.Inspector
}

// NewLedgerService constructs a LedgerService around the provided reader.
func NewLedgerService(reader ledger.Inspector) *LedgerService {
	if reader == nil {
		return nil
	}
	return &LedgerService{reader: reader}
}

// ClampLimit applies the default and upper bound to a requested list size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, maxListLimit)
}

// List returns the most recent entries, newest first.
func (s *LedgerService) List(ctx context.Context, limit int) ([]LedgerEntry, error) {
	if s == nil || s.reader == nil {
		return nil, nil
	}
	entries, err := s.reader.List(ctx, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	return FromLedgerEntries(entries), nil
}

// Stats returns ledger totals.
func (s *LedgerService) Stats(ctx context.Context) (LedgerStats, error) {
	if s == nil || s.reader == nil {
		return LedgerStats{}, nil
	}
	stats, err := s.reader.Stats(ctx)
	if err != nil {
		return LedgerStats{}, err
	}
	return FromLedgerStats(stats), nil
}

// Describe fetches a single entry. It returns nil without error when the
// fingerprint is unknown.
func (s *LedgerService) Describe(ctx context.Context, fingerprint string) (*LedgerEntry, error) {
	if s == nil || s.reader == nil {
		return nil, nil
	}
	entry, err := s.reader.Get(ctx, fingerprint)
	if errors.Is(err, ledger.ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dto := FromLedgerEntry(entry)
	return &dto, nil
}
