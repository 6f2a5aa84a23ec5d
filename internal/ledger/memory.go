package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps entries in a guarded map. Claims are atomic within one
// process only.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	opts    options
}

// NewMemory returns an empty in-process ledger.
func NewMemory(opts ...Option) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		opts:    buildOptions(opts),
	}
}

// Claim implements Ledger.
func (m *MemoryStore) Claim(ctx context.Context, fingerprint, sourceID string) (ClaimResult, error) {
	if err := ctx.Err(); err != nil {
		return ClaimResult{}, err
	}
	now := m.opts.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[fingerprint]; ok && !existing.Expired(now) {
		prior := existing
		return ClaimResult{New: false, Prior: &prior}, nil
	}
	m.entries[fingerprint] = Entry{
		Fingerprint: fingerprint,
		SourceID:    sourceID,
		Status:      StatusClaimed,
		ClaimedAt:   now,
		ExpiresAt:   now.Add(m.opts.ttl),
	}
	return ClaimResult{New: true}, nil
}

// Complete implements Ledger.
func (m *MemoryStore) Complete(ctx context.Context, fingerprint string, status Status, resultRef string) error {
	if err := validTerminal(status); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := m.opts.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[fingerprint]
	if !ok || entry.Expired(now) {
		return ErrEntryNotFound
	}
	if entry.Status.Terminal() {
		if entry.Status == status && entry.ResultRef == resultRef {
			return nil
		}
		return ErrConflict
	}
	entry.Status = status
	entry.ResultRef = resultRef
	entry.CompletedAt = now
	m.entries[fingerprint] = entry
	return nil
}

// Expire implements Ledger.
func (m *MemoryStore) Expire(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := m.opts.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for fp, entry := range m.entries {
		if entry.Expired(now) {
			delete(m.entries, fp)
			removed++
		}
	}
	return removed, nil
}

// List implements Inspector. Entries are returned newest claim first.
func (m *MemoryStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	out := make([]Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClaimedAt.Equal(out[j].ClaimedAt) {
			return out[i].Fingerprint < out[j].Fingerprint
		}
		return out[i].ClaimedAt.After(out[j].ClaimedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get implements Inspector. Expired entries that have not been purged yet are
// still returned.
func (m *MemoryStore) Get(ctx context.Context, fingerprint string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[fingerprint]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return entry, nil
}

// Stats implements Inspector.
func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	now := m.opts.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats Stats
	for _, entry := range m.entries {
		stats.Total++
		switch entry.Status {
		case StatusClaimed:
			stats.Claimed++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		}
		if entry.Expired(now) {
			stats.Expired++
		}
	}
	return stats, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
