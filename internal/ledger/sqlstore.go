package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
	claimAttempts    = 3
)

type dialect struct {
	name              string
	schema            string
	versionTableQuery string
	numbered          bool
	busy              func(error) bool
}

// SQLStore is a Store backed by database/sql. SQLite and Postgres share it.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	opts    options
	target  string
}

const claimQuery = `
INSERT INTO ledger_entries (fingerprint, source_id, status, claimed_at, expires_at, completed_at, result_ref)
VALUES (?, ?, ?, ?, ?, 0, '')
ON CONFLICT (fingerprint) DO UPDATE SET
    source_id = excluded.source_id,
    status = excluded.status,
    claimed_at = excluded.claimed_at,
    expires_at = excluded.expires_at,
    completed_at = 0,
    result_ref = ''
WHERE ledger_entries.expires_at <= ?`

const completeQuery = `
UPDATE ledger_entries
SET status = ?, result_ref = ?, completed_at = ?
WHERE fingerprint = ? AND status = ? AND expires_at > ?`

const selectColumns = `fingerprint, source_id, status, claimed_at, expires_at, completed_at, result_ref`

func (s *SQLStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) retry(ctx context.Context, op func() error) error {
	if s.dialect.busy == nil {
		return op()
	}
	return retryOnBusy(ctx, s.dialect.busy, op)
}

// Claim implements Ledger. The upsert only replaces an existing row whose
// expiry has passed, so exactly one concurrent caller observes a changed row.
func (s *SQLStore) Claim(ctx context.Context, fingerprint, sourceID string) (ClaimResult, error) {
	query := s.rebind(claimQuery)
	for attempt := 0; attempt < claimAttempts; attempt++ {
		now := s.opts.now()
		var affected int64
		err := s.retry(ctx, func() error {
			res, err := s.db.ExecContext(ctx, query,
				fingerprint, sourceID, string(StatusClaimed),
				now.UnixNano(), now.Add(s.opts.ttl).UnixNano(),
				now.UnixNano(),
			)
			if err != nil {
				return err
			}
			affected, err = res.RowsAffected()
			return err
		})
		if err != nil {
			return ClaimResult{}, fmt.Errorf("claim fingerprint: %w", err)
		}
		if affected > 0 {
			return ClaimResult{New: true}, nil
		}

		prior, err := s.Get(ctx, fingerprint)
		if errors.Is(err, ErrEntryNotFound) {
			// Purged between the upsert and the read; claim again.
			continue
		}
		if err != nil {
			return ClaimResult{}, err
		}
		return ClaimResult{New: false, Prior: &prior}, nil
	}
	return ClaimResult{}, fmt.Errorf("claim fingerprint: entry churned during %d attempts", claimAttempts)
}

// Complete implements Ledger.
func (s *SQLStore) Complete(ctx context.Context, fingerprint string, status Status, resultRef string) error {
	if err := validTerminal(status); err != nil {
		return err
	}
	now := s.opts.now()
	var affected int64
	err := s.retry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, s.rebind(completeQuery),
			string(status), resultRef, now.UnixNano(),
			fingerprint, string(StatusClaimed), now.UnixNano(),
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("complete fingerprint: %w", err)
	}
	if affected > 0 {
		return nil
	}

	existing, err := s.Get(ctx, fingerprint)
	if err != nil {
		return err
	}
	if existing.Expired(now) {
		return ErrEntryNotFound
	}
	if existing.Status == status && existing.ResultRef == resultRef {
		return nil
	}
	return ErrConflict
}

// Expire implements Ledger.
func (s *SQLStore) Expire(ctx context.Context) (int64, error) {
	now := s.opts.now()
	var removed int64
	err := s.retry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM ledger_entries WHERE expires_at <= ?"), now.UnixNano())
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("expire entries: %w", err)
	}
	return removed, nil
}

// List implements Inspector. Entries are returned newest claim first; a
// non-positive limit selects the default page size.
func (s *SQLStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	query := s.rebind("SELECT " + selectColumns + " FROM ledger_entries ORDER BY claimed_at DESC, fingerprint LIMIT ?")
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Get implements Inspector.
func (s *SQLStore) Get(ctx context.Context, fingerprint string) (Entry, error) {
	query := s.rebind("SELECT " + selectColumns + " FROM ledger_entries WHERE fingerprint = ?")
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// Stats implements Inspector.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	query := s.rebind(`
SELECT
    COUNT(*),
    COALESCE(SUM(CASE WHEN status = 'claimed' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0)
FROM ledger_entries`)
	var stats Stats
	err := s.db.QueryRowContext(ctx, query, s.opts.now().UnixNano()).Scan(
		&stats.Total, &stats.Claimed, &stats.Completed, &stats.Failed, &stats.Expired,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("ledger stats: %w", err)
	}
	return stats, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Target describes where the store lives: a file path for SQLite or the
// driver name for Postgres.
func (s *SQLStore) Target() string {
	return s.target
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry                             Entry
		status                            string
		claimedAt, expiresAt, completedAt int64
	)
	if err := row.Scan(&entry.Fingerprint, &entry.SourceID, &status, &claimedAt, &expiresAt, &completedAt, &entry.ResultRef); err != nil {
		return Entry{}, err
	}
	entry.Status = Status(status)
	entry.ClaimedAt = time.Unix(0, claimedAt).UTC()
	entry.ExpiresAt = time.Unix(0, expiresAt).UTC()
	if completedAt > 0 {
		entry.CompletedAt = time.Unix(0, completedAt).UTC()
	}
	return entry, nil
}
