package ledger

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long a claim blocks reprocessing of the same fingerprint.
const DefaultTTL = 24 * time.Hour

// Status is the lifecycle state of a ledger entry.
type Status string

const (
	StatusClaimed   Status = "claimed"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status records a finished run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	// ErrConflict is returned when Complete is asked to overwrite a terminal
	// outcome with a different one.
	ErrConflict = errors.New("ledger entry already completed with a different outcome")
	// ErrEntryNotFound is returned when no live entry exists for a fingerprint.
	ErrEntryNotFound = errors.New("ledger entry not found")
	// ErrSchemaMismatch is returned when an existing database was created by a
	// different schema version.
	ErrSchemaMismatch = errors.New("ledger schema version mismatch")
)

// Entry is one claimed fingerprint.
type Entry struct {
	Fingerprint string
	SourceID    string
	Status      Status
	ClaimedAt   time.Time
	ExpiresAt   time.Time
	CompletedAt time.Time
	ResultRef   string
}

// Expired reports whether the entry no longer blocks a new claim at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// ClaimResult is the outcome of Claim. Prior is set when the fingerprint was
// already claimed and New is false.
type ClaimResult struct {
	New   bool
	Prior *Entry
}

// Ledger is the narrow duplicate-prevention contract used by the pipeline.
type Ledger interface {
	Claim(ctx context.Context, fingerprint, sourceID string) (ClaimResult, error)
	Complete(ctx context.Context, fingerprint string, status Status, resultRef string) error
	Expire(ctx context.Context) (int64, error)
}

// Stats summarizes ledger contents for operators.
type Stats struct {
	Total     int64
	Claimed   int64
	Completed int64
	Failed    int64
	Expired   int64
}

// Inspector exposes read-only views used by the operator API and CLI.
type Inspector interface {
	List(ctx context.Context, limit int) ([]Entry, error)
	Get(ctx context.Context, fingerprint string) (Entry, error)
	Stats(ctx context.Context) (Stats, error)
}

// Store is a complete ledger backend.
type Store interface {
	Ledger
	Inspector
	Close() error
}

type options struct {
	ttl time.Duration
	now func() time.Time
}

// Option configures a Store.
type Option func(*options)

// WithTTL overrides the claim retention window. Non-positive values keep DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for claims and expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validTerminal(status Status) error {
	if !status.Terminal() {
		return errors.New("ledger: complete requires a terminal status")
	}
	return nil
}
