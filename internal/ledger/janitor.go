package ledger

import (
	"context"
	"log/slog"
	"time"

	"slackscribe/internal/logging"
)

// Janitor purges expired entries on a fixed interval, independently of the
// request path.
type Janitor struct {
	ledger    Ledger
	interval  time.Duration
	logger    *slog.Logger
	onExpired func(int64)
}

// NewJanitor builds a janitor. onExpired, when set, observes the number of
// entries removed by each successful sweep.
func NewJanitor(l Ledger, interval time.Duration, logger *slog.Logger, onExpired func(int64)) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		ledger:    l,
		interval:  interval,
		logger:    logging.NewComponentLogger(logger, "ledger-janitor"),
		onExpired: onExpired,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		j.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep performs one expiry pass and returns the number of entries removed.
func (j *Janitor) Sweep(ctx context.Context) int64 {
	removed, err := j.ledger.Expire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		logging.WarnWithContext(j.logger, "ledger expiry failed", "ledger_expire_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ledger database connectivity"),
		)
		return 0
	}
	if removed > 0 {
		j.logger.Info("expired ledger entries",
			logging.String(logging.FieldEventType, "ledger_expired"),
			logging.Int64("removed", removed),
		)
	}
	if j.onExpired != nil {
		j.onExpired(removed)
	}
	return removed
}
