package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"slackscribe/internal/api"
	"slackscribe/internal/audiofmt"
	"slackscribe/internal/config"
	"slackscribe/internal/deps"
	"slackscribe/internal/ledger"
	"slackscribe/internal/logging"
	"slackscribe/internal/metrics"
	"slackscribe/internal/notifications"
	"slackscribe/internal/pipeline"
	"slackscribe/internal/preflight"
)

// Daemon serves webhooks and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    ledger.Store
	pipeline *pipeline.Pipeline
	metrics  *metrics.Recorder
	janitor  *ledger.Janitor
	server   *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New constructs a daemon around an opened ledger store and a wired pipeline.
// rec may be nil when metrics are disabled.
func New(cfg *config.Config, store ledger.Store, pipe *pipeline.Pipeline, rec *metrics.Recorder, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || pipe == nil {
		return nil, errors.New("daemon requires config, ledger store, and pipeline")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		pipeline: pipe,
		metrics:  rec,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.janitor = ledger.NewJanitor(store, cfg.LedgerExpireInterval(), logger, rec.LedgerExpired)

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.server = server
	return d, nil
}

// Start acquires the daemon lock, starts the ledger janitor, and begins
// serving HTTP.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another slackscribe daemon instance is already running")
	}

	for _, failed := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String(logging.FieldErrorHint, failed.Detail),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.janitor.Run(runCtx)
	}()

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("slackscribe daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.addr()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop drains the HTTP server, stops the janitor, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.server.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("slackscribe daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the ledger store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the address the HTTP server is bound to, or "" before Start.
func (d *Daemon) Addr() string {
	return d.server.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		LedgerDriver: d.cfg.Ledger.Driver,
		Services:     preflight.Services(d.cfg),
		Dependencies: api.FromDependencies(preflight.CheckSystemDeps(d.cfg)),
	}
	if status.Running {
		status.StartedAt = d.startedAt.UTC().Format(time.RFC3339)
	}
	stats, err := d.store.Stats(ctx)
	if err != nil {
		status.LedgerError = err.Error()
	} else {
		status.Ledger = api.FromLedgerStats(stats)
	}
	return status
}

// Health reports the unauthenticated service summary. Status is "degraded"
// when the ledger cannot be read or a required binary is missing.
func (d *Daemon) Health(ctx context.Context) api.HealthResponse {
	binaries := preflight.CheckSystemDeps(d.cfg)
	resp := api.HealthResponse{
		Status:           "ok",
		Services:         preflight.Services(d.cfg),
		SupportedFormats: audiofmt.Extensions(),
		Dependencies:     api.FromDependencies(binaries),
	}
	stats, err := d.store.Stats(ctx)
	if err != nil {
		resp.Status = "degraded"
	} else {
		resp.Ledger = api.FromLedgerStats(stats)
	}
	if len(deps.Missing(binaries)) > 0 {
		resp.Status = "degraded"
	}
	return resp
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	return SendTestNotification(ctx, d.cfg)
}

// SendTestNotification sends a test notification without a running daemon.
func SendTestNotification(ctx context.Context, cfg *config.Config) (bool, string, error) {
	if cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
