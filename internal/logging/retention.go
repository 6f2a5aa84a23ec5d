package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	runLogPrefix = "slackscribe-"
	runLogSuffix = ".log"
	// CurrentRunLog is the stable name that points at the active run log.
	CurrentRunLog = "slackscribe.log"
)

// RunLogPath returns the per-run log file for runID inside dir.
func RunLogPath(dir, runID string) string {
	return filepath.Join(dir, runLogPrefix+runID+runLogSuffix)
}

func isRunLog(name string) bool {
	return strings.HasPrefix(name, runLogPrefix) &&
		strings.HasSuffix(name, runLogSuffix) &&
		len(name) > len(runLogPrefix)+len(runLogSuffix)
}

// PruneRunLogs deletes run logs in dir whose modification time is older than
// retentionDays and returns how many were removed. The active log and the
// CurrentRunLog pointer are never touched. Zero or negative retention
// disables pruning.
func PruneRunLogs(logger *slog.Logger, dir string, retentionDays int, active string) int {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	activeName := filepath.Base(active)

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isRunLog(name) || name == activeName {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "run log prune failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
			)
			continue
		}
		removed++
	}
	if removed > 0 && logger != nil {
		logger.Info("pruned expired run logs",
			String(FieldEventType, "log_pruned"),
			Int("removed", removed),
			Int("retention_days", retentionDays),
		)
	}
	return removed
}
