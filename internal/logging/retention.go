package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneLogs removes *.log files in dir whose modification time is older than
// retentionDays, skipping the active log file. It returns the number of files
// removed. A retentionDays value of 0 disables pruning.
func PruneLogs(logger *slog.Logger, dir, active string, retentionDays int) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	if abs, err := filepath.Abs(active); err == nil {
		active = abs
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		fullPath := filepath.Join(dir, entry.Name())
		if abs, err := filepath.Abs(fullPath); err == nil {
			fullPath = abs
		}
		if fullPath == active {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(fullPath); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned", String("path", fullPath), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
