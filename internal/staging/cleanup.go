package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidmerge/internal/logging"
)

// CleanStaleResult contains the outcome of a stale directory cleanup operation.
type CleanStaleResult struct {
	Removed []string
	Skipped []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes staging directories older than maxAge whose run lock is
// not held. A maxAge of 0 removes every unlocked directory. It returns the
// list of removed directories, the live ones it skipped, and any errors.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	logger = logging.WithContext(ctx, logger)

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dirPath := filepath.Join(stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}

		if maxAge > 0 && !info.ModTime().Before(cutoff) {
			continue
		}
		if isLive(dirPath) {
			result.Skipped = append(result.Skipped, dirPath)
			logger.Debug("skipping live staging run", logging.String("path", dirPath))
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			logging.WarnWithContext(logger, "failed to remove stale staging directory", "staging_cleanup_failed",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		logger.Info("removed stale staging directory",
			logging.String("path", dirPath),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}

	return result
}

// ListDirectories returns all directories in the staging directory with their metadata.
func ListDirectories(stagingDir string) ([]DirInfo, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		dirPath := filepath.Join(stagingDir, entry.Name())
		size, _ := dirSize(dirPath)

		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
			Live:    isLive(dirPath),
		})
	}

	return dirs, nil
}

// DirInfo contains metadata about a staging directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
	// Live is true while a run holds the directory's lock.
	Live bool
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Ignore errors, best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
