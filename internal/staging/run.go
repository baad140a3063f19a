package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"vidmerge/internal/logging"
	"vidmerge/internal/services"
)

// LockFileName is the per-run lock file held while a run is open.
const LockFileName = ".run.lock"

// Run id prefixes.
const (
	PrefixMerge    = "merge"
	PrefixUpload   = "upload"
	PrefixDownload = "download"
)

// Area allocates runs under a staging root.
type Area struct {
	root   string
	logger *slog.Logger
}

// NewArea returns an Area rooted at root.
func NewArea(root string, logger *slog.Logger) *Area {
	return &Area{root: root, logger: logging.NewComponentLogger(logger, "staging")}
}

// Root returns the staging root directory.
func (a *Area) Root() string { return a.root }

// Begin creates a fresh run directory and takes its lock.
func (a *Area) Begin(ctx context.Context, prefix string) (*Run, error) {
	if strings.TrimSpace(a.root) == "" {
		return nil, services.Wrap(services.KindInternal, "stage", "begin run", "staging root not configured", nil)
	}
	id := prefix + "-" + uuid.NewString()
	dir := filepath.Join(a.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.KindInternal, "stage", "begin run", "create run directory", err)
	}
	lock := flock.New(filepath.Join(dir, LockFileName))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		_ = os.RemoveAll(dir)
		if err == nil {
			err = errors.New("lock held by another process")
		}
		return nil, services.Wrap(services.KindInternal, "stage", "begin run", "lock run directory", err)
	}
	run := &Run{
		id:     id,
		dir:    dir,
		lock:   lock,
		logger: a.logger.With(logging.String(logging.FieldRunID, id)),
	}
	logging.WithContext(ctx, run.logger).Debug("staging run opened", logging.String("path", dir))
	return run, nil
}

// Run is one request's scratch directory. Paths handed out by a run are only
// valid until Close.
type Run struct {
	id     string
	dir    string
	lock   *flock.Flock
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// ID returns the run identifier, which is also the directory name.
func (r *Run) ID() string { return r.id }

// Dir returns the run directory.
func (r *Run) Dir() string { return r.dir }

// Path returns a path inside the run for an internally chosen file name.
func (r *Run) Path(name string) string {
	return filepath.Join(r.dir, filepath.Base(name))
}

// Release removes one staged file early. Failures are logged; Close retries
// by removing the whole directory.
func (r *Run) Release(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "staged file release failed", "staging_release_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "file remains until the run closes"),
		)
	}
}

// Close removes the run directory and drops its lock. It is safe to call more
// than once; later calls are no-ops.
func (r *Run) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	removeErr := os.RemoveAll(r.dir)
	unlockErr := r.lock.Unlock()
	if removeErr != nil {
		return fmt.Errorf("remove run directory %s: %w", r.dir, removeErr)
	}
	if unlockErr != nil {
		return fmt.Errorf("unlock run %s: %w", r.id, unlockErr)
	}
	return nil
}

// isLive reports whether another holder has the run lock in dir.
func isLive(dir string) bool {
	lockPath := filepath.Join(dir, LockFileName)
	if _, err := os.Stat(lockPath); err != nil {
		return false
	}
	probe := flock.New(lockPath)
	locked, err := probe.TryLock()
	if err != nil {
		return true
	}
	if !locked {
		return true
	}
	_ = probe.Unlock()
	return false
}
