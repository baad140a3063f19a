package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"vidmerge/internal/fileutil"
	"vidmerge/internal/logging"
	"vidmerge/internal/services"
	"vidmerge/internal/videoid"
)

// FSStore keeps artifacts under a local root directory, one subdirectory per
// tier. Writes are atomic, so a concurrent Exists never sees a partial file.
type FSStore struct {
	root   string
	logger *slog.Logger
}

var (
	_ Store   = (*FSStore)(nil)
	_ Checker = (*FSStore)(nil)
)

// NewFSStore returns a store rooted at root.
func NewFSStore(root string, logger *slog.Logger) *FSStore {
	return &FSStore{root: root, logger: logging.NewComponentLogger(logger, "fs_store")}
}

func (s *FSStore) path(tier Tier, id videoid.ID) string {
	return filepath.Join(s.root, filepath.FromSlash(Key(tier, id)))
}

// Exists implements Store.
func (s *FSStore) Exists(_ context.Context, tier Tier, id videoid.ID) (bool, error) {
	info, err := os.Stat(s.path(tier, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, services.Wrap(services.KindStorageUnavailable, stageStore, "exists", Key(tier, id), err)
	}
	return info.Mode().IsRegular(), nil
}

// Download implements Store.
func (s *FSStore) Download(ctx context.Context, tier Tier, id videoid.ID, dst string) error {
	src := s.path(tier, id)
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.KindNotFound, stageStore, "download", Key(tier, id), err)
		}
		return services.Wrap(services.KindStorageUnavailable, stageStore, "download", Key(tier, id), err)
	}
	sum, err := fileutil.CopyFileVerified(src, dst)
	if err != nil {
		return services.Wrap(services.KindStorageUnavailable, stageStore, "download", Key(tier, id), err)
	}
	logging.WithContext(ctx, s.logger).Debug("artifact downloaded",
		logging.String("key", Key(tier, id)),
		logging.Int64("bytes", sum.Size),
	)
	return nil
}

// Upload implements Store.
func (s *FSStore) Upload(ctx context.Context, src string, tier Tier, id videoid.ID) error {
	if err := SniffFile(src); err != nil {
		return err
	}
	sum, err := fileutil.CopyFileVerified(src, s.path(tier, id))
	if err != nil {
		return services.Wrap(services.KindStorageUnavailable, stageStore, "upload", Key(tier, id), err)
	}
	logging.WithContext(ctx, s.logger).Debug("artifact uploaded",
		logging.String("key", Key(tier, id)),
		logging.Int64("bytes", sum.Size),
		logging.String("blake3", sum.BLAKE3),
	)
	return nil
}

// Check implements Checker by verifying the root is a writable directory.
func (s *FSStore) Check(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("store root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store root %s is not a directory", s.root)
	}
	probe, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("store root not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
