package videos

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"vidmerge/internal/artifact"
	"vidmerge/internal/encoder"
	"vidmerge/internal/fileutil"
	"vidmerge/internal/logging"
	"vidmerge/internal/media/metadata"
	"vidmerge/internal/services"
	"vidmerge/internal/staging"
	"vidmerge/internal/videoid"
)

const (
	stageIngest = "ingest"
	stageFetch  = "fetch"
)

// ErrEmptyUpload is returned when the upload body carries no bytes.
var ErrEmptyUpload = errors.New("empty upload")

// Codec is the subset of encoder primitives the upload and download paths use.
type Codec interface {
	encoder.Inspector
	encoder.Normalizer
}

// Service serves uploads and downloads against a store.
type Service struct {
	store  artifact.Store
	codec  Codec
	area   *staging.Area
	newID  func() videoid.ID
	logger *slog.Logger
}

// New constructs a Service.
func New(store artifact.Store, codec Codec, area *staging.Area, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		codec:  codec,
		area:   area,
		newID:  videoid.New,
		logger: logging.NewComponentLogger(logger, "videos"),
	}
}

// Ingest stages body, normalizes it and stores it in the uploaded tier under
// a fresh id. Bodies that are empty or not decodable video are
// services.KindUnreadableMedia. Read errors from body are wrapped, so callers
// can still detect *http.MaxBytesError with errors.As.
func (s *Service) Ingest(ctx context.Context, body io.Reader) (videoid.ID, error) {
	ctx = services.WithStage(ctx, stageIngest)
	started := time.Now()
	run, err := s.area.Begin(ctx, staging.PrefixUpload)
	if err != nil {
		return "", err
	}
	defer s.closeRun(ctx, run)
	ctx = services.WithRunID(ctx, run.ID())
	logger := logging.WithContext(ctx, s.logger)

	source := run.Path("source")
	sum, err := fileutil.WriteAtomic(source, body)
	if err != nil {
		return "", services.Wrap(services.KindUnreadableMedia, stageIngest, "receive", "read upload body", err)
	}
	if sum.Size == 0 {
		return "", services.Wrap(services.KindUnreadableMedia, stageIngest, "receive", "invalid video file", ErrEmptyUpload)
	}
	logger.Debug("upload received",
		logging.Int64("size_bytes", sum.Size),
		logging.String("blake3", sum.BLAKE3),
	)

	normalized := run.Path("normalized.mp4")
	if err := s.codec.Normalize(ctx, source, normalized); err != nil {
		return "", err
	}
	run.Release(ctx, source)

	id := s.newID()
	if err := s.store.Upload(ctx, normalized, artifact.TierUploaded, id); err != nil {
		return "", err
	}
	logger.Info("upload stored",
		logging.String(logging.FieldEventType, "upload_stored"),
		logging.String(logging.FieldVideoID, string(id)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return id, nil
}

// Download is a staged copy of a stored video. Callers must Close it once the
// file has been served.
type Download struct {
	ID       videoid.ID
	Tier     artifact.Tier
	Path     string
	Size     int64
	Metadata metadata.Metadata

	run *staging.Run
}

// Close removes the staged copy.
func (d *Download) Close() error {
	if d == nil || d.run == nil {
		return nil
	}
	return d.run.Close()
}

// Fetch resolves raw to a stored video, preferring the uploaded tier, stages
// it and reads its metadata.
func (s *Service) Fetch(ctx context.Context, raw string) (*Download, error) {
	id, err := videoid.Parse(raw)
	if err != nil {
		return nil, err
	}
	ctx = services.WithStage(ctx, stageFetch)

	presences, err := artifact.Resolve(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	presence := presences[0]
	var tier artifact.Tier
	switch {
	case presence.Uploaded:
		tier = artifact.TierUploaded
	case presence.Merged:
		tier = artifact.TierMerged
	default:
		return nil, services.Reject(services.KindNotFound, "video not found", string(id))
	}

	run, err := s.area.Begin(ctx, staging.PrefixDownload)
	if err != nil {
		return nil, err
	}
	ctx = services.WithRunID(ctx, run.ID())
	download, err := s.stageDownload(ctx, run, id, tier)
	if err != nil {
		s.closeRun(ctx, run)
		if services.KindOf(err) == services.KindNotFound {
			return nil, services.Reject(services.KindNotFound, "video not found", string(id))
		}
		return nil, err
	}
	return download, nil
}

func (s *Service) stageDownload(ctx context.Context, run *staging.Run, id videoid.ID, tier artifact.Tier) (*Download, error) {
	path := run.Path("video.mp4")
	if err := s.store.Download(ctx, tier, id, path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.KindInternal, stageFetch, "stat", "read staged copy", err)
	}
	probe, err := s.codec.Inspect(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Download{
		ID:       id,
		Tier:     tier,
		Path:     path,
		Size:     info.Size(),
		Metadata: metadata.FromProbe(probe),
		run:      run,
	}, nil
}

func (s *Service) closeRun(ctx context.Context, run *staging.Run) {
	if err := run.Close(); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "staging cleanup failed", "videos_cleanup_failed",
			logging.String(logging.FieldRunID, run.ID()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "disk space held until the stale sweep"),
		)
	}
}
