package encoder

import (
	"context"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"vidmerge/internal/fileutil"
	"vidmerge/internal/logging"
	"vidmerge/internal/services"
)

// truncatedComment marks files written by Truncate with the cap they were cut
// to. Only marked files get truncateTolerance.
func truncatedComment(max time.Duration) string {
	return "vidmerge:truncated=" + strconv.FormatFloat(max.Seconds(), 'f', -1, 64)
}

// Truncate writes src capped to max into dst. An input already within the cap
// is copied byte for byte; longer inputs are re-encoded from the start. A file
// Truncate produced for the same cap may report up to truncateTolerance over
// it from container rounding and is still copied, so the operation is
// idempotent. Any other input longer than max is re-encoded.
func (f *FFmpeg) Truncate(ctx context.Context, src, dst string, max time.Duration) error {
	if max <= 0 {
		return services.Wrap(services.KindEncodeFailed, stageEncode, "truncate", "non-positive duration cap", nil)
	}
	probe, err := f.Inspect(ctx, src)
	if err != nil {
		return err
	}

	limit := max
	if probe.Format.Tags["comment"] == truncatedComment(max) {
		limit += truncateTolerance
	}
	duration := probe.DurationSeconds()
	if !math.IsNaN(duration) && duration > 0 && duration <= limit.Seconds() {
		logging.WithContext(ctx, f.logger).Debug("input within duration cap; copying",
			logging.String("source", filepath.Base(src)),
			logging.Float64("duration_seconds", duration),
		)
		if filepath.Clean(src) == filepath.Clean(dst) {
			return nil
		}
		if err := fileutil.CopyFile(src, dst); err != nil {
			return services.Wrap(services.KindEncodeFailed, stageEncode, "truncate", "copy input", err)
		}
		return nil
	}

	_, err = f.run(ctx, services.KindEncodeFailed, "truncate", Invocation{
		Binary: f.opts.FFmpegBinary,
		Args: []string{
			"-hide_banner", "-loglevel", "error", "-y",
			"-i", src,
			"-t", strconv.FormatFloat(max.Seconds(), 'f', -1, 64),
			"-c:v", f.opts.VideoCodec,
			"-c:a", f.opts.AudioCodec,
			"-movflags", "+faststart",
			"-metadata", "comment=" + truncatedComment(max),
			dst,
		},
		Output: dst,
	})
	return err
}
