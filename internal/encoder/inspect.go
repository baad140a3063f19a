package encoder

import (
	"context"

	"vidmerge/internal/media/ffprobe"
	"vidmerge/internal/services"
)

// Inspect runs ffprobe on path. Any failure is KindUnreadableMedia.
func (f *FFmpeg) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	outcome, err := f.run(ctx, services.KindUnreadableMedia, "inspect", Invocation{
		Binary: f.opts.FFprobeBinary,
		Args:   ffprobe.Args(path),
	})
	if err != nil {
		return ffprobe.Result{}, err
	}
	result, err := ffprobe.Parse(outcome.Stdout)
	if err != nil {
		return ffprobe.Result{}, services.Wrap(services.KindUnreadableMedia, stageEncode, "inspect", "unreadable probe output", err)
	}
	return result, nil
}
