package encoder

import (
	"context"

	"vidmerge/internal/services"
)

// Normalize re-encodes an uploaded file to the standard codec pair with the
// moov atom up front. Inputs without a video stream are KindUnreadableMedia.
func (f *FFmpeg) Normalize(ctx context.Context, src, dst string) error {
	probe, err := f.Inspect(ctx, src)
	if err != nil {
		return err
	}
	if probe.VideoStreamCount() == 0 {
		return services.Wrap(services.KindUnreadableMedia, stageEncode, "normalize", "no video stream", nil)
	}
	_, err = f.run(ctx, services.KindEncodeFailed, "normalize", Invocation{
		Binary: f.opts.FFmpegBinary,
		Args: []string{
			"-hide_banner", "-loglevel", "error", "-y",
			"-i", src,
			"-map", "0:v:0",
			"-map", "0:a:0?",
			"-c:v", f.opts.VideoCodec,
			"-c:a", f.opts.AudioCodec,
			"-movflags", "+faststart",
			dst,
		},
		Output: dst,
	})
	return err
}
