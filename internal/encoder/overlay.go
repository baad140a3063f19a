package encoder

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"vidmerge/internal/services"
)

// Overlay burns the configured watermark into the bottom-right corner of src,
// scaled relative to the frame height. Audio is stream-copied.
func (f *FFmpeg) Overlay(ctx context.Context, src, dst string) error {
	if _, err := os.Stat(f.opts.WatermarkPath); err != nil {
		return services.Wrap(services.KindEncodeFailed, stageEncode, "overlay", "watermark asset unavailable", err)
	}
	_, err := f.run(ctx, services.KindEncodeFailed, "overlay", Invocation{
		Binary: f.opts.FFmpegBinary,
		Args: []string{
			"-hide_banner", "-loglevel", "error", "-y",
			"-i", src,
			"-i", f.opts.WatermarkPath,
			"-filter_complex", f.overlayFilter(),
			"-map", "[out]",
			"-map", "0:a?",
			"-c:v", f.opts.VideoCodec,
			"-c:a", "copy",
			"-movflags", "+faststart",
			dst,
		},
		Output: dst,
	})
	return err
}

func (f *FFmpeg) overlayFilter() string {
	scale := strconv.FormatFloat(f.opts.WatermarkScale, 'f', -1, 64)
	margin := f.opts.WatermarkMargin
	return fmt.Sprintf("[1:v][0:v]scale2ref=w=oh*a:h=main_h*%s[wm][base];[base][wm]overlay=W-w-%d:H-h-%d[out]",
		scale, margin, margin)
}
