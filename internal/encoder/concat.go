package encoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vidmerge/internal/fileutil"
	"vidmerge/internal/logging"
	"vidmerge/internal/media/metadata"
	"vidmerge/internal/services"
)

var mismatchMarkers = []string{
	"mismatch",
	"does not match",
	"do not match",
	"incompatible",
	"codec parameters",
}

// Concatenate joins srcs in order into dst by stream copy. Inputs must agree
// on video codec, resolution and audio codec.
func (f *FFmpeg) Concatenate(ctx context.Context, srcs []string, dst string) error {
	if len(srcs) == 0 {
		return services.Wrap(services.KindEncodeFailed, stageEncode, "concatenate", "no inputs", nil)
	}

	var first metadata.Metadata
	for i, src := range srcs {
		probe, err := f.Inspect(ctx, src)
		if err != nil {
			return err
		}
		md := metadata.FromProbe(probe)
		if i == 0 {
			first = md
			continue
		}
		if err := metadata.Compatible(first, md); err != nil {
			return services.Wrap(services.KindIncompatible, stageEncode, "concatenate",
				fmt.Sprintf("input %d cannot be joined to input 1", i+1), err)
		}
	}

	if len(srcs) == 1 {
		if err := fileutil.CopyFile(srcs[0], dst); err != nil {
			return services.Wrap(services.KindEncodeFailed, stageEncode, "concatenate", "copy single input", err)
		}
		return nil
	}

	listPath := dst + ".ffconcat"
	if err := writeConcatList(listPath, srcs); err != nil {
		return services.Wrap(services.KindEncodeFailed, stageEncode, "concatenate", "write concat list", err)
	}
	defer func() {
		if err := os.Remove(listPath); err != nil && !os.IsNotExist(err) {
			logging.WarnWithContext(logging.WithContext(ctx, f.logger), "concat list cleanup failed", "concat_list_cleanup_failed",
				logging.String("path", listPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "list file remains until the staging run closes"),
			)
		}
	}()

	outcome, err := f.run(ctx, services.KindEncodeFailed, "concatenate", Invocation{
		Binary: f.opts.FFmpegBinary,
		Args: []string{
			"-hide_banner", "-loglevel", "error", "-y",
			"-f", "concat", "-safe", "0",
			"-i", listPath,
			"-c", "copy",
			"-movflags", "+faststart",
			dst,
		},
		Output: dst,
	})
	if err != nil && mentionsMismatch(outcome.Diagnostics) {
		return services.Wrap(services.KindIncompatible, stageEncode, "concatenate", "inputs rejected by muxer", err)
	}
	return err
}

func writeConcatList(path string, srcs []string) error {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, src := range srcs {
		abs, err := filepath.Abs(src)
		if err != nil {
			return err
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func mentionsMismatch(diagnostics string) bool {
	lower := strings.ToLower(diagnostics)
	for _, marker := range mismatchMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
