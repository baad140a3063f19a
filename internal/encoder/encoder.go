package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vidmerge/internal/config"
	"vidmerge/internal/logging"
	"vidmerge/internal/media/ffprobe"
	"vidmerge/internal/services"
)

// Inspector reads stream and container properties.
type Inspector interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Truncator caps a file's duration.
type Truncator interface {
	Truncate(ctx context.Context, src, dst string, max time.Duration) error
}

// Concatenator joins files in order.
type Concatenator interface {
	Concatenate(ctx context.Context, srcs []string, dst string) error
}

// Overlayer burns the watermark into a file.
type Overlayer interface {
	Overlay(ctx context.Context, src, dst string) error
}

// Normalizer re-encodes an upload to the standard codec pair.
type Normalizer interface {
	Normalize(ctx context.Context, src, dst string) error
}

// Encoder is the full set of media primitives.
type Encoder interface {
	Inspector
	Truncator
	Concatenator
	Overlayer
	Normalizer
}

const stageEncode = "encode"

// truncateTolerance absorbs container duration rounding on files Truncate
// itself produced, so a file already cut to the cap is not cut again.
const truncateTolerance = 100 * time.Millisecond

// Options configures the ffmpeg adapter.
type Options struct {
	FFmpegBinary    string
	FFprobeBinary   string
	VideoCodec      string
	AudioCodec      string
	WatermarkPath   string
	WatermarkScale  float64
	WatermarkMargin int
}

// OptionsFromConfig extracts encoder options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FFmpegBinary:    cfg.Encoder.FFmpegBinary,
		FFprobeBinary:   cfg.Encoder.FFprobeBinary,
		VideoCodec:      cfg.Encoder.VideoCodec,
		AudioCodec:      cfg.Encoder.AudioCodec,
		WatermarkPath:   cfg.Encoder.WatermarkPath,
		WatermarkScale:  cfg.Encoder.WatermarkScale,
		WatermarkMargin: cfg.Encoder.WatermarkMargin,
	}
}

// FFmpeg implements Encoder with the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	opts   Options
	runner Runner
	logger *slog.Logger
}

var _ Encoder = (*FFmpeg)(nil)

// New constructs an adapter. A nil runner selects an unbounded ExecRunner.
func New(opts Options, runner Runner, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(opts.FFmpegBinary) == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(opts.FFprobeBinary) == "" {
		opts.FFprobeBinary = "ffprobe"
	}
	if opts.VideoCodec == "" {
		opts.VideoCodec = "libx264"
	}
	if opts.AudioCodec == "" {
		opts.AudioCodec = "aac"
	}
	if opts.WatermarkScale <= 0 {
		opts.WatermarkScale = 0.1
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &FFmpeg{
		opts:   opts,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "encoder"),
	}
}

// NewFromConfig builds the adapter the server uses, with the configured
// process timeout.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *FFmpeg {
	return New(OptionsFromConfig(cfg), ExecRunner{Timeout: cfg.ProcessTimeout()}, logger)
}

// run executes one invocation and converts any failure into a classified
// error of the given kind.
func (f *FFmpeg) run(ctx context.Context, kind services.Kind, operation string, inv Invocation) (Outcome, error) {
	logger := logging.WithContext(ctx, f.logger)
	logger.Debug("running media tool",
		logging.String("binary", inv.Binary),
		logging.String("operation", operation),
		logging.Strings("args", inv.Args),
	)
	started := time.Now()
	outcome, err := f.runner.Run(ctx, inv)
	if err != nil {
		return outcome, services.Wrap(kind, stageEncode, operation, "media tool did not complete", err)
	}
	if outcome.ExitCode != 0 {
		cause := fmt.Errorf("%s exited with status %d: %s", inv.Binary, outcome.ExitCode, outcome.Diagnostics)
		return outcome, services.Wrap(kind, stageEncode, operation, "media tool failed", cause)
	}
	logger.Debug("media tool finished",
		logging.String("operation", operation),
		logging.Duration("elapsed", time.Since(started)),
	)
	return outcome, nil
}
