package testsupport

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"vidmerge/internal/encoder"
	"vidmerge/internal/media/ffprobe"
	"vidmerge/internal/services"
)

// FakeEncoder implements encoder.Encoder with plain file operations over
// FakeMP4 fixtures: Concatenate appends inputs in order and Overlay appends a
// marker, so the published bytes reveal the order and the transforms applied.
type FakeEncoder struct {
	mu sync.Mutex
	// Duration is reported by Inspect for every readable input, in seconds.
	Duration float64
	// Fail, when set, makes the named operation fail with the error.
	Fail map[string]error
	// Delay stalls each operation, to widen concurrency windows in tests.
	Delay time.Duration

	calls map[string]int
}

var _ encoder.Encoder = (*FakeEncoder)(nil)

// OverlayMarker is appended by Overlay.
const OverlayMarker = "|watermark"

// NewFakeEncoder returns a FakeEncoder reporting 10 second inputs.
func NewFakeEncoder() *FakeEncoder {
	return &FakeEncoder{Duration: 10, Fail: make(map[string]error), calls: make(map[string]int)}
}

// Calls returns how many times op ran.
func (f *FakeEncoder) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeEncoder) begin(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	err := f.Fail[op]
	delay := f.Delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Inspect implements encoder.Inspector.
func (f *FakeEncoder) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	if err := f.begin(ctx, "inspect"); err != nil {
		return ffprobe.Result{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil || !IsFakeMP4(data) {
		return ffprobe.Result{}, services.Wrap(services.KindUnreadableMedia, "encode", "inspect", "not a video", err)
	}
	return ffprobe.Result{
		Streams: []ffprobe.Stream{
			{Index: 0, CodecType: "video", CodecName: "h264", Width: 1280, Height: 720, AvgFrameRate: "30/1"},
			{Index: 1, CodecType: "audio", CodecName: "aac", Channels: 2, SampleRate: "48000"},
		},
		Format: ffprobe.Format{
			FormatName: "mov,mp4,m4a,3gp,3g2,mj2",
			Duration:   fmt.Sprintf("%f", f.Duration),
			Size:       fmt.Sprint(len(data)),
		},
	}, nil
}

// Truncate implements encoder.Truncator by copying.
func (f *FakeEncoder) Truncate(ctx context.Context, src, dst string, _ time.Duration) error {
	if err := f.begin(ctx, "truncate"); err != nil {
		return err
	}
	return copyBytes(src, dst)
}

// Concatenate implements encoder.Concatenator by appending inputs in order.
func (f *FakeEncoder) Concatenate(ctx context.Context, srcs []string, dst string) error {
	if err := f.begin(ctx, "concatenate"); err != nil {
		return err
	}
	var out []byte
	for _, src := range srcs {
		data, err := os.ReadFile(src)
		if err != nil {
			return services.Wrap(services.KindEncodeFailed, "encode", "concatenate", "read input", err)
		}
		out = append(out, data...)
	}
	return os.WriteFile(dst, out, 0o644)
}

// Overlay implements encoder.Overlayer by appending OverlayMarker.
func (f *FakeEncoder) Overlay(ctx context.Context, src, dst string) error {
	if err := f.begin(ctx, "overlay"); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return services.Wrap(services.KindEncodeFailed, "encode", "overlay", "read input", err)
	}
	return os.WriteFile(dst, append(data, OverlayMarker...), 0o644)
}

// Normalize implements encoder.Normalizer; unreadable inputs fail like ffprobe would.
func (f *FakeEncoder) Normalize(ctx context.Context, src, dst string) error {
	if _, err := f.Inspect(ctx, src); err != nil {
		return err
	}
	if err := f.begin(ctx, "normalize"); err != nil {
		return err
	}
	return copyBytes(src, dst)
}

func copyBytes(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return services.Wrap(services.KindEncodeFailed, "encode", "copy", "read input", err)
	}
	return os.WriteFile(dst, data, 0o644)
}
