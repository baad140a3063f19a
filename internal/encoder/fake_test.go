package encoder_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"vidmerge/internal/encoder"
)

// scriptedRunner answers ffprobe with canned JSON per input path and makes
// ffmpeg write a marker file to the invocation's output.
type scriptedRunner struct {
	mu        sync.Mutex
	probes    map[string]string
	ffmpegErr string
	calls     []encoder.Invocation
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{probes: make(map[string]string)}
}

func (r *scriptedRunner) setProbe(path, codec string, width, height int, duration float64) {
	r.setTaggedProbe(path, codec, width, height, duration, "")
}

func (r *scriptedRunner) setTaggedProbe(path, codec string, width, height int, duration float64, comment string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes[path] = fmt.Sprintf(`{"streams":[{"index":0,"codec_type":"video","codec_name":%q,"width":%d,"height":%d},`+
		`{"index":1,"codec_type":"audio","codec_name":"aac","channels":2}],`+
		`"format":{"format_name":"mov,mp4","duration":"%f","tags":{"comment":%q}}}`, codec, width, height, duration, comment)
}

func (r *scriptedRunner) Run(_ context.Context, inv encoder.Invocation) (encoder.Outcome, error) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	r.mu.Unlock()

	switch inv.Binary {
	case "ffprobe":
		path := inv.Args[len(inv.Args)-1]
		r.mu.Lock()
		payload, ok := r.probes[path]
		r.mu.Unlock()
		if !ok {
			return encoder.Outcome{ExitCode: 1, Diagnostics: path + ": Invalid data found when processing input"}, nil
		}
		return encoder.Outcome{Stdout: []byte(payload)}, nil
	case "ffmpeg":
		if r.ffmpegErr != "" {
			return encoder.Outcome{ExitCode: 1, Diagnostics: r.ffmpegErr}, nil
		}
		if err := os.WriteFile(inv.Output, []byte("encoded:"+strings.Join(inv.Args, " ")), 0o644); err != nil {
			return encoder.Outcome{}, err
		}
		return encoder.Outcome{Output: inv.Output}, nil
	}
	return encoder.Outcome{}, fmt.Errorf("unexpected binary %q", inv.Binary)
}

func (r *scriptedRunner) ffmpegCalls() []encoder.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []encoder.Invocation
	for _, call := range r.calls {
		if call.Binary == "ffmpeg" {
			out = append(out, call)
		}
	}
	return out
}
