// Package metadata flattens an ffprobe result into the scalar fields served as
// HTTP response headers.
package metadata

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vidmerge/internal/media/ffprobe"
)

// Field keys, before header-name rendering.
const (
	VideoCodec      = "video-codec"
	VideoResolution = "video-resolution"
	VideoDuration   = "video-duration"
	VideoBitRate    = "video-bit-rate"
	VideoFrameRate  = "video-frame-rate"
	AudioCodec      = "audio-codec"
	AudioChannels   = "audio-channels"
	AudioSampleRate = "audio-sample-rate"
	AudioBitRate    = "audio-bit-rate"
	FormatName      = "format-name"
	FormatSize      = "format-size"
	FormatBitRate   = "format-bit-rate"
)

// Metadata maps header names (X-Video-Codec, ...) to scalar string values.
type Metadata map[string]string

// HeaderName renders a field key as its response header name, for example
// "video-bit-rate" becomes "X-Video-Bit-Rate".
func HeaderName(key string) string {
	// Casers are stateful; one per call keeps this safe across goroutines.
	titler := cases.Title(language.Und)
	parts := strings.Split(strings.ToLower(key), "-")
	for i, part := range parts {
		parts[i] = titler.String(part)
	}
	return "X-" + strings.Join(parts, "-")
}

// FromProbe extracts the first video stream, the first audio stream and the
// container format. Missing streams contribute nothing. Falsy values are
// omitted rather than emitted as zero.
func FromProbe(result ffprobe.Result) Metadata {
	md := make(Metadata)
	if video, ok := result.FirstVideo(); ok {
		md.set(VideoCodec, video.CodecName)
		md.set(VideoResolution, video.Resolution())
		duration := video.Duration
		if isFalsy(duration) {
			duration = result.Format.Duration
		}
		md.set(VideoDuration, duration)
		md.set(VideoBitRate, video.BitRate)
		md.set(VideoFrameRate, formatRate(video.FrameRate()))
	}
	if audio, ok := result.FirstAudio(); ok {
		md.set(AudioCodec, audio.CodecName)
		md.set(AudioChannels, strconv.Itoa(audio.Channels))
		md.set(AudioSampleRate, audio.SampleRate)
		md.set(AudioBitRate, audio.BitRate)
	}
	md.set(FormatName, result.Format.FormatName)
	md.set(FormatSize, result.Format.Size)
	md.set(FormatBitRate, result.Format.BitRate)
	return md
}

func (m Metadata) set(key, value string) {
	value = strings.TrimSpace(value)
	if isFalsy(value) {
		return
	}
	m[HeaderName(key)] = value
}

// Get returns the value stored for a field key.
func (m Metadata) Get(key string) string {
	return m[HeaderName(key)]
}

// Apply writes every field onto h.
func (m Metadata) Apply(h http.Header) {
	for name, value := range m {
		h.Set(name, value)
	}
}

// Names returns the header names in sorted order.
func (m Metadata) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compatible reports whether two inputs can be joined by stream copy. It
// compares video codec, resolution and audio codec; a field missing on both
// sides is equal.
func Compatible(a, b Metadata) error {
	for _, key := range []string{VideoCodec, VideoResolution, AudioCodec} {
		if av, bv := a.Get(key), b.Get(key); av != bv {
			return fmt.Errorf("%s differs: %q vs %q", key, av, bv)
		}
	}
	return nil
}

func isFalsy(value string) bool {
	switch strings.TrimSpace(value) {
	case "", "0", "0/0", "N/A":
		return true
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && f == 0 {
		return true
	}
	return false
}

func formatRate(rate float64) string {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return ""
	}
	return strconv.FormatFloat(math.Round(rate*100)/100, 'f', -1, 64)
}
