package ffprobe

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	CodecTag     string `json:"codec_tag_string"`
	Profile      string `json:"profile"`
	PixFmt       string `json:"pix_fmt"`
	Duration     string `json:"duration"`
	BitRate      string `json:"bit_rate"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`

	Tags map[string]string `json:"tags"`
}

// ErrEmpty is returned by Parse when ffprobe reported neither streams nor a
// container format.
var ErrEmpty = errors.New("ffprobe reported no streams or format")

// Args returns the ffprobe argument list that inspects path as JSON.
func Args(path string) []string {
	return []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path}
}

// Parse decodes an ffprobe JSON payload produced with Args.
func Parse(output []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	if len(result.Streams) == 0 && strings.TrimSpace(result.Format.FormatName) == "" {
		return Result{}, ErrEmpty
	}
	result.raw = append([]byte(nil), output...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countType("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countType("audio")
}

func (r Result) countType(codecType string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			count++
		}
	}
	return count
}

// FirstVideo returns the first video stream, if any.
func (r Result) FirstVideo() (Stream, bool) {
	return r.first("video")
}

// FirstAudio returns the first audio stream, if any.
func (r Result) FirstAudio() (Stream, bool) {
	return r.first("audio")
}

func (r Result) first(codecType string) (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			return stream, true
		}
	}
	return Stream{}, false
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	rate := parseFloat(r.Format.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

// Resolution renders WxH, or "" when the stream carries no dimensions.
func (s Stream) Resolution() string {
	if s.Width <= 0 || s.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// FrameRate returns the stream frame rate in frames per second. The average
// rate is preferred; r_frame_rate is the fallback. Returns 0 when unknown.
func (s Stream) FrameRate() float64 {
	for _, candidate := range []string{s.AvgFrameRate, s.RFrameRate} {
		if rate := parseRational(candidate); rate > 0 {
			return rate
		}
	}
	return 0
}

func parseRational(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	num, den, found := strings.Cut(value, "/")
	if !found {
		f := parseFloat(num)
		if math.IsNaN(f) {
			return 0
		}
		return f
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
