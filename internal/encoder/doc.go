// Package encoder drives ffmpeg and ffprobe for the merge pipeline and the
// upload path.
//
// Every primitive (Inspect, Truncate, Concatenate, Overlay, Normalize) is a
// single-method capability interface so callers and tests can depend on only
// what they use. FFmpeg implements all of them on top of a Runner, which owns
// process execution and the optional wall-clock timeout. Failures are
// classified with services kinds: unreadable inputs as KindUnreadableMedia,
// stream mismatches as KindIncompatible, everything else the tool rejects as
// KindEncodeFailed.
package encoder
