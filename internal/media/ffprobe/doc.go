// Package ffprobe builds ffprobe invocations and decodes their JSON output
// into typed stream and format records.
//
// Execution lives with the caller (the encoder adapter drives the binary
// through its Runner); this package only knows the argument list and the
// payload shape, plus the helpers that read durations, sizes, bit rates and
// frame rates out of ffprobe's string-typed numbers.
package ffprobe
