// Package logs reads the server log file for the `vidmerge logs` command.
//
// Last returns the trailing lines with bounded memory, Follow polls for
// appended lines and survives truncation when the file is rotated, and
// MatchField narrows JSON log lines to a single request or run so the
// X-Request-Id returned to a client can be traced through the pipeline.
package logs
