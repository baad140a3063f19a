// Package services defines shared utilities consumed by the pipeline stages
// and the HTTP layer.
//
// Key responsibilities:
//   - The failure taxonomy (Kind) and the classified Error type built by Wrap
//     and Reject, plus the mapping from kinds to HTTP statuses and the
//     client-facing reason text.
//   - Context helpers that stamp request IDs, stage names and staging run IDs
//     for logging and tracing.
//
// Use these helpers when wiring new pipeline logic so error handling and
// observability stay uniform across upload, download and merge.
package services
