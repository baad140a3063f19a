// Package videos implements the upload and download paths around the merge
// pipeline.
//
// Ingest stages an uploaded body, normalizes it to the standard codec pair and
// publishes it in the uploaded tier under a fresh id. Fetch resolves an id to
// its tier, stages the stored file and reads its metadata. Both paths run in
// their own staging run, so concurrent requests never share files.
package videos
