// Package merge implements the merge pipeline: validate two video ids,
// resolve their storage tiers, stage them locally, truncate, concatenate and
// watermark them, then publish the result under a fresh id in the merged tier.
//
// Orchestrator.Merge is the single entry point. Each call ends in exactly one
// of three states: published (a Result is returned), rejected (a client error
// kind such as services.KindAlreadyMerged) or failed (a server error kind).
// Staging files are reconciled on every exit path in the background; call
// Orchestrator.Wait before tearing down the staging root.
//
// The pipeline ignores caller cancellation once it has started, so a client
// that disconnects mid-merge never leaves half-finished work behind.
package merge
