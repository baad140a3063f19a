// Package artifact addresses stored videos by (tier, id) and defines the
// Store contract every backend satisfies.
//
// Keys have the form {tier}/{id}.mp4. Exists is a metadata-only probe that
// reports absence as (false, nil); Download and Upload stream whole files.
// Resolve fans out the existence probes for a set of ids across both tiers.
//
// FSStore keeps artifacts in a local directory tree and MemoryStore is the
// in-process fake used by tests. The S3 backend lives in subpackage s3store.
package artifact
