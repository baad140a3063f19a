// Package staging owns the local scratch space pipeline runs work in.
//
// Each request opens a Run: a directory named by a per-request run id
// (merge-{uuid}, upload-{uuid}, download-{uuid}) under the staging root,
// holding a flock on a lock file inside it for as long as the run is open.
// Closing a run removes the directory and everything in it. The stale sweep
// only ever removes directories whose lock it can take, so a live run is never
// swept out from under a request.
package staging
