// Command vidmerge runs the video merge server and its operator tooling.
//
// "vidmerge serve" starts the HTTP API. The remaining commands work against
// the same configuration without a running server: merge two stored videos,
// probe a local file, read the merge history, inspect or clean the staging
// area, and report preflight status.
package main
