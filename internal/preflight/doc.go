// Package preflight provides readiness checks for the binaries, filesystem
// paths and store that vidmerge depends on.
//
// These checks run in two contexts:
//   - "vidmerge serve" calls RunAll before binding the listener and refuses to
//     start when a check fails.
//   - "vidmerge status" renders every Result as a table.
package preflight
