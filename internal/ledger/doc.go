// Package ledger records the outcome of every merge attempt in a SQLite
// database so operators can audit what was published, rejected or failed.
//
// The ledger is an operator aid. It is never consulted when deciding whether a
// merge may proceed; the artifact store stays the source of truth.
package ledger
