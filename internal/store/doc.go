// Package store provides SQLite-backed storage for compiled expressions.
//
// The store holds:
//   - Definitions: the expression catalog, one row per named expression
//     with its filter text, canonical tree, fingerprint and SQLite rendering
//   - Query runs: an append-only log of statements executed through
//     QueryRows, ordered by seq
//
// Expressions rendered by the store always use the SQLite dialect, see
// Escaper.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Fingerprints are computed by queryir.Fingerprint using canonical JSON and
// SHA-256 with domain separation. A definition whose stored tree no longer
// matches its fingerprint is rejected on read.
package store
