// Package storage persists per-group settings and the toggle audit trail.
//
// Drivers:
//   - file: one JSON document (canonical shape) plus an audit jsonl next to it
//   - sqlite: modernc.org/sqlite through sqlx, schema managed by darwin
//   - postgres: lib/pq through sqlx, same schema and queries
//   - memory: process-local, for tests and dry runs
package storage
