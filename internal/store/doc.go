// Package store provides durable storage for scan history.
//
// The analysis core itself persists nothing; recording past scan
// results is a concern of the surrounding tool, and this package is
// that layer. SQLite with WAL mode holds one row per scan run and one
// row per finding, keyed by content-addressed finding IDs so re-writing
// a scan's findings is idempotent.
package store
