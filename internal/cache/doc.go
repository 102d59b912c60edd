// Package cache is the on-disk result cache shared by every variomes service.
//
// Entries live at <root>/<service>/<key>.<ext>, where key is the query text
// (or its SHA-224 digest for long queries) stripped of characters that are
// unsafe in file names. Freshness is judged on the file modification time
// against the per-service TTL. A small in-memory LRU sits in front of the
// files for hot entries.
//
// The package also holds the batch coordination primitives: status logs,
// work claims guarded by a file lock, and a bounded wait for a result
// written by another process.
package cache
