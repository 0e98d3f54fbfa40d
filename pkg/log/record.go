// Package log defines the record-log contract spec.md §4.2 describes:
// a per-collection, append-only, totally-ordered record stream, with one
// backend for embedded/single-node mode (pkg/log/embedded) and one for
// distributed mode (pkg/log/store), selected at runtime by pkg/log/server.
package log

import "context"

// Op is the write kind a LogRecord carries, per spec.md §4.2's record shape.
type Op int

const (
	OpUpsert Op = iota
	OpDelete
)

// Record is one entry in a collection's log. Embedding and Document are only
// meaningful for OpUpsert; MetadataPatch may accompany either op.
type Record struct {
	Op            Op
	ID            string
	Embedding     []float32
	Document      *string
	MetadataPatch map[string]interface{}
}

// Log is the contract both pkg/log/embedded and pkg/log/store implement.
// pkg/log/server picks one at startup based on deployment mode.
type Log interface {
	// Append is atomic across the batch: records become durable and visible
	// to Enumerate callers all at once. Returns the inclusive offset range
	// assigned to the batch.
	Append(ctx context.Context, collectionID string, records []Record) (firstOffset, lastOffset int64, err error)

	// Enumerate returns records with offset >= fromOffset, up to limit.
	// headOffset is the current tail, for callers deciding read consistency.
	Enumerate(ctx context.Context, collectionID string, fromOffset int64, limit int) (records []Record, nextOffset, headOffset int64, err error)

	// ScrubCompactedPrefix permits the log to recycle space below a
	// committed compaction offset. Idempotent.
	ScrubCompactedPrefix(ctx context.Context, collectionID string, upToOffset int64) error

	GetHead(ctx context.Context, collectionID string) (int64, error)
}
