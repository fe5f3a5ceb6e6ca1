// Package tracestore defines where recorded lifecycle traces are kept.
package tracestore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a trace does not exist in the store.
var ErrNotFound = errors.New("tracestore: trace not found")

// Store reads and writes recorded traces by name. Names are slash-separated and
// include the compression extension, e.g. "ci/2024-01-01.jsonl.zst".
type Store interface {
	// ReadTrace returns the decompressed content of the named trace.
	ReadTrace(ctx context.Context, name string) ([]byte, error)

	// WriteTrace stores data under name, compressed according to the
	// name's extension. An existing trace is replaced.
	WriteTrace(ctx context.Context, name string, data []byte) error

	// Close releases any resources held by the store.
	Close() error
}
