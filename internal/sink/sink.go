// Package sink persists benchmark rows into one destination per operation
// kind.
package sink

import (
	"github.com/pkg/errors"

	"breachbench/internal/record"
)

var (
	// ErrNotInitialized is returned when a row targets a destination that
	// Initialize did not set up.
	ErrNotInitialized = errors.New("destination not initialized")

	// ErrAlreadyInitialized is returned by a second call to Initialize.
	ErrAlreadyInitialized = errors.New("sink already initialized")
)

// Sink is the append-only store rows are written to. Implementations must
// allow concurrent Append calls; each row is appended atomically.
type Sink interface {
	// Initialize creates or truncates one destination per schema and writes
	// its header row. It may be called once per sink.
	Initialize(schemas ...record.Schema) error
	// Append writes row to the destination of row.Kind and flushes it.
	Append(row record.Row) error
	Close() error
}
