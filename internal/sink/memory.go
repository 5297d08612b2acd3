package sink

import (
	"sync"

	"github.com/pkg/errors"

	"breachbench/internal/record"
)

// MemorySink keeps headers and rows in memory.
type MemorySink struct {
	mu      sync.Mutex
	init    bool
	headers map[record.Kind][]string
	rows    map[record.Kind][]record.Row

	// FailAfter makes Append fail once this many rows were accepted. Zero
	// disables it.
	FailAfter int
	appended  int
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Initialize(schemas ...record.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.init {
		return ErrAlreadyInitialized
	}
	m.init = true
	m.headers = make(map[record.Kind][]string, len(schemas))
	m.rows = make(map[record.Kind][]record.Row, len(schemas))
	for _, s := range schemas {
		m.headers[s.Kind] = append([]string(nil), s.Columns...)
		m.rows[s.Kind] = nil
	}
	return nil
}

var errMemoryFull = errors.New("memory sink write limit reached")

func (m *MemorySink) Append(row record.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.headers[row.Kind]; !ok {
		return errors.Wrapf(ErrNotInitialized, "%s destination", row.Kind)
	}
	if m.FailAfter > 0 && m.appended >= m.FailAfter {
		return errMemoryFull
	}
	m.appended++
	m.rows[row.Kind] = append(m.rows[row.Kind], row)
	return nil
}

func (m *MemorySink) Close() error {
	return nil
}

// Header returns the header written for kind k, or nil.
func (m *MemorySink) Header(k record.Kind) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.headers[k]
}

// Rows returns a copy of the rows appended for kind k, in append order.
func (m *MemorySink) Rows(k record.Kind) []record.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]record.Row(nil), m.rows[k]...)
}

// Initialized reports whether a destination exists for k.
func (m *MemorySink) Initialized(k record.Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.headers[k]
	return ok
}
