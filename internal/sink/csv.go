package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"breachbench/internal/record"
)

// Default file names, one per kind.
var DefaultFileNames = map[record.Kind]string{
	record.WriteEvent:     "breachData.csv",
	record.ComputePenalty: "penaltyData.csv",
	record.ReadState:      "readData.csv",
}

type csvDest struct {
	mu   sync.Mutex
	f    *os.File
	w    *csv.Writer
	path string
}

// CSVSink writes each destination as a CSV file inside Dir.
type CSVSink struct {
	Dir   string
	Names map[record.Kind]string

	mu    sync.RWMutex
	dests map[record.Kind]*csvDest
}

// NewCSVSink returns a sink writing into dir with the default file names.
// Entries in names override the defaults.
func NewCSVSink(dir string, names map[record.Kind]string) *CSVSink {
	merged := make(map[record.Kind]string, len(DefaultFileNames))
	for k, v := range DefaultFileNames {
		merged[k] = v
	}
	for k, v := range names {
		if v != "" {
			merged[k] = v
		}
	}
	return &CSVSink{Dir: dir, Names: merged}
}

// Path returns the file a kind's rows are written to.
func (s *CSVSink) Path(k record.Kind) string {
	return filepath.Join(s.Dir, s.Names[k])
}

func (s *CSVSink) Initialize(schemas ...record.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dests != nil {
		return ErrAlreadyInitialized
	}
	if s.Dir != "" {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return errors.Wrap(err, "create output dir")
		}
	}

	dests := make(map[record.Kind]*csvDest, len(schemas))
	for _, schema := range schemas {
		path := s.Path(schema.Kind)
		f, err := os.Create(path)
		if err != nil {
			closeAll(dests)
			return errors.Wrapf(err, "create %s", path)
		}
		d := &csvDest{f: f, w: csv.NewWriter(f), path: path}
		dests[schema.Kind] = d

		if err := d.write(schema.Columns); err != nil {
			closeAll(dests)
			return errors.Wrapf(err, "write header to %s", path)
		}
	}
	s.dests = dests
	return nil
}

func (s *CSVSink) Append(row record.Row) error {
	s.mu.RLock()
	d, ok := s.dests[row.Kind]
	s.mu.RUnlock()
	if !ok {
		return errors.Wrapf(ErrNotInitialized, "%s destination", row.Kind)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(row.Values()); err != nil {
		return errors.Wrapf(err, "append to %s", d.path)
	}
	return nil
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := closeAll(s.dests)
	s.dests = map[record.Kind]*csvDest{}
	return err
}

func (d *csvDest) write(values []string) error {
	if err := d.w.Write(values); err != nil {
		return err
	}
	d.w.Flush()
	return d.w.Error()
}

func closeAll(dests map[record.Kind]*csvDest) error {
	var first error
	for _, d := range dests {
		d.mu.Lock()
		d.w.Flush()
		if err := d.w.Error(); err != nil && first == nil {
			first = err
		}
		if err := d.f.Close(); err != nil && first == nil {
			first = err
		}
		d.mu.Unlock()
	}
	return first
}
