// Package storage keeps the history of benchmark runs in a bbolt file.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

const (
	BucketRuns  = "runs"
	BucketIndex = "index"
)

// ErrNotFound is returned by Get for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// ErrAmbiguous is returned by Get when an ID prefix matches several runs.
var ErrAmbiguous = errors.New("run id prefix is ambiguous")

type Store struct {
	db *bbolt.DB
}

// DefaultPath is ~/.breachbench/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".breachbench", "history.db"), nil
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create history dir")
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	// Initialize Buckets
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{BucketRuns, BucketIndex} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// runKey orders records by start time.
func runKey(r RunRecord) []byte {
	k := make([]byte, 8, 8+len(r.ID))
	binary.BigEndian.PutUint64(k, uint64(r.Timestamp.UnixNano()))
	return append(k, r.ID...)
}

func (s *Store) Save(r RunRecord) error {
	if r.ID == "" {
		return errors.New("run record without id")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		runs, index := tx.Bucket([]byte(BucketRuns)), tx.Bucket([]byte(BucketIndex))
		if old := index.Get([]byte(r.ID)); old != nil {
			if err := runs.Delete(old); err != nil {
				return err
			}
		}
		key := runKey(r)
		if err := runs.Put(key, data); err != nil {
			return err
		}
		return index.Put([]byte(r.ID), key)
	})
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(limit int) ([]RunRecord, error) {
	var items []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(items) >= limit {
				break
			}
			var item RunRecord
			if err := json.Unmarshal(v, &item); err != nil {
				return errors.Wrapf(err, "decode run %x", k)
			}
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Get looks a run up by its ID or a unique prefix of it.
func (s *Store) Get(id string) (*RunRecord, error) {
	var item RunRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		key, err := lookup(tx.Bucket([]byte(BucketIndex)), []byte(id))
		if err != nil {
			return err
		}
		v := tx.Bucket([]byte(BucketRuns)).Get(key)
		if v == nil {
			return errors.Wrap(ErrNotFound, id)
		}
		return json.Unmarshal(v, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(BucketIndex))
		key := index.Get([]byte(id))
		if key == nil {
			return errors.Wrap(ErrNotFound, id)
		}
		if err := tx.Bucket([]byte(BucketRuns)).Delete(key); err != nil {
			return err
		}
		return index.Delete([]byte(id))
	})
}

func lookup(index *bbolt.Bucket, prefix []byte) ([]byte, error) {
	if len(prefix) == 0 {
		return nil, ErrNotFound
	}
	if key := index.Get(prefix); key != nil {
		return key, nil
	}

	var found []byte
	c := index.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if found != nil {
			return nil, errors.Wrap(ErrAmbiguous, string(prefix))
		}
		found = append([]byte(nil), v...)
	}
	if found == nil {
		return nil, errors.Wrap(ErrNotFound, string(prefix))
	}
	return found, nil
}
