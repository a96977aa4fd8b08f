// Package filestore keeps every credential record in a single JSON document.
// The document is read once at startup and rewritten in full after each
// mutation through a temp file and an atomic rename.
package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pascalpierre555/quantix/credentials"
	qerrors "github.com/pascalpierre555/quantix/internal/errors"
)

var _ credentials.Repo = (*Store)(nil)

type Store struct {
	mu      sync.Mutex
	path    string
	records map[string]*credentials.Record
}

// New loads path. A missing file is an empty store.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, qerrors.Wrapf(qerrors.ErrPersistenceFailure, "[filestore.New] path is required")
	}

	s := &Store{
		path:    path,
		records: make(map[string]*credentials.Record),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, qerrors.Wrapf(qerrors.ErrPersistenceFailure, "read %s: %v", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, qerrors.Wrapf(qerrors.ErrPersistenceFailure, "decode %s: %v", path, err)
	}
	for username, rec := range s.records {
		if rec == nil {
			delete(s.records, username)
			continue
		}
		rec.Username = username
	}
	return s, nil
}

func (s *Store) Get(username string) (*credentials.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[username]
	if !ok {
		return nil, qerrors.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) Upsert(record *credentials.Record) error {
	if record == nil || record.Username == "" {
		return qerrors.Wrapf(qerrors.ErrInvalidRequest, "[filestore.Upsert] username is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(record.Clone())
}

func (s *Store) Update(username string, fn func(*credentials.Record) error) error {
	if username == "" {
		return qerrors.Wrapf(qerrors.ErrInvalidRequest, "[filestore.Update] username is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &credentials.Record{Username: username}
	if existing, ok := s.records[username]; ok {
		rec = existing.Clone()
	}
	if err := fn(rec); err != nil {
		return err
	}
	rec.Username = username
	return s.commit(rec)
}

func (s *Store) FindBySessionToken(token string) (*credentials.Record, error) {
	if token == "" {
		return nil, qerrors.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.SessionToken == token {
			return rec.Clone(), nil
		}
	}
	return nil, qerrors.ErrNotFound
}

// commit writes the store with rec applied and only then swaps it into memory.
// Callers hold s.mu.
func (s *Store) commit(rec *credentials.Record) error {
	next := make(map[string]*credentials.Record, len(s.records)+1)
	for k, v := range s.records {
		next[k] = v
	}
	next[rec.Username] = rec

	if err := s.write(next); err != nil {
		return err
	}
	s.records = next
	return nil
}

func (s *Store) write(records map[string]*credentials.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return qerrors.Wrapf(qerrors.ErrPersistenceFailure, "encode: %v", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return qerrors.Wrapf(qerrors.ErrPersistenceFailure, "mkdir %s: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return qerrors.Wrapf(qerrors.ErrPersistenceFailure, "create temp: %v", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return qerrors.Wrapf(qerrors.ErrPersistenceFailure, "write temp: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return qerrors.Wrapf(qerrors.ErrPersistenceFailure, "sync temp: %v", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return qerrors.Wrapf(qerrors.ErrPersistenceFailure, "close temp: %v", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return qerrors.Wrapf(qerrors.ErrPersistenceFailure, "rename: %v", err)
	}
	return nil
}
