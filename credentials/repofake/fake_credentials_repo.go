package repofake

import (
	"sync"

	"github.com/pascalpierre555/quantix/credentials"
	qerrors "github.com/pascalpierre555/quantix/internal/errors"
)

var _ credentials.Repo = (*FakeCredentialsRepo)(nil)

type FakeCredentialsRepo struct {
	lock    sync.RWMutex
	records map[string]*credentials.Record

	// FailWrites makes every mutation fail with ErrPersistenceFailure.
	FailWrites bool
	writes     int
}

func NewFakeCredentialsRepo() *FakeCredentialsRepo {
	return &FakeCredentialsRepo{
		records: make(map[string]*credentials.Record),
	}
}

func (r *FakeCredentialsRepo) Get(username string) (*credentials.Record, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	rec, ok := r.records[username]
	if !ok {
		return nil, qerrors.ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *FakeCredentialsRepo) Upsert(record *credentials.Record) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.FailWrites {
		return qerrors.ErrPersistenceFailure
	}
	r.records[record.Username] = record.Clone()
	r.writes++
	return nil
}

func (r *FakeCredentialsRepo) Update(username string, fn func(*credentials.Record) error) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	rec := &credentials.Record{Username: username}
	if existing, ok := r.records[username]; ok {
		rec = existing.Clone()
	}
	if err := fn(rec); err != nil {
		return err
	}
	if r.FailWrites {
		return qerrors.ErrPersistenceFailure
	}
	rec.Username = username
	r.records[username] = rec
	r.writes++
	return nil
}

func (r *FakeCredentialsRepo) FindBySessionToken(token string) (*credentials.Record, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if token == "" {
		return nil, qerrors.ErrNotFound
	}
	for _, rec := range r.records {
		if rec.SessionToken == token {
			return rec.Clone(), nil
		}
	}
	return nil, qerrors.ErrNotFound
}

// WriteCount returns how many mutations have been committed.
func (r *FakeCredentialsRepo) WriteCount() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.writes
}
