package credentials

// Repo is the credential store. Implementations serialize mutations and
// return copies; no network call may run while a mutation is in progress.
type Repo interface {
	// Get returns ErrNotFound when no record exists for username.
	Get(username string) (*Record, error)

	// Upsert replaces the whole record.
	Upsert(record *Record) error

	// Update applies fn to a copy of the current record (a blank record when
	// none exists) and stores the result. If fn returns an error nothing is
	// written and that error is returned unchanged.
	Update(username string, fn func(record *Record) error) error

	// FindBySessionToken returns the record whose pending pairing token is token.
	FindBySessionToken(token string) (*Record, error)
}
