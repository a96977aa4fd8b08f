package attemptrepo

import "time"

// State is the position of a pairing attempt in its lifecycle.
type State string

const (
	StateIssued          State = "issued"
	StateAwaitingConsent State = "awaiting_consent"
	StateBound           State = "bound"
	StateExpired         State = "expired"
	StateFailed          State = "failed"
)

// Terminal states accept no further transitions.
func (s State) Terminal() bool {
	return s == StateBound || s == StateExpired || s == StateFailed
}

type Attempt struct {
	Token     string
	Username  string
	State     State
	CreatedAt time.Time
	ExpiresAt time.Time
	UpdatedAt time.Time
}

type Repo interface {
	Upsert(attempt *Attempt) error
	Get(token string) (*Attempt, error)
	Delete(token string) error
	// DeleteExpiredBefore removes attempts whose pairing token expired before t.
	DeleteExpiredBefore(t time.Time) int
}
