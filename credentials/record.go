package credentials

import (
	"encoding/json"
	"time"
)

// Grant is the delegated Google authorization bound to a user after pairing.
type Grant struct {
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Fresh reports whether the access token is still usable at now.
func (g *Grant) Fresh(now time.Time) bool {
	return g != nil && now.Before(g.ExpiresAt)
}

type grantJSON struct {
	Email        string `json:"email"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at"` // epoch seconds
}

func (g Grant) MarshalJSON() ([]byte, error) {
	return json.Marshal(grantJSON{
		Email:        g.Email,
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		ExpiresAt:    g.ExpiresAt.Unix(),
	})
}

func (g *Grant) UnmarshalJSON(data []byte) error {
	var raw grantJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*g = Grant{
		Email:        raw.Email,
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		ExpiresAt:    time.Unix(raw.ExpiresAt, 0).UTC(),
	}
	return nil
}

// Record is everything the broker keeps for one username.
// APIJWT is set by a completed login, Google by a completed pairing.
type Record struct {
	Username     string `json:"-"`
	APIJWT       string `json:"api_jwt,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
	Google       *Grant `json:"google,omitempty"`
}

// Clone returns a deep copy so callers never alias stored state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Google != nil {
		g := *r.Google
		c.Google = &g
	}
	return &c
}
