// Package broker drives a pairing attempt from QR issuance to a bound grant:
// ISSUED -> AWAITING_CONSENT -> BOUND | EXPIRED | FAILED.
package broker

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/pascalpierre555/quantix/bitmap"
	"github.com/pascalpierre555/quantix/broker/attemptrepo"
	"github.com/pascalpierre555/quantix/credentials"
	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	"github.com/pascalpierre555/quantix/pairing"
	"github.com/rs/zerolog/log"
)

const (
	SetupPath = "/setup"

	defaultQRWidth = 99
	// attempts are kept this long past expiry so late visits report EXPIRED, not NOT_FOUND
	attemptRetention = time.Hour
)

// CodeExchanger turns an authorization code into a grant.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code string) (*credentials.Grant, error)
}

// ConsentURLer builds the provider consent URL carrying state.
type ConsentURLer interface {
	AuthCodeURL(state string) string
}

// Pairing is what the device receives from StartPairing.
type Pairing struct {
	Token     string
	SetupURL  string
	ExpiresAt time.Time
	QR        *bitmap.Bitmap
}

// StatusKind is the coarse pairing state reported to the device.
type StatusKind string

const (
	StatusNotFound StatusKind = "not_found"
	StatusPending  StatusKind = "pending"
	StatusBound    StatusKind = "bound"
)

type Status struct {
	Kind  StatusKind
	Grant *credentials.Grant
}

type Config struct {
	BaseURL    string
	PairingTTL time.Duration
	QRWidth    int
}

type Orchestrator struct {
	store    credentials.Repo
	registry pairing.Registry
	attempts attemptrepo.Repo
	grants   CodeExchanger
	consent  ConsentURLer
	cfg      Config
	nowFunc  func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{} // tokens with a code exchange in progress
}

type Option func(*Orchestrator)

func WithNowFunc(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.nowFunc = now
	}
}

func WithAttemptRepo(repo attemptrepo.Repo) Option {
	return func(o *Orchestrator) {
		o.attempts = repo
	}
}

func New(
	store credentials.Repo,
	registry pairing.Registry,
	grants CodeExchanger,
	consent ConsentURLer,
	cfg Config,
	options ...Option,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("[broker.New] credentials store is required")
	}
	if registry == nil {
		return nil, errors.New("[broker.New] pairing registry is required")
	}
	if grants == nil {
		return nil, errors.New("[broker.New] code exchanger is required")
	}
	if consent == nil {
		return nil, errors.New("[broker.New] consent URL builder is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("[broker.New] base URL is required")
	}
	if cfg.PairingTTL <= 0 {
		cfg.PairingTTL = pairing.DefaultTTL
	}
	if cfg.QRWidth <= 0 {
		cfg.QRWidth = defaultQRWidth
	}

	o := &Orchestrator{
		store:    store,
		registry: registry,
		attempts: attemptrepo.NewInMemoryRepo(),
		grants:   grants,
		consent:  consent,
		cfg:      cfg,
		nowFunc:  time.Now,
		inflight: make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(o)
	}
	return o, nil
}

// StartPairing issues a pairing token for an already authenticated user and
// returns the setup URL with its QR rendering. Any earlier live token for the
// same user stops working.
func (o *Orchestrator) StartPairing(ctx context.Context, username string) (*Pairing, error) {
	if username == "" {
		return nil, qerrors.Wrapf(qerrors.ErrInvalidRequest, "username is required")
	}

	sess, err := o.registry.Create(ctx, o.cfg.PairingTTL)
	if err != nil {
		return nil, qerrors.Wrapf(qerrors.ErrPersistenceFailure, "create pairing token: %v", err)
	}

	setupURL := o.cfg.BaseURL + SetupPath + "?token=" + url.QueryEscape(sess.Token)
	qr, err := bitmap.EncodeQR(setupURL, o.cfg.QRWidth)
	if err != nil {
		_ = o.registry.Revoke(ctx, sess.Token)
		return nil, err
	}

	now := o.nowFunc()
	o.attempts.DeleteExpiredBefore(now.Add(-attemptRetention))
	if err := o.attempts.Upsert(&attemptrepo.Attempt{
		Token:     sess.Token,
		Username:  username,
		State:     attemptrepo.StateIssued,
		CreatedAt: now,
		ExpiresAt: sess.ExpiresAt,
		UpdatedAt: now,
	}); err != nil {
		_ = o.registry.Revoke(ctx, sess.Token)
		return nil, err
	}

	// the record moves to the new token only once it is fully prepared
	var previous string
	err = o.store.Update(username, func(rec *credentials.Record) error {
		previous = rec.SessionToken
		rec.SessionToken = sess.Token
		return nil
	})
	if err != nil {
		_ = o.registry.Revoke(ctx, sess.Token)
		o.transition(sess.Token, attemptrepo.StateFailed)
		return nil, err
	}

	if previous != "" {
		if err := o.registry.Revoke(ctx, previous); err != nil {
			log.Warn().Err(err).Str("username", username).Msg("failed to revoke superseded pairing token")
		}
		o.transition(previous, attemptrepo.StateExpired)
	}

	log.Info().Str("username", username).Time("expires_at", sess.ExpiresAt).Msg("pairing started")
	return &Pairing{
		Token:     sess.Token,
		SetupURL:  setupURL,
		ExpiresAt: sess.ExpiresAt,
		QR:        qr,
	}, nil
}

// BeginConsent validates a visited setup token and returns the provider
// consent URL with the token as state.
func (o *Orchestrator) BeginConsent(ctx context.Context, token string) (string, error) {
	if err := o.checkLive(ctx, token); err != nil {
		return "", err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	attempt, err := o.attempts.Get(token)
	if err != nil {
		// token is live but its attempt is gone, e.g. after a restart with a shared registry
		rec, ferr := o.store.FindBySessionToken(token)
		if ferr != nil {
			return "", qerrors.ErrPairingNotFound
		}
		attempt = &attemptrepo.Attempt{Token: token, Username: rec.Username, CreatedAt: o.nowFunc()}
	}
	if attempt.State.Terminal() {
		return "", qerrors.ErrPairingExpired
	}

	attempt.State = attemptrepo.StateAwaitingConsent
	attempt.UpdatedAt = o.nowFunc()
	if err := o.attempts.Upsert(attempt); err != nil {
		return "", err
	}
	return o.consent.AuthCodeURL(token), nil
}

// CompleteConsent binds the grant obtained for code to the user that owns
// token. No record is written unless the whole exchange succeeds.
func (o *Orchestrator) CompleteConsent(ctx context.Context, code, token string) (string, error) {
	if token == "" {
		return "", qerrors.ErrPairingNotFound
	}
	rec, err := o.store.FindBySessionToken(token)
	if err != nil {
		if qerrors.Is(err, qerrors.ErrNotFound) {
			return "", qerrors.ErrPairingNotFound
		}
		return "", err
	}
	username := rec.Username

	if err := o.checkLive(ctx, token); err != nil {
		return "", err
	}
	if err := o.claim(token); err != nil {
		return "", err
	}
	defer o.release(token)

	g, err := o.grants.ExchangeCode(ctx, code)
	if err != nil {
		if qerrors.Is(err, qerrors.ErrProviderRejected) {
			_ = o.registry.Revoke(ctx, token)
			o.transition(token, attemptrepo.StateFailed)
			log.Warn().Err(err).Str("username", username).Msg("pairing failed")
		}
		return "", err
	}

	err = o.store.Update(username, func(rec *credentials.Record) error {
		if rec.SessionToken != token {
			return qerrors.ErrPairingExpired
		}
		rec.Google = g
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := o.registry.Revoke(ctx, token); err != nil {
		log.Warn().Err(err).Str("username", username).Msg("failed to revoke used pairing token")
	}
	o.transition(token, attemptrepo.StateBound)
	log.Info().Str("username", username).Str("email", g.Email).Msg("pairing completed")
	return username, nil
}

// CheckStatus reports how far username has got with pairing.
func (o *Orchestrator) CheckStatus(username string) (*Status, error) {
	rec, err := o.store.Get(username)
	if err != nil {
		if qerrors.Is(err, qerrors.ErrNotFound) {
			return &Status{Kind: StatusNotFound}, nil
		}
		return nil, err
	}
	switch {
	case rec.Google != nil:
		return &Status{Kind: StatusBound, Grant: rec.Google}, nil
	case rec.SessionToken != "":
		return &Status{Kind: StatusPending}, nil
	default:
		return &Status{Kind: StatusNotFound}, nil
	}
}

// checkLive maps a dead token to EXPIRED when it was ever issued, NOT_FOUND otherwise.
func (o *Orchestrator) checkLive(ctx context.Context, token string) error {
	if token == "" {
		return qerrors.ErrPairingNotFound
	}

	valid, err := o.registry.IsValid(ctx, token)
	if err != nil {
		return qerrors.Wrapf(qerrors.ErrPersistenceFailure, "pairing registry: %v", err)
	}
	if valid {
		return nil
	}

	if _, err := o.attempts.Get(token); err == nil {
		o.transition(token, attemptrepo.StateExpired)
		return qerrors.ErrPairingExpired
	}
	if _, err := o.store.FindBySessionToken(token); err == nil {
		return qerrors.ErrPairingExpired
	}
	return qerrors.ErrPairingNotFound
}

// claim marks token as having an exchange in flight so a replayed callback
// cannot bind a second code. Only an attempt in AWAITING_CONSENT can be claimed.
func (o *Orchestrator) claim(token string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.inflight[token]; busy {
		return qerrors.ErrPairingExpired
	}
	// a missing attempt is tolerated the same way BeginConsent tolerates it
	if a, err := o.attempts.Get(token); err == nil {
		if a.State.Terminal() {
			return qerrors.ErrPairingExpired
		}
		if a.State != attemptrepo.StateAwaitingConsent {
			return qerrors.Wrapf(qerrors.ErrInvalidRequest, "consent was not started for this pairing")
		}
	}
	o.inflight[token] = struct{}{}
	return nil
}

func (o *Orchestrator) release(token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, token)
}

// transition moves a non-terminal attempt to state. Unknown tokens are ignored.
func (o *Orchestrator) transition(token string, state attemptrepo.State) {
	o.mu.Lock()
	defer o.mu.Unlock()

	a, err := o.attempts.Get(token)
	if err != nil || a.State.Terminal() {
		return
	}
	a.State = state
	a.UpdatedAt = o.nowFunc()
	_ = o.attempts.Upsert(a)
}

// AttemptState returns the lifecycle state recorded for token.
func (o *Orchestrator) AttemptState(token string) (attemptrepo.State, error) {
	a, err := o.attempts.Get(token)
	if err != nil {
		return "", err
	}
	return a.State, nil
}
