package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleIssuer      = "https://accounts.google.com"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	defaultTimeout = 10 * time.Second
	defaultExpiry  = 3600 * time.Second
)

// GoogleConfig holds Google OAuth configuration
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Timeout      time.Duration

	// DefaultExpiry applies when the token response has no expires_in.
	DefaultExpiry time.Duration

	// Endpoint overrides, used against local test servers.
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client // Optional custom HTTP client
}

var _ Provider = (*Google)(nil)

type Google struct {
	config        *oauth2.Config
	userInfo      *oidc.Provider
	httpClient    *http.Client
	defaultExpiry time.Duration
	nowFunc       func() time.Time
}

type GoogleOption func(*Google)

func WithNowFunc(now func() time.Time) GoogleOption {
	return func(g *Google) {
		g.nowFunc = now
	}
}

func NewGoogle(cfg GoogleConfig, options ...GoogleOption) (*Google, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("[NewGoogle] client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("[NewGoogle] client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("[NewGoogle] redirect URL is required")
	}

	// google.Endpoint sends credentials in the body, which also stops
	// x/oauth2 from retrying a rejected request with another auth style.
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	g := &Google{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		// Static metadata, so no discovery round trip at startup.
		userInfo: (&oidc.ProviderConfig{
			IssuerURL:   googleIssuer,
			AuthURL:     endpoint.AuthURL,
			TokenURL:    endpoint.TokenURL,
			UserInfoURL: userInfoURL,
		}).NewProvider(context.Background()),
		httpClient:    httpClient,
		defaultExpiry: cfg.DefaultExpiry,
		nowFunc:       time.Now,
	}
	if g.defaultExpiry <= 0 {
		g.defaultExpiry = defaultExpiry
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// AuthCodeURL asks for offline access and forces the consent screen so
// Google issues a refresh token on every pairing.
func (g *Google) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *Google) Exchange(ctx context.Context, code string) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)

	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, mapTokenError(err, "exchange code")
	}
	return g.toToken(tok, ""), nil
}

func (g *Google) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)

	// An empty access token forces exactly one refresh request.
	tok, err := g.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, mapTokenError(err, "refresh token")
	}
	return g.toToken(tok, refreshToken), nil
}

func (g *Google) UserEmail(ctx context.Context, accessToken string) (string, error) {
	ctx = oidc.ClientContext(ctx, g.httpClient)

	info, err := g.userInfo.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		if isTransportError(ctx, err) {
			return "", qerrors.Wrapf(qerrors.ErrProviderUnavailable, "userinfo: %v", err)
		}
		return "", qerrors.Wrapf(qerrors.ErrProviderRejected, "userinfo: %v", err)
	}
	if info.Email == "" {
		return "", qerrors.Wrapf(qerrors.ErrProviderRejected, "userinfo: no email in response")
	}
	return info.Email, nil
}

func (g *Google) toToken(tok *oauth2.Token, previousRefresh string) *Token {
	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = g.nowFunc().Add(g.defaultExpiry)
	}
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}
}

// mapTokenError turns a token endpoint failure into a provider error kind.
// A RetrieveError means the endpoint answered with a non-2xx status.
func mapTokenError(err error, op string) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		code := retrieveErr.ErrorCode
		if code == "" && retrieveErr.Response != nil {
			code = http.StatusText(retrieveErr.Response.StatusCode)
		}
		return qerrors.Wrapf(qerrors.ErrProviderRejected, "%s: %s", op, code)
	}
	return qerrors.Wrapf(qerrors.ErrProviderUnavailable, "%s: %v", op, err)
}

func isTransportError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
