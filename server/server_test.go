package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pascalpierre555/quantix/auth"
	"github.com/pascalpierre555/quantix/broker"
	"github.com/pascalpierre555/quantix/calendar"
	"github.com/pascalpierre555/quantix/credentials"
	"github.com/pascalpierre555/quantix/credentials/filestore"
	"github.com/pascalpierre555/quantix/grant"
	"github.com/pascalpierre555/quantix/internal/config"
	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	"github.com/pascalpierre555/quantix/pairing"
	"github.com/pascalpierre555/quantix/provider"
	"github.com/pascalpierre555/quantix/provider/fakeprovider"
	"github.com/pascalpierre555/quantix/server"
	"github.com/pascalpierre555/quantix/token"
	"github.com/stretchr/testify/require"
)

const (
	testBaseURL  = "https://broker.example.com"
	testUsername = "pascal"
	testPassword = "password123"
	testEmail    = "pascal@example.com"
	testCode     = "auth-code"
)

type testFixture struct {
	now       time.Time
	store     *filestore.Store
	provider  *fakeprovider.FakeProvider
	calendar  *httptest.Server
	server    *server.Server
	jwtSecret string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("LOGIN_RATE_LIMIT", "0.001")
	t.Setenv("LOGIN_BURST", "3")

	f := &testFixture{
		now:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		provider:  fakeprovider.New(),
		jwtSecret: "test-secret",
	}
	nowFunc := func() time.Time { return f.now }

	store, err := filestore.New(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	f.store = store

	f.provider.ExchangeFunc = func(_ context.Context, code string) (*provider.Token, error) {
		if code != testCode {
			return nil, qerrors.Wrapf(qerrors.ErrProviderRejected, "invalid_grant")
		}
		return &provider.Token{AccessToken: "at", RefreshToken: "rt", ExpiresAt: f.now.Add(time.Hour)}, nil
	}
	f.provider.UserEmailFunc = func(context.Context, string) (string, error) {
		return testEmail, nil
	}

	signer, err := token.NewHMACSigner(f.jwtSecret)
	require.NoError(t, err)
	tokens := token.New(signer, token.WithNowFunc(nowFunc))

	operator, err := auth.NewOperator(testUsername, "", testPassword)
	require.NoError(t, err)
	authService, err := auth.NewService(operator, tokens, store)
	require.NoError(t, err)

	grants, err := grant.NewManager(store, f.provider, grant.WithNowFunc(nowFunc))
	require.NoError(t, err)

	orchestrator, err := broker.New(store, pairing.NewInMemoryRegistry(pairing.WithNowFunc(nowFunc)), grants, f.provider,
		broker.Config{BaseURL: testBaseURL}, broker.WithNowFunc(nowFunc))
	require.NoError(t, err)

	f.calendar = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"summary":"Standup","start":{"dateTime":"2024-05-01T09:00:00Z"},"end":{"dateTime":"2024-05-01T09:15:00Z"}}]}`))
	}))
	t.Cleanup(f.calendar.Close)

	events, err := calendar.New(grants, calendar.WithBaseURL(f.calendar.URL))
	require.NoError(t, err)

	f.server, err = server.New(config.New(), server.Deps{
		Auth:     authService,
		Pairing:  orchestrator,
		Grants:   grants,
		Calendar: events,
	})
	require.NoError(t, err)
	return f
}

func (f *testFixture) do(t *testing.T, method, target, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:40000"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *testFixture) login(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/login", `{"username":"pascal","password":"password123"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["token"])
	return body["token"]
}

// pair runs the whole flow and returns the bearer token of the paired user.
func (f *testFixture) pair(t *testing.T) string {
	t.Helper()
	bearer := f.login(t)
	pairingToken := f.startPairing(t, bearer)

	rec := f.do(t, http.MethodGet, "/setup?token="+url.QueryEscape(pairingToken), "", "")
	require.Equal(t, http.StatusFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/oauth2/callback?code="+testCode+"&state="+url.QueryEscape(pairingToken), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	return bearer
}

func (f *testFixture) startPairing(t *testing.T, bearer string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/pairing", "", bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SetupURL  string `json:"setup_url"`
		ExpiresAt int64  `json:"expires_at"`
		QR        struct {
			Width  int    `json:"width"`
			Height int    `json:"height"`
			Bitmap []byte `json:"bitmap"`
		} `json:"qr"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, strings.HasPrefix(body.SetupURL, testBaseURL+"/setup?token="))
	require.Equal(t, f.now.Add(pairing.DefaultTTL).Unix(), body.ExpiresAt)
	require.Positive(t, body.QR.Width)
	require.Len(t, body.QR.Bitmap, (body.QR.Width+7)/8*body.QR.Height)

	u, err := url.Parse(body.SetupURL)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestPing(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodGet, "/ping", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"OK"}`, rec.Body.String())

	_, err := ulid.ParseStrict(rec.Header().Get(server.HeaderRequestID))
	require.NoError(t, err)
}

func TestLoginStoresToken(t *testing.T) {
	f := setupTestFixture(t)

	bearer := f.login(t)

	rec, err := f.store.Get(testUsername)
	require.NoError(t, err)
	require.Equal(t, bearer, rec.APIJWT)
}

func TestLoginRejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"wrong password", `{"username":"pascal","password":"nope"}`, http.StatusUnauthorized, "invalid_credentials"},
		{"missing password", `{"username":"pascal"}`, http.StatusBadRequest, "invalid_request"},
		{"not json", `username=pascal`, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)

			rec := f.do(t, http.MethodPost, "/login", tt.body, "")
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestLoginRateLimited(t *testing.T) {
	f := setupTestFixture(t)

	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodPost, "/login", `{"username":"pascal","password":"nope"}`, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/login", `{"username":"pascal","password":"password123"}`, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "rate_limit_exceeded", errorCode(t, rec))
}

func TestBearerRequired(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodPost, "/api/pairing", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "token_missing", errorCode(t, rec))

	rec = f.do(t, http.MethodPost, "/api/pairing", "", "not-a-jwt")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "invalid_token", errorCode(t, rec))
}

func TestExpiredBearer(t *testing.T) {
	f := setupTestFixture(t)
	bearer := f.login(t)

	f.now = f.now.Add(2 * time.Hour)

	rec := f.do(t, http.MethodGet, "/api/pairing/status", "", bearer)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "token_expired", errorCode(t, rec))
}

func TestPairingFlow(t *testing.T) {
	f := setupTestFixture(t)
	bearer := f.login(t)

	rec := f.do(t, http.MethodGet, "/api/pairing/status", "", bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"not_found"}`, rec.Body.String())

	pairingToken := f.startPairing(t, bearer)

	rec = f.do(t, http.MethodGet, "/api/pairing/status", "", bearer)
	require.JSONEq(t, `{"status":"pending"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/setup?token="+url.QueryEscape(pairingToken), "", "")
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "provider.test", location.Host)
	require.Equal(t, pairingToken, location.Query().Get("state"))

	rec = f.do(t, http.MethodGet, "/oauth2/callback?code="+testCode+"&state="+url.QueryEscape(pairingToken), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), "Pairing complete")

	rec = f.do(t, http.MethodGet, "/api/pairing/status", "", bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Status string             `json:"status"`
		Google *credentials.Grant `json:"google"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "bound", status.Status)
	require.Equal(t, testEmail, status.Google.Email)
	require.Equal(t, "at", status.Google.AccessToken)
	require.Equal(t, "rt", status.Google.RefreshToken)
	require.Equal(t, f.now.Add(time.Hour).Unix(), status.Google.ExpiresAt.Unix())

	// replaying the callback must not work
	rec = f.do(t, http.MethodGet, "/oauth2/callback?code="+testCode+"&state="+url.QueryEscape(pairingToken), "", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, 1, f.provider.ExchangeCalls())
}

func TestSetupRejectsDeadTokens(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodGet, "/setup?token=unknown", "", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "not valid")

	rec = f.do(t, http.MethodGet, "/setup", "", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	bearer := f.login(t)
	pairingToken := f.startPairing(t, bearer)
	f.now = f.now.Add(pairing.DefaultTTL + time.Second)

	rec = f.do(t, http.MethodGet, "/setup?token="+url.QueryEscape(pairingToken), "", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "expired")
}

func TestCallbackErrors(t *testing.T) {
	f := setupTestFixture(t)
	bearer := f.login(t)
	pairingToken := f.startPairing(t, bearer)

	rec := f.do(t, http.MethodGet, "/oauth2/callback?error=access_denied&state="+url.QueryEscape(pairingToken), "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/oauth2/callback?state="+url.QueryEscape(pairingToken), "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, f.provider.ExchangeCalls())

	// a callback before the setup page was visited is refused without an exchange
	rec = f.do(t, http.MethodGet, "/oauth2/callback?code="+testCode+"&state="+url.QueryEscape(pairingToken), "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, f.provider.ExchangeCalls())

	rec = f.do(t, http.MethodGet, "/setup?token="+url.QueryEscape(pairingToken), "", "")
	require.Equal(t, http.StatusFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/oauth2/callback?code=bad&state="+url.QueryEscape(pairingToken), "", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	stored, err := f.store.Get(testUsername)
	require.NoError(t, err)
	require.Nil(t, stored.Google)
}

func TestCalendar(t *testing.T) {
	f := setupTestFixture(t)
	bearer := f.pair(t)

	rec := f.do(t, http.MethodPost, "/api/calendar", `{"date":"2024-05-01"}`, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"events":[{"summary":"Standup","start":"2024-05-01T09:00:00Z","end":"2024-05-01T09:15:00Z"}]}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/calendar", `{"date":"01/05/2024"}`, bearer)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", errorCode(t, rec))
}

func TestCalendarWithoutGrant(t *testing.T) {
	f := setupTestFixture(t)
	bearer := f.login(t)

	rec := f.do(t, http.MethodPost, "/api/calendar", `{"date":"2024-05-01"}`, bearer)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "grant_absent", errorCode(t, rec))
}

func TestCalendarRefreshesExpiredGrant(t *testing.T) {
	f := setupTestFixture(t)
	bearer := f.pair(t)

	f.provider.RefreshFunc = func(_ context.Context, refreshToken string) (*provider.Token, error) {
		require.Equal(t, "rt", refreshToken)
		return &provider.Token{AccessToken: "at", ExpiresAt: f.now.Add(time.Hour)}, nil
	}
	f.now = f.now.Add(90 * time.Minute)
	bearer = f.login(t)

	rec := f.do(t, http.MethodPost, "/api/calendar", `{"date":"2024-05-01"}`, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, f.provider.RefreshCalls())

	stored, err := f.store.Get(testUsername)
	require.NoError(t, err)
	require.Equal(t, f.now.Add(time.Hour).Unix(), stored.Google.ExpiresAt.Unix())
}

func TestCalendarRefreshRejected(t *testing.T) {
	f := setupTestFixture(t)
	f.pair(t)

	f.provider.RefreshFunc = func(context.Context, string) (*provider.Token, error) {
		return nil, qerrors.Wrapf(qerrors.ErrProviderRejected, "invalid_grant")
	}
	f.now = f.now.Add(90 * time.Minute)
	bearer := f.login(t)

	rec := f.do(t, http.MethodPost, "/api/calendar", `{"date":"2024-05-01"}`, bearer)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "grant_refresh_failed", errorCode(t, rec))
}

func TestFont(t *testing.T) {
	f := setupTestFixture(t)
	bearer := f.login(t)

	rec := f.do(t, http.MethodGet, "/font?chars="+url.QueryEscape("AA"), "", bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	var glyphs map[string][]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &glyphs))
	require.Len(t, glyphs, 1)
	require.Len(t, glyphs["41"], 3*36)

	rec = f.do(t, http.MethodGet, "/font", "", bearer)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodGet, "/api/stock", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/login", "", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	f := setupTestFixture(t)

	handler := server.ChainMiddleware(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}, f.server.RecoverMiddleware)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "server_error", errorCode(t, rec))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{qerrors.ErrAuthMissing, http.StatusUnauthorized},
		{qerrors.ErrAuthExpired, http.StatusUnauthorized},
		{qerrors.ErrAuthInvalid, http.StatusForbidden},
		{qerrors.Wrapf(qerrors.ErrPairingExpired, "token"), http.StatusForbidden},
		{qerrors.ErrPairingNotFound, http.StatusForbidden},
		{qerrors.ErrGrantAbsent, http.StatusConflict},
		{qerrors.ErrProviderRejected, http.StatusBadGateway},
		{qerrors.ErrProviderUnavailable, http.StatusServiceUnavailable},
		{qerrors.ErrPersistenceFailure, http.StatusInternalServerError},
		{qerrors.ErrInvalidRequest, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := server.StatusFor(tt.err)
		require.Equal(t, tt.status, status, tt.err.Error())
	}
}
