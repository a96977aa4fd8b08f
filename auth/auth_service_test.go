package auth_test

import (
	"testing"
	"time"

	"github.com/pascalpierre555/quantix/auth"
	"github.com/pascalpierre555/quantix/credentials/repofake"
	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	"github.com/pascalpierre555/quantix/token"
	"github.com/stretchr/testify/require"
)

const (
	secretStr        = "1234"
	testUsername     = "pascal"
	testUserPassword = "password123"
)

type testFixture struct {
	now     time.Time
	store   *repofake.FakeCredentialsRepo
	tokens  *token.Manager
	service *auth.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		now:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		store: repofake.NewFakeCredentialsRepo(),
	}

	signer, err := token.NewHMACSigner(secretStr)
	require.NoError(t, err)
	f.tokens = token.New(signer, token.WithNowFunc(func() time.Time { return f.now }))

	operator, err := auth.NewOperator(testUsername, "", testUserPassword)
	require.NoError(t, err)

	f.service, err = auth.NewService(operator, f.tokens, f.store)
	require.NoError(t, err)
	return f
}

func TestLoginStoresToken(t *testing.T) {
	f := setupTestFixture(t)

	raw, err := f.service.Login(testUsername, testUserPassword)
	require.NoError(t, err)

	rec, err := f.store.Get(testUsername)
	require.NoError(t, err)
	require.Equal(t, raw, rec.APIJWT)
	require.Nil(t, rec.Google)

	username, err := f.service.Authenticate("Bearer " + raw)
	require.NoError(t, err)
	require.Equal(t, testUsername, username)
}

func TestReloginOverwritesStoredToken(t *testing.T) {
	f := setupTestFixture(t)

	first, err := f.service.Login(testUsername, testUserPassword)
	require.NoError(t, err)
	second, err := f.service.Login(testUsername, testUserPassword)
	require.NoError(t, err)

	rec, err := f.store.Get(testUsername)
	require.NoError(t, err)
	require.Equal(t, second, rec.APIJWT)

	_, err = f.service.Authenticate("Bearer " + first)
	require.NoError(t, err)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := setupTestFixture(t)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", testUsername, "nope"},
		{"wrong username", "someone", testUserPassword},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Login(tt.username, tt.password)
			require.ErrorIs(t, err, qerrors.ErrInvalidCredentials)
		})
	}
	require.Zero(t, f.store.WriteCount())
}

func TestLoginPersistenceFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.store.FailWrites = true

	_, err := f.service.Login(testUsername, testUserPassword)
	require.ErrorIs(t, err, qerrors.ErrPersistenceFailure)
}

func TestAuthenticateErrors(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Authenticate("")
	require.ErrorIs(t, err, qerrors.ErrAuthMissing)

	_, err = f.service.Authenticate("Bearer garbage")
	require.ErrorIs(t, err, qerrors.ErrAuthInvalid)

	raw, err := f.service.Login(testUsername, testUserPassword)
	require.NoError(t, err)
	f.now = f.now.Add(61 * time.Minute)
	_, err = f.service.Authenticate("Bearer " + raw)
	require.ErrorIs(t, err, qerrors.ErrAuthExpired)
}

func TestNewOperator(t *testing.T) {
	hash, err := auth.HashPassword(testUserPassword)
	require.NoError(t, err)

	op, err := auth.NewOperator(testUsername, string(hash), "")
	require.NoError(t, err)
	require.True(t, op.Matches(testUsername, testUserPassword))

	_, err = auth.NewOperator(testUsername, "not-a-hash", "")
	require.Error(t, err)
	_, err = auth.NewOperator(testUsername, "", "")
	require.Error(t, err)
	_, err = auth.NewOperator("", "", testUserPassword)
	require.Error(t, err)
}
