package attemptrepo_test

import (
	"testing"
	"time"

	"github.com/pascalpierre555/quantix/broker/attemptrepo"
	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestUpsertGetDelete(t *testing.T) {
	r := attemptrepo.NewInMemoryRepo()
	now := time.Now()

	a := &attemptrepo.Attempt{Token: "tok", Username: "u", State: attemptrepo.StateIssued, ExpiresAt: now}
	require.NoError(t, r.Upsert(a))

	// stored value is a copy
	a.State = attemptrepo.StateBound
	got, err := r.Get("tok")
	require.NoError(t, err)
	require.Equal(t, attemptrepo.StateIssued, got.State)

	require.NoError(t, r.Delete("tok"))
	_, err = r.Get("tok")
	require.ErrorIs(t, err, qerrors.ErrNotFound)
}

func TestValidation(t *testing.T) {
	r := attemptrepo.NewInMemoryRepo()
	require.Error(t, r.Upsert(nil))
	require.Error(t, r.Upsert(&attemptrepo.Attempt{}))
	require.Error(t, r.Delete(""))
	_, err := r.Get("")
	require.ErrorIs(t, err, qerrors.ErrNotFound)
}

func TestDeleteExpiredBefore(t *testing.T) {
	r := attemptrepo.NewInMemoryRepo()
	now := time.Now()
	require.NoError(t, r.Upsert(&attemptrepo.Attempt{Token: "old", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, r.Upsert(&attemptrepo.Attempt{Token: "new", ExpiresAt: now.Add(time.Hour)}))

	require.Equal(t, 1, r.DeleteExpiredBefore(now))
	_, err := r.Get("new")
	require.NoError(t, err)
}

func TestTerminalStates(t *testing.T) {
	require.False(t, attemptrepo.StateIssued.Terminal())
	require.False(t, attemptrepo.StateAwaitingConsent.Terminal())
	require.True(t, attemptrepo.StateBound.Terminal())
	require.True(t, attemptrepo.StateExpired.Terminal())
	require.True(t, attemptrepo.StateFailed.Terminal())
}
