// ABOUTME: Tests for session token persistence backends
// ABOUTME: Uses go-keyring's in-memory mock so no OS keyring is touched

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"
)

func TestKeyringStore_RoundTrip(t *testing.T) {
	gokeyring.MockInit()
	store := NewKeyringStore("habithive-test", "")
	assert.Equal(t, "session", store.User)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoSession)

	want := Session{
		AccessToken:  "a1",
		RefreshToken: "r1",
		UserID:       "u1",
		ExpiresAt:    time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.Equal(t, want.UserID, got.UserID)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, store.Clear())
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoSession)

	// Clearing an empty keyring is not an error.
	assert.NoError(t, store.Clear())
}

func TestKeyringStore_CorruptEntry(t *testing.T) {
	gokeyring.MockInit()
	require.NoError(t, gokeyring.Set("habithive-test", "session", "not json"))

	_, err := NewKeyringStore("habithive-test", "session").Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}

func TestManager_PersistsThroughKeyring(t *testing.T) {
	gokeyring.MockInit()
	store := NewKeyringStore("habithive-test", "")

	first := newTestManager(&fakeRefresher{}, WithTokenStore(store))
	require.NoError(t, first.ApplyAuthResult(Tokens{AccessToken: "a1", RefreshToken: "r1", UserID: "u1"}))

	second := newTestManager(&fakeRefresher{}, WithTokenStore(store))
	require.NoError(t, second.Restore())
	sess, ok := second.Current()
	require.True(t, ok)
	assert.Equal(t, "r1", sess.RefreshToken)
}

func TestClaims(t *testing.T) {
	exp := testNow.Add(time.Hour)
	token := mintToken(t, "user-42", exp)

	gotExp, err := ExpiryFromJWT(token)
	require.NoError(t, err)
	assert.Equal(t, exp.Unix(), gotExp.Unix())

	sub, err := SubjectFromJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)

	_, err = ExpiryFromJWT("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
