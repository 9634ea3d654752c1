package identity

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SignInSignOutSignals(t *testing.T) {
	l, err := NewLocal("")
	require.NoError(t, err)

	var states []*User
	var signIns []User
	signOuts := 0

	l.OnAuthStateChange(func(u *User) { states = append(states, u) })
	l.OnSignIn(func(u User) { signIns = append(signIns, u) })
	l.OnSignOut(func() { signOuts++ })

	u, err := l.SignIn("Ada@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.False(t, u.Anonymous)

	require.NoError(t, l.SignOut())
	require.NoError(t, l.SignOut())

	require.Len(t, states, 2)
	assert.Equal(t, u.ID, states[0].ID)
	assert.Nil(t, states[1])
	require.Len(t, signIns, 1)
	assert.Equal(t, 1, signOuts)
	assert.Nil(t, l.CurrentUser())
}

func TestLocal_SignInIsStablePerEmail(t *testing.T) {
	l, err := NewLocal("")
	require.NoError(t, err)

	a, err := l.SignIn("ada@example.com")
	require.NoError(t, err)
	b, err := l.SignIn("ADA@example.com")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)

	_, err = l.SignIn("  ")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestLocal_AnonymousOnlyFiresAuthState(t *testing.T) {
	l, err := NewLocal("")
	require.NoError(t, err)

	authCalls, signInCalls := 0, 0
	l.OnAuthStateChange(func(*User) { authCalls++ })
	l.OnSignIn(func(User) { signInCalls++ })

	u, err := l.SignInAnonymously()
	require.NoError(t, err)
	assert.True(t, u.Anonymous)
	assert.NotEmpty(t, u.ID)

	assert.Equal(t, 1, authCalls)
	assert.Equal(t, 0, signInCalls)
}

func TestLocal_DisposeStopsCallbacks(t *testing.T) {
	l, err := NewLocal("")
	require.NoError(t, err)

	calls := 0
	h1 := l.OnAuthStateChange(func(*User) { calls++ })
	h2 := l.OnSignIn(func(User) { calls++ })
	h3 := l.OnSignOut(func() { calls++ })
	assert.Equal(t, 3, l.Listeners())

	h1.Dispose()
	h2.Dispose()
	h3.Dispose()
	assert.Equal(t, 0, l.Listeners())

	_, err = l.SignIn("ada@example.com")
	require.NoError(t, err)
	require.NoError(t, l.SignOut())

	assert.Equal(t, 0, calls)
}

func TestLocal_PersistsUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.yaml")

	l, err := NewLocal(path)
	require.NoError(t, err)
	u, err := l.SignIn("ada@example.com")
	require.NoError(t, err)

	restored, err := NewLocal(path)
	require.NoError(t, err)
	require.NotNil(t, restored.CurrentUser())
	assert.Equal(t, u.ID, restored.CurrentUser().ID)
	assert.Equal(t, u.ID, UserID(restored))

	require.NoError(t, restored.SignOut())

	again, err := NewLocal(path)
	require.NoError(t, err)
	assert.Nil(t, again.CurrentUser())
	assert.Equal(t, "", UserID(again))
}
