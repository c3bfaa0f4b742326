package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *TokenStore {
	t.Helper()
	t.Setenv(EnvToken, "")
	return NewTokenStore(keyring.NewArrayKeyring(nil))
}

func TestTokenStore_SaveTokenClear(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Token()
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, s.LoggedIn())

	require.NoError(t, s.Save("  abc  "))
	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
	assert.True(t, s.LoggedIn())

	require.NoError(t, s.Clear())
	_, err = s.Token()
	assert.ErrorIs(t, err, ErrNoToken)

	// Second clear is a no-op.
	assert.NoError(t, s.Clear())
}

func TestTokenStore_RejectsEmptyToken(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.Save("   "))
}

func TestTokenStore_EnvOverride(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("stored"))

	t.Setenv(EnvToken, "from-env")
	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "from-env", tok)
}
