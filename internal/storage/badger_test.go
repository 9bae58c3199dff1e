package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{ID: "abc", UserAgent: "test", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.SaveSession(sess, time.Hour))

	got, err := s.GetSession("abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "test", got.UserAgent)

	missing, err := s.GetSession("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestValues(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("abc", map[string]string{
		KeyToken:        "access",
		KeyRefreshToken: "refresh",
		KeyEmail:        "me@example.com",
	}, 0))

	v, err := s.Get("abc", KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "access", v)

	// Значения другой сессии не видны
	v, err = s.Get("other", KeyToken)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.Delete("abc", KeyToken, KeyRefreshToken, KeyExpiration))

	v, _ = s.Get("abc", KeyToken)
	assert.Empty(t, v)
	v, _ = s.Get("abc", KeyEmail)
	assert.Equal(t, "me@example.com", v)
}

func TestDeleteSessionRemovesValues(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveSession(&Session{ID: "abc"}, 0))
	require.NoError(t, s.Set("abc", map[string]string{KeyEmail: "me@example.com"}, 0))
	require.NoError(t, s.Set("abcd", map[string]string{KeyEmail: "other@example.com"}, 0))

	require.NoError(t, s.DeleteSession("abc"))

	v, _ := s.Get("abc", KeyEmail)
	assert.Empty(t, v)
	v, _ = s.Get("abcd", KeyEmail)
	assert.Equal(t, "other@example.com", v)
}
