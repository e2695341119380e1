package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/voterps/internal/randutil"
)

func TestRegistryOpen(t *testing.T) {
	r := NewRegistry(DefaultConfig(), randutil.New(1))

	s, created, err := r.Open("abc")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "abc", s.Code())
	assert.Equal(t, Lobby, s.Phase())

	again, created, err := r.Open(" abc ")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, s, again)
	assert.Equal(t, 1, r.Len())

	_, _, err = r.Open("  ")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestRegistryGetDoesNotCreate(t *testing.T) {
	r := NewRegistry(DefaultConfig(), randutil.New(1))

	_, ok := r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry(DefaultConfig(), randutil.New(1))
	_, _, err := r.Open("b")
	require.NoError(t, err)
	_, _, err = r.Open("a")
	require.NoError(t, err)

	sessions := r.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "a", sessions[0].Code())

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	_, ok := r.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistrySessionsGetIndependentDecks(t *testing.T) {
	r := NewRegistry(DefaultConfig(), randutil.New(1))
	a, _, _ := r.Open("a")
	b, _, _ := r.Open("b")

	for _, s := range []*Session{a, b} {
		_, _ = s.Join("alice", "c1")
		_, _ = s.Join("bob", "c2")
		for i := 0; i < 2; i++ {
			_, _ = s.Ready("alice")
			_, _ = s.Ready("bob")
		}
		require.Equal(t, Drawing, s.Phase())
	}

	assert.NotEqual(t, a.Deck(), b.Deck())
}
