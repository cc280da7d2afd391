package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/brainduel/internal/game/player"
	"github.com/cory-johannsen/brainduel/internal/transport"
)

func TestRegistry_Add(t *testing.T) {
	r := NewRegistry()
	sess, err := r.Add(1)
	require.NoError(t, err)
	assert.Equal(t, transport.ConnID(1), sess.Conn)
	assert.False(t, sess.Authenticated())
	assert.False(t, sess.InMatch())
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_AddDuplicate(t *testing.T) {
	r := NewRegistry()
	_, err := r.Add(1)
	require.NoError(t, err)
	_, err = r.Add(1)
	assert.ErrorIs(t, err, ErrDuplicateConn)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_GetRemove(t *testing.T) {
	r := NewRegistry()
	added, err := r.Add(7)
	require.NoError(t, err)

	got, ok := r.Get(7)
	require.True(t, ok)
	assert.Same(t, added, got)

	removed, ok := r.Remove(7)
	require.True(t, ok)
	assert.Same(t, added, removed)

	_, ok = r.Get(7)
	assert.False(t, ok)
	_, ok = r.Remove(7)
	assert.False(t, ok)
}

func TestRegistry_FindByPlayerID(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Add(1)
	_, _ = r.Add(2)
	a.Load(player.Record{ID: 42, Name: "amy"})

	got, ok := r.FindByPlayerID(42)
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = r.FindByPlayerID(0)
	assert.False(t, ok, "unauthenticated sessions are never found")
	_, ok = r.FindByPlayerID(9)
	assert.False(t, ok)
}

func TestRegistry_AllOrdered(t *testing.T) {
	r := NewRegistry()
	for _, c := range []transport.ConnID{5, 2, 9} {
		_, err := r.Add(c)
		require.NoError(t, err)
	}
	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, transport.ConnID(2), all[0].Conn)
	assert.Equal(t, transport.ConnID(9), all[2].Conn)
}

func TestSession_LoadAndLeaveMatch(t *testing.T) {
	s := &Session{Conn: 1}
	s.Load(player.Record{ID: 3, RID: "r", Name: "bob", Rating: 20, Wins: 2, Losses: 1,
		Avatar: player.Avatar{Picture: []byte{1}, Extension: "png"}})
	assert.True(t, s.Authenticated())
	assert.Equal(t, player.Standing{Rating: 20, Wins: 2, Losses: 1}, s.Standing())

	s.Points, s.Answered, s.MatchID = 12, true, "m"
	s.LeaveMatch()
	assert.Zero(t, s.Points)
	assert.False(t, s.Answered)
	assert.False(t, s.InMatch())
	assert.Equal(t, "bob", s.Name)
}

// Property: the registry count always equals the number of distinct live handles.
func TestPropertyRegistryCount(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := NewRegistry()
		live := make(map[transport.ConnID]bool)
		ops := rapid.SliceOfN(rapid.Uint64Range(1, 8), 1, 40).Draw(rt, "ops")
		for i, raw := range ops {
			conn := transport.ConnID(raw)
			if i%3 == 2 {
				r.Remove(conn)
				delete(live, conn)
				continue
			}
			_, err := r.Add(conn)
			if live[conn] && err == nil {
				rt.Fatalf("duplicate add of %s succeeded", conn)
			}
			live[conn] = true
		}
		if r.Count() != len(live) {
			rt.Fatalf("count %d, want %d", r.Count(), len(live))
		}
	})
}
