package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionIDsMonotonicFromZero(t *testing.T) {
	reg := NewSessionRegistry()

	a := reg.Allocate("alice", nil)
	b := reg.Allocate("bob", nil)
	require.Equal(t, uint32(0), a.UserID)
	require.Equal(t, uint32(1), b.UserID)

	// An id freed by removal is never handed out again
	reg.Remove(a.UserID)
	c := reg.Allocate("carol", nil)
	require.Equal(t, uint32(2), c.UserID)
}

func TestSessionRemoveIdempotent(t *testing.T) {
	reg := NewSessionRegistry()
	sess := reg.Allocate("alice", nil)

	reg.Remove(sess.UserID)
	reg.Remove(sess.UserID)
	reg.Remove(99)

	require.Equal(t, 0, reg.Count())
	_, ok := reg.Get(sess.UserID)
	assert.False(t, ok)
}

func TestForEachSessionSkipsSender(t *testing.T) {
	reg := NewSessionRegistry()
	a := reg.Allocate("alice", nil)
	b := reg.Allocate("bob", nil)
	c := reg.Allocate("carol", nil)

	var visited []uint32
	reg.ForEachSession(b.UserID, func(s *Session) {
		visited = append(visited, s.UserID)
	})

	require.Len(t, visited, 2)
	assert.Contains(t, visited, a.UserID)
	assert.Contains(t, visited, c.UserID)
	assert.NotContains(t, visited, b.UserID)
}

func TestChannelJoinLeave(t *testing.T) {
	reg := NewChannelRegistry([]uint32{1024}, nil)

	require.NoError(t, reg.Join(1024, 0))
	require.NoError(t, reg.Join(1024, 1))
	assert.ElementsMatch(t, []uint32{0, 1}, reg.Members(1024))

	reg.Leave(1024, 0)
	assert.Equal(t, []uint32{1}, reg.Members(1024))

	// Leaving twice, or leaving an unknown channel, is a no-op
	reg.Leave(1024, 0)
	reg.Leave(9999, 0)
	assert.Equal(t, []uint32{1}, reg.Members(1024))
}

func TestChannelJoinIdempotent(t *testing.T) {
	reg := NewChannelRegistry(nil, nil)

	require.NoError(t, reg.Join(5, 7))
	require.NoError(t, reg.Join(5, 7))
	assert.Equal(t, []uint32{7}, reg.Members(5))
}

func TestChannelCreatedOnFirstJoin(t *testing.T) {
	reg := NewChannelRegistry([]uint32{1024}, nil)

	require.NoError(t, reg.Join(2000, 3))
	assert.Equal(t, []uint32{1024, 2000}, reg.IDs())

	// Channels are never deleted, even when empty
	reg.Leave(2000, 3)
	assert.Equal(t, []uint32{1024, 2000}, reg.IDs())
	assert.Empty(t, reg.Members(2000))
}

func TestGlobalChannelJoinRejected(t *testing.T) {
	reg := NewChannelRegistry(nil, nil)

	err := reg.Join(0, 1)
	require.ErrorIs(t, err, ErrGlobalChannel)
	assert.Empty(t, reg.IDs())
}

func TestGlobalChannelExcludedFromSeed(t *testing.T) {
	reg := NewChannelRegistry([]uint32{0, 1024}, nil)
	assert.Equal(t, []uint32{1024}, reg.IDs())
}

func TestLeaveAll(t *testing.T) {
	reg := NewChannelRegistry(nil, nil)
	require.NoError(t, reg.Join(1, 7))
	require.NoError(t, reg.Join(2, 7))
	require.NoError(t, reg.Join(2, 8))

	reg.LeaveAll(7)

	assert.Empty(t, reg.Members(1))
	assert.Equal(t, []uint32{8}, reg.Members(2))
}

func TestIDsSorted(t *testing.T) {
	reg := NewChannelRegistry([]uint32{300, 100, 200}, nil)
	assert.Equal(t, []uint32{100, 200, 300}, reg.IDs())
}

type fakeStore struct {
	created []uint32
}

func (s *fakeStore) ListChannelIDs() ([]uint32, error) { return nil, nil }
func (s *fakeStore) CreateChannel(id uint32) error {
	s.created = append(s.created, id)
	return nil
}

func TestNewChannelsPersisted(t *testing.T) {
	store := &fakeStore{}
	reg := NewChannelRegistry([]uint32{1024}, store)

	require.NoError(t, reg.Join(2000, 0))
	require.NoError(t, reg.Join(2000, 1))
	require.NoError(t, reg.Join(1024, 0))

	// Only the first join of a previously unknown channel hits the store
	assert.Equal(t, []uint32{2000}, store.created)
}
