package server

import (
	"errors"
	"log"
	"sort"
	"sync"

	"github.com/orzchat/orzchat/pkg/protocol"
)

// ErrGlobalChannel is returned for an explicit join of channel 0, whose
// membership is implicitly every logged-in session.
var ErrGlobalChannel = errors.New("channel 0 membership is implicit")

// ChannelStore persists the channel id list across restarts. Implemented by
// the sqlite store in pkg/database; nil disables persistence.
type ChannelStore interface {
	ListChannelIDs() ([]uint32, error)
	CreateChannel(id uint32) error
}

// ChannelRegistry owns channel membership. Member sets are true sets:
// duplicate joins are idempotent and deliver at most once. Channels are
// created implicitly on first join and never deleted; an empty member set
// persists.
type ChannelRegistry struct {
	mu      sync.RWMutex
	members map[uint32]map[uint32]struct{}
	store   ChannelStore
}

// NewChannelRegistry creates a registry seeded with the given channel ids
// (empty member sets). Channel 0 in the seed list is ignored.
func NewChannelRegistry(seed []uint32, store ChannelStore) *ChannelRegistry {
	r := &ChannelRegistry{
		members: make(map[uint32]map[uint32]struct{}),
		store:   store,
	}
	for _, id := range seed {
		if id == protocol.GlobalChannelID {
			continue
		}
		if _, ok := r.members[id]; !ok {
			r.members[id] = make(map[uint32]struct{})
		}
	}
	return r
}

// Join adds the user to the channel, creating the channel entry if absent.
// Channel 0 is rejected. Joining a channel twice is a no-op.
func (r *ChannelRegistry) Join(channelID, userID uint32) error {
	if channelID == protocol.GlobalChannelID {
		return ErrGlobalChannel
	}

	r.mu.Lock()
	set, ok := r.members[channelID]
	if !ok {
		set = make(map[uint32]struct{})
		r.members[channelID] = set
	}
	set[userID] = struct{}{}
	r.mu.Unlock()

	if !ok && r.store != nil {
		if err := r.store.CreateChannel(channelID); err != nil {
			log.Printf("Failed to persist channel %d: %v", channelID, err)
		}
	}
	return nil
}

// Leave removes the user from the channel if present. Leaving a channel the
// user never joined, or one that does not exist, is a no-op.
func (r *ChannelRegistry) Leave(channelID, userID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.members[channelID]; ok {
		delete(set, userID)
	}
}

// LeaveAll removes the user from every channel's member set. Used on
// disconnect.
func (r *ChannelRegistry) LeaveAll(userID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, set := range r.members {
		delete(set, userID)
	}
}

// Members returns a snapshot of the channel's member ids. Callers asking
// about channel 0 must consult the session registry instead; here it reads
// as empty.
func (r *ChannelRegistry) Members(channelID uint32) []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.members[channelID]
	if !ok {
		return nil
	}
	ids := make([]uint32, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// IDs returns every known channel id in ascending order, excluding the
// implicit channel 0. This is the list LOGIN_SUCCESS advertises.
func (r *ChannelRegistry) IDs() []uint32 {
	r.mu.RLock()
	ids := make([]uint32, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
