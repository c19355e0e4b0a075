package server

import (
	"sync"
)

// Session represents one logged-in client. The user id is unique for the
// process lifetime and never reused; the connection is one-to-one with the
// session.
type Session struct {
	UserID     uint32
	Nickname   string
	Conn       *SafeConn
	RemoteAddr string
}

// SessionRegistry owns the user_id → session mapping and user id allocation.
// All operations are atomic with respect to concurrent connection handlers.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[uint32]*Session
	nextID   uint32
	metrics  *Metrics
}

// NewSessionRegistry creates an empty registry. The first allocated user id
// is 0.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[uint32]*Session),
	}
}

// SetMetrics attaches metrics to the registry.
func (r *SessionRegistry) SetMetrics(metrics *Metrics) {
	r.metrics = metrics
}

// Allocate assigns the next user id, stores the association and returns the
// new session. Ids are monotonic and never reused while the process runs.
func (r *SessionRegistry) Allocate(nickname string, conn *SafeConn) *Session {
	var remote string
	if conn != nil {
		remote = conn.RemoteAddr()
	}

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	sess := &Session{
		UserID:     id,
		Nickname:   nickname,
		Conn:       conn,
		RemoteAddr: remote,
	}
	r.sessions[id] = sess
	count := len(r.sessions)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordActiveSessions(count)
		r.metrics.RecordSessionCreated()
	}
	return sess
}

// Get returns the session for a user id.
func (r *SessionRegistry) Get(userID uint32) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[userID]
	return sess, ok
}

// Remove deletes the association. Removing an absent id is a no-op; the id
// is never handed out again either way.
func (r *SessionRegistry) Remove(userID uint32) {
	r.mu.Lock()
	_, ok := r.sessions[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, userID)
	count := len(r.sessions)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordActiveSessions(count)
		r.metrics.RecordSessionRemoved()
	}
}

// ForEachSession applies f to a consistent snapshot of every session except
// the one with user id skip. Used for global-channel fan-out; a session
// removed mid-iteration still appears in the snapshot, and its dead
// connection fails the individual delivery instead of the iteration.
func (r *SessionRegistry) ForEachSession(skip uint32, f func(*Session)) {
	r.mu.RLock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for id, sess := range r.sessions {
		if id == skip {
			continue
		}
		snapshot = append(snapshot, sess)
	}
	r.mu.RUnlock()

	for _, sess := range snapshot {
		f(sess)
	}
}

// Count returns the number of logged-in sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// CloseAll closes every registered connection and empties the registry.
// Used during shutdown; each handler's blocking read returns and exits.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sess := range r.sessions {
		sess.Conn.Close()
	}
	r.sessions = make(map[uint32]*Session)
}
