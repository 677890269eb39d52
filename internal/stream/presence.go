package stream

import (
	"sync"
	"time"

	"github.com/darestream/darestream/internal/types"
)

// Presence tracks which users are watching which session. A user may hold
// several connections (tabs, devices) at once; the viewer count is unique
// users, not connections.
type Presence struct {
	mu sync.Mutex
	// sessionId -> userId -> connectionId -> viewer
	sessions map[string]map[string]map[string]types.Viewer
}

func NewPresence() *Presence {
	return &Presence{
		sessions: make(map[string]map[string]map[string]types.Viewer),
	}
}

// Join records a connection for a user. It reports whether this is the
// user's first connection to the session.
func (p *Presence) Join(sessionId, userId, connectionId string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.sessions[sessionId]
	if !ok {
		users = make(map[string]map[string]types.Viewer)
		p.sessions[sessionId] = users
	}

	conns, ok := users[userId]
	if !ok {
		conns = make(map[string]types.Viewer)
		users[userId] = conns
	}

	first := len(conns) == 0
	conns[connectionId] = types.Viewer{
		ConnectionId: connectionId,
		UserId:       userId,
		JoinedAt:     time.Now().UTC(),
	}
	return first
}

// Leave drops a connection. It reports whether the user has no remaining
// connections to the session. Leaving twice, or leaving a session never
// joined, is a no-op.
func (p *Presence) Leave(sessionId, userId, connectionId string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.sessions[sessionId]
	if !ok {
		return false
	}

	conns, ok := users[userId]
	if !ok {
		return false
	}

	if _, ok := conns[connectionId]; !ok {
		return false
	}

	delete(conns, connectionId)
	if len(conns) > 0 {
		return false
	}

	delete(users, userId)
	if len(users) == 0 {
		delete(p.sessions, sessionId)
	}
	return true
}

// Count returns the number of unique users present in a session.
func (p *Presence) Count(sessionId string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.sessions[sessionId])
}

// Viewers returns a snapshot of every connection in a session.
func (p *Presence) Viewers(sessionId string) []types.Viewer {
	p.mu.Lock()
	defer p.mu.Unlock()

	var viewers []types.Viewer
	for _, conns := range p.sessions[sessionId] {
		for _, v := range conns {
			viewers = append(viewers, v)
		}
	}
	return viewers
}

// DropSession forgets all presence for an ended session.
func (p *Presence) DropSession(sessionId string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.sessions, sessionId)
}
