// Package stream owns the session lifecycle: the registry of live
// sessions, viewer presence, and the host-disconnect grace timer.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teris-io/shortid"

	"github.com/darestream/darestream/internal/database"
	"github.com/darestream/darestream/internal/media"
	"github.com/darestream/darestream/internal/types"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrAlreadyLive  = errors.New("host already has a live session")
	ErrSessionEnded = errors.New("session has ended")
	ErrNotHost      = errors.New("only the session host may do this")
)

// RegistryConfig wires the registry's collaborators.
type RegistryConfig struct {
	Media   media.TokenIssuer
	Archive database.ArchiveRepository
	// GracePeriod is how long a session survives a host disconnect.
	GracePeriod time.Duration
	// OnForceEnd is invoked when the grace timer expires and the registry
	// ends a session on its own. May be nil.
	OnForceEnd func(types.Session)
}

// Registry is the authority on which sessions exist and what state each
// is in. Commands mutate here first; the fan-out layer only observes.
type Registry struct {
	log     *log.Logger
	media   media.TokenIssuer
	archive database.ArchiveRepository
	grace   time.Duration
	onForce func(types.Session)

	mu          sync.Mutex
	sessions    map[string]*types.Session
	liveByHost  map[string]string
	graceTimers map[string]*time.Timer
	presence    *Presence
}

func NewRegistry(logger *log.Logger, cfg *RegistryConfig) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Media == nil {
		return nil, errors.New("media token issuer cannot be nil")
	}
	if cfg.GracePeriod <= 0 {
		return nil, errors.New("grace period must be positive")
	}

	return &Registry{
		log:         logger,
		media:       cfg.Media,
		archive:     cfg.Archive,
		grace:       cfg.GracePeriod,
		onForce:     cfg.OnForceEnd,
		sessions:    make(map[string]*types.Session),
		liveByHost:  make(map[string]string),
		graceTimers: make(map[string]*time.Timer),
		presence:    NewPresence(),
	}, nil
}

// SetOnForceEnd installs the hook invoked after a grace-timer force end.
// The fan-out server registers itself here once it exists.
func (r *Registry) SetOnForceEnd(fn func(types.Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onForce = fn
}

// Start creates a live session for a host and mints the host's publisher
// credential. A host can run at most one live session at a time; a media
// failure aborts the whole start so no session exists without a room.
func (r *Registry) Start(ctx context.Context, hostId, title, challenge string) (types.Session, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, live := r.liveByHost[hostId]; live {
		return types.Session{}, "", ErrAlreadyLive
	}

	sessionId, err := shortid.Generate()
	if err != nil {
		sessionId = uuid.NewString()
	}

	token, err := r.media.IssueRoomToken(ctx, sessionId, hostId, true)
	if err != nil {
		return types.Session{}, "", fmt.Errorf("issue host credential: %w", err)
	}

	session := &types.Session{
		Id:        sessionId,
		HostId:    hostId,
		Title:     title,
		Challenge: challenge,
		Status:    types.SessionLive,
		StartedAt: time.Now().UTC(),
	}
	r.sessions[sessionId] = session
	r.liveByHost[hostId] = sessionId

	r.archiveSession(ctx, session)
	return r.snapshot(session), token, nil
}

// Join admits a viewer and mints a subscriber credential. It reports
// whether the user is newly present, so the caller knows to announce a
// viewer-joined event. An ended session is not joinable and looks the
// same as an absent one.
func (r *Registry) Join(ctx context.Context, sessionId, userId, connectionId string) (types.Session, string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionId]
	if !ok || session.Status == types.SessionEnded {
		return types.Session{}, "", false, ErrNotFound
	}

	token, err := r.media.IssueRoomToken(ctx, sessionId, userId, false)
	if err != nil {
		return types.Session{}, "", false, fmt.Errorf("issue viewer credential: %w", err)
	}

	first := r.presence.Join(sessionId, userId, connectionId)
	return r.snapshot(session), token, first, nil
}

// Leave drops a viewer connection. It reports whether the user fully left
// the session. Idempotent.
func (r *Registry) Leave(sessionId, userId, connectionId string) (types.Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionId]
	if !ok {
		return types.Session{}, false, ErrNotFound
	}

	last := r.presence.Leave(sessionId, userId, connectionId)
	return r.snapshot(session), last, nil
}

// End terminates a live session. Host only, and only once.
func (r *Registry) End(ctx context.Context, sessionId, hostId string) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionId]
	if !ok {
		return types.Session{}, ErrNotFound
	}
	if session.HostId != hostId {
		return types.Session{}, ErrNotHost
	}
	if session.Status == types.SessionEnded {
		return types.Session{}, ErrSessionEnded
	}

	final := r.endLocked(ctx, session)
	return final, nil
}

// endLocked performs the shared end transition. Callers hold r.mu.
func (r *Registry) endLocked(ctx context.Context, session *types.Session) types.Session {
	session.Status = types.SessionEnded
	session.EndedAt = time.Now().UTC()

	if timer, ok := r.graceTimers[session.Id]; ok {
		timer.Stop()
		delete(r.graceTimers, session.Id)
	}
	delete(r.liveByHost, session.HostId)

	final := r.snapshot(session)
	r.presence.DropSession(session.Id)
	r.archiveSession(ctx, session)
	return final
}

// HostDisconnected starts the grace timer for a live session. If the host
// does not return before it fires, the session is force-ended and the
// OnForceEnd hook runs.
func (r *Registry) HostDisconnected(sessionId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionId]
	if !ok || session.Status != types.SessionLive {
		return
	}
	if _, running := r.graceTimers[sessionId]; running {
		return
	}

	r.log.Printf("host of session %q disconnected, ending in %s unless they return", sessionId, r.grace)
	r.graceTimers[sessionId] = time.AfterFunc(r.grace, func() {
		r.forceEnd(sessionId)
	})
}

// HostReconnected cancels a pending grace timer.
func (r *Registry) HostReconnected(sessionId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if timer, ok := r.graceTimers[sessionId]; ok {
		timer.Stop()
		delete(r.graceTimers, sessionId)
		r.log.Printf("host of session %q reconnected", sessionId)
	}
}

func (r *Registry) forceEnd(sessionId string) {
	r.mu.Lock()
	session, ok := r.sessions[sessionId]
	if !ok || session.Status == types.SessionEnded {
		r.mu.Unlock()
		return
	}

	r.log.Printf("host of session %q never returned, force-ending", sessionId)
	final := r.endLocked(context.Background(), session)
	onForce := r.onForce
	r.mu.Unlock()

	if onForce != nil {
		onForce(final)
	}
}

// RecordTip applies a tip to a live session and returns the immutable
// tip fact plus the updated session.
func (r *Registry) RecordTip(ctx context.Context, sessionId, fromUserId string, amount int, message string) (types.TipEvent, types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionId]
	if !ok {
		return types.TipEvent{}, types.Session{}, ErrNotFound
	}
	if session.Status != types.SessionLive {
		return types.TipEvent{}, types.Session{}, ErrSessionEnded
	}

	tip := types.TipEvent{
		Id:         uuid.NewString(),
		SessionId:  sessionId,
		FromUserId: fromUserId,
		Amount:     amount,
		Message:    message,
		Timestamp:  time.Now().UTC(),
	}
	session.TotalTips += amount

	if r.archive != nil {
		if err := r.archive.SaveTip(ctx, tip); err != nil {
			r.log.Printf("archive tip %q: %v", tip.Id, err)
		}
	}
	return tip, r.snapshot(session), nil
}

// RecordVote applies a session-level vote to a live session.
func (r *Registry) RecordVote(ctx context.Context, sessionId, userId, voteType string) (types.VoteEvent, types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionId]
	if !ok {
		return types.VoteEvent{}, types.Session{}, ErrNotFound
	}
	if session.Status != types.SessionLive {
		return types.VoteEvent{}, types.Session{}, ErrSessionEnded
	}

	vote := types.VoteEvent{
		Id:        uuid.NewString(),
		SessionId: sessionId,
		UserId:    userId,
		VoteType:  voteType,
		Timestamp: time.Now().UTC(),
	}
	session.TotalVotes++

	if r.archive != nil {
		if err := r.archive.SaveVote(ctx, vote); err != nil {
			r.log.Printf("archive vote %q: %v", vote.Id, err)
		}
	}
	return vote, r.snapshot(session), nil
}

// SetCurrentDare pins the dare a live session is currently performing.
func (r *Registry) SetCurrentDare(sessionId, dareId string) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionId]
	if !ok {
		return types.Session{}, ErrNotFound
	}

	session.CurrentDare = dareId
	return r.snapshot(session), nil
}

// Get returns a session by id with its live viewer count.
func (r *Registry) Get(sessionId string) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionId]
	if !ok {
		return types.Session{}, ErrNotFound
	}
	return r.snapshot(session), nil
}

// ListLive returns every session currently live.
func (r *Registry) ListLive() []types.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var live []types.Session
	for _, session := range r.sessions {
		if session.Status == types.SessionLive {
			live = append(live, r.snapshot(session))
		}
	}
	return live
}

// Viewers returns the connections present in a session.
func (r *Registry) Viewers(sessionId string) []types.Viewer {
	return r.presence.Viewers(sessionId)
}

// HostId reports the host of a session, satisfying the dare queue's
// authorization hook.
func (r *Registry) HostId(sessionId string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionId]
	if !ok {
		return "", false
	}
	return session.HostId, true
}

func (r *Registry) snapshot(session *types.Session) types.Session {
	s := *session
	s.ViewerCount = r.presence.Count(session.Id)
	return s
}

func (r *Registry) archiveSession(ctx context.Context, session *types.Session) {
	if r.archive == nil {
		return
	}
	if err := r.archive.SaveSession(ctx, r.snapshot(session)); err != nil {
		r.log.Printf("archive session %q: %v", session.Id, err)
	}
}
