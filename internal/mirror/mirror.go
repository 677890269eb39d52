// Package mirror is the client-side replica of a stream's state. It is
// seeded from a join reply, advanced one event at a time, and supports
// optimistic staging for tips and dare votes so UIs can update before
// the server confirms.
package mirror

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/darestream/darestream/internal/server"
	"github.com/darestream/darestream/internal/types"
)

var (
	// ErrNotSeeded is returned when events arrive before a seed.
	ErrNotSeeded = errors.New("mirror not seeded")
	// ErrEventGap is returned when an event skips ahead of the expected
	// seq id. The caller should reset and rejoin.
	ErrEventGap = errors.New("gap in event sequence")
	// ErrUnknownStage is returned when confirming or rolling back a stage
	// id that does not exist.
	ErrUnknownStage = errors.New("unknown stage id")
)

type stagedTip struct {
	amount int
}

type stagedVote struct {
	dareId string
}

// Mirror tracks one stream. All methods are safe for concurrent use.
type Mirror struct {
	mu      sync.Mutex
	seeded  bool
	seqId   int
	session types.Session
	dares   map[string]types.Dare
	goals   map[string]types.Goal
	tips    []types.TipEvent
	balance int

	pendingTips  map[string]stagedTip
	pendingVotes map[string]stagedVote
}

func New() *Mirror {
	return &Mirror{
		dares:        make(map[string]types.Dare),
		goals:        make(map[string]types.Goal),
		pendingTips:  make(map[string]stagedTip),
		pendingVotes: make(map[string]stagedVote),
	}
}

// Seed installs the authoritative snapshot from a join reply. Any state
// from a previous session is discarded.
func (m *Mirror) Seed(session types.Session, seqId int, dareList []types.Dare, goalList []types.Goal, balance int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seeded = true
	m.seqId = seqId
	m.session = session
	m.balance = balance
	m.tips = nil
	m.dares = make(map[string]types.Dare, len(dareList))
	for _, d := range dareList {
		m.dares[d.Id] = d
	}
	m.goals = make(map[string]types.Goal, len(goalList))
	for _, g := range goalList {
		m.goals[g.Id] = g
	}
	m.pendingTips = make(map[string]stagedTip)
	m.pendingVotes = make(map[string]stagedVote)
}

// Apply advances the mirror by one event. Events at or below the current
// seq id are stale and dropped without error; an event further ahead than
// the next seq id means the mirror missed something and must reseed.
func (m *Mirror) Apply(event *server.Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.seeded {
		return false, ErrNotSeeded
	}
	if event.SeqId <= m.seqId {
		return false, nil
	}
	if event.SeqId != m.seqId+1 {
		return false, ErrEventGap
	}

	m.seqId = event.SeqId

	switch event.Type {
	case server.EventViewerJoined, server.EventViewerLeft:
		m.session.ViewerCount = event.ViewerCount
		if event.Session != nil {
			m.session = *event.Session
		}
	case server.EventTipSent:
		if event.Tip != nil {
			m.tips = append(m.tips, *event.Tip)
		}
		if event.Session != nil {
			m.session = *event.Session
		}
	case server.EventVoteSubmitted:
		if event.Session != nil {
			m.session = *event.Session
		}
	case server.EventDareUpdated:
		if event.Dare != nil {
			m.dares[event.Dare.Id] = *event.Dare
		}
	case server.EventGoalUpdated:
		if event.Goal != nil {
			m.goals[event.Goal.Id] = *event.Goal
		}
	case server.EventStreamStarted:
		if event.Session != nil {
			m.session = *event.Session
		}
	case server.EventStreamEnded:
		if event.Session != nil {
			m.session = *event.Session
		} else {
			m.session.Status = types.SessionEnded
		}
	}

	return true, nil
}

// Reset discards everything so the mirror can rejoin and reseed after a
// disconnect.
func (m *Mirror) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seeded = false
	m.seqId = 0
	m.session = types.Session{}
	m.tips = nil
	m.dares = make(map[string]types.Dare)
	m.goals = make(map[string]types.Goal)
	m.pendingTips = make(map[string]stagedTip)
	m.pendingVotes = make(map[string]stagedVote)
}

// StageTip optimistically deducts a tip from the local balance before the
// server confirms. The returned stage id resolves the tip later.
func (m *Mirror) StageTip(amount int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.seeded {
		return "", ErrNotSeeded
	}

	stageId := uuid.NewString()
	m.pendingTips[stageId] = stagedTip{amount: amount}
	m.balance -= amount
	return stageId, nil
}

// ConfirmTip resolves a staged tip with the server's authoritative
// balance.
func (m *Mirror) ConfirmTip(stageId string, balance int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pendingTips[stageId]; !ok {
		return ErrUnknownStage
	}

	delete(m.pendingTips, stageId)
	m.balance = balance
	return nil
}

// RollbackTip restores the optimistic deduction after the server refused
// the tip.
func (m *Mirror) RollbackTip(stageId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged, ok := m.pendingTips[stageId]
	if !ok {
		return ErrUnknownStage
	}

	delete(m.pendingTips, stageId)
	m.balance += staged.amount
	return nil
}

// StageVote optimistically bumps a dare's vote count.
func (m *Mirror) StageVote(dareId string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.seeded {
		return "", ErrNotSeeded
	}

	dare, ok := m.dares[dareId]
	if !ok {
		return "", ErrUnknownStage
	}

	stageId := uuid.NewString()
	m.pendingVotes[stageId] = stagedVote{dareId: dareId}
	dare.Votes++
	m.dares[dareId] = dare
	return stageId, nil
}

// ConfirmVote resolves a staged vote. The authoritative dare arrives via
// a dare-updated event, so confirmation only clears the stage.
func (m *Mirror) ConfirmVote(stageId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pendingVotes[stageId]; !ok {
		return ErrUnknownStage
	}

	delete(m.pendingVotes, stageId)
	return nil
}

// RollbackVote undoes the optimistic bump after the server refused the
// vote.
func (m *Mirror) RollbackVote(stageId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged, ok := m.pendingVotes[stageId]
	if !ok {
		return ErrUnknownStage
	}

	delete(m.pendingVotes, stageId)
	if dare, ok := m.dares[staged.dareId]; ok {
		dare.Votes--
		m.dares[staged.dareId] = dare
	}
	return nil
}

// Session returns the mirrored session.
func (m *Mirror) Session() types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// SeqId returns the last applied seq id.
func (m *Mirror) SeqId() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seqId
}

// Balance returns the local token balance including optimistic stages.
func (m *Mirror) Balance() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance
}

// Dares returns the mirrored dares ordered by priority score descending,
// ties broken by earliest creation.
func (m *Mirror) Dares() []types.Dare {
	m.mu.Lock()
	defer m.mu.Unlock()

	dareList := make([]types.Dare, 0, len(m.dares))
	for _, d := range m.dares {
		dareList = append(dareList, d)
	}
	sort.Slice(dareList, func(i, j int) bool {
		if dareList[i].PriorityScore != dareList[j].PriorityScore {
			return dareList[i].PriorityScore > dareList[j].PriorityScore
		}
		return dareList[i].CreatedAt.Before(dareList[j].CreatedAt)
	})
	return dareList
}

// Goals returns the mirrored goals.
func (m *Mirror) Goals() []types.Goal {
	m.mu.Lock()
	defer m.mu.Unlock()

	goalList := make([]types.Goal, 0, len(m.goals))
	for _, g := range m.goals {
		goalList = append(goalList, g)
	}
	return goalList
}

// Tips returns the tips seen since the seed, oldest first.
func (m *Mirror) Tips() []types.TipEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	tips := make([]types.TipEvent, len(m.tips))
	copy(tips, m.tips)
	return tips
}
