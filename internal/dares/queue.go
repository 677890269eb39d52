// Package dares implements the dare lifecycle: submission against the
// token ledger, community votes and contributions, host moderation with
// refund-on-rejection, and priority ordering.
package dares

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/darestream/darestream/internal/database"
	"github.com/darestream/darestream/internal/ledger"
	"github.com/darestream/darestream/internal/types"
)

// streamQueue holds all dares and goals for one stream. Every mutation
// for a stream serializes on its lock; different streams proceed in
// parallel.
type streamQueue struct {
	mu      sync.Mutex
	dares   map[string]*types.Dare
	votedBy map[string]map[string]struct{}
	goals   map[string]*types.Goal
}

type Queue struct {
	log     *log.Logger
	ledger  *ledger.Ledger
	hosts   HostResolver
	archive database.ArchiveRepository

	mu      sync.RWMutex
	streams map[string]*streamQueue
	// dareStream and goalStream index ids back to their stream
	dareStream map[string]string
	goalStream map[string]string
}

func NewQueue(logger *log.Logger, l *ledger.Ledger, hosts HostResolver, archive database.ArchiveRepository) *Queue {
	return &Queue{
		log:        logger,
		ledger:     l,
		hosts:      hosts,
		archive:    archive,
		streams:    make(map[string]*streamQueue),
		dareStream: make(map[string]string),
		goalStream: make(map[string]string),
	}
}

func (q *Queue) stream(streamId string) *streamQueue {
	q.mu.Lock()
	defer q.mu.Unlock()

	sq, ok := q.streams[streamId]
	if !ok {
		sq = &streamQueue{
			dares:   make(map[string]*types.Dare),
			votedBy: make(map[string]map[string]struct{}),
			goals:   make(map[string]*types.Goal),
		}
		q.streams[streamId] = sq
	}
	return sq
}

func (q *Queue) streamForDare(dareId string) (*streamQueue, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	streamId, ok := q.dareStream[dareId]
	if !ok {
		return nil, false
	}
	return q.streams[streamId], true
}

func (q *Queue) streamForGoal(goalId string) (*streamQueue, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	streamId, ok := q.goalStream[goalId]
	if !ok {
		return nil, false
	}
	return q.streams[streamId], true
}

// Submit validates the spec against its tier floor, debits the submitter
// and creates the dare in Pending. A ledger failure leaves no dare behind.
func (q *Queue) Submit(ctx context.Context, streamId string, spec DareSpec, submitterId string) (types.Dare, error) {
	floor, ok := TierFloor(spec.Tier)
	if !ok {
		return types.Dare{}, ErrUnknownTier
	}
	if spec.Cost < floor {
		return types.Dare{}, ErrBelowTierFloor
	}

	sq := q.stream(streamId)
	sq.mu.Lock()
	defer sq.mu.Unlock()

	if _, err := q.ledger.Debit(ctx, submitterId, spec.Cost); err != nil {
		return types.Dare{}, err
	}

	dare := &types.Dare{
		Id:                 uuid.NewString(),
		StreamId:           streamId,
		Title:              spec.Title,
		Description:        spec.Description,
		Category:           spec.Category,
		Tier:               spec.Tier,
		Cost:               spec.Cost,
		Status:             types.DarePending,
		TotalContributions: spec.Cost,
		CreatedBy:          submitterId,
		CreatedAt:          time.Now().UTC(),
	}

	sq.dares[dare.Id] = dare
	sq.votedBy[dare.Id] = make(map[string]struct{})

	q.mu.Lock()
	q.dareStream[dare.Id] = streamId
	q.mu.Unlock()

	q.archiveDare(ctx, dare)
	return snapshotDare(dare), nil
}

// Contribute debits the user and adds to the dare's escrow.
func (q *Queue) Contribute(ctx context.Context, dareId, userId string, amount int) (types.Dare, error) {
	sq, ok := q.streamForDare(dareId)
	if !ok {
		return types.Dare{}, ErrNotFound
	}

	sq.mu.Lock()
	defer sq.mu.Unlock()

	dare, ok := sq.dares[dareId]
	if !ok {
		return types.Dare{}, ErrNotFound
	}

	if _, err := q.ledger.Debit(ctx, userId, amount); err != nil {
		return types.Dare{}, err
	}

	dare.Contributors = append(dare.Contributors, types.Contribution{
		UserId:    userId,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	})
	dare.TotalContributions += amount

	q.archiveDare(ctx, dare)
	return snapshotDare(dare), nil
}

// Vote debits the fixed vote cost and counts one vote per user per dare.
// A repeat vote fails before any tokens move.
func (q *Queue) Vote(ctx context.Context, dareId, userId string) (types.Dare, error) {
	sq, ok := q.streamForDare(dareId)
	if !ok {
		return types.Dare{}, ErrNotFound
	}

	sq.mu.Lock()
	defer sq.mu.Unlock()

	dare, ok := sq.dares[dareId]
	if !ok {
		return types.Dare{}, ErrNotFound
	}

	if _, voted := sq.votedBy[dareId][userId]; voted {
		return types.Dare{}, ErrAlreadyVoted
	}

	if _, err := q.ledger.Debit(ctx, userId, VoteCost); err != nil {
		return types.Dare{}, err
	}

	sq.votedBy[dareId][userId] = struct{}{}
	dare.Votes++

	q.archiveDare(ctx, dare)
	return snapshotDare(dare), nil
}

// Moderate lets the stream host approve or reject a pending dare.
// Rejection refunds the full submission cost to the submitter; a failed
// refund leaves the dare Pending so no tokens are stranded.
func (q *Queue) Moderate(ctx context.Context, dareId, hostId string, decision ModerationDecision, notes string) (types.Dare, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return types.Dare{}, ErrInvalidDecision
	}

	sq, ok := q.streamForDare(dareId)
	if !ok {
		return types.Dare{}, ErrNotFound
	}

	sq.mu.Lock()
	defer sq.mu.Unlock()

	dare, ok := sq.dares[dareId]
	if !ok {
		return types.Dare{}, ErrNotFound
	}

	if err := q.authorizeHost(dare.StreamId, hostId); err != nil {
		return types.Dare{}, err
	}

	if dare.Status != types.DarePending {
		return types.Dare{}, ErrNotPending
	}

	switch decision {
	case DecisionApprove:
		dare.Status = types.DareApproved
	case DecisionReject:
		if _, err := q.ledger.Credit(ctx, dare.CreatedBy, dare.Cost); err != nil {
			return types.Dare{}, err
		}
		dare.Status = types.DareRejected
	}
	dare.ModerationNotes = notes

	q.archiveDare(ctx, dare)
	return snapshotDare(dare), nil
}

// Activate transitions an approved dare to Active, demoting any other
// Active dare on the same stream back to Approved.
func (q *Queue) Activate(ctx context.Context, dareId, hostId string) (types.Dare, error) {
	sq, ok := q.streamForDare(dareId)
	if !ok {
		return types.Dare{}, ErrNotFound
	}

	sq.mu.Lock()
	defer sq.mu.Unlock()

	dare, ok := sq.dares[dareId]
	if !ok {
		return types.Dare{}, ErrNotFound
	}

	if err := q.authorizeHost(dare.StreamId, hostId); err != nil {
		return types.Dare{}, err
	}

	if dare.Status != types.DareApproved {
		return types.Dare{}, ErrNotApproved
	}

	for _, other := range sq.dares {
		if other.Id != dare.Id && other.Status == types.DareActive {
			other.Status = types.DareApproved
			q.archiveDare(ctx, other)
		}
	}
	dare.Status = types.DareActive

	q.archiveDare(ctx, dare)
	return snapshotDare(dare), nil
}

// Complete marks an active dare done. Terminal.
func (q *Queue) Complete(ctx context.Context, dareId, hostId string) (types.Dare, error) {
	sq, ok := q.streamForDare(dareId)
	if !ok {
		return types.Dare{}, ErrNotFound
	}

	sq.mu.Lock()
	defer sq.mu.Unlock()

	dare, ok := sq.dares[dareId]
	if !ok {
		return types.Dare{}, ErrNotFound
	}

	if err := q.authorizeHost(dare.StreamId, hostId); err != nil {
		return types.Dare{}, err
	}

	if dare.Status != types.DareActive {
		return types.Dare{}, ErrNotActive
	}

	dare.Status = types.DareCompleted

	q.archiveDare(ctx, dare)
	return snapshotDare(dare), nil
}

// Get returns a copy of a single dare.
func (q *Queue) Get(dareId string) (types.Dare, error) {
	sq, ok := q.streamForDare(dareId)
	if !ok {
		return types.Dare{}, ErrNotFound
	}

	sq.mu.Lock()
	defer sq.mu.Unlock()

	dare, ok := sq.dares[dareId]
	if !ok {
		return types.Dare{}, ErrNotFound
	}
	return snapshotDare(dare), nil
}

// List returns the stream's dares in a status bucket ordered by priority
// score descending, ties broken by earliest creation.
func (q *Queue) List(streamId string, status types.DareStatus) []types.Dare {
	sq := q.stream(streamId)
	sq.mu.Lock()
	defer sq.mu.Unlock()

	var dares []types.Dare
	for _, dare := range sq.dares {
		if dare.Status == status {
			dares = append(dares, snapshotDare(dare))
		}
	}

	sort.Slice(dares, func(i, j int) bool {
		if dares[i].PriorityScore != dares[j].PriorityScore {
			return dares[i].PriorityScore > dares[j].PriorityScore
		}
		return dares[i].CreatedAt.Before(dares[j].CreatedAt)
	})

	return dares
}

// EvictStream drops all in-memory dare state for an ended stream. Facts
// already archived stay archived.
func (q *Queue) EvictStream(streamId string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sq, ok := q.streams[streamId]
	if !ok {
		return
	}

	sq.mu.Lock()
	for id := range sq.dares {
		delete(q.dareStream, id)
	}
	for id := range sq.goals {
		delete(q.goalStream, id)
	}
	sq.mu.Unlock()

	delete(q.streams, streamId)
}

func (q *Queue) authorizeHost(streamId, hostId string) error {
	actual, ok := q.hosts.HostId(streamId)
	if !ok || actual != hostId {
		return ErrNotHost
	}
	return nil
}

// archiveDare records the dare best-effort; archive failures never block
// the command path.
func (q *Queue) archiveDare(ctx context.Context, dare *types.Dare) {
	if q.archive == nil {
		return
	}

	snapshot := snapshotDare(dare)
	if err := q.archive.SaveDare(ctx, snapshot); err != nil {
		q.log.Printf("archive dare %q: %v", dare.Id, err)
	}
}

func snapshotDare(dare *types.Dare) types.Dare {
	d := *dare
	d.Contributors = make([]types.Contribution, len(dare.Contributors))
	copy(d.Contributors, dare.Contributors)
	d.PriorityScore = d.Votes*10 + d.TotalContributions*2
	return d
}
