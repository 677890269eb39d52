package dares

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/darestream/darestream/internal/ledger"
	"github.com/darestream/darestream/internal/types"
)

// CreateGoal registers a funding goal for a stream. Host only.
func (q *Queue) CreateGoal(streamId, hostId, title string, targetAmount int) (types.Goal, error) {
	if err := q.authorizeHost(streamId, hostId); err != nil {
		return types.Goal{}, err
	}
	if targetAmount <= 0 {
		return types.Goal{}, ledger.ErrInvalidAmount
	}

	sq := q.stream(streamId)
	sq.mu.Lock()
	defer sq.mu.Unlock()

	goal := &types.Goal{
		Id:           uuid.NewString(),
		StreamId:     streamId,
		Title:        title,
		TargetAmount: targetAmount,
		Status:       types.GoalActive,
		CreatedAt:    time.Now().UTC(),
	}
	sq.goals[goal.Id] = goal

	q.mu.Lock()
	q.goalStream[goal.Id] = streamId
	q.mu.Unlock()

	return *goal, nil
}

// ContributeGoal debits the user and advances the goal. The status flips
// to Completed exactly once, when the current amount reaches the target.
func (q *Queue) ContributeGoal(ctx context.Context, goalId, userId string, amount int) (types.Goal, error) {
	sq, ok := q.streamForGoal(goalId)
	if !ok {
		return types.Goal{}, ErrGoalNotFound
	}

	sq.mu.Lock()
	defer sq.mu.Unlock()

	goal, ok := sq.goals[goalId]
	if !ok {
		return types.Goal{}, ErrGoalNotFound
	}

	if goal.Status == types.GoalCompleted {
		return types.Goal{}, ErrGoalCompleted
	}

	if _, err := q.ledger.Debit(ctx, userId, amount); err != nil {
		return types.Goal{}, err
	}

	goal.CurrentAmount += amount
	if goal.CurrentAmount >= goal.TargetAmount {
		goal.Status = types.GoalCompleted
		goal.CompletedAt = time.Now().UTC()
	}

	return *goal, nil
}

// ListGoals returns copies of all goals for a stream.
func (q *Queue) ListGoals(streamId string) []types.Goal {
	sq := q.stream(streamId)
	sq.mu.Lock()
	defer sq.mu.Unlock()

	var goals []types.Goal
	for _, goal := range sq.goals {
		goals = append(goals, *goal)
	}
	return goals
}
