package dares

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darestream/darestream/internal/ledger"
	"github.com/darestream/darestream/internal/types"
)

func TestCreateGoal(t *testing.T) {
	hosts := staticHosts{"stream-1": "host-1"}

	t.Run("host creates an active goal", func(t *testing.T) {
		q, _ := newTestQueue(t, hosts)

		goal, err := q.CreateGoal("stream-1", "host-1", "new camera", 500)
		require.NoError(t, err)
		assert.NotEmpty(t, goal.Id)
		assert.Equal(t, types.GoalActive, goal.Status)
		assert.Equal(t, 500, goal.TargetAmount)
		assert.Zero(t, goal.CurrentAmount)
	})

	t.Run("non-host is refused", func(t *testing.T) {
		q, _ := newTestQueue(t, hosts)

		_, err := q.CreateGoal("stream-1", "user-a", "new camera", 500)
		assert.ErrorIs(t, err, ErrNotHost)
	})

	t.Run("target must be positive", func(t *testing.T) {
		q, _ := newTestQueue(t, hosts)

		_, err := q.CreateGoal("stream-1", "host-1", "new camera", 0)
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	})
}

func TestContributeGoal(t *testing.T) {
	ctx := context.Background()
	hosts := staticHosts{"stream-1": "host-1"}

	t.Run("debits the contributor", func(t *testing.T) {
		q, l := newTestQueue(t, hosts)
		fund(t, l, "user-a", 200)

		goal, err := q.CreateGoal("stream-1", "host-1", "new camera", 500)
		require.NoError(t, err)

		got, err := q.ContributeGoal(ctx, goal.Id, "user-a", 150)
		require.NoError(t, err)
		assert.Equal(t, 150, got.CurrentAmount)
		assert.Equal(t, types.GoalActive, got.Status)

		balance, err := l.Balance(ctx, "user-a")
		require.NoError(t, err)
		assert.Equal(t, 50, balance)
	})

	t.Run("completes exactly once at the target", func(t *testing.T) {
		q, l := newTestQueue(t, hosts)
		fund(t, l, "user-a", 1000)

		goal, err := q.CreateGoal("stream-1", "host-1", "new camera", 100)
		require.NoError(t, err)

		got, err := q.ContributeGoal(ctx, goal.Id, "user-a", 120)
		require.NoError(t, err)
		assert.Equal(t, types.GoalCompleted, got.Status)
		assert.Equal(t, 120, got.CurrentAmount)
		assert.False(t, got.CompletedAt.IsZero())

		// a completed goal accepts no further contributions
		_, err = q.ContributeGoal(ctx, goal.Id, "user-a", 10)
		assert.ErrorIs(t, err, ErrGoalCompleted)

		balance, err := l.Balance(ctx, "user-a")
		require.NoError(t, err)
		assert.Equal(t, 880, balance)
	})

	t.Run("insufficient balance leaves the goal unchanged", func(t *testing.T) {
		q, l := newTestQueue(t, hosts)
		fund(t, l, "user-a", 10)

		goal, err := q.CreateGoal("stream-1", "host-1", "new camera", 500)
		require.NoError(t, err)

		_, err = q.ContributeGoal(ctx, goal.Id, "user-a", 100)
		assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

		goals := q.ListGoals("stream-1")
		require.Len(t, goals, 1)
		assert.Zero(t, goals[0].CurrentAmount)
	})

	t.Run("unknown goal", func(t *testing.T) {
		q, _ := newTestQueue(t, hosts)

		_, err := q.ContributeGoal(ctx, "no-such-goal", "user-a", 10)
		assert.ErrorIs(t, err, ErrGoalNotFound)
	})
}

func TestListGoals(t *testing.T) {
	hosts := staticHosts{"stream-1": "host-1"}
	q, _ := newTestQueue(t, hosts)

	_, err := q.CreateGoal("stream-1", "host-1", "new camera", 500)
	require.NoError(t, err)
	_, err = q.CreateGoal("stream-1", "host-1", "road trip", 2000)
	require.NoError(t, err)

	assert.Len(t, q.ListGoals("stream-1"), 2)
	assert.Empty(t, q.ListGoals("stream-2"))
}
