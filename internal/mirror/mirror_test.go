package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darestream/darestream/internal/server"
	"github.com/darestream/darestream/internal/types"
)

func seededMirror(t *testing.T) *Mirror {
	t.Helper()

	m := New()
	m.Seed(types.Session{
		Id:          "stream-1",
		HostId:      "host-1",
		Status:      types.SessionLive,
		ViewerCount: 3,
	}, 10, []types.Dare{
		{Id: "dare-1", StreamId: "stream-1", Votes: 2, PriorityScore: 70},
	}, []types.Goal{
		{Id: "goal-1", StreamId: "stream-1", TargetAmount: 500, Status: types.GoalActive},
	}, 250)
	return m
}

func TestApply(t *testing.T) {
	t.Run("rejects events before a seed", func(t *testing.T) {
		m := New()
		_, err := m.Apply(&server.Event{SeqId: 1, Type: server.EventTipSent})
		assert.ErrorIs(t, err, ErrNotSeeded)
	})

	t.Run("drops stale events silently", func(t *testing.T) {
		m := seededMirror(t)

		applied, err := m.Apply(&server.Event{SeqId: 10, Type: server.EventViewerJoined, ViewerCount: 99})
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, 3, m.Session().ViewerCount)
	})

	t.Run("detects gaps", func(t *testing.T) {
		m := seededMirror(t)

		_, err := m.Apply(&server.Event{SeqId: 12, Type: server.EventViewerJoined})
		assert.ErrorIs(t, err, ErrEventGap)
		assert.Equal(t, 10, m.SeqId())
	})

	t.Run("applies consecutive events", func(t *testing.T) {
		m := seededMirror(t)

		applied, err := m.Apply(&server.Event{
			SeqId: 11,
			Type:  server.EventViewerJoined,
			Session: &types.Session{
				Id: "stream-1", Status: types.SessionLive, ViewerCount: 4,
			},
		})
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, 4, m.Session().ViewerCount)

		applied, err = m.Apply(&server.Event{
			SeqId: 12,
			Type:  server.EventTipSent,
			Tip:   &types.TipEvent{Id: "tip-1", Amount: 50},
			Session: &types.Session{
				Id: "stream-1", Status: types.SessionLive, ViewerCount: 4, TotalTips: 50,
			},
		})
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, 50, m.Session().TotalTips)
		require.Len(t, m.Tips(), 1)
		assert.Equal(t, "tip-1", m.Tips()[0].Id)
	})

	t.Run("dare and goal updates replace by id", func(t *testing.T) {
		m := seededMirror(t)

		_, err := m.Apply(&server.Event{
			SeqId: 11,
			Type:  server.EventDareUpdated,
			Dare:  &types.Dare{Id: "dare-1", Votes: 3, PriorityScore: 80},
		})
		require.NoError(t, err)
		require.Len(t, m.Dares(), 1)
		assert.Equal(t, 3, m.Dares()[0].Votes)

		_, err = m.Apply(&server.Event{
			SeqId: 12,
			Type:  server.EventGoalUpdated,
			Goal:  &types.Goal{Id: "goal-1", TargetAmount: 500, CurrentAmount: 100, Status: types.GoalActive},
		})
		require.NoError(t, err)
		require.Len(t, m.Goals(), 1)
		assert.Equal(t, 100, m.Goals()[0].CurrentAmount)
	})

	t.Run("stream-ended flips the session", func(t *testing.T) {
		m := seededMirror(t)

		_, err := m.Apply(&server.Event{SeqId: 11, Type: server.EventStreamEnded})
		require.NoError(t, err)
		assert.Equal(t, types.SessionEnded, m.Session().Status)
	})
}

func TestDareOrdering(t *testing.T) {
	m := New()
	m.Seed(types.Session{Id: "stream-1"}, 0, []types.Dare{
		{Id: "low", PriorityScore: 50},
		{Id: "high", PriorityScore: 650},
		{Id: "mid", PriorityScore: 200},
	}, nil, 0)

	dareList := m.Dares()
	require.Len(t, dareList, 3)
	assert.Equal(t, "high", dareList[0].Id)
	assert.Equal(t, "mid", dareList[1].Id)
	assert.Equal(t, "low", dareList[2].Id)
}

func TestStageTip(t *testing.T) {
	t.Run("confirm adopts the server balance", func(t *testing.T) {
		m := seededMirror(t)

		stageId, err := m.StageTip(50)
		require.NoError(t, err)
		assert.Equal(t, 200, m.Balance())

		require.NoError(t, m.ConfirmTip(stageId, 200))
		assert.Equal(t, 200, m.Balance())

		assert.ErrorIs(t, m.ConfirmTip(stageId, 200), ErrUnknownStage)
	})

	t.Run("rollback restores the deduction", func(t *testing.T) {
		m := seededMirror(t)

		stageId, err := m.StageTip(50)
		require.NoError(t, err)
		assert.Equal(t, 200, m.Balance())

		require.NoError(t, m.RollbackTip(stageId))
		assert.Equal(t, 250, m.Balance())
	})

	t.Run("requires a seed", func(t *testing.T) {
		m := New()
		_, err := m.StageTip(50)
		assert.ErrorIs(t, err, ErrNotSeeded)
	})
}

func TestStageVote(t *testing.T) {
	t.Run("optimistic bump then rollback", func(t *testing.T) {
		m := seededMirror(t)

		stageId, err := m.StageVote("dare-1")
		require.NoError(t, err)
		assert.Equal(t, 3, m.Dares()[0].Votes)

		require.NoError(t, m.RollbackVote(stageId))
		assert.Equal(t, 2, m.Dares()[0].Votes)
	})

	t.Run("confirm clears the stage", func(t *testing.T) {
		m := seededMirror(t)

		stageId, err := m.StageVote("dare-1")
		require.NoError(t, err)
		require.NoError(t, m.ConfirmVote(stageId))
		assert.ErrorIs(t, m.RollbackVote(stageId), ErrUnknownStage)
	})

	t.Run("unknown dare", func(t *testing.T) {
		m := seededMirror(t)
		_, err := m.StageVote("no-such-dare")
		assert.ErrorIs(t, err, ErrUnknownStage)
	})
}

func TestReset(t *testing.T) {
	m := seededMirror(t)

	m.Reset()
	assert.Equal(t, 0, m.SeqId())
	assert.Empty(t, m.Dares())
	assert.Empty(t, m.Goals())

	_, err := m.Apply(&server.Event{SeqId: 1, Type: server.EventTipSent})
	assert.ErrorIs(t, err, ErrNotSeeded)

	// reseeding after a reconnect works
	m.Seed(types.Session{Id: "stream-1"}, 5, nil, nil, 100)
	applied, err := m.Apply(&server.Event{SeqId: 6, Type: server.EventViewerJoined, ViewerCount: 1})
	require.NoError(t, err)
	assert.True(t, applied)
}
