package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darestream/darestream/internal/stats"
	"github.com/darestream/darestream/internal/types"
)

func Test_serverHandleJoin(t *testing.T) {
	t.Run("unknown stream", func(t *testing.T) {
		ss := newTestStreamServer(t)

		c := newTestClient(t, "viewer-1")
		c.streamServer = ss
		ss.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			Join:        &Join{StreamId: "no-such-stream"},
			UserId:      "viewer-1",
			client:      c,
		})

		reply := nextMessage(t, c)
		require.NotNil(t, reply.Response)
		assert.Equal(t, http.StatusNotFound, reply.Response.ResponseCode)
		assert.Empty(t, ss.rooms)
	})

	t.Run("ended stream", func(t *testing.T) {
		ss := newTestStreamServer(t)
		session, _, err := ss.registry.Start(context.Background(), "host-1", "show", "")
		require.NoError(t, err)
		_, err = ss.registry.End(context.Background(), session.Id, "host-1")
		require.NoError(t, err)

		c := newTestClient(t, "viewer-1")
		c.streamServer = ss
		ss.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			Join:        &Join{StreamId: session.Id},
			UserId:      "viewer-1",
			client:      c,
		})

		reply := nextMessage(t, c)
		require.NotNil(t, reply.Response)
		assert.Equal(t, http.StatusNotFound, reply.Response.ResponseCode)
		assert.Empty(t, ss.rooms)
	})

	t.Run("live stream loads a room and seeds the client", func(t *testing.T) {
		ss := newTestStreamServer(t)
		session, _, err := ss.registry.Start(context.Background(), "host-1", "show", "")
		require.NoError(t, err)

		c := newTestClient(t, "viewer-1")
		c.streamServer = ss
		ss.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			Join:        &Join{StreamId: session.Id},
			UserId:      "viewer-1",
			client:      c,
		})

		require.Contains(t, ss.rooms, session.Id)

		reply := nextMessage(t, c)
		require.NotNil(t, reply.Response)
		assert.Equal(t, http.StatusOK, reply.Response.ResponseCode)

		// the stream-started broadcast took seq 1, so the seed continues
		// from there
		assert.Equal(t, 1, reply.Response.Data["seq_id"])
	})
}

func Test_registerDeregister(t *testing.T) {
	ss := newTestStreamServer(t)
	go ss.Run()
	defer ss.Shutdown()

	mockStats := ss.stats.(*stats.MockStatsUpdater)

	c := newTestClient(t, "viewer-1")
	c.streamServer = ss
	ss.RegisterChan <- c
	assert.Eventually(t, func() bool {
		return mockStats.Count(stats.ConnectedClients) == 1
	}, time.Second, 10*time.Millisecond)

	ss.deRegisterChan <- c
	assert.Eventually(t, func() bool {
		return mockStats.Count(stats.ConnectedClients) == 0
	}, time.Second, 10*time.Millisecond)
}

func Test_handleForceEnd(t *testing.T) {
	ss := newTestStreamServer(t)
	session, _, err := ss.registry.Start(context.Background(), "host-1", "show", "")
	require.NoError(t, err)

	room := newRoom(ss, session.Id, "host-1")
	ss.rooms[session.Id] = room
	go room.start()

	c := newTestClient(t, "viewer-1")
	room.addClient(c)

	ended := session
	ended.Status = types.SessionEnded
	ss.handleForceEnd(ended)

	msg := nextMessage(t, c)
	require.NotNil(t, msg.Event)
	assert.Equal(t, EventStreamEnded, msg.Event.Type)
	assert.NotContains(t, ss.rooms, session.Id)

	mockStats := ss.stats.(*stats.MockStatsUpdater)
	assert.Equal(t, -1, mockStats.Count(stats.ActiveSessions))
}
