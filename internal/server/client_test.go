package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darestream/darestream/internal/testutil"
)

func Test_queueMessage(t *testing.T) {
	c := &Client{
		log:  testutil.TestLogger(t),
		send: make(chan *ServerMessage, 1),
	}

	assert.True(t, c.queueMessage(NoErrOK(1, nil)))
	// channel is full, message is dropped instead of blocking the room
	assert.False(t, c.queueMessage(NoErrOK(2, nil)))
}

func Test_addRoom_getRoom_delRoom(t *testing.T) {
	c := &Client{
		log:   testutil.TestLogger(t),
		rooms: make(map[string]*Room),
	}
	r := &Room{streamId: "stream-1"}

	c.addRoom(r)
	assert.Equal(t, r, c.getRoom("stream-1"))
	assert.Nil(t, c.getRoom("stream-2"))

	c.delRoom("stream-1")
	assert.Nil(t, c.getRoom("stream-1"))
}

func Test_streamId(t *testing.T) {
	tt := []struct {
		name string
		msg  ClientMessage
		want string
	}{
		{"tip", ClientMessage{Tip: &Tip{StreamId: "s1"}}, "s1"},
		{"vote", ClientMessage{Vote: &Vote{StreamId: "s2"}}, "s2"},
		{"submit dare", ClientMessage{SubmitDare: &SubmitDare{StreamId: "s3"}}, "s3"},
		{"contribute dare", ClientMessage{ContributeDare: &ContributeDare{StreamId: "s4"}}, "s4"},
		{"moderate dare", ClientMessage{ModerateDare: &ModerateDare{StreamId: "s5"}}, "s5"},
		{"create goal", ClientMessage{CreateGoal: &CreateGoal{StreamId: "s6"}}, "s6"},
		{"end stream", ClientMessage{EndStream: &EndStream{StreamId: "s7"}}, "s7"},
		{"empty", ClientMessage{}, ""},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.msg.streamId())
		})
	}
}

func Test_dispatchUnroutable(t *testing.T) {
	ss := newTestStreamServer(t)

	c := newTestClient(t, "viewer-1")
	c.streamServer = ss

	// command for a stream the client never joined
	c.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		Tip:         &Tip{StreamId: "stream-1", Amount: 10},
		UserId:      "viewer-1",
		client:      c,
	})
	reply := nextMessage(t, c)
	assert.Equal(t, 404, reply.Response.ResponseCode)

	// command with no stream id at all
	c.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 2},
		UserId:      "viewer-1",
		client:      c,
	})
	reply = nextMessage(t, c)
	assert.Equal(t, 400, reply.Response.ResponseCode)
}

func Test_dispatchAfterStreamEnded(t *testing.T) {
	ss := newTestStreamServer(t)

	session, _, err := ss.registry.Start(context.Background(), "host-1", "show", "")
	require.NoError(t, err)
	_, err = ss.registry.End(context.Background(), session.Id, "host-1")
	require.NoError(t, err)

	// the room is gone, but a tip racing the end must fail as ended
	c := newTestClient(t, "viewer-1")
	c.streamServer = ss
	c.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		Tip:         &Tip{StreamId: session.Id, Amount: 10},
		UserId:      "viewer-1",
		client:      c,
	})

	reply := nextMessage(t, c)
	require.NotNil(t, reply.Response)
	assert.Equal(t, 410, reply.Response.ResponseCode)
}
