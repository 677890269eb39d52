package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/darestream/darestream/internal/stream"
	"github.com/darestream/darestream/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one websocket connection for one user. A user may hold
// several clients at once; presence reconciles them by connection id.
type Client struct {
	conn         *websocket.Conn
	streamServer *StreamServer
	log          *log.Logger
	userId       string
	connectionId string
	send         chan *ServerMessage
	rooms        map[string]*Room
	roomsLock    sync.RWMutex
	stop         chan struct{}
	stopOnce     sync.Once
}

func NewClient(userId string, conn *websocket.Conn, ss *StreamServer, l *log.Logger) *Client {
	return &Client{
		conn:         conn,
		streamServer: ss,
		log:          l,
		userId:       userId,
		connectionId: uuid.NewString(),
		send:         make(chan *ServerMessage, 256),
		rooms:        make(map[string]*Room),
		stop:         make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(time.Duration(pingInterval))
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.UserId = c.userId
		msg.Timestamp = Now()

		c.dispatch(&msg)
	}
}

func (c *Client) dispatch(msg *ClientMessage) {
	switch {
	case msg.Join != nil:
		c.joinStream(msg)
	case msg.Leave != nil:
		c.leaveStream(msg)
	default:
		streamId := msg.streamId()
		if streamId == "" {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			return
		}

		r := c.getRoom(streamId)
		if r == nil {
			// the room may already be unloaded after the stream ended;
			// commands racing the end must fail as ended, not unknown
			if session, err := c.streamServer.registry.Get(streamId); err == nil && session.Status == types.SessionEnded {
				c.queueMessage(ErrDomain(msg.Id, stream.ErrSessionEnded))
				return
			}
			c.queueMessage(ErrStreamNotFound(msg.Id))
			return
		}

		select {
		case r.clientMsgChan <- msg:
		default:
			c.queueMessage(ErrServiceUnavailable(msg.Id))
			c.log.Printf("clientMsgChan full for room %q", r.streamId)
		}
	}
}

// streamId returns the stream the set command targets.
func (m *ClientMessage) streamId() string {
	switch {
	case m.Tip != nil:
		return m.Tip.StreamId
	case m.Vote != nil:
		return m.Vote.StreamId
	case m.SubmitDare != nil:
		return m.SubmitDare.StreamId
	case m.ContributeDare != nil:
		return m.ContributeDare.StreamId
	case m.VoteDare != nil:
		return m.VoteDare.StreamId
	case m.ModerateDare != nil:
		return m.ModerateDare.StreamId
	case m.ActivateDare != nil:
		return m.ActivateDare.StreamId
	case m.CompleteDare != nil:
		return m.CompleteDare.StreamId
	case m.CreateGoal != nil:
		return m.CreateGoal.StreamId
	case m.ContributeGoal != nil:
		return m.ContributeGoal.StreamId
	case m.EndStream != nil:
		return m.EndStream.StreamId
	default:
		return ""
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.streamServer.deRegisterChan <- c
	c.leaveAllRooms()
	c.stopClient()
}

func (c *Client) leaveAllRooms() {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	for _, room := range c.rooms {
		room.leaveChan <- &ClientMessage{
			Leave:  &Leave{StreamId: room.streamId},
			UserId: c.userId,
			client: c,
		}
	}
}

func (c *Client) joinStream(msg *ClientMessage) {
	select {
	case c.streamServer.joinChan <- msg:
	default:
		c.log.Printf("joinChan full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) leaveStream(msg *ClientMessage) {
	r := c.getRoom(msg.Leave.StreamId)
	if r == nil {
		c.queueMessage(ErrStreamNotFound(msg.Id))
		return
	}

	select {
	case r.leaveChan <- msg:
	default:
		c.log.Printf("leaveChan full for room %q", r.streamId)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) delRoom(id string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	delete(c.rooms, id)
}

func (c *Client) addRoom(r *Room) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	c.rooms[r.streamId] = r
}

func (c *Client) getRoom(id string) *Room {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	if room, ok := c.rooms[id]; ok {
		return room
	}

	return nil
}
