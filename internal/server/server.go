// Package server is the fan-out layer: one goroutine per live stream's
// room serializes every event for that stream, stamps it with the next
// sequence id and pushes it to each connected client.
package server

import (
	"log"
	"sync"

	"github.com/darestream/darestream/internal/dares"
	"github.com/darestream/darestream/internal/ledger"
	"github.com/darestream/darestream/internal/stats"
	"github.com/darestream/darestream/internal/stream"
	"github.com/darestream/darestream/internal/types"
)

type unloadReq struct {
	streamId string
	// ended marks the unload as a stream end rather than an idle timeout,
	// so the dare queue is evicted too.
	ended bool
}

type StreamServer struct {
	log            *log.Logger
	registry       *stream.Registry
	dares          *dares.Queue
	ledger         *ledger.Ledger
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	joinChan       chan *ClientMessage
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	unloadChan     chan unloadReq
	forceEndChan   chan types.Session
	rooms          map[string]*Room
	stop           chan struct{}
	done           chan struct{}
}

func NewStreamServer(logger *log.Logger, registry *stream.Registry, queue *dares.Queue, l *ledger.Ledger, statsProvider stats.StatsProvider) (*StreamServer, error) {
	return &StreamServer{
		log:            logger,
		registry:       registry,
		dares:          queue,
		ledger:         l,
		stats:          statsProvider,
		clients:        make(map[*Client]struct{}),
		joinChan:       make(chan *ClientMessage),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		unloadChan:     make(chan unloadReq, 16),
		forceEndChan:   make(chan types.Session, 16),
		rooms:          make(map[string]*Room),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

func (ss *StreamServer) Run() {
	for {
		select {
		case joinMsg := <-ss.joinChan:
			ss.handleJoin(joinMsg)
		case client := <-ss.RegisterChan:
			ss.log.Printf("adding connection %q for user %q", client.connectionId, client.userId)
			ss.addClient(client)
			ss.stats.Incr(stats.ConnectedClients)
		case client := <-ss.deRegisterChan:
			ss.log.Printf("removing connection %q for user %q", client.connectionId, client.userId)
			ss.removeClient(client)
			ss.stats.Decr(stats.ConnectedClients)
		case req := <-ss.unloadChan:
			ss.unloadRoom(req)
		case session := <-ss.forceEndChan:
			ss.handleForceEnd(session)
		case <-ss.stop:
			ss.log.Println("shutting down rooms")
			for _, r := range ss.rooms {
				ss.log.Printf("shutting down room %q", r.streamId)
				r.exit <- exitReq{}
				<-r.done
			}

			close(ss.done)
			return
		}
	}
}

func (ss *StreamServer) handleJoin(joinMsg *ClientMessage) {
	streamId := joinMsg.Join.StreamId
	if room, ok := ss.rooms[streamId]; ok {
		select {
		case room.joinChan <- joinMsg:
		default:
			ss.log.Printf("join channel full on room %q", streamId)
			joinMsg.client.queueMessage(ErrServiceUnavailable(joinMsg.Id))
		}
		return
	}

	session, err := ss.registry.Get(streamId)
	if err != nil || session.Status == types.SessionEnded {
		joinMsg.client.queueMessage(ErrStreamNotFound(joinMsg.Id))
		return
	}

	room := newRoom(ss, session.Id, session.HostId)
	ss.rooms[streamId] = room

	// the room's first event marks the stream's birth in the sequence;
	// every seed handed out afterwards continues from it
	room.broadcastEvent(&Event{
		Type:    EventStreamStarted,
		Session: &session,
	}, nil)

	room.joinChan <- joinMsg

	go room.start()
}

// handleForceEnd reacts to the registry ending a session on its own after
// the host grace period expired.
func (ss *StreamServer) handleForceEnd(session types.Session) {
	room, ok := ss.rooms[session.Id]
	if ok {
		room.broadcastEvent(&Event{
			Type:     EventStreamEnded,
			StreamId: session.Id,
			Session:  &session,
		}, nil)
		delete(ss.rooms, session.Id)
		room.exit <- exitReq{}
		<-room.done
	}

	ss.dares.EvictStream(session.Id)
	ss.stats.Decr(stats.ActiveSessions)
}

func (ss *StreamServer) unloadRoom(req unloadReq) {
	room, ok := ss.rooms[req.streamId]
	if !ok {
		return
	}

	ss.log.Printf("unloading room %q", req.streamId)
	delete(ss.rooms, req.streamId)
	room.exit <- exitReq{}
	<-room.done

	if req.ended {
		ss.dares.EvictStream(req.streamId)
		ss.stats.Decr(stats.ActiveSessions)
	}
}

// ForceEnd is the registry's grace-timer hook. Safe to call from any
// goroutine.
func (ss *StreamServer) ForceEnd(session types.Session) {
	select {
	case ss.forceEndChan <- session:
	case <-ss.stop:
	}
}

func (ss *StreamServer) addClient(c *Client) {
	ss.clientsLock.Lock()
	defer ss.clientsLock.Unlock()
	ss.clients[c] = struct{}{}
}

func (ss *StreamServer) removeClient(c *Client) {
	ss.clientsLock.Lock()
	defer ss.clientsLock.Unlock()
	delete(ss.clients, c)
}

func (ss *StreamServer) Shutdown() {
	ss.log.Println("received shutdown signal")
	ss.clientsLock.Lock()
	for c := range ss.clients {
		c.stopClient()
	}
	ss.clientsLock.Unlock()

	close(ss.stop)

	<-ss.done
}
