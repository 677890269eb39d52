package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/darestream/darestream/internal/dares"
	"github.com/darestream/darestream/internal/stats"
	"github.com/darestream/darestream/internal/types"
)

const idleRoomTimeout = time.Second * 30

// voteTypes are the session-level votes a viewer can cast.
var voteTypes = map[string]struct{}{
	"pressure":  {},
	"support":   {},
	"next-dare": {},
}

type exitReq struct{}

// Room serializes all events for one stream. Every command lands on the
// room goroutine, so events get a strictly increasing seq id and clients
// observe them in a single order.
type Room struct {
	streamId      string
	hostId        string
	srv           *StreamServer
	joinChan      chan *ClientMessage
	leaveChan     chan *ClientMessage
	clientMsgChan chan *ClientMessage
	seqId         int
	clients       map[*Client]struct{}
	userMap       map[string]map[*Client]struct{}
	clientLock    sync.RWMutex
	log           *log.Logger
	// killTimer unloads the room when no clients remain
	killTimer *time.Timer
	exit      chan exitReq
	done      chan struct{}
}

func newRoom(ss *StreamServer, streamId, hostId string) *Room {
	return &Room{
		streamId:      streamId,
		hostId:        hostId,
		srv:           ss,
		joinChan:      make(chan *ClientMessage, 256),
		leaveChan:     make(chan *ClientMessage, 256),
		clientMsgChan: make(chan *ClientMessage, 256),
		clients:       make(map[*Client]struct{}),
		userMap:       make(map[string]map[*Client]struct{}),
		log:           ss.log,
		exit:          make(chan exitReq),
		done:          make(chan struct{}),
	}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.streamId)
	r.killTimer = time.NewTimer(idleRoomTimeout)
	r.killTimer.Stop()

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leaveMsg := <-r.leaveChan:
			r.handleLeave(leaveMsg)
		case msg := <-r.clientMsgChan:
			r.handleCommand(msg)
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case <-r.exit:
			r.handleRoomExit()
			return
		}
	}
}

func (r *Room) handleJoin(join *ClientMessage) {
	r.killTimer.Stop()

	c := join.client
	session, token, first, err := r.srv.registry.Join(context.Background(), r.streamId, c.userId, c.connectionId)
	if err != nil {
		if len(r.clients) == 0 {
			r.killTimer.Reset(idleRoomTimeout)
		}
		c.queueMessage(ErrDomain(join.Id, err))
		return
	}

	r.addClient(c)

	if c.userId == r.hostId {
		r.srv.registry.HostReconnected(r.streamId)
	}

	// the reply carries the seed: current session, queue and goals, plus
	// the seq id the event stream continues from
	c.queueMessage(NoErrOK(join.Id, map[string]any{
		"session":     session,
		"media_token": token,
		"seq_id":      r.seqId,
		"dares":       r.dareBoard(),
		"goals":       r.srv.dares.ListGoals(r.streamId),
	}))

	if first {
		r.broadcastEvent(&Event{
			Type:        EventViewerJoined,
			UserId:      c.userId,
			ViewerCount: session.ViewerCount,
			Session:     &session,
		}, c)
	}
}

func (r *Room) handleLeave(leaveMsg *ClientMessage) {
	c := leaveMsg.client
	session, last, err := r.srv.registry.Leave(r.streamId, c.userId, c.connectionId)
	if err != nil && leaveMsg.Id > 0 {
		c.queueMessage(ErrDomain(leaveMsg.Id, err))
		return
	}

	r.removeClient(c)

	if leaveMsg.Id > 0 {
		c.queueMessage(NoErrOK(leaveMsg.Id, nil))
	}

	if last {
		r.broadcastEvent(&Event{
			Type:        EventViewerLeft,
			UserId:      c.userId,
			ViewerCount: session.ViewerCount,
		}, c)
	}

	if c.userId == r.hostId && r.userMap[r.hostId] == nil {
		r.srv.registry.HostDisconnected(r.streamId)
	}
}

func (r *Room) handleCommand(msg *ClientMessage) {
	switch {
	case msg.Tip != nil:
		r.handleTip(msg)
	case msg.Vote != nil:
		r.handleVote(msg)
	case msg.SubmitDare != nil:
		r.handleSubmitDare(msg)
	case msg.ContributeDare != nil:
		r.handleContributeDare(msg)
	case msg.VoteDare != nil:
		r.handleVoteDare(msg)
	case msg.ModerateDare != nil:
		r.handleModerateDare(msg)
	case msg.ActivateDare != nil:
		r.handleActivateDare(msg)
	case msg.CompleteDare != nil:
		r.handleCompleteDare(msg)
	case msg.CreateGoal != nil:
		r.handleCreateGoal(msg)
	case msg.ContributeGoal != nil:
		r.handleContributeGoal(msg)
	case msg.EndStream != nil:
		r.handleEndStream(msg)
	default:
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

// handleTip moves tokens first, then records the tip. If the session
// refuses the tip after the debit, the tokens go straight back.
func (r *Room) handleTip(msg *ClientMessage) {
	ctx := context.Background()

	balance, err := r.srv.ledger.Debit(ctx, msg.UserId, msg.Tip.Amount)
	if err != nil {
		msg.client.queueMessage(ErrDomain(msg.Id, err))
		return
	}

	tip, session, err := r.srv.registry.RecordTip(ctx, r.streamId, msg.UserId, msg.Tip.Amount, msg.Tip.Message)
	if err != nil {
		if _, refundErr := r.srv.ledger.Credit(ctx, msg.UserId, msg.Tip.Amount); refundErr != nil {
			r.log.Printf("refund tip for %q: %v", msg.UserId, refundErr)
		}
		msg.client.queueMessage(ErrDomain(msg.Id, err))
		return
	}

	r.srv.stats.Add(stats.TipsTotal, msg.Tip.Amount)
	msg.client.queueMessage(NoErrOK(msg.Id, map[string]any{
		"tip":     tip,
		"balance": balance,
	}))

	r.broadcastEvent(&Event{
		Type:    EventTipSent,
		Tip:     &tip,
		Session: &session,
	}, nil)
}

func (r *Room) handleVote(msg *ClientMessage) {
	if _, ok := voteTypes[msg.Vote.VoteType]; !ok {
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	vote, session, err := r.srv.registry.RecordVote(context.Background(), r.streamId, msg.UserId, msg.Vote.VoteType)
	if err != nil {
		msg.client.queueMessage(ErrDomain(msg.Id, err))
		return
	}

	msg.client.queueMessage(NoErrOK(msg.Id, map[string]any{"vote": vote}))

	r.broadcastEvent(&Event{
		Type:    EventVoteSubmitted,
		Vote:    &vote,
		Session: &session,
	}, nil)
}

func (r *Room) handleSubmitDare(msg *ClientMessage) {
	dare, err := r.srv.dares.Submit(context.Background(), r.streamId, dares.DareSpec{
		Title:       msg.SubmitDare.Title,
		Description: msg.SubmitDare.Description,
		Category:    msg.SubmitDare.Category,
		Tier:        types.DareTier(msg.SubmitDare.Difficulty),
		Cost:        msg.SubmitDare.Cost,
	}, msg.UserId)
	if err != nil {
		msg.client.queueMessage(ErrDomain(msg.Id, err))
		return
	}

	r.replyAndBroadcastDare(msg, dare)
}

func (r *Room) handleContributeDare(msg *ClientMessage) {
	dare, err := r.srv.dares.Contribute(context.Background(), msg.ContributeDare.DareId, msg.UserId, msg.ContributeDare.Amount)
	if err != nil {
		msg.client.queueMessage(ErrDomain(msg.Id, err))
		return
	}

	r.replyAndBroadcastDare(msg, dare)
}

func (r *Room) handleVoteDare(msg *ClientMessage) {
	dare, err := r.srv.dares.Vote(context.Background(), msg.VoteDare.DareId, msg.UserId)
	if err != nil {
		msg.client.queueMessage(ErrDomain(msg.Id, err))
		return
	}

	r.replyAndBroadcastDare(msg, dare)
}

func (r *Room) handleModerateDare(msg *ClientMessage) {
	dare, err := r.srv.dares.Moderate(context.Background(), msg.ModerateDare.DareId, msg.UserId,
		dares.ModerationDecision(msg.ModerateDare.Decision), msg.ModerateDare.Notes)
	if err != nil {
		msg.client.queueMessage(ErrDomain(msg.Id, err))
		return
	}

	r.replyAndBroadcastDare(msg, dare)
}

func (r *Room) handleActivateDare(msg *ClientMessage) {
	dare, err := r.srv.dares.Activate(context.Background(), msg.ActivateDare.DareId, msg.UserId)
	if err != nil {
		msg.client.queueMessage(ErrDomain(msg.Id, err))
		return
	}

	if _, err := r.srv.registry.SetCurrentDare(r.streamId, dare.Id); err != nil {
		r.log.Printf("set current dare on %q: %v", r.streamId, err)
	}

	r.replyAndBroadcastDare(msg, dare)
}

func (r *Room) handleCompleteDare(msg *ClientMessage) {
	dare, err := r.srv.dares.Complete(context.Background(), msg.CompleteDare.DareId, msg.UserId)
	if err != nil {
		msg.client.queueMessage(ErrDomain(msg.Id, err))
		return
	}

	if _, err := r.srv.registry.SetCurrentDare(r.streamId, ""); err != nil {
		r.log.Printf("clear current dare on %q: %v", r.streamId, err)
	}

	r.replyAndBroadcastDare(msg, dare)
}

func (r *Room) replyAndBroadcastDare(msg *ClientMessage, dare types.Dare) {
	msg.client.queueMessage(NoErrOK(msg.Id, map[string]any{"dare": dare}))

	r.broadcastEvent(&Event{
		Type: EventDareUpdated,
		Dare: &dare,
	}, nil)
}

func (r *Room) handleCreateGoal(msg *ClientMessage) {
	goal, err := r.srv.dares.CreateGoal(r.streamId, msg.UserId, msg.CreateGoal.Title, msg.CreateGoal.TargetAmount)
	if err != nil {
		msg.client.queueMessage(ErrDomain(msg.Id, err))
		return
	}

	r.replyAndBroadcastGoal(msg, goal)
}

func (r *Room) handleContributeGoal(msg *ClientMessage) {
	goal, err := r.srv.dares.ContributeGoal(context.Background(), msg.ContributeGoal.GoalId, msg.UserId, msg.ContributeGoal.Amount)
	if err != nil {
		msg.client.queueMessage(ErrDomain(msg.Id, err))
		return
	}

	r.replyAndBroadcastGoal(msg, goal)
}

func (r *Room) replyAndBroadcastGoal(msg *ClientMessage, goal types.Goal) {
	msg.client.queueMessage(NoErrOK(msg.Id, map[string]any{"goal": goal}))

	r.broadcastEvent(&Event{
		Type: EventGoalUpdated,
		Goal: &goal,
	}, nil)
}

// handleEndStream terminates the session, tells everyone, and asks the
// server to unload the room. Clients already in the room drain the final
// event before their connection drops.
func (r *Room) handleEndStream(msg *ClientMessage) {
	final, err := r.srv.registry.End(context.Background(), r.streamId, msg.UserId)
	if err != nil {
		msg.client.queueMessage(ErrDomain(msg.Id, err))
		return
	}

	msg.client.queueMessage(NoErrOK(msg.Id, map[string]any{"session": final}))

	r.broadcastEvent(&Event{
		Type:    EventStreamEnded,
		Session: &final,
	}, nil)

	r.srv.unloadChan <- unloadReq{streamId: r.streamId, ended: true}
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q idle, unloading", r.streamId)
	r.srv.unloadChan <- unloadReq{streamId: r.streamId}
}

func (r *Room) handleRoomExit() {
	r.log.Printf("room %q is exiting", r.streamId)

	r.clientLock.Lock()
	for c := range r.clients {
		c.delRoom(r.streamId)
	}
	r.clients = make(map[*Client]struct{})
	r.userMap = make(map[string]map[*Client]struct{})
	r.clientLock.Unlock()

	close(r.done)
}

// dareBoard is the seed snapshot of the visible queue: everything except
// rejected dares.
func (r *Room) dareBoard() []types.Dare {
	var board []types.Dare
	for _, status := range []types.DareStatus{types.DareActive, types.DareApproved, types.DarePending, types.DareCompleted} {
		board = append(board, r.srv.dares.List(r.streamId, status)...)
	}
	return board
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	if r.userMap[c.userId] == nil {
		r.userMap[c.userId] = make(map[*Client]struct{})
	}
	r.userMap[c.userId][c] = struct{}{}

	c.addRoom(r)
}

func (r *Room) removeClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		return
	}

	delete(r.clients, c)
	c.delRoom(r.streamId)

	if userClients, ok := r.userMap[c.userId]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(r.userMap, c.userId)
		}
	}

	if len(r.clients) == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.streamId)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

// broadcastEvent stamps the next seq id on the event and pushes it to
// every client in the room except skip.
func (r *Room) broadcastEvent(event *Event, skip *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.seqId++
	event.SeqId = r.seqId
	if event.StreamId == "" {
		event.StreamId = r.streamId
	}

	msg := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Event:       event,
	}

	for client := range r.clients {
		if client == skip {
			continue
		}
		client.queueMessage(msg)
	}

	r.srv.stats.Incr(stats.EventsBroadcast)
}
