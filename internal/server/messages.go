package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/darestream/darestream/internal/dares"
	"github.com/darestream/darestream/internal/ledger"
	"github.com/darestream/darestream/internal/media"
	"github.com/darestream/darestream/internal/stream"
	"github.com/darestream/darestream/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the envelope for every command a client sends over the
// socket. Exactly one command field is set.
type ClientMessage struct {
	BaseMessage
	Join           *Join           `json:"join,omitempty"`
	Leave          *Leave          `json:"leave,omitempty"`
	Tip            *Tip            `json:"tip,omitempty"`
	Vote           *Vote           `json:"vote,omitempty"`
	SubmitDare     *SubmitDare     `json:"submit_dare,omitempty"`
	ContributeDare *ContributeDare `json:"contribute_dare,omitempty"`
	VoteDare       *VoteDare       `json:"vote_dare,omitempty"`
	ModerateDare   *ModerateDare   `json:"moderate_dare,omitempty"`
	ActivateDare   *ActivateDare   `json:"activate_dare,omitempty"`
	CompleteDare   *CompleteDare   `json:"complete_dare,omitempty"`
	CreateGoal     *CreateGoal     `json:"create_goal,omitempty"`
	ContributeGoal *ContributeGoal `json:"contribute_goal,omitempty"`
	EndStream      *EndStream      `json:"end_stream,omitempty"`
	UserId         string          `json:"-"`
	client         *Client         `json:"-"`
}

type Join struct {
	StreamId string `json:"stream_id"`
}

type Leave struct {
	StreamId string `json:"stream_id"`
}

type Tip struct {
	StreamId string `json:"stream_id"`
	Amount   int    `json:"amount"`
	Message  string `json:"message,omitempty"`
}

type Vote struct {
	StreamId string `json:"stream_id"`
	VoteType string `json:"vote_type"`
}

type SubmitDare struct {
	StreamId    string `json:"stream_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Difficulty  string `json:"difficulty"`
	Cost        int    `json:"cost"`
}

type ContributeDare struct {
	StreamId string `json:"stream_id"`
	DareId   string `json:"dare_id"`
	Amount   int    `json:"amount"`
}

type VoteDare struct {
	StreamId string `json:"stream_id"`
	DareId   string `json:"dare_id"`
}

type ModerateDare struct {
	StreamId string `json:"stream_id"`
	DareId   string `json:"dare_id"`
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
}

type ActivateDare struct {
	StreamId string `json:"stream_id"`
	DareId   string `json:"dare_id"`
}

type CompleteDare struct {
	StreamId string `json:"stream_id"`
	DareId   string `json:"dare_id"`
}

type CreateGoal struct {
	StreamId     string `json:"stream_id"`
	Title        string `json:"title"`
	TargetAmount int    `json:"target_amount"`
}

type ContributeGoal struct {
	StreamId string `json:"stream_id"`
	GoalId   string `json:"goal_id"`
	Amount   int    `json:"amount"`
}

type EndStream struct {
	StreamId string `json:"stream_id"`
}

// ServerMessage is everything the server pushes: direct replies carry a
// Response correlated by Id, fan-out carries an Event.
type ServerMessage struct {
	BaseMessage
	Response *Response `json:"response,omitempty"`
	Event    *Event    `json:"event,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// Canonical event types fanned out to a stream's room.
const (
	EventStreamStarted = "stream-started"
	EventViewerJoined  = "viewer-joined"
	EventViewerLeft    = "viewer-left"
	EventTipSent       = "tip-sent"
	EventVoteSubmitted = "vote-submitted"
	EventDareUpdated   = "dare-updated"
	EventGoalUpdated   = "goal-updated"
	EventStreamEnded   = "stream-ended"
)

// Event is one fact about a stream. SeqId increases by exactly one per
// event within a stream, so mirrors can detect staleness and gaps.
type Event struct {
	SeqId       int              `json:"seq_id"`
	Type        string           `json:"type"`
	StreamId    string           `json:"stream_id"`
	UserId      string           `json:"user_id,omitempty"`
	ViewerCount int              `json:"viewer_count,omitempty"`
	Session     *types.Session   `json:"session,omitempty"`
	Tip         *types.TipEvent  `json:"tip,omitempty"`
	Vote        *types.VoteEvent `json:"vote,omitempty"`
	Dare        *types.Dare      `json:"dare,omitempty"`
	Goal        *types.Goal      `json:"goal,omitempty"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func errResponse(id, code int, errMsg string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        errMsg,
		},
	}
}

func ErrStreamNotFound(id int) *ServerMessage {
	return errResponse(id, http.StatusNotFound, "stream not found")
}

func ErrInternalError(id int) *ServerMessage {
	return errResponse(id, http.StatusInternalServerError, "internal server error")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errResponse(id, http.StatusServiceUnavailable, "service unavailable")
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := errResponse(0, http.StatusBadRequest, "invalid message format")
	if id > 0 {
		msg.Id = id
	}
	return msg
}

// ErrDomain maps a domain error to the socket response for it. Unknown
// errors collapse to an internal error so internals never leak.
func ErrDomain(id int, err error) *ServerMessage {
	switch {
	case errors.Is(err, stream.ErrNotFound), errors.Is(err, dares.ErrNotFound),
		errors.Is(err, dares.ErrGoalNotFound):
		return errResponse(id, http.StatusNotFound, err.Error())
	case errors.Is(err, stream.ErrSessionEnded):
		return errResponse(id, http.StatusGone, err.Error())
	case errors.Is(err, stream.ErrNotHost), errors.Is(err, dares.ErrNotHost):
		return errResponse(id, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return errResponse(id, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, dares.ErrAlreadyVoted), errors.Is(err, dares.ErrNotPending),
		errors.Is(err, dares.ErrNotApproved), errors.Is(err, dares.ErrNotActive),
		errors.Is(err, dares.ErrGoalCompleted), errors.Is(err, stream.ErrAlreadyLive):
		return errResponse(id, http.StatusConflict, err.Error())
	case errors.Is(err, dares.ErrBelowTierFloor), errors.Is(err, dares.ErrUnknownTier),
		errors.Is(err, dares.ErrInvalidDecision), errors.Is(err, ledger.ErrInvalidAmount):
		return errResponse(id, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, media.ErrUnavailable):
		return errResponse(id, http.StatusBadGateway, err.Error())
	case errors.Is(err, ledger.ErrStoreUnavailable):
		return errResponse(id, http.StatusServiceUnavailable, err.Error())
	default:
		return ErrInternalError(id)
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
