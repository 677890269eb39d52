package types

import (
	"time"
)

type SessionStatus string

const (
	SessionPreparing SessionStatus = "preparing"
	SessionLive      SessionStatus = "live"
	SessionEnded     SessionStatus = "ended"
)

// Session is one host's live broadcast instance. ViewerCount is derived
// from presence and never stored independently.
type Session struct {
	Id          string        `json:"id"`
	HostId      string        `json:"host_id"`
	Title       string        `json:"title"`
	Challenge   string        `json:"challenge,omitempty"`
	Status      SessionStatus `json:"status"`
	ViewerCount int           `json:"viewer_count"`
	TotalTips   int           `json:"total_tips"`
	TotalVotes  int           `json:"total_votes"`
	CurrentDare string        `json:"current_dare_id,omitempty"`
	StartedAt   time.Time     `json:"started_at,omitempty"`
	EndedAt     time.Time     `json:"ended_at,omitempty"`
}

type Viewer struct {
	ConnectionId string    `json:"connection_id"`
	UserId       string    `json:"user_id"`
	JoinedAt     time.Time `json:"joined_at"`
}

// TipEvent and VoteEvent are immutable facts, never mutated after creation.
type TipEvent struct {
	Id         string    `json:"id"`
	SessionId  string    `json:"session_id"`
	FromUserId string    `json:"from_user_id"`
	Amount     int       `json:"amount"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type VoteEvent struct {
	Id        string    `json:"id"`
	SessionId string    `json:"session_id"`
	UserId    string    `json:"user_id"`
	VoteType  string    `json:"vote_type"`
	Timestamp time.Time `json:"timestamp"`
}

type DareStatus string

const (
	DarePending   DareStatus = "pending"
	DareApproved  DareStatus = "approved"
	DareActive    DareStatus = "active"
	DareCompleted DareStatus = "completed"
	DareRejected  DareStatus = "rejected"
)

type DareTier string

const (
	TierMild    DareTier = "mild"
	TierWild    DareTier = "wild"
	TierExtreme DareTier = "extreme"
)

type Contribution struct {
	UserId    string    `json:"user_id"`
	Amount    int       `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type Dare struct {
	Id                 string         `json:"id"`
	StreamId           string         `json:"stream_id"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	Category           string         `json:"category"`
	Tier               DareTier       `json:"difficulty"`
	Cost               int            `json:"cost"`
	Status             DareStatus     `json:"status"`
	Votes              int            `json:"votes"`
	TotalContributions int            `json:"total_contributions"`
	Contributors       []Contribution `json:"contributors,omitempty"`
	PriorityScore      int            `json:"priority_score"`
	CreatedBy          string         `json:"created_by"`
	CreatedAt          time.Time      `json:"created_at"`
	ModerationNotes    string         `json:"moderation_notes,omitempty"`
}

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
)

type Goal struct {
	Id            string     `json:"id"`
	StreamId      string     `json:"stream_id"`
	Title         string     `json:"title"`
	TargetAmount  int        `json:"target_amount"`
	CurrentAmount int        `json:"current_amount"`
	Status        GoalStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   time.Time  `json:"completed_at,omitempty"`
}
