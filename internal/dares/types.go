package dares

import (
	"github.com/darestream/darestream/internal/types"
)

// VoteCost is the fixed token price of a single dare vote.
const VoteCost = 10

// tierFloors is the canonical minimum submission cost per difficulty tier.
var tierFloors = map[types.DareTier]int{
	types.TierMild:    25,
	types.TierWild:    100,
	types.TierExtreme: 250,
}

// TierFloor returns the minimum cost for a tier.
func TierFloor(tier types.DareTier) (int, bool) {
	floor, ok := tierFloors[tier]
	return floor, ok
}

// DareSpec is a submission request for a new dare.
type DareSpec struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Tier        types.DareTier `json:"difficulty"`
	Cost        int            `json:"cost"`
}

// ModerationDecision is the host's verdict on a pending dare.
type ModerationDecision string

const (
	DecisionApprove ModerationDecision = "approve"
	DecisionReject  ModerationDecision = "reject"
)

// HostResolver reports the host of a live stream so moderation calls can
// be authorized. Implemented by the session registry.
type HostResolver interface {
	HostId(streamId string) (string, bool)
}
