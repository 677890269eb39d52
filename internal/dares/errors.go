package dares

import "errors"

var (
	ErrNotFound        = errors.New("dare not found")
	ErrGoalNotFound    = errors.New("goal not found")
	ErrBelowTierFloor  = errors.New("cost below tier floor")
	ErrUnknownTier     = errors.New("unknown difficulty tier")
	ErrAlreadyVoted    = errors.New("user already voted on this dare")
	ErrNotHost         = errors.New("only the stream host may do this")
	ErrNotPending      = errors.New("dare is not pending")
	ErrNotApproved     = errors.New("dare is not approved")
	ErrNotActive       = errors.New("dare is not active")
	ErrGoalCompleted   = errors.New("goal already completed")
	ErrInvalidDecision = errors.New("invalid moderation decision")
)
