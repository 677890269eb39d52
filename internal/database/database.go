// Package database archives durable facts (tips, votes, dares, ended
// sessions) behind a narrow repository interface. The archive is not the
// source of truth for live state; the in-memory registry and ledger are.
package database

import (
	"context"

	"github.com/darestream/darestream/internal/types"
)

type ArchiveRepository interface {
	Ping() error
	SaveTip(ctx context.Context, tip types.TipEvent) error
	SaveVote(ctx context.Context, vote types.VoteEvent) error
	SaveDare(ctx context.Context, dare types.Dare) error
	SaveSession(ctx context.Context, session types.Session) error
	GetDare(ctx context.Context, dareId string) (types.Dare, error)
	TopDares(ctx context.Context, limit int) ([]types.Dare, error)
	SessionHistory(ctx context.Context, hostId string, limit int) ([]types.Session, error)
}
