package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/darestream/darestream/internal/types"
)

type PgArchive struct {
	conn *sql.DB
}

func NewPgArchive(dsn string) (*PgArchive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgArchive{conn: db}, nil
}

func (db *PgArchive) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *PgArchive) Ping() error {
	return db.conn.Ping()
}

// EnsureSchema creates the archive tables if they do not exist. Schema
// changes beyond this are applied out of band.
func (db *PgArchive) EnsureSchema(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS tips (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	from_user_id TEXT NOT NULL,
	amount INTEGER NOT NULL,
	message TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS votes (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	vote_type TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS dares (
	id TEXT PRIMARY KEY,
	stream_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	category TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	cost INTEGER NOT NULL,
	status TEXT NOT NULL,
	votes INTEGER NOT NULL,
	total_contributions INTEGER NOT NULL,
	contributors JSONB NOT NULL DEFAULT '[]',
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	moderation_notes TEXT
);
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	host_id TEXT NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	total_tips INTEGER NOT NULL,
	total_votes INTEGER NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ
);`

func (db *PgArchive) SaveTip(ctx context.Context, tip types.TipEvent) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO tips (id, session_id, from_user_id, amount, message, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING",
		tip.Id,
		tip.SessionId,
		tip.FromUserId,
		tip.Amount,
		tip.Message,
		tip.Timestamp,
	)
	return err
}

func (db *PgArchive) SaveVote(ctx context.Context, vote types.VoteEvent) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO votes (id, session_id, user_id, vote_type, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING",
		vote.Id,
		vote.SessionId,
		vote.UserId,
		vote.VoteType,
		vote.Timestamp,
	)
	return err
}

func (db *PgArchive) SaveDare(ctx context.Context, dare types.Dare) error {
	contributors, err := json.Marshal(dare.Contributors)
	if err != nil {
		return fmt.Errorf("marshal contributors: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		"INSERT INTO dares (id, stream_id, title, description, category, difficulty, cost, status, "+
			"votes, total_contributions, contributors, created_by, created_at, moderation_notes) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) "+
			"ON CONFLICT (id) DO UPDATE SET status = $8, votes = $9, total_contributions = $10, "+
			"contributors = $11, moderation_notes = $14",
		dare.Id,
		dare.StreamId,
		dare.Title,
		dare.Description,
		dare.Category,
		string(dare.Tier),
		dare.Cost,
		string(dare.Status),
		dare.Votes,
		dare.TotalContributions,
		contributors,
		dare.CreatedBy,
		dare.CreatedAt,
		dare.ModerationNotes,
	)
	return err
}

func (db *PgArchive) SaveSession(ctx context.Context, session types.Session) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO sessions (id, host_id, title, status, total_tips, total_votes, started_at, ended_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8) "+
			"ON CONFLICT (id) DO UPDATE SET status = $4, total_tips = $5, total_votes = $6, ended_at = $8",
		session.Id,
		session.HostId,
		session.Title,
		string(session.Status),
		session.TotalTips,
		session.TotalVotes,
		session.StartedAt,
		session.EndedAt,
	)
	return err
}

func (db *PgArchive) GetDare(ctx context.Context, dareId string) (types.Dare, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, stream_id, title, description, category, difficulty, cost, status, "+
			"votes, total_contributions, contributors, created_by, created_at, moderation_notes "+
			"FROM dares WHERE id = $1 LIMIT 1",
		dareId,
	)
	return scanDare(row)
}

func (db *PgArchive) TopDares(ctx context.Context, limit int) ([]types.Dare, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, stream_id, title, description, category, difficulty, cost, status, "+
			"votes, total_contributions, contributors, created_by, created_at, moderation_notes "+
			"FROM dares ORDER BY votes * 10 + total_contributions * 2 DESC, created_at ASC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dares []types.Dare
	for rows.Next() {
		dare, err := scanDare(rows)
		if err != nil {
			return nil, err
		}
		dares = append(dares, dare)
	}

	return dares, rows.Err()
}

func (db *PgArchive) SessionHistory(ctx context.Context, hostId string, limit int) ([]types.Session, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, host_id, title, status, total_tips, total_votes, started_at, ended_at "+
			"FROM sessions WHERE host_id = $1 ORDER BY started_at DESC LIMIT $2",
		hostId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []types.Session
	for rows.Next() {
		var (
			s       types.Session
			status  string
			endedAt sql.NullTime
		)
		if err := rows.Scan(&s.Id, &s.HostId, &s.Title, &status, &s.TotalTips, &s.TotalVotes, &s.StartedAt, &endedAt); err != nil {
			return nil, err
		}
		s.Status = types.SessionStatus(status)
		if endedAt.Valid {
			s.EndedAt = endedAt.Time
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDare(row rowScanner) (types.Dare, error) {
	var (
		d            types.Dare
		tier, status string
		contributors []byte
		notes        sql.NullString
	)

	err := row.Scan(
		&d.Id,
		&d.StreamId,
		&d.Title,
		&d.Description,
		&d.Category,
		&tier,
		&d.Cost,
		&status,
		&d.Votes,
		&d.TotalContributions,
		&contributors,
		&d.CreatedBy,
		&d.CreatedAt,
		&notes,
	)
	if err != nil {
		return types.Dare{}, err
	}

	d.Tier = types.DareTier(tier)
	d.Status = types.DareStatus(status)
	d.ModerationNotes = notes.String
	if err := json.Unmarshal(contributors, &d.Contributors); err != nil {
		return types.Dare{}, fmt.Errorf("unmarshal contributors: %w", err)
	}
	d.PriorityScore = d.Votes*10 + d.TotalContributions*2

	return d, nil
}
