package database

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/darestream/darestream/internal/types"
)

type MockArchiveRepository struct {
	mock.Mock
}

func (m *MockArchiveRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockArchiveRepository) SaveTip(ctx context.Context, tip types.TipEvent) error {
	args := m.Called(ctx, tip)
	return args.Error(0)
}

func (m *MockArchiveRepository) SaveVote(ctx context.Context, vote types.VoteEvent) error {
	args := m.Called(ctx, vote)
	return args.Error(0)
}

func (m *MockArchiveRepository) SaveDare(ctx context.Context, dare types.Dare) error {
	args := m.Called(ctx, dare)
	return args.Error(0)
}

func (m *MockArchiveRepository) SaveSession(ctx context.Context, session types.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockArchiveRepository) GetDare(ctx context.Context, dareId string) (types.Dare, error) {
	args := m.Called(ctx, dareId)
	return args.Get(0).(types.Dare), args.Error(1)
}

func (m *MockArchiveRepository) TopDares(ctx context.Context, limit int) ([]types.Dare, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]types.Dare), args.Error(1)
}

func (m *MockArchiveRepository) SessionHistory(ctx context.Context, hostId string, limit int) ([]types.Session, error) {
	args := m.Called(ctx, hostId, limit)
	return args.Get(0).([]types.Session), args.Error(1)
}
