package ledger

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveBalance(ctx context.Context, userId string, balance int) error {
	args := m.Called(ctx, userId, balance)
	return args.Error(0)
}

func (m *MockStore) LoadBalance(ctx context.Context, userId string) (int, error) {
	args := m.Called(ctx, userId)
	return args.Int(0), args.Error(1)
}
