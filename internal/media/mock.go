package media

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) IssueRoomToken(ctx context.Context, room, identity string, publisher bool) (string, error) {
	args := m.Called(ctx, room, identity, publisher)
	return args.String(0), args.Error(1)
}
