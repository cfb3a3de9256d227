package relay

import (
	"context"

	"github.com/mfdeleon/go-privchat/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) SaveMessage(ctx context.Context, params SaveMessageParams) (types.Message, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(types.Message), args.Error(1)
}
