package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/flowhook/flowhook/pkg/protocol"
)

// MockTriggerLifecycle is a mock implementation of
// protocol.TriggerLifecycle.
type MockTriggerLifecycle struct {
	mock.Mock
}

func (m *MockTriggerLifecycle) Create(ctx context.Context, req protocol.LifecycleRequest) (map[string]any, error) {
	args := m.Called(ctx, req)

	state, _ := args.Get(0).(map[string]any)

	return state, args.Error(1)
}

func (m *MockTriggerLifecycle) Destroy(ctx context.Context, req protocol.LifecycleRequest) error {
	args := m.Called(ctx, req)

	return args.Error(0)
}

func (m *MockTriggerLifecycle) Refresh(ctx context.Context, req protocol.LifecycleRequest) (map[string]any, error) {
	args := m.Called(ctx, req)

	state, _ := args.Get(0).(map[string]any)

	return state, args.Error(1)
}
