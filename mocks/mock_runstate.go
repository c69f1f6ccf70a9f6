package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"hospitalsync/internal/domain"
)

// MockRunStateBackend is a mock implementation of ports.RunStateBackend
type MockRunStateBackend struct {
	mock.Mock
}

// Load mocks the Load method
func (m *MockRunStateBackend) Load(ctx context.Context) (*domain.RunState, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RunState), args.Error(1)
}

// Save mocks the Save method
func (m *MockRunStateBackend) Save(ctx context.Context, state *domain.RunState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}
