package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"hospitalsync/application/ports"
)

// MockStorage is a mock implementation of ports.Storage
type MockStorage struct {
	mock.Mock
}

// Put mocks the Put method
func (m *MockStorage) Put(ctx context.Context, bucket, key string, reader io.Reader, metadata ports.ObjectMetadata) error {
	args := m.Called(ctx, bucket, key, reader, metadata)
	return args.Error(0)
}

// List mocks the List method
func (m *MockStorage) List(ctx context.Context, bucket, prefix string) ([]ports.ObjectInfo, error) {
	args := m.Called(ctx, bucket, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.ObjectInfo), args.Error(1)
}
