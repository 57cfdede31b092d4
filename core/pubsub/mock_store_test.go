package pubsub_test

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of pubsub.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Append(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockStore) ReadRange(ctx context.Context, key string, start, end int64) ([][]byte, error) {
	args := m.Called(ctx, key, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]byte), args.Error(1)
}

func (m *MockStore) Trim(ctx context.Context, key string, count int64) error {
	args := m.Called(ctx, key, count)
	return args.Error(0)
}

func (m *MockStore) GetBlob(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStore) SetBlob(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
