package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fapiao/internal/domain"
)

// MockRecordSink is a mock implementation of port.RecordSink.
type MockRecordSink struct {
	mock.Mock
}

func (m *MockRecordSink) WriteBatch(ctx context.Context, result *domain.BatchResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}
