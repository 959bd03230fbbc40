package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fapiao/internal/domain"
	"fapiao/internal/port"
)

// MockRecognizer is a mock implementation of port.Recognizer.
type MockRecognizer struct {
	mock.Mock
}

func (m *MockRecognizer) Recognize(ctx context.Context, pages []domain.RawPage, opts port.RecognizeOptions) (map[int][]domain.Fragment, error) {
	args := m.Called(ctx, pages, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int][]domain.Fragment), args.Error(1)
}
