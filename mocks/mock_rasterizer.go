package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fapiao/internal/domain"
	"fapiao/internal/port"
)

// MockRasterizer is a mock implementation of port.Rasterizer.
type MockRasterizer struct {
	mock.Mock
}

func (m *MockRasterizer) Render(ctx context.Context, path string, opts port.RenderOptions) ([]domain.RawPage, error) {
	args := m.Called(ctx, path, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawPage), args.Error(1)
}
