package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockSource implements adapters.Source for testing across packages
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Fetch(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
