package models

import (
	"context"

	"github.com/stretchr/testify/mock"
)

var _ Generator = &MockGenerator{}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, messages []Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}
