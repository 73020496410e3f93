// Package mocks provides a testify mock for the llm.Provider interface.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"meetflow/internal/llm"
)

type MockProvider struct {
	mock.Mock
}

func NewMockProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProvider {
	m := &MockProvider{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockProvider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*llm.GenerateResponse)
	return resp, args.Error(1)
}

func (m *MockProvider) GenerateStream(ctx context.Context, req *llm.GenerateRequest, ch chan<- llm.StreamResponse) error {
	args := m.Called(ctx, req, ch)
	return args.Error(0)
}
