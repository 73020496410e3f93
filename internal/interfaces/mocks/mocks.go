// Package mocks provides testify mocks for the service interfaces consumed
// by the API layer.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"meetflow/internal/model"
	"meetflow/internal/service"
)

type MockConversationService struct {
	mock.Mock
}

func NewMockConversationService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockConversationService {
	m := &MockConversationService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockConversationService) Send(ctx context.Context, req *service.SendRequest) (<-chan model.StreamEvent, error) {
	args := m.Called(ctx, req)
	ch, _ := args.Get(0).(<-chan model.StreamEvent)
	return ch, args.Error(1)
}

func (m *MockConversationService) Messages(ctx context.Context, sessionID string) ([]model.Message, error) {
	args := m.Called(ctx, sessionID)
	messages, _ := args.Get(0).([]model.Message)
	return messages, args.Error(1)
}

func (m *MockConversationService) Groups(ctx context.Context, sessionID string) ([]*model.ChatGroup, error) {
	args := m.Called(ctx, sessionID)
	groups, _ := args.Get(0).([]*model.ChatGroup)
	return groups, args.Error(1)
}

func (m *MockConversationService) State() service.State {
	args := m.Called()
	state, _ := args.Get(0).(service.State)
	return state
}

type MockSettingsService struct {
	mock.Mock
}

func NewMockSettingsService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSettingsService {
	m := &MockSettingsService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSettingsService) Get(ctx context.Context) (*service.Settings, error) {
	args := m.Called(ctx)
	settings, _ := args.Get(0).(*service.Settings)
	return settings, args.Error(1)
}

func (m *MockSettingsService) Save(ctx context.Context, settings *service.Settings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}
