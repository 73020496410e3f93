// Package mocks provides testify mocks for the repository interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"meetflow/internal/model"
	"meetflow/internal/repository"
)

type MockRepository struct {
	mock.Mock
}

func NewMockRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRepository {
	m := &MockRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRepository) CreateChatGroup(ctx context.Context, group *model.ChatGroup) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *MockRepository) UpdateChatGroupName(ctx context.Context, groupID, name string) error {
	args := m.Called(ctx, groupID, name)
	return args.Error(0)
}

func (m *MockRepository) ListChatGroups(ctx context.Context, sessionID string) ([]*model.ChatGroup, error) {
	args := m.Called(ctx, sessionID)
	groups, _ := args.Get(0).([]*model.ChatGroup)
	return groups, args.Error(1)
}

func (m *MockRepository) ListChatMessages(ctx context.Context, groupID string) ([]model.Message, error) {
	args := m.Called(ctx, groupID)
	messages, _ := args.Get(0).([]model.Message)
	return messages, args.Error(1)
}

func (m *MockRepository) UpsertChatMessage(ctx context.Context, msg *model.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockRepository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	args := m.Called(ctx, id)
	session, _ := args.Get(0).(*model.Session)
	return session, args.Error(1)
}

func (m *MockRepository) SessionListParticipants(ctx context.Context, sessionID string) ([]model.Participant, error) {
	args := m.Called(ctx, sessionID)
	participants, _ := args.Get(0).([]model.Participant)
	return participants, args.Error(1)
}

func (m *MockRepository) SessionGetEvent(ctx context.Context, sessionID string) (*model.CalendarEvent, error) {
	args := m.Called(ctx, sessionID)
	event, _ := args.Get(0).(*model.CalendarEvent)
	return event, args.Error(1)
}

func (m *MockRepository) GetHuman(ctx context.Context, id string) (*model.Human, error) {
	args := m.Called(ctx, id)
	human, _ := args.Get(0).(*model.Human)
	return human, args.Error(1)
}

func (m *MockRepository) ListSessions(ctx context.Context, filter repository.SearchFilter) ([]*model.Session, error) {
	args := m.Called(ctx, filter)
	sessions, _ := args.Get(0).([]*model.Session)
	return sessions, args.Error(1)
}

type MockGroupCache struct {
	mock.Mock
}

func NewMockGroupCache(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockGroupCache {
	m := &MockGroupCache{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockGroupCache) GetCurrentGroup(ctx context.Context, sessionID string) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

func (m *MockGroupCache) SetCurrentGroup(ctx context.Context, sessionID, groupID string) error {
	args := m.Called(ctx, sessionID, groupID)
	return args.Error(0)
}
