package interfaces

import (
	"context"

	"meetflow/internal/model"
	"meetflow/internal/service"
)

// This file defines the interfaces for the core services. The API layer
// depends on these instead of concrete implementations, which keeps it
// decoupled and easy to test with mocks.

// ConversationService is the contract for the chat pipeline.
type ConversationService interface {
	Send(ctx context.Context, req *service.SendRequest) (<-chan model.StreamEvent, error)
	Messages(ctx context.Context, sessionID string) ([]model.Message, error)
	Groups(ctx context.Context, sessionID string) ([]*model.ChatGroup, error)
	State() service.State
}

// SettingsService is the contract for application settings management.
type SettingsService interface {
	Get(ctx context.Context) (*service.Settings, error)
	Save(ctx context.Context, settings *service.Settings) error
}
