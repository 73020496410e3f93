package repository

import (
	"context"

	"meetflow/internal/model"
)

// SearchFilter bounds a session search. Query matches against title, note
// and transcript text; Limit caps the number of candidates returned.
type SearchFilter struct {
	Query string
	Limit int
}

// Repository defines the durable-storage operations the chat pipeline
// consumes. None of the calls are assumed transactional across each other.
type Repository interface {
	CreateChatGroup(ctx context.Context, group *model.ChatGroup) error
	// UpdateChatGroupName returns ErrNotFound when no group has the id.
	UpdateChatGroupName(ctx context.Context, groupID, name string) error
	ListChatGroups(ctx context.Context, sessionID string) ([]*model.ChatGroup, error)
	ListChatMessages(ctx context.Context, groupID string) ([]model.Message, error)
	UpsertChatMessage(ctx context.Context, msg *model.Message) error

	GetSession(ctx context.Context, id string) (*model.Session, error)
	SessionListParticipants(ctx context.Context, sessionID string) ([]model.Participant, error)
	// SessionGetEvent returns the linked calendar event, or nil when the
	// session has none.
	SessionGetEvent(ctx context.Context, sessionID string) (*model.CalendarEvent, error)
	GetHuman(ctx context.Context, id string) (*model.Human, error)
	ListSessions(ctx context.Context, filter SearchFilter) ([]*model.Session, error)
}

// GroupCache caches the resolved "current" chat group per session. A cache
// miss or failure is never fatal; callers fall back to a full scan.
type GroupCache interface {
	GetCurrentGroup(ctx context.Context, sessionID string) (string, error)
	SetCurrentGroup(ctx context.Context, sessionID, groupID string) error
}
