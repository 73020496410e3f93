package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meetflow/internal/model"
	"meetflow/internal/repository"
)

// GroupResolver picks the chat group that should receive new messages for a
// session: the group holding the most recent message wins, not the most
// recently created one. Resolution is idempotent; creation is lazy and only
// happens on the first actual submission.
type GroupResolver struct {
	repo  repository.Repository
	cache repository.GroupCache
	now   func() time.Time
}

func NewGroupResolver(repo repository.Repository, cache repository.GroupCache) *GroupResolver {
	return &GroupResolver{repo: repo, cache: cache, now: time.Now}
}

// Resolve returns the current group id for the session, or "" when the
// session has no groups yet.
func (g *GroupResolver) Resolve(ctx context.Context, sessionID string) (string, error) {
	if cached, err := g.cache.GetCurrentGroup(ctx, sessionID); err == nil && cached != "" {
		return cached, nil
	}

	groups, err := g.repo.ListChatGroups(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("could not list chat groups: %w", err)
	}
	if len(groups) == 0 {
		return "", nil
	}

	var currentID string
	var latest time.Time
	for _, group := range groups {
		// A group with no messages competes with its own creation time.
		stamp := group.CreatedAt
		messages, err := g.repo.ListChatMessages(ctx, group.ID)
		if err != nil {
			slog.Warn("Could not list messages while resolving group", "group_id", group.ID, "error", err)
		}
		for _, msg := range messages {
			if msg.Timestamp.After(stamp) {
				stamp = msg.Timestamp
			}
		}
		if currentID == "" || stamp.After(latest) {
			currentID = group.ID
			latest = stamp
		}
	}

	if err := g.cache.SetCurrentGroup(ctx, sessionID, currentID); err != nil {
		slog.Warn("Could not cache current group", "session_id", sessionID, "error", err)
	}
	return currentID, nil
}

// Create makes a new group for the session and caches it as current.
func (g *GroupResolver) Create(ctx context.Context, sessionID, userID string) (*model.ChatGroup, error) {
	group := &model.ChatGroup{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: g.now(),
	}
	if err := g.repo.CreateChatGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("could not create chat group: %w", err)
	}
	if err := g.cache.SetCurrentGroup(ctx, sessionID, group.ID); err != nil {
		slog.Warn("Could not cache new group", "session_id", sessionID, "error", err)
	}
	return group, nil
}
