package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meetflow/internal/blocks"
	app_errors "meetflow/internal/errors"
	"meetflow/internal/llm"
	"meetflow/internal/model"
	"meetflow/internal/repository"
)

// State of the conversation coordinator. The background reload path consults
// this instead of a boolean flag: any state other than StateIdle means the
// in-memory message list is authoritative and must not be overwritten.
type State int

const (
	StateIdle State = iota
	StatePersistingUser
	StateGenerating
	StatePersistingAssistant
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePersistingUser:
		return "persisting_user"
	case StateGenerating:
		return "generating"
	case StatePersistingAssistant:
		return "persisting_assistant"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Error strings rendered as the assistant's final message on stream failure.
// Whatever is rendered is also what gets persisted, byte for byte.
const (
	errTooLargeMessage = "The meeting content is too large for the model. Try again with a shorter transcript or fewer attached notes."
	errGenericMessage  = "Something went wrong while generating a response. Please try again."
)

// SendRequest is one user submission.
type SendRequest struct {
	SessionID string          `json:"session_id" validate:"required"`
	UserID    string          `json:"user_id"`
	Content   string          `json:"content"`
	Mentions  []model.Mention `json:"mentions,omitempty"`
}

// Conversation coordinates one round of user input to model output: gating,
// persistence of both sides of the exchange, live part updates while tokens
// stream, and error translation. It owns the authoritative in-memory copy of
// the active conversation; durable storage is the source of truth across
// sessions.
//
// The generation slot is process-wide: the coordinator holds exactly one
// conversation in memory, so a submission for any session is rejected with
// ErrBusy while a round runs, even for a different session. A single user
// drives one conversation at a time; per-group slots would need per-group
// in-memory state first.
type Conversation struct {
	repo      repository.Repository
	provider  llm.Provider
	resolver  *GroupResolver
	builder   *ContextBuilder
	settings  *SettingsService
	freeLimit int

	now   func() time.Time
	newID func() string

	mu        sync.Mutex
	state     State
	sessionID string
	groupID   string
	messages  []model.Message
}

func NewConversation(
	repo repository.Repository,
	provider llm.Provider,
	resolver *GroupResolver,
	builder *ContextBuilder,
	settings *SettingsService,
	freeLimit int,
) *Conversation {
	return &Conversation{
		repo:      repo,
		provider:  provider,
		resolver:  resolver,
		builder:   builder,
		settings:  settings,
		freeLimit: freeLimit,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// State returns the coordinator's current state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send gates and starts one submission. Gate failures are returned
// synchronously and leave no trace:
//   - blank input          -> ErrEmptyMessage
//   - generation in flight -> ErrBusy
//   - free-tier allowance exhausted without entitlement -> ErrMessageLimit
//
// On success the returned channel carries one StreamEvent per model chunk
// and is closed when the round finishes, including after a generation
// failure (the failure is rendered as the assistant's final message, never
// as a channel error).
func (c *Conversation) Send(ctx context.Context, req *SendRequest) (<-chan model.StreamEvent, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, app_errors.ErrEmptyMessage
	}

	// Reserve the single generation slot before any I/O.
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, app_errors.ErrBusy
	}
	c.state = StatePersistingUser
	c.mu.Unlock()

	groupID, prior, err := c.prepare(ctx, req)
	if err != nil {
		c.setState(StateIdle)
		return nil, err
	}

	settings, err := c.settings.Get(ctx)
	if err != nil {
		c.setState(StateIdle)
		return nil, fmt.Errorf("could not load settings: %w", err)
	}
	if len(prior) >= c.freeLimit && !settings.Entitled() {
		c.setState(StateIdle)
		return nil, app_errors.ErrMessageLimit
	}

	userMessage := model.Message{
		ID:        c.newID(),
		GroupID:   groupID,
		Role:      model.RoleUser,
		Content:   req.Content,
		Timestamp: c.now(),
	}

	// Optimistic append: the UI sees the user message immediately, before
	// the durable write is issued.
	c.mu.Lock()
	c.messages = append(c.messages, userMessage)
	c.mu.Unlock()

	events := make(chan model.StreamEvent, 16)
	go c.run(ctx, req, settings, userMessage, events)
	return events, nil
}

// prepare resolves the target group (creating one lazily if the session has
// none) and loads the prior message list into memory.
func (c *Conversation) prepare(ctx context.Context, req *SendRequest) (string, []model.Message, error) {
	groupID, err := c.resolver.Resolve(ctx, req.SessionID)
	if err != nil {
		return "", nil, err
	}
	if groupID == "" {
		group, err := c.resolver.Create(ctx, req.SessionID, req.UserID)
		if err != nil {
			return "", nil, err
		}
		groupID = group.ID
	}

	c.mu.Lock()
	sameConversation := c.sessionID == req.SessionID && c.groupID == groupID
	prior := append([]model.Message(nil), c.messages...)
	c.mu.Unlock()

	if !sameConversation {
		prior, err = c.repo.ListChatMessages(ctx, groupID)
		if err != nil {
			return "", nil, fmt.Errorf("could not load chat messages: %w", err)
		}
		for i := range prior {
			prior[i].Parts = blocks.Parse(prior[i].Content)
		}
		c.mu.Lock()
		c.sessionID = req.SessionID
		c.groupID = groupID
		c.messages = prior
		prior = append([]model.Message(nil), c.messages...)
		c.mu.Unlock()
	}
	return groupID, prior, nil
}

// run executes the persist/generate/persist sequence. The user-message write
// is issued and logically completes before the assistant placeholder exists;
// its failure is logged only, the in-memory state stays authoritative.
func (c *Conversation) run(ctx context.Context, req *SendRequest, settings *Settings, userMessage model.Message, events chan<- model.StreamEvent) {
	defer close(events)

	// A client disconnect cancels ctx and with it the model stream, but the
	// round's writes must still land: what was rendered has to reach storage
	// before the next idle reload.
	persistCtx := context.WithoutCancel(ctx)

	if err := c.repo.UpsertChatMessage(persistCtx, &userMessage); err != nil {
		slog.Error("Failed to persist user message", "message_id", userMessage.ID, "error", err)
	}

	assistant := model.Message{
		ID:        c.newID(),
		GroupID:   userMessage.GroupID,
		Role:      model.RoleAssistant,
		Timestamp: c.now(),
	}
	c.mu.Lock()
	c.state = StateGenerating
	c.messages = append(c.messages, assistant)
	prior := append([]model.Message(nil), c.messages[:len(c.messages)-2]...)
	c.mu.Unlock()

	llmMessages, tools, err := c.builder.Build(ctx, req.SessionID, prior, req.Content, req.Mentions)
	if err != nil {
		c.finishWithError(persistCtx, assistant.ID, err, events)
		return
	}

	llmReq := &llm.GenerateRequest{
		Model:    settings.Model,
		Messages: llmMessages,
		Tools:    tools,
	}

	scanner := blocks.NewScanner()
	chunkChan := make(chan llm.StreamResponse)
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- c.provider.GenerateStream(ctx, llmReq, chunkChan)
	}()

	for chunk := range chunkChan {
		if chunk.Error != "" {
			// Drain the rest of the stream; the error is terminal.
			for range chunkChan {
			}
			<-streamErr
			c.finishWithError(persistCtx, assistant.ID, fmt.Errorf("%s", chunk.Error), events)
			return
		}
		if chunk.Content == "" && !chunk.Done {
			continue
		}
		parts := scanner.Feed(chunk.Content)
		content := scanner.Text()
		c.updateAssistant(assistant.ID, content, parts)
		events <- model.StreamEvent{
			MessageID: assistant.ID,
			Content:   content,
			Parts:     parts,
			Done:      false,
		}
	}
	if err := <-streamErr; err != nil {
		c.finishWithError(persistCtx, assistant.ID, err, events)
		return
	}

	c.setState(StatePersistingAssistant)
	final := model.Message{
		ID:        assistant.ID,
		GroupID:   assistant.GroupID,
		Role:      model.RoleAssistant,
		Content:   scanner.Text(),
		Timestamp: assistant.Timestamp,
	}
	if err := c.repo.UpsertChatMessage(persistCtx, &final); err != nil {
		slog.Error("Failed to persist assistant message", "message_id", final.ID, "error", err)
	}

	if len(prior) == 0 {
		go c.nameGroup(context.Background(), settings.Model, assistant.GroupID, req.Content, final.Content)
	}

	events <- model.StreamEvent{
		MessageID: assistant.ID,
		Content:   final.Content,
		Parts:     scanner.Parts(),
		Done:      true,
	}
	c.setState(StateIdle)
}

// finishWithError translates a generation failure into the assistant's final
// message. The rendered text and the persisted text are identical, so the
// stored conversation never diverges from what the user saw.
func (c *Conversation) finishWithError(ctx context.Context, assistantID string, cause error, events chan<- model.StreamEvent) {
	c.setState(StateErrored)
	slog.Error("Generation failed", "message_id", assistantID, "error", cause)

	message := classifyGenerationError(cause)
	parts := blocks.Parse(message)
	c.updateAssistant(assistantID, message, parts)

	c.mu.Lock()
	groupID := c.groupID
	c.mu.Unlock()
	persisted := model.Message{
		ID:        assistantID,
		GroupID:   groupID,
		Role:      model.RoleAssistant,
		Content:   message,
		Timestamp: c.now(),
	}
	if err := c.repo.UpsertChatMessage(ctx, &persisted); err != nil {
		slog.Error("Failed to persist error message", "message_id", assistantID, "error", err)
	}

	events <- model.StreamEvent{
		MessageID: assistantID,
		Content:   message,
		Parts:     parts,
		Done:      true,
	}
	c.setState(StateIdle)
}

// nameGroup derives a short name for a freshly started group from its first
// exchange. Best effort: any failure is logged and the group keeps no name.
func (c *Conversation) nameGroup(ctx context.Context, modelName, groupID, userText, assistantText string) {
	resp, err := c.provider.Generate(ctx, &llm.GenerateRequest{
		Model: modelName,
		Messages: []llm.Message{
			{
				Role:    model.RoleSystem,
				Content: "You create short, concise titles for conversations. Respond with only the title, nothing else.",
			},
			{
				Role: model.RoleUser,
				Content: fmt.Sprintf("Suggest a title for a conversation that starts like this:\n\nUser: %s\n\nAssistant: %s",
					truncate(userText, 150),
					truncate(assistantText, 200),
				),
			},
		},
	})
	if err != nil {
		slog.Warn("Failed to generate group name", "group_id", groupID, "error", err)
		return
	}

	name := strings.TrimSpace(resp.Response)
	name = strings.Trim(name, `"'`)
	if name == "" {
		slog.Debug("Generated group name was empty after cleaning", "group_id", groupID)
		return
	}
	if err := c.repo.UpdateChatGroupName(ctx, groupID, name); err != nil {
		slog.Warn("Failed to store group name", "group_id", groupID, "error", err)
	}
}

// classifyGenerationError maps a raw stream failure to user-facing text by
// substring heuristic: payload-too-large gets a targeted suggestion, the
// rest a generic retry message with the raw error appended.
func classifyGenerationError(cause error) string {
	if strings.Contains(cause.Error(), "too large") {
		return errTooLargeMessage
	}
	return errGenericMessage + "\n\n" + cause.Error()
}

// updateAssistant replaces the placeholder's content and parts by id.
func (c *Conversation) updateAssistant(id, content string, parts []model.MessagePart) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages[i].Content = content
			c.messages[i].Parts = parts
			return
		}
	}
}

// Messages is the reload path. While a round is in flight the in-memory list
// is returned untouched; a reload mid-stream would clobber token updates
// with a stale, not-yet-persisted read. Only at StateIdle does it refresh
// from durable storage.
func (c *Conversation) Messages(ctx context.Context, sessionID string) ([]model.Message, error) {
	c.mu.Lock()
	if c.state != StateIdle && c.sessionID == sessionID {
		snapshot := append([]model.Message(nil), c.messages...)
		c.mu.Unlock()
		return snapshot, nil
	}
	c.mu.Unlock()

	groupID, err := c.resolver.Resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if groupID == "" {
		return nil, nil
	}
	messages, err := c.repo.ListChatMessages(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("could not load chat messages: %w", err)
	}
	for i := range messages {
		messages[i].Parts = blocks.Parse(messages[i].Content)
	}

	c.mu.Lock()
	// Re-check: a generation may have started while we were reading. If so
	// the fetched list is handed to the caller but never adopted.
	if c.state == StateIdle {
		c.sessionID = sessionID
		c.groupID = groupID
		c.messages = messages
	}
	c.mu.Unlock()
	return messages, nil
}

// Groups lists the session's chat groups.
func (c *Conversation) Groups(ctx context.Context, sessionID string) ([]*model.ChatGroup, error) {
	return c.repo.ListChatGroups(ctx, sessionID)
}

func (c *Conversation) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
