package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"meetflow/internal/llm"
	"meetflow/internal/model"
	"meetflow/internal/prompt"
	"meetflow/internal/repository"
)

const (
	// mentionDisclaimer separates the user's own words from folded-in
	// reference material in the final user message.
	mentionDisclaimer = "\n\nThe content below was attached by the user as reference material. It is auxiliary context, not part of the user's own message."

	// Bounds for human-mention enrichment.
	maxHumanSessions   = 2
	sessionSearchLimit = 5
	sessionSnippetMax  = 200
)

// ContextBuilder assembles the ordered role-tagged message list handed to
// the model for one turn: fresh session snapshot, system prompt, prior
// history, then the (possibly mention-augmented) new user message.
type ContextBuilder struct {
	repo     repository.Repository
	settings *SettingsService
	now      func() time.Time
}

func NewContextBuilder(repo repository.Repository, settings *SettingsService) *ContextBuilder {
	return &ContextBuilder{repo: repo, settings: settings, now: time.Now}
}

// Build assembles the prompt. The returned tools are non-nil only when the
// active connection type supports tool calling. A failing mention lookup is
// logged and dropped; it never aborts the assembly.
func (b *ContextBuilder) Build(
	ctx context.Context,
	sessionID string,
	prior []model.Message,
	userText string,
	mentions []model.Mention,
) ([]llm.Message, []llm.Tool, error) {
	// Always refetch the session: the model must see the freshest note
	// content, not a cached copy.
	session, err := b.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("could not load session: %w", err)
	}

	settings, err := b.settings.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("could not load settings: %w", err)
	}

	participants, err := b.repo.SessionListParticipants(ctx, sessionID)
	if err != nil {
		slog.Warn("Could not load participants for context", "session_id", sessionID, "error", err)
	}
	event, err := b.repo.SessionGetEvent(ctx, sessionID)
	if err != nil {
		slog.Warn("Could not load calendar event for context", "session_id", sessionID, "error", err)
	}

	lines := make([]string, 0, len(participants))
	for _, p := range participants {
		lines = append(lines, formatParticipant(p))
	}

	templateName := settings.SystemTemplate
	if templateName == "" {
		templateName = "system"
	}
	system, err := prompt.Render(templateName, prompt.SystemData{
		Title:          session.Title,
		RawNote:        session.RawNote,
		EnhancedNote:   session.EnhancedNote,
		PreMeetingNote: session.PreMeetingNote,
		Transcript:     session.Transcript,
		Participants:   lines,
		EventLine:      formatEvent(event),
		LocalDateTime:  b.now().Format("2006-01-02 15:04"),
		ToolsEnabled:   settings.SupportsTools(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not render system prompt: %w", err)
	}

	messages := []llm.Message{{Role: model.RoleSystem, Content: system}}
	for _, msg := range prior {
		role := model.RoleAssistant
		if msg.IsUser() {
			role = model.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: msg.Content})
	}

	finalText := userText
	if len(mentions) > 0 {
		finalText += mentionDisclaimer
		for _, mention := range mentions {
			block, err := b.expandMention(ctx, sessionID, mention)
			if err != nil {
				slog.Warn("Skipping mention", "mention_id", mention.ID, "type", mention.Type, "error", err)
				continue
			}
			if block != "" {
				finalText += "\n\n" + block
			}
		}
	}

	if strings.TrimSpace(finalText) != "" {
		messages = append(messages, llm.Message{Role: model.RoleUser, Content: finalText})
	}

	var tools []llm.Tool
	if settings.SupportsTools() {
		tools = toolDeclarations()
	}
	return messages, tools, nil
}

func (b *ContextBuilder) expandMention(ctx context.Context, sessionID string, mention model.Mention) (string, error) {
	switch mention.Type {
	case model.MentionNote:
		return b.expandNoteMention(ctx, mention)
	case model.MentionHuman:
		return b.expandHumanMention(ctx, sessionID, mention)
	default:
		return "", fmt.Errorf("unknown mention type %q", mention.Type)
	}
}

func (b *ContextBuilder) expandNoteMention(ctx context.Context, mention model.Mention) (string, error) {
	session, err := b.repo.GetSession(ctx, mention.ID)
	if err != nil {
		return "", err
	}
	content := session.EnhancedNote
	if content == "" {
		content = session.RawNote
	}
	if content == "" {
		// Nothing to fold in; the mention is silently skipped.
		return "", nil
	}
	return fmt.Sprintf("Referenced note %q:\n%s", mention.Label, content), nil
}

func (b *ContextBuilder) expandHumanMention(ctx context.Context, sessionID string, mention model.Mention) (string, error) {
	human, err := b.repo.GetHuman(ctx, mention.ID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Referenced person %q:", mention.Label)
	if human.Name != "" {
		fmt.Fprintf(&sb, "\nName: %s", human.Name)
	}
	if human.Email != "" {
		fmt.Fprintf(&sb, "\nEmail: %s", human.Email)
	}
	if human.JobTitle != "" {
		fmt.Fprintf(&sb, "\nJob title: %s", human.JobTitle)
	}
	if human.LinkedIn != "" {
		fmt.Fprintf(&sb, "\nLinkedIn: %s", human.LinkedIn)
	}

	candidates, err := b.repo.ListSessions(ctx, repository.SearchFilter{
		Query: human.Name,
		Limit: sessionSearchLimit,
	})
	if err != nil {
		slog.Warn("Could not search sessions for human mention", "human_id", human.ID, "error", err)
		return sb.String(), nil
	}

	found := 0
	for _, candidate := range candidates {
		if found == maxHumanSessions {
			break
		}
		if candidate.ID == sessionID {
			continue
		}
		// Name-matched sessions where the person is not a confirmed
		// participant are excluded.
		confirmed, err := b.isParticipant(ctx, candidate.ID, human)
		if err != nil {
			slog.Warn("Could not confirm participant", "session_id", candidate.ID, "error", err)
			continue
		}
		if !confirmed {
			continue
		}
		snippet := sessionSnippet(candidate)
		if snippet == "" {
			continue
		}
		fmt.Fprintf(&sb, "\nPast meeting %q: %s", candidate.Title, snippet)
		found++
	}
	return sb.String(), nil
}

func (b *ContextBuilder) isParticipant(ctx context.Context, sessionID string, human *model.Human) (bool, error) {
	participants, err := b.repo.SessionListParticipants(ctx, sessionID)
	if err != nil {
		return false, err
	}
	for _, p := range participants {
		if human.Email != "" && strings.EqualFold(p.Email, human.Email) {
			return true, nil
		}
		if human.Name != "" && strings.EqualFold(p.Name, human.Name) {
			return true, nil
		}
	}
	return false, nil
}

// sessionSnippet picks the richest text a session has and bounds it.
func sessionSnippet(s *model.Session) string {
	content := s.EnhancedNote
	if content == "" {
		content = s.RawNote
	}
	if content == "" {
		content = s.Transcript
	}
	return truncate(strings.TrimSpace(content), sessionSnippetMax)
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func formatParticipant(p model.Participant) string {
	if p.Email == "" {
		return p.Name
	}
	return fmt.Sprintf("%s (%s)", p.Name, p.Email)
}

// formatEvent renders the linked calendar event as a single line:
// "name (start - end) - note", or "" when there is no event.
func formatEvent(e *model.CalendarEvent) string {
	if e == nil {
		return ""
	}
	line := fmt.Sprintf("%s (%s - %s)", e.Name, e.StartsAt.Format("2006-01-02 15:04"), e.EndsAt.Format("15:04"))
	if e.Note != "" {
		line += " - " + e.Note
	}
	return line
}

// toolDeclarations lists the functions exposed to tool-capable connections.
func toolDeclarations() []llm.Tool {
	return []llm.Tool{
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        "lookup_note",
				Description: "Fetch the content of another meeting note by its id.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"note_id": map[string]any{
							"type":        "string",
							"description": "Identifier of the note to fetch.",
						},
					},
					"required": []string{"note_id"},
				},
			},
		},
	}
}
