package model

import (
	"time"
)

// Roles of chat message authors.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// PartType discriminates the two kinds of message parts.
type PartType string

const (
	PartText     PartType = "text"
	PartArtifact PartType = "artifact"
)

// MessagePart is one renderable segment of a message: either prose or a
// fenced artifact block. IsComplete is false only while an artifact's
// closing fence has not yet arrived in the stream.
type MessagePart struct {
	Type       PartType `json:"type"`
	Content    string   `json:"content"`
	IsComplete bool     `json:"is_complete"`
}

// Message is a single chat message. Content is the source of truth;
// Parts is a derived projection recomputed from Content.
type Message struct {
	ID        string        `json:"id" db:"id"`
	GroupID   string        `json:"group_id" db:"group_id"`
	Role      string        `json:"role" db:"role"`
	Content   string        `json:"content" db:"content"`
	Timestamp time.Time     `json:"timestamp" db:"created_at"`
	Parts     []MessagePart `json:"parts,omitempty" db:"-"`
}

// IsUser reports whether the message was authored by the user.
func (m *Message) IsUser() bool { return m.Role == RoleUser }

// ChatGroup is a conversation thread scoping messages to one meeting session.
// Which group is "current" for a session is computed, never stored.
type ChatGroup struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      *string   `json:"name,omitempty" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MentionType discriminates mention targets.
type MentionType string

const (
	MentionNote  MentionType = "note"
	MentionHuman MentionType = "human"
)

// Mention is a caller-supplied reference to a note or person whose content
// should be folded into the model context for the current turn.
type Mention struct {
	ID    string      `json:"id"`
	Type  MentionType `json:"type"`
	Label string      `json:"label"`
}

// Session is a meeting session: its notes, pre-meeting prep and transcript.
type Session struct {
	ID             string    `json:"id" db:"id"`
	Title          string    `json:"title" db:"title"`
	RawNote        string    `json:"raw_note" db:"raw_note"`
	EnhancedNote   string    `json:"enhanced_note" db:"enhanced_note"`
	PreMeetingNote string    `json:"pre_meeting_note" db:"pre_meeting_note"`
	Transcript     string    `json:"transcript" db:"transcript"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Participant is a person attached to a session.
type Participant struct {
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
}

// CalendarEvent is the calendar entry linked to a session, if any.
type CalendarEvent struct {
	Name     string    `json:"name" db:"name"`
	StartsAt time.Time `json:"starts_at" db:"starts_at"`
	EndsAt   time.Time `json:"ends_at" db:"ends_at"`
	Note     string    `json:"note" db:"note"`
}

// Human is a known person's profile.
type Human struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Email    string `json:"email" db:"email"`
	JobTitle string `json:"job_title" db:"job_title"`
	LinkedIn string `json:"linkedin" db:"linkedin"`
}

// StreamEvent is one chunk delivered to the client while a response streams.
// Parts reflects the parse of the accumulated content so far.
type StreamEvent struct {
	MessageID string        `json:"message_id,omitempty"`
	Content   string        `json:"content,omitempty"`
	Parts     []MessagePart `json:"parts,omitempty"`
	Done      bool          `json:"done"`
	Error     string        `json:"error,omitempty"`
}
