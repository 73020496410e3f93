package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"meetflow/internal/model"
)

type sqliteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository wraps an open database handle in the Repository
// interface.
func NewSQLiteRepository(db *sql.DB) Repository {
	return &sqliteRepository{db: sqlx.NewDb(db, "sqlite3")}
}

func (r *sqliteRepository) CreateChatGroup(ctx context.Context, group *model.ChatGroup) error {
	query, args, err := sq.Insert("chat_groups").
		Columns("id", "session_id", "user_id", "name", "created_at").
		Values(group.ID, group.SessionID, group.UserID, group.Name, group.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("could not build insert query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *sqliteRepository) UpdateChatGroupName(ctx context.Context, groupID, name string) error {
	query, args, err := sq.Update("chat_groups").
		Set("name", name).
		Where(sq.Eq{"id": groupID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("could not build update query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteRepository) ListChatGroups(ctx context.Context, sessionID string) ([]*model.ChatGroup, error) {
	query, args, err := sq.Select("id", "session_id", "user_id", "name", "created_at").
		From("chat_groups").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("could not build select query: %w", err)
	}
	var groups []*model.ChatGroup
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *sqliteRepository) ListChatMessages(ctx context.Context, groupID string) ([]model.Message, error) {
	query, args, err := sq.Select("id", "group_id", "role", "content", "created_at").
		From("chat_messages").
		Where(sq.Eq{"group_id": groupID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("could not build select query: %w", err)
	}
	var messages []model.Message
	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, err
	}
	return messages, nil
}

// UpsertChatMessage inserts the message or, when the id already exists,
// replaces its content. Streaming writes the same assistant id twice: once
// as a placeholder, once with the final accumulated text.
func (r *sqliteRepository) UpsertChatMessage(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO chat_messages (id, group_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content
	`
	_, err := r.db.ExecContext(ctx, query, msg.ID, msg.GroupID, msg.Role, msg.Content, msg.Timestamp)
	return err
}

func (r *sqliteRepository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	query, args, err := sq.Select("id", "title", "raw_note", "enhanced_note", "pre_meeting_note", "transcript", "created_at").
		From("sessions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("could not build select query: %w", err)
	}
	var session model.Session
	if err := r.db.GetContext(ctx, &session, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *sqliteRepository) SessionListParticipants(ctx context.Context, sessionID string) ([]model.Participant, error) {
	query, args, err := sq.Select("name", "email").
		From("participants").
		Where(sq.Eq{"session_id": sessionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("could not build select query: %w", err)
	}
	var participants []model.Participant
	if err := r.db.SelectContext(ctx, &participants, query, args...); err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *sqliteRepository) SessionGetEvent(ctx context.Context, sessionID string) (*model.CalendarEvent, error) {
	query, args, err := sq.Select("name", "starts_at", "ends_at", "note").
		From("events").
		Where(sq.Eq{"session_id": sessionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("could not build select query: %w", err)
	}
	var event model.CalendarEvent
	if err := r.db.GetContext(ctx, &event, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *sqliteRepository) GetHuman(ctx context.Context, id string) (*model.Human, error) {
	query, args, err := sq.Select("id", "name", "email", "job_title", "linkedin").
		From("humans").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("could not build select query: %w", err)
	}
	var human model.Human
	if err := r.db.GetContext(ctx, &human, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &human, nil
}

func (r *sqliteRepository) ListSessions(ctx context.Context, filter SearchFilter) ([]*model.Session, error) {
	builder := sq.Select("id", "title", "raw_note", "enhanced_note", "pre_meeting_note", "transcript", "created_at").
		From("sessions").
		OrderBy("created_at DESC")

	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		builder = builder.Where(sq.Or{
			sq.Like{"title": like},
			sq.Like{"raw_note": like},
			sq.Like{"enhanced_note": like},
			sq.Like{"transcript": like},
		})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("could not build search query: %w", err)
	}
	var sessions []*model.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, err
	}
	return sessions, nil
}
