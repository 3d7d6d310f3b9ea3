package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/streamania/backend/internal/database"
	"github.com/streamania/backend/internal/models"
)

type MessageRepository struct {
	db *database.DB
}

func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `id, user_id, username, message, created_at, is_deleted, stream_id`

func scanMessage(row rowScanner) (*models.ChatMessage, error) {
	m := &models.ChatMessage{}
	err := row.Scan(&m.ID, &m.UserID, &m.Username, &m.Message, &m.Timestamp, &m.IsDeleted, &m.StreamID)
	return m, err
}

// CreateMessage stores a chat message. Messages stored already deleted are
// kept for moderation review.
func (r *MessageRepository) CreateMessage(ctx context.Context, m *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, user_id, username, message, stream_id, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		m.ID,
		m.UserID,
		m.Username,
		m.Message,
		m.StreamID,
		m.IsDeleted,
	).Scan(&m.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

func (r *MessageRepository) GetMessage(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "message")
	}
	return m, nil
}

// ListMessages returns visible messages newest first, optionally for one stream
func (r *MessageRepository) ListMessages(ctx context.Context, streamID *uuid.UUID, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + messageColumns + `
		FROM chat_messages
		WHERE NOT is_deleted AND ($1::uuid IS NULL OR stream_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, streamID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := []models.ChatMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *m)
	}

	return messages, rows.Err()
}

func (r *MessageRepository) SoftDeleteMessage(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_messages SET is_deleted = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return expectRow(res, "message")
}

// SoftDeleteUserMessages hides every visible message of a user
func (r *MessageRepository) SoftDeleteUserMessages(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_messages SET is_deleted = true WHERE user_id = $1 AND NOT is_deleted`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
