package repository

import (
	"context"
	"fmt"

	"datematch-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatRepository handles database operations for chat messages
type ChatRepository struct {
	db *pgxpool.Pool
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

// ThreadExists checks that a chat thread is present
func (r *ChatRepository) ThreadExists(ctx context.Context, chatID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM chat_threads WHERE id = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, chatID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check chat thread: %w", err)
	}
	return exists, nil
}

// InsertMessage stores a chat message
func (r *ChatRepository) InsertMessage(ctx context.Context, msg *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, chat_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, msg.ID, msg.ChatID, msg.SenderID, msg.Body, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListMessages returns messages in a thread, oldest first, with pagination
func (r *ChatRepository) ListMessages(ctx context.Context, chatID string, limit, offset int) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, chat_id, sender_id, body, created_at
		FROM chat_messages WHERE chat_id = $1
		ORDER BY created_at LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, chatID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
