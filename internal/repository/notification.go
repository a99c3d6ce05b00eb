package repository

import (
	"context"
	"fmt"
	"time"

	"datematch-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationRepository handles database operations for the notification outbox
type NotificationRepository struct {
	db *pgxpool.Pool
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// insertNotification writes one outbox row. Used inside the transactions
// that produce notification-worthy events so the row commits or rolls back
// with the event itself.
func insertNotification(ctx context.Context, q DBTX, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := q.Exec(ctx, query, n.ID, n.RecipientID, n.Type, n.Payload, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// Enqueue writes one outbox row outside any surrounding transaction
func (r *NotificationRepository) Enqueue(ctx context.Context, n *models.Notification) error {
	return insertNotification(ctx, r.db, n)
}

// Unsent returns up to limit undelivered notifications, oldest first
func (r *NotificationRepository) Unsent(ctx context.Context, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, recipient_id, type, payload, created_at, sent_at
		FROM notifications WHERE sent_at IS NULL
		ORDER BY created_at LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsent notifications: %w", err)
	}
	defer rows.Close()

	var notifs []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Payload, &n.CreatedAt, &n.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifs = append(notifs, &n)
	}
	return notifs, rows.Err()
}

// MarkSent stamps notifications as delivered
func (r *NotificationRepository) MarkSent(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE notifications SET sent_at = $1 WHERE id = ANY($2)`
	_, err := r.db.Exec(ctx, query, at, ids)
	if err != nil {
		return fmt.Errorf("failed to mark notifications sent: %w", err)
	}
	return nil
}
