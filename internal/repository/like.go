package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InterestRepository handles database operations for directional likes
type InterestRepository struct {
	db *pgxpool.Pool
}

// NewInterestRepository creates a new interest repository
func NewInterestRepository(db *pgxpool.Pool) *InterestRepository {
	return &InterestRepository{db: db}
}

// Add records a directional interest. Returns false when the edge already
// existed, which is how a replayed like is detected.
func (r *InterestRepository) Add(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	query := `
		INSERT INTO interests (from_user_id, to_user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (from_user_id, to_user_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, fromUserID, toUserID, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to record interest: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Exists checks whether fromUserID has expressed interest in toUserID
func (r *InterestRepository) Exists(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM interests WHERE from_user_id = $1 AND to_user_id = $2)`
	var exists bool
	err := r.db.QueryRow(ctx, query, fromUserID, toUserID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check interest: %w", err)
	}
	return exists, nil
}

// ReceivedBy lists the ids of users who expressed interest in userID
func (r *InterestRepository) ReceivedBy(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT from_user_id FROM interests WHERE to_user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list received interests: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan interest: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
