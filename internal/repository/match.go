package repository

import (
	"context"
	"fmt"

	"datematch-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MatchRepository handles database operations for match edges
type MatchRepository struct {
	db *pgxpool.Pool
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

// CreateWithChat inserts the canonical match edge, its chat thread and the
// match notifications as one transaction. The edge's (user_a_id, user_b_id)
// primary key is the idempotency key: when a concurrent attempt already
// created the edge, the insert affects no rows and the existing match is
// returned with created=false and nothing else written.
func (r *MatchRepository) CreateWithChat(ctx context.Context, match *models.Match, notifs []*models.Notification) (bool, *models.Match, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertEdge := `
		INSERT INTO matches (id, user_a_id, user_b_id, chat_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_a_id, user_b_id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, insertEdge, match.ID, match.UserAID, match.UserBID, match.ChatID, match.CreatedAt)
	if err != nil {
		return false, nil, fmt.Errorf("failed to insert match: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Lost the race: the edge is already there. Commit nothing and
		// hand back what the winner created.
		existing, err := r.GetByPair(ctx, match.UserAID, match.UserBID)
		if err != nil {
			return false, nil, err
		}
		return false, existing, nil
	}

	insertThread := `
		INSERT INTO chat_threads (id, user_a_id, user_b_id, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, insertThread, match.ChatID, match.UserAID, match.UserBID, match.CreatedAt); err != nil {
		return false, nil, fmt.Errorf("failed to create chat thread: %w", err)
	}

	for _, n := range notifs {
		if err := insertNotification(ctx, tx, n); err != nil {
			return false, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, nil, fmt.Errorf("failed to commit match: %w", err)
	}
	return true, match, nil
}

const matchColumns = `id, user_a_id, user_b_id, chat_id, created_at`

func scanMatch(row pgx.Row) (*models.Match, error) {
	var m models.Match
	err := row.Scan(&m.ID, &m.UserAID, &m.UserBID, &m.ChatID, &m.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &models.NotFoundError{Resource: "match"}
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	return &m, nil
}

// GetByID retrieves a match by ID
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return scanMatch(r.db.QueryRow(ctx, query, id))
}

// GetByPair retrieves the match between two users, if any
func (r *MatchRepository) GetByPair(ctx context.Context, x, y string) (*models.Match, error) {
	a, b := models.CanonicalPair(x, y)
	query := `SELECT ` + matchColumns + ` FROM matches WHERE user_a_id = $1 AND user_b_id = $2`
	return scanMatch(r.db.QueryRow(ctx, query, a, b))
}

// GetByChatID retrieves the match owning a chat thread
func (r *MatchRepository) GetByChatID(ctx context.Context, chatID string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE chat_id = $1`
	return scanMatch(r.db.QueryRow(ctx, query, chatID))
}

// ListByUser lists all matches a user is part of
func (r *MatchRepository) ListByUser(ctx context.Context, userID string) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE user_a_id = $1 OR user_b_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.ID, &m.UserAID, &m.UserBID, &m.ChatID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

// DeleteWithChat removes a match edge and tears down its chat thread
// (messages go with it via cascade) in one transaction.
func (r *MatchRepository) DeleteWithChat(ctx context.Context, matchID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var chatID string
	err = tx.QueryRow(ctx, `DELETE FROM matches WHERE id = $1 RETURNING chat_id`, matchID).Scan(&chatID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return &models.NotFoundError{Resource: "match"}
		}
		return fmt.Errorf("failed to delete match: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chat_threads WHERE id = $1`, chatID); err != nil {
		return fmt.Errorf("failed to delete chat thread: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit unmatch: %w", err)
	}
	return nil
}
