package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"datematch-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository handles database operations for subscription periods
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const periodColumns = `id, user_id, status, starts_at, expires_at, source_payment_id, created_at`

func scanPeriod(row pgx.Row) (*models.SubscriptionPeriod, error) {
	var p models.SubscriptionPeriod
	err := row.Scan(&p.ID, &p.UserID, &p.Status, &p.StartsAt, &p.ExpiresAt, &p.SourcePaymentID, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &models.NotFoundError{Resource: "subscription period"}
		}
		return nil, fmt.Errorf("failed to scan subscription period: %w", err)
	}
	return &p, nil
}

// CurrentPeriod returns the user's period with the latest expires_at
func (r *SubscriptionRepository) CurrentPeriod(ctx context.Context, userID string) (*models.SubscriptionPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM subscription_periods
		WHERE user_id = $1 ORDER BY expires_at DESC LIMIT 1`
	return scanPeriod(r.db.QueryRow(ctx, query, userID))
}

// extendOrCreatePeriod applies one paid duration. A still-running period is
// extended from its current expiry so stacked purchases never overlap and
// waste time; otherwise a fresh period starts now and any leftover rows are
// retired. Runs inside the caller's transaction.
func extendOrCreatePeriod(ctx context.Context, q DBTX, userID, sourcePaymentID string, duration time.Duration, now time.Time) (*models.SubscriptionPeriod, error) {
	current := `SELECT ` + periodColumns + ` FROM subscription_periods
		WHERE user_id = $1 ORDER BY expires_at DESC LIMIT 1 FOR UPDATE`
	period, err := scanPeriod(q.QueryRow(ctx, current, userID))
	if err == nil && period.Status == models.PeriodActive && period.ExpiresAt.After(now) {
		newExpiry := period.ExpiresAt.Add(duration)
		update := `UPDATE subscription_periods SET expires_at = $1 WHERE id = $2`
		if _, err := q.Exec(ctx, update, newExpiry, period.ID); err != nil {
			return nil, fmt.Errorf("failed to extend subscription period: %w", err)
		}
		period.ExpiresAt = newExpiry
		return period, nil
	}
	if err != nil {
		var nf *models.NotFoundError
		if !errors.As(err, &nf) {
			return nil, err
		}
	}

	retire := `UPDATE subscription_periods SET status = 'deactivated' WHERE user_id = $1 AND status = 'active'`
	if _, err := q.Exec(ctx, retire, userID); err != nil {
		return nil, fmt.Errorf("failed to retire old periods: %w", err)
	}

	fresh := &models.SubscriptionPeriod{
		ID:              uuid.New().String(),
		UserID:          userID,
		Status:          models.PeriodActive,
		StartsAt:        now,
		ExpiresAt:       now.Add(duration),
		SourcePaymentID: sourcePaymentID,
		CreatedAt:       now,
	}
	insert := `
		INSERT INTO subscription_periods (id, user_id, status, starts_at, expires_at, source_payment_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = q.Exec(ctx, insert,
		fresh.ID, fresh.UserID, fresh.Status, fresh.StartsAt, fresh.ExpiresAt, fresh.SourcePaymentID, fresh.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription period: %w", err)
	}
	return fresh, nil
}

// ExpiredCandidates lists active current periods past the cutoff, for the
// sweeper. Superseded rows are excluded.
func (r *SubscriptionRepository) ExpiredCandidates(ctx context.Context, cutoff time.Time) ([]*models.SubscriptionPeriod, error) {
	query := `
		SELECT ` + periodColumns + ` FROM subscription_periods sp
		WHERE sp.status = 'active' AND sp.expires_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM subscription_periods newer
			WHERE newer.user_id = sp.user_id AND newer.expires_at > sp.expires_at
		  )
	`
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired periods: %w", err)
	}
	defer rows.Close()

	var periods []*models.SubscriptionPeriod
	for rows.Next() {
		var p models.SubscriptionPeriod
		if err := rows.Scan(&p.ID, &p.UserID, &p.Status, &p.StartsAt, &p.ExpiresAt, &p.SourcePaymentID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription period: %w", err)
		}
		periods = append(periods, &p)
	}
	return periods, rows.Err()
}

// DeactivateIfUnchanged downgrades a lapsed period only if its expires_at
// still matches what the sweep read. A renewal that landed in between makes
// the update match zero rows, and the sweep silently moves on.
func (r *SubscriptionRepository) DeactivateIfUnchanged(ctx context.Context, period *models.SubscriptionPeriod, notif *models.Notification) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	deactivate := `
		UPDATE subscription_periods
		SET status = 'deactivated'
		WHERE id = $1 AND expires_at = $2 AND status = 'active'
	`
	tag, err := tx.Exec(ctx, deactivate, period.ID, period.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate subscription period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := updateSubscriptionSnapshot(ctx, tx, period.UserID, models.PeriodDeactivated, &period.ExpiresAt, nil); err != nil {
		return false, err
	}

	if notif != nil {
		if err := insertNotification(ctx, tx, notif); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit deactivation: %w", err)
	}
	return true, nil
}
