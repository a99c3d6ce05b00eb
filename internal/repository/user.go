package repository

import (
	"context"
	"fmt"
	"time"

	"datematch-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, phone_number, display_name, gender, preferences, push_token, locked,
	subscription_status, subscription_expires_at, last_payment_ref, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.PhoneNumber, &user.DisplayName, &user.Gender, &user.Preferences,
		&user.PushToken, &user.Locked, &user.SubscriptionStatus, &user.SubscriptionExpiresAt,
		&user.LastPaymentRef, &user.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &models.NotFoundError{Resource: "user"}
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, phone_number, display_name, gender, preferences, locked, subscription_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.PhoneNumber, user.DisplayName, user.Gender, user.Preferences,
		user.Locked, user.SubscriptionStatus, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// GetByPhone retrieves a user by phone number
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone_number = $1`
	return scanUser(r.db.QueryRow(ctx, query, phone))
}

// PhoneExists checks if a phone number is already registered
func (r *UserRepository) PhoneExists(ctx context.Context, phone string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE phone_number = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, phone).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check phone existence: %w", err)
	}
	return exists, nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, pushToken, userID)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}

// updateSubscriptionSnapshot refreshes the denormalized subscription columns
// on the user row. Called inside the reconciliation and sweep transactions.
func updateSubscriptionSnapshot(ctx context.Context, q DBTX, userID, status string, expiresAt *time.Time, paymentRef *string) error {
	query := `
		UPDATE users
		SET subscription_status = $1,
		    subscription_expires_at = $2,
		    last_payment_ref = COALESCE($3, last_payment_ref)
		WHERE id = $4
	`
	_, err := q.Exec(ctx, query, status, expiresAt, paymentRef, userID)
	if err != nil {
		return fmt.Errorf("failed to update subscription snapshot: %w", err)
	}
	return nil
}
