package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"datematch-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentRepository handles database operations for payment requests
type PaymentRepository struct {
	db *pgxpool.Pool
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, user_id, phone_number, amount, external_ref, status, failure_reason, created_at, expires_at`

func scanPayment(row pgx.Row) (*models.PaymentRequest, error) {
	var p models.PaymentRequest
	err := row.Scan(
		&p.ID, &p.UserID, &p.PhoneNumber, &p.Amount, &p.ExternalRef,
		&p.Status, &p.FailureReason, &p.CreatedAt, &p.ExpiresAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &models.NotFoundError{Resource: "payment request"}
		}
		return nil, fmt.Errorf("failed to scan payment request: %w", err)
	}
	return &p, nil
}

// CreatePending inserts a new initiated request. The partial unique index on
// (user_id) WHERE status IN ('initiated','processing') makes a concurrent
// duplicate impossible; a violation surfaces as ConflictError so the caller
// can fetch and return the existing request.
func (r *PaymentRepository) CreatePending(ctx context.Context, req *models.PaymentRequest) error {
	query := `
		INSERT INTO payment_requests (id, user_id, phone_number, amount, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		req.ID, req.UserID, req.PhoneNumber, req.Amount, req.Status, req.CreatedAt, req.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return &models.ConflictError{Message: "user already has a pending payment request"}
		}
		return fmt.Errorf("failed to create payment request: %w", err)
	}
	return nil
}

// PendingByUser returns the user's in-flight request, if any
func (r *PaymentRepository) PendingByUser(ctx context.Context, userID string) (*models.PaymentRequest, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_requests
		WHERE user_id = $1 AND status IN ('initiated', 'processing')`
	return scanPayment(r.db.QueryRow(ctx, query, userID))
}

// GetByExternalRef retrieves a request by the gateway-assigned reference
func (r *PaymentRepository) GetByExternalRef(ctx context.Context, ref string) (*models.PaymentRequest, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_requests WHERE external_ref = $1`
	return scanPayment(r.db.QueryRow(ctx, query, ref))
}

// SetProcessing attaches the gateway reference and moves the request to
// processing. Only an initiated request can take a reference.
func (r *PaymentRepository) SetProcessing(ctx context.Context, id, externalRef string) error {
	query := `
		UPDATE payment_requests
		SET status = 'processing', external_ref = $1
		WHERE id = $2 AND status = 'initiated'
	`
	tag, err := r.db.Exec(ctx, query, externalRef, id)
	if err != nil {
		return fmt.Errorf("failed to set payment request processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &models.ConflictError{Message: "payment request is no longer initiated"}
	}
	return nil
}

// Cancel cancels a request that never reached the gateway
func (r *PaymentRepository) Cancel(ctx context.Context, id string) error {
	query := `UPDATE payment_requests SET status = 'cancelled' WHERE id = $1 AND status IN ('initiated', 'processing')`
	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to cancel payment request: %w", err)
	}
	return nil
}

// CancelStale cancels pending requests whose expires_at has passed. Late
// callbacks for these are rejected by the reconciler.
func (r *PaymentRepository) CancelStale(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE payment_requests SET status = 'cancelled', failure_reason = $1
		WHERE status IN ('initiated', 'processing') AND expires_at <= $2
	`
	tag, err := r.db.Exec(ctx, query, models.ReasonRequestExpired, now)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel stale payment requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CompleteParams carries everything the completion transaction writes.
type CompleteParams struct {
	ExternalRef string
	ReceiptCode string
	Duration    time.Duration
	Now         time.Time
	// Notification to enqueue for the user on activation.
	Notification *models.Notification
}

// CompleteAndActivate marks the request completed and applies the paid
// subscription period, the user snapshot and the activation notification as
// one transaction. The conditional UPDATE keyed by the unique external_ref
// is the idempotency guard: a duplicate delivery (or a second reconciler
// instance racing this one) matches zero rows and gets ConflictError with
// nothing written.
func (r *PaymentRepository) CompleteAndActivate(ctx context.Context, p CompleteParams) (*models.SubscriptionPeriod, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	complete := `
		UPDATE payment_requests
		SET status = 'completed'
		WHERE external_ref = $1 AND status IN ('initiated', 'processing') AND expires_at > $2
		RETURNING id, user_id
	`
	var paymentID, userID string
	err = tx.QueryRow(ctx, complete, p.ExternalRef, p.Now).Scan(&paymentID, &userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &models.ConflictError{Message: "payment request already settled"}
		}
		return nil, fmt.Errorf("failed to complete payment request: %w", err)
	}

	period, err := extendOrCreatePeriod(ctx, tx, userID, paymentID, p.Duration, p.Now)
	if err != nil {
		return nil, err
	}

	ref := p.ExternalRef
	if err := updateSubscriptionSnapshot(ctx, tx, userID, models.PeriodActive, &period.ExpiresAt, &ref); err != nil {
		return nil, err
	}

	if p.Notification != nil {
		p.Notification.RecipientID = userID
		if err := insertNotification(ctx, tx, p.Notification); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment completion: %w", err)
	}
	return period, nil
}

// MarkFailed records a gateway failure and enqueues the failure
// notification in the same transaction. Zero matched rows means the request
// was already settled; nothing is written in that case.
func (r *PaymentRepository) MarkFailed(ctx context.Context, externalRef, reason string, notif *models.Notification) (*models.PaymentRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	fail := `
		UPDATE payment_requests
		SET status = 'failed', failure_reason = $1
		WHERE external_ref = $2 AND status IN ('initiated', 'processing')
		RETURNING ` + paymentColumns
	req, err := scanPayment(tx.QueryRow(ctx, fail, reason, externalRef))
	if err != nil {
		var nf *models.NotFoundError
		if errors.As(err, &nf) {
			return nil, &models.ConflictError{Message: "payment request already settled"}
		}
		return nil, err
	}

	if notif != nil {
		notif.RecipientID = req.UserID
		if err := insertNotification(ctx, tx, notif); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment failure: %w", err)
	}
	return req, nil
}
