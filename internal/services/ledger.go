package services

import (
	"context"
	"errors"
	"time"

	"datematch-backend/internal/models"
)

// SubscriptionStore is the ledger's view of subscription period storage
type SubscriptionStore interface {
	CurrentPeriod(ctx context.Context, userID string) (*models.SubscriptionPeriod, error)
	ExpiredCandidates(ctx context.Context, cutoff time.Time) ([]*models.SubscriptionPeriod, error)
	DeactivateIfUnchanged(ctx context.Context, period *models.SubscriptionPeriod, notif *models.Notification) (bool, error)
}

// LedgerService answers subscription activity questions. It is the single
// source of truth for "is this user subscribed": the snapshot columns on the
// user row are advisory copies and are never consulted here.
//
// Periods are only ever extended or created by the payment reconciler, inside
// the payment completion transaction (PaymentStore.CompleteAndActivate), so
// this service has no mutating operations of its own.
type LedgerService struct {
	subs  SubscriptionStore
	grace time.Duration
}

// NewLedgerService creates a new subscription ledger service
func NewLedgerService(subs SubscriptionStore, grace time.Duration) *LedgerService {
	return &LedgerService{subs: subs, grace: grace}
}

// PeriodActiveAt is the activity formula: a period grants access while its
// status is active and now is before expires_at plus the grace period. The
// grace absorbs clock skew and sweep latency without granting open-ended
// free access.
func PeriodActiveAt(p *models.SubscriptionPeriod, now time.Time, grace time.Duration) bool {
	if p == nil || p.Status != models.PeriodActive {
		return false
	}
	return now.Before(p.ExpiresAt.Add(grace))
}

// IsActive reports whether the user's current period grants access at now
func (s *LedgerService) IsActive(ctx context.Context, userID string, now time.Time) (bool, error) {
	period, err := s.subs.CurrentPeriod(ctx, userID)
	if err != nil {
		var nf *models.NotFoundError
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}
	return PeriodActiveAt(period, now, s.grace), nil
}

// CurrentPeriod returns the user's period with the latest expiry, or a
// NotFoundError if the user never subscribed
func (s *LedgerService) CurrentPeriod(ctx context.Context, userID string) (*models.SubscriptionPeriod, error) {
	return s.subs.CurrentPeriod(ctx, userID)
}

// Grace returns the configured grace period
func (s *LedgerService) Grace() time.Duration {
	return s.grace
}
