package services

import (
	"context"
	"time"

	"datematch-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Sweeper downgrades lapsed subscriptions and cancels stale payment
// requests on a fixed interval. Deactivation is a compare-and-swap on the
// period's expires_at so a renewal landing mid-sweep always wins.
type Sweeper struct {
	subs     SubscriptionStore
	payments PaymentStore
	grace    time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewSweeper creates a new expiry sweeper
func NewSweeper(subs SubscriptionStore, payments PaymentStore, grace, interval time.Duration) *Sweeper {
	return &Sweeper{
		subs:     subs,
		payments: payments,
		grace:    grace,
		interval: interval,
		now:      time.Now,
	}
}

// Run loops until the context is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("Expiry sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Expiry sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass. Returns the number of periods deactivated.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.now()

	if cancelled, err := s.payments.CancelStale(ctx, now); err != nil {
		log.Error().Err(err).Msg("Failed to cancel stale payment requests")
	} else if cancelled > 0 {
		log.Info().Int64("count", cancelled).Msg("Cancelled stale payment requests")
	}

	cutoff := now.Add(-s.grace)
	candidates, err := s.subs.ExpiredCandidates(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list expired subscriptions")
		return 0
	}

	deactivated := 0
	for _, period := range candidates {
		notif := &models.Notification{
			ID:          uuid.New().String(),
			RecipientID: period.UserID,
			Type:        models.NotifSubscriptionExpired,
			Payload:     map[string]string{"expired_at": period.ExpiresAt.Format(time.RFC3339)},
			CreatedAt:   now,
		}
		ok, err := s.subs.DeactivateIfUnchanged(ctx, period, notif)
		if err != nil {
			log.Error().Err(err).Str("period_id", period.ID).Msg("Failed to deactivate subscription")
			continue
		}
		if !ok {
			// expires_at moved under us: a renewal won the race. Leave it.
			continue
		}
		deactivated++
		log.Info().
			Str("user_id", period.UserID).
			Str("period_id", period.ID).
			Time("expired_at", period.ExpiresAt).
			Msg("Subscription deactivated")
	}
	return deactivated
}
