package services

import (
	"context"
	"testing"
	"time"

	"datematch-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepDeactivatesLapsedPeriods(t *testing.T) {
	ctx := context.Background()
	store := newMemLedgerStore()
	grace := 30 * time.Minute
	now := time.Now()

	lapsed := activePeriod("u1", now.Add(-2*time.Hour))
	inGrace := activePeriod("u2", now.Add(-10*time.Minute))
	current := activePeriod("u3", now.Add(24*time.Hour))
	for _, p := range []*models.SubscriptionPeriod{lapsed, inGrace, current} {
		store.periods[p.ID] = p
	}

	sweeper := NewSweeper(store, store, grace, time.Minute)
	sweeper.now = func() time.Time { return now }

	assert.Equal(t, 1, sweeper.Sweep(ctx))
	assert.Equal(t, models.PeriodDeactivated, store.periods[lapsed.ID].Status)
	assert.Equal(t, models.PeriodActive, store.periods[inGrace.ID].Status,
		"grace window must shield a just-expired period")
	assert.Equal(t, models.PeriodActive, store.periods[current.ID].Status)

	require.Len(t, store.notifs, 1)
	assert.Equal(t, models.NotifSubscriptionExpired, store.notifs[0].Type)
	assert.Equal(t, "u1", store.notifs[0].RecipientID)

	// Second pass finds nothing left to do.
	assert.Equal(t, 0, sweeper.Sweep(ctx))
	assert.Len(t, store.notifs, 1)
}

func TestSweepLosesToConcurrentRenewal(t *testing.T) {
	ctx := context.Background()
	store := newMemLedgerStore()
	now := time.Now()

	lapsed := activePeriod("u1", now.Add(-2*time.Hour))
	store.periods[lapsed.ID] = lapsed

	// A renewal lands between the candidate read and the conditional
	// deactivation, moving expires_at forward.
	renewedExpiry := now.Add(30 * 24 * time.Hour)
	store.afterCandidates = func() {
		store.mu.Lock()
		defer store.mu.Unlock()
		store.periods[lapsed.ID].ExpiresAt = renewedExpiry
	}

	sweeper := NewSweeper(store, store, 30*time.Minute, time.Minute)
	sweeper.now = func() time.Time { return now }

	assert.Equal(t, 0, sweeper.Sweep(ctx), "stale snapshot must not deactivate a renewed period")
	assert.Equal(t, models.PeriodActive, store.periods[lapsed.ID].Status)
	assert.True(t, store.periods[lapsed.ID].ExpiresAt.Equal(renewedExpiry))
	assert.Empty(t, store.notifs, "no expiry notification when the renewal wins")
}

func TestSweepCancelsStalePaymentRequests(t *testing.T) {
	ctx := context.Background()
	store := newMemLedgerStore()
	now := time.Now()

	stale := &models.PaymentRequest{
		ID:        "p1",
		UserID:    "u1",
		Status:    models.PaymentProcessing,
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(-30 * time.Minute),
	}
	fresh := &models.PaymentRequest{
		ID:        "p2",
		UserID:    "u2",
		Status:    models.PaymentProcessing,
		CreatedAt: now,
		ExpiresAt: now.Add(25 * time.Minute),
	}
	store.requests[stale.ID] = stale
	store.requests[fresh.ID] = fresh

	sweeper := NewSweeper(store, store, 30*time.Minute, time.Minute)
	sweeper.now = func() time.Time { return now }
	sweeper.Sweep(ctx)

	assert.Equal(t, models.PaymentCancelled, store.requests["p1"].Status)
	require.NotNil(t, store.requests["p1"].FailureReason)
	assert.Equal(t, models.ReasonRequestExpired, *store.requests["p1"].FailureReason)
	assert.Equal(t, models.PaymentProcessing, store.requests["p2"].Status)
}
