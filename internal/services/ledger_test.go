package services

import (
	"context"
	"testing"
	"time"

	"datematch-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activePeriod(userID string, expiresAt time.Time) *models.SubscriptionPeriod {
	return &models.SubscriptionPeriod{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    models.PeriodActive,
		StartsAt:  expiresAt.Add(-30 * 24 * time.Hour),
		ExpiresAt: expiresAt,
	}
}

func TestPeriodActiveAt(t *testing.T) {
	grace := 30 * time.Minute
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := activePeriod("u1", expiry)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"well before expiry", expiry.Add(-24 * time.Hour), true},
		{"at expiry, inside grace", expiry, true},
		{"last instant of grace", expiry.Add(grace - time.Nanosecond), true},
		{"grace boundary is exclusive", expiry.Add(grace), false},
		{"after grace", expiry.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeriodActiveAt(p, tt.at, grace))
		})
	}

	t.Run("nil period", func(t *testing.T) {
		assert.False(t, PeriodActiveAt(nil, expiry.Add(-time.Hour), grace))
	})

	t.Run("deactivated period never active", func(t *testing.T) {
		deact := activePeriod("u1", expiry)
		deact.Status = models.PeriodDeactivated
		assert.False(t, PeriodActiveAt(deact, expiry.Add(-time.Hour), grace))
	})
}

func TestLedgerIsActive(t *testing.T) {
	ctx := context.Background()
	store := newMemLedgerStore()
	grace := 30 * time.Minute
	svc := NewLedgerService(store, grace)
	now := time.Now()

	t.Run("no period at all", func(t *testing.T) {
		active, err := svc.IsActive(ctx, "nobody", now)
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("current period governs", func(t *testing.T) {
		p := activePeriod("u1", now.Add(10*24*time.Hour))
		store.periods[p.ID] = p

		active, err := svc.IsActive(ctx, "u1", now)
		require.NoError(t, err)
		assert.True(t, active)

		active, err = svc.IsActive(ctx, "u1", now.Add(11*24*time.Hour))
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("latest period wins over retired ones", func(t *testing.T) {
		old := activePeriod("u2", now.Add(-time.Hour))
		old.Status = models.PeriodDeactivated
		fresh := activePeriod("u2", now.Add(24*time.Hour))
		store.periods[old.ID] = old
		store.periods[fresh.ID] = fresh

		active, err := svc.IsActive(ctx, "u2", now)
		require.NoError(t, err)
		assert.True(t, active)
	})
}
