package services

import (
	"context"
	"testing"
	"time"

	"datematch-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser(id, gender string, wants ...string) *models.User {
	return &models.User{ID: id, Gender: gender, Preferences: wants}
}

func TestCapabilityGateAuthorize(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	store := newMemLedgerStore()
	subscribed := activePeriod("sub-m", now.Add(24*time.Hour))
	store.periods[subscribed.ID] = subscribed

	gate := NewCapabilityGate(NewLedgerService(store, 30*time.Minute))
	gate.now = func() time.Time { return now }

	man := func(id string) *models.User { return testUser(id, "male", "female") }
	woman := func(id string) *models.User { return testUser(id, "female", "male") }

	tests := []struct {
		name   string
		actor  *models.User
		action Action
		target *models.User
		want   Decision
	}{
		{
			name:   "subscribed compatible user can message",
			actor:  man("sub-m"),
			action: ActionSendMessage,
			target: woman("w1"),
			want:   Decision{Allowed: true},
		},
		{
			name:   "subscribed compatible user can initiate a chat",
			actor:  man("sub-m"),
			action: ActionInitiateChat,
			target: woman("w1"),
			want:   Decision{Allowed: true},
		},
		{
			name:   "unsubscribed user cannot message",
			actor:  man("free-m"),
			action: ActionSendMessage,
			target: woman("w1"),
			want:   Decision{Allowed: false, Reason: models.DenySubscriptionRequired},
		},
		{
			name:   "unsubscribed user can still like a profile",
			actor:  man("free-m"),
			action: ActionLikeProfile,
			target: woman("w1"),
			want:   Decision{Allowed: true},
		},
		{
			name:   "unsubscribed user can still like a photo",
			actor:  man("free-m"),
			action: ActionLikePhoto,
			target: woman("w1"),
			want:   Decision{Allowed: true},
		},
		{
			name:   "gender mismatch denies even with a subscription",
			actor:  man("sub-m"),
			action: ActionSendMessage,
			target: testUser("m2", "male", "female"),
			want:   Decision{Allowed: false, Reason: models.DenyGenderMismatch},
		},
		{
			name:   "one-sided preference is still a mismatch",
			actor:  man("sub-m"),
			action: ActionSendMessage,
			target: testUser("w2", "female", "female"),
			want:   Decision{Allowed: false, Reason: models.DenyGenderMismatch},
		},
		{
			name:   "mismatch outranks missing subscription",
			actor:  man("free-m"),
			action: ActionSendMessage,
			target: testUser("m3", "male", "female"),
			want:   Decision{Allowed: false, Reason: models.DenyGenderMismatch},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.Authorize(ctx, tt.actor, tt.action, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("locked account is denied before anything else", func(t *testing.T) {
		locked := man("sub-m")
		locked.Locked = true
		got, err := gate.Authorize(ctx, locked, ActionLikeProfile, woman("w1"))
		require.NoError(t, err)
		assert.Equal(t, Decision{Allowed: false, Reason: models.DenyAccountLocked}, got)
	})

	t.Run("grace period keeps access after expiry", func(t *testing.T) {
		lapsing := activePeriod("grace-m", now.Add(-10*time.Minute))
		store.periods[lapsing.ID] = lapsing

		got, err := gate.Authorize(ctx, man("grace-m"), ActionSendMessage, woman("w1"))
		require.NoError(t, err)
		assert.True(t, got.Allowed)

		gate.now = func() time.Time { return now.Add(25 * time.Minute) }
		got, err = gate.Authorize(ctx, man("grace-m"), ActionSendMessage, woman("w1"))
		require.NoError(t, err)
		assert.Equal(t, Decision{Allowed: false, Reason: models.DenySubscriptionRequired}, got)
	})
}
