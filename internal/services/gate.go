package services

import (
	"context"
	"time"

	"datematch-backend/internal/models"
)

// Action is an interaction a user can attempt against another user.
type Action string

const (
	ActionSendMessage  Action = "send_message"
	ActionInitiateChat Action = "initiate_chat"
	ActionLikeProfile  Action = "like_profile"
	ActionLikePhoto    Action = "like_photo"
)

// requiresSubscription says which actions are behind the paywall. Liking is
// free; talking is not.
func (a Action) requiresSubscription() bool {
	return a == ActionSendMessage || a == ActionInitiateChat
}

// Decision is the gate's verdict. Reason is set only on denial and is one of
// the models.Deny* constants, surfaced verbatim to the client.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// CapabilityGate is the one authorization decision point for every
// interaction endpoint. Handlers never re-derive "is subscribed" or "is
// compatible" themselves; two endpoints disagreeing about those was exactly
// the failure mode this exists to remove.
type CapabilityGate struct {
	ledger *LedgerService
	now    func() time.Time
}

// NewCapabilityGate creates a new capability gate
func NewCapabilityGate(ledger *LedgerService) *CapabilityGate {
	return &CapabilityGate{ledger: ledger, now: time.Now}
}

// Authorize decides whether actor may perform action against target.
// Check order: account lock, gender compatibility, then subscription for
// actions that need one. A gender mismatch denies regardless of
// subscription state.
func (g *CapabilityGate) Authorize(ctx context.Context, actor *models.User, action Action, target *models.User) (Decision, error) {
	if actor.Locked {
		return deny(models.DenyAccountLocked), nil
	}

	if !compatible(actor, target) {
		return deny(models.DenyGenderMismatch), nil
	}

	if action.requiresSubscription() {
		active, err := g.ledger.IsActive(ctx, actor.ID, g.now())
		if err != nil {
			return Decision{}, err
		}
		if !active {
			return deny(models.DenySubscriptionRequired), nil
		}
	}

	return allow(), nil
}

// compatible requires both users to list the other's gender in their
// preference set.
func compatible(actor, target *models.User) bool {
	return actor.WantsGender(target.Gender) && target.WantsGender(actor.Gender)
}
