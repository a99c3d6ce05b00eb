package services

import (
	"context"
	"time"

	"datematch-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// NotificationStore is the dispatcher's view of the outbox
type NotificationStore interface {
	Enqueue(ctx context.Context, n *models.Notification) error
	Unsent(ctx context.Context, limit int) ([]*models.Notification, error)
	MarkSent(ctx context.Context, ids []string, at time.Time) error
}

// UserStore is the minimal user lookup the dispatcher needs
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// PushSender delivers a notification to a device. Implemented by the APNs
// client wrapper; nil when push is disabled.
type PushSender interface {
	Push(ctx context.Context, deviceToken string, n *models.Notification) error
}

// Dispatcher drains the notification outbox: APNs when the recipient has a
// push token, websocket when they are online. It runs behind the
// transactions that enqueue rows, so webhook handlers never wait on
// delivery fan-out. Delivery is at-least-once; the rows themselves are
// exactly-once.
type Dispatcher struct {
	store    NotificationStore
	users    UserStore
	push     PushSender
	hub      *WSHub
	interval time.Duration
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(store NotificationStore, users UserStore, push PushSender, hub *WSHub, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		store:    store,
		users:    users,
		push:     push,
		hub:      hub,
		interval: interval,
	}
}

// Run loops until the context is cancelled
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", d.interval).Msg("Notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Notification dispatcher stopped")
			return
		case <-ticker.C:
			d.Dispatch(ctx)
		}
	}
}

// Dispatch drains one batch of unsent notifications
func (d *Dispatcher) Dispatch(ctx context.Context) {
	notifs, err := d.store.Unsent(ctx, 100)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load unsent notifications")
		return
	}
	if len(notifs) == 0 {
		return
	}

	sent := make([]string, 0, len(notifs))
	for _, n := range notifs {
		d.deliver(ctx, n)
		sent = append(sent, n.ID)
	}

	if err := d.store.MarkSent(ctx, sent, time.Now()); err != nil {
		log.Error().Err(err).Msg("Failed to mark notifications sent")
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n *models.Notification) {
	if d.hub != nil && d.hub.IsOnline(n.RecipientID) {
		if err := d.hub.SendEvent(n.RecipientID, n.Type, n.Payload); err != nil {
			log.Error().Err(err).Str("recipient_id", n.RecipientID).Msg("Failed to send websocket notification")
		}
	}

	if d.push == nil {
		return
	}
	user, err := d.users.GetByID(ctx, n.RecipientID)
	if err != nil {
		log.Error().Err(err).Str("recipient_id", n.RecipientID).Msg("Failed to load notification recipient")
		return
	}
	if user.PushToken == nil {
		return
	}
	if err := d.push.Push(ctx, *user.PushToken, n); err != nil {
		log.Error().Err(err).Str("recipient_id", n.RecipientID).Msg("Failed to push notification")
	}
}
