package services

import (
	"context"
	"encoding/json"
	"fmt"

	"datematch-backend/internal/models"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
)

var pushTitles = map[string]string{
	models.NotifMatch:                 "It's a match!",
	models.NotifSubscriptionActivated: "Subscription activated",
	models.NotifPaymentFailed:         "Payment failed",
	models.NotifSubscriptionExpired:   "Subscription expired",
	models.NotifNewMessage:            "New message",
}

// APNSPusher delivers notifications through Apple Push Notification service
type APNSPusher struct {
	client *apns2.Client
	topic  string
}

// NewAPNSPusher creates a new APNs pusher from a p12 certificate
func NewAPNSPusher(certFile, certPass, topic string, sandbox bool) (*APNSPusher, error) {
	cert, err := certificate.FromP12File(certFile, certPass)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs certificate: %w", err)
	}

	client := apns2.NewClient(cert).Production()
	if sandbox {
		client = apns2.NewClient(cert).Development()
	}

	return &APNSPusher{client: client, topic: topic}, nil
}

// Push sends one notification to a device token
func (p *APNSPusher) Push(ctx context.Context, deviceToken string, n *models.Notification) error {
	title, ok := pushTitles[n.Type]
	if !ok {
		title = "DateMatch"
	}

	body := payload.NewPayload().AlertTitle(title).Sound("default")
	for k, v := range n.Payload {
		body = body.Custom(k, v)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       p.topic,
		Payload:     data,
	}

	res, err := p.client.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected: %s", res.Reason)
	}
	return nil
}
