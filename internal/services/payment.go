package services

import (
	"context"
	"errors"
	"regexp"
	"time"

	"datematch-backend/internal/models"
	"datematch-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PaymentResult statuses, as normalized by the gateway adapter.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// PaymentResult is the canonical form of a gateway callback. The adapter
// owns parsing and validating the raw payload; by the time a result reaches
// the reconciler it is structurally sound.
type PaymentResult struct {
	ExternalRef string
	Amount      int64
	Status      string
	Reason      string
	PayerPhone  string
	ReceiptCode string
}

// PaymentStore is the tracker/reconciler's view of payment request storage
type PaymentStore interface {
	CreatePending(ctx context.Context, req *models.PaymentRequest) error
	PendingByUser(ctx context.Context, userID string) (*models.PaymentRequest, error)
	GetByExternalRef(ctx context.Context, ref string) (*models.PaymentRequest, error)
	SetProcessing(ctx context.Context, id, externalRef string) error
	Cancel(ctx context.Context, id string) error
	CancelStale(ctx context.Context, now time.Time) (int64, error)
	CompleteAndActivate(ctx context.Context, p repository.CompleteParams) (*models.SubscriptionPeriod, error)
	MarkFailed(ctx context.Context, externalRef, reason string, notif *models.Notification) (*models.PaymentRequest, error)
}

// PaymentGateway initiates charges with the external mobile-money service.
// The adapter owns request shaping, auth and bounded retry; the core only
// needs the external reference back.
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, phoneNumber string, amount int64) (string, error)
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// PaymentService drives the purchase lifecycle: it tracks outbound payment
// requests and reconciles the gateway's asynchronous results against the
// subscription ledger.
type PaymentService struct {
	payments   PaymentStore
	gateway    PaymentGateway
	price      int64
	requestTTL time.Duration
	duration   time.Duration
	now        func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(payments PaymentStore, gateway PaymentGateway, price int64, requestTTL, duration time.Duration) *PaymentService {
	return &PaymentService{
		payments:   payments,
		gateway:    gateway,
		price:      price,
		requestTTL: requestTTL,
		duration:   duration,
		now:        time.Now,
	}
}

// CreatePendingRequest starts a subscription purchase. The amount must equal
// the fixed price. If the user already has an in-flight request the existing
// one is returned instead of charging twice. The gateway call happens after
// the row exists and outside any transaction, so no lock is held across the
// network round trip.
func (s *PaymentService) CreatePendingRequest(ctx context.Context, userID, phoneNumber string, amount int64) (*models.PaymentRequest, error) {
	if amount != s.price {
		return nil, &models.ValidationError{Field: "amount", Message: "subscription price is fixed"}
	}
	if !phonePattern.MatchString(phoneNumber) {
		return nil, &models.ValidationError{Field: "phone_number", Message: "not a valid phone number"}
	}

	now := s.now()

	if existing, err := s.pendingFor(ctx, userID, now); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	req := &models.PaymentRequest{
		ID:          uuid.New().String(),
		UserID:      userID,
		PhoneNumber: phoneNumber,
		Amount:      amount,
		Status:      models.PaymentInitiated,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.requestTTL),
	}
	if err := s.payments.CreatePending(ctx, req); err != nil {
		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			// Lost a race against another request from the same user.
			if existing, exErr := s.pendingFor(ctx, userID, now); exErr == nil && existing != nil {
				return existing, nil
			}
			return nil, err
		}
		return nil, err
	}

	ref, err := s.gateway.InitiatePayment(ctx, phoneNumber, amount)
	if err != nil {
		// Never leave a request that can block future purchases.
		if cancelErr := s.payments.Cancel(ctx, req.ID); cancelErr != nil {
			log.Error().Err(cancelErr).Str("request_id", req.ID).Msg("Failed to cancel unreachable payment request")
		}
		return nil, &models.ExternalServiceError{Service: "payment gateway", Err: err}
	}

	if err := s.payments.SetProcessing(ctx, req.ID, ref); err != nil {
		return nil, err
	}
	req.Status = models.PaymentProcessing
	req.ExternalRef = &ref

	log.Info().
		Str("user_id", userID).
		Str("request_id", req.ID).
		Str("external_ref", ref).
		Msg("Payment initiated")
	return req, nil
}

// pendingFor returns the user's usable in-flight request, lazily cancelling
// one that sat past its expiry.
func (s *PaymentService) pendingFor(ctx context.Context, userID string, now time.Time) (*models.PaymentRequest, error) {
	pending, err := s.payments.PendingByUser(ctx, userID)
	if err != nil {
		var nf *models.NotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, err
	}
	if now.After(pending.ExpiresAt) {
		if err := s.payments.Cancel(ctx, pending.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return pending, nil
}

// Reconcile applies one gateway result. Safe under at-least-once delivery:
// reprocessing the same result returns the recorded outcome with no further
// side effects, with the storage-level conditional update as the final
// arbiter when two deliveries race.
func (s *PaymentService) Reconcile(ctx context.Context, result *PaymentResult) (*models.PaymentRequest, error) {
	req, err := s.payments.GetByExternalRef(ctx, result.ExternalRef)
	if err != nil {
		var nf *models.NotFoundError
		if errors.As(err, &nf) {
			// Stale or forged callback. Acknowledge, change nothing.
			log.Warn().Str("external_ref", result.ExternalRef).Msg("Callback for unknown payment request")
			return nil, &models.NotFoundError{Resource: "payment request"}
		}
		return nil, err
	}

	if req.Status == models.PaymentCompleted || req.Status == models.PaymentFailed {
		// Duplicate delivery: identical final state, no extra notification.
		return req, nil
	}
	if req.Status == models.PaymentCancelled {
		log.Warn().Str("external_ref", result.ExternalRef).Msg("Callback for expired payment request")
		return nil, &models.StaleRequestError{ExternalRef: result.ExternalRef}
	}

	now := s.now()
	if now.After(req.ExpiresAt) {
		if err := s.payments.Cancel(ctx, req.ID); err != nil {
			return nil, err
		}
		log.Warn().Str("external_ref", result.ExternalRef).Msg("Callback for expired payment request")
		return nil, &models.StaleRequestError{ExternalRef: result.ExternalRef}
	}

	switch result.Status {
	case ResultSuccess:
		if result.Amount != s.price {
			return s.fail(ctx, result.ExternalRef, models.ReasonAmountMismatch)
		}
		return s.complete(ctx, result, now)
	default:
		reason := result.Reason
		if reason == "" {
			reason = "PAYMENT_FAILED"
		}
		return s.fail(ctx, result.ExternalRef, reason)
	}
}

func (s *PaymentService) complete(ctx context.Context, result *PaymentResult, now time.Time) (*models.PaymentRequest, error) {
	notif := &models.Notification{
		ID:   uuid.New().String(),
		Type: models.NotifSubscriptionActivated,
		Payload: map[string]string{
			"external_ref": result.ExternalRef,
			"receipt_code": result.ReceiptCode,
		},
		CreatedAt: now,
	}
	period, err := s.payments.CompleteAndActivate(ctx, repository.CompleteParams{
		ExternalRef:  result.ExternalRef,
		ReceiptCode:  result.ReceiptCode,
		Duration:     s.duration,
		Now:          now,
		Notification: notif,
	})
	if err != nil {
		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			// A concurrent delivery settled the request first. Its outcome
			// stands.
			return s.payments.GetByExternalRef(ctx, result.ExternalRef)
		}
		return nil, err
	}

	log.Info().
		Str("external_ref", result.ExternalRef).
		Str("period_id", period.ID).
		Time("expires_at", period.ExpiresAt).
		Msg("Payment completed, subscription extended")
	return s.payments.GetByExternalRef(ctx, result.ExternalRef)
}

func (s *PaymentService) fail(ctx context.Context, externalRef, reason string) (*models.PaymentRequest, error) {
	notif := &models.Notification{
		ID:        uuid.New().String(),
		Type:      models.NotifPaymentFailed,
		Payload:   map[string]string{"reason": reason},
		CreatedAt: s.now(),
	}
	req, err := s.payments.MarkFailed(ctx, externalRef, reason, notif)
	if err != nil {
		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			return s.payments.GetByExternalRef(ctx, externalRef)
		}
		return nil, err
	}
	log.Info().Str("external_ref", externalRef).Str("reason", reason).Msg("Payment failed")
	return req, nil
}

// Price returns the fixed subscription price
func (s *PaymentService) Price() int64 {
	return s.price
}
