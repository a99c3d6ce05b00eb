package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"datematch-backend/internal/gateway"
	"datematch-backend/internal/middleware"
	"datematch-backend/internal/models"
	"datematch-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// PaymentHandler handles subscription purchase and gateway callbacks
type PaymentHandler struct {
	paymentService *services.PaymentService
	ledger         *services.LedgerService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *services.PaymentService, ledger *services.LedgerService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		ledger:         ledger,
	}
}

// PurchaseRequest represents the request body for buying a subscription
type PurchaseRequest struct {
	PhoneNumber string `json:"phone_number"`
	Amount      int64  `json:"amount"`
}

// Purchase handles POST /api/v1/subscriptions
func (h *PaymentHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payment, err := h.paymentService.CreatePendingRequest(ctx, userID, req.PhoneNumber, req.Amount)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Msg("Failed to create payment request")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, payment)
}

// SubscriptionStatus is the response for GET /api/v1/subscriptions/me
type SubscriptionStatus struct {
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Status handles GET /api/v1/subscriptions/me
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	status := SubscriptionStatus{}
	period, err := h.ledger.CurrentPeriod(ctx, userID)
	if err != nil {
		var nf *models.NotFoundError
		if !errors.As(err, &nf) {
			respondServiceError(w, err)
			return
		}
	} else {
		status.ExpiresAt = &period.ExpiresAt
	}

	active, err := h.ledger.IsActive(ctx, userID, time.Now())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	status.Active = active

	respondJSON(w, http.StatusOK, status)
}

// callbackAck is the body the gateway expects back from its callback URL.
type callbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// Callback handles POST /api/v1/payments/callback. The gateway retries on
// anything but a prompt 200, so business-level rejections (unknown
// reference, expired request, duplicate delivery) are still acknowledged;
// only a payload the adapter cannot parse gets a 400.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	result, err := gateway.ParseCallback(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Malformed gateway callback")
		respondError(w, "malformed callback", http.StatusBadRequest)
		return
	}

	if _, err := h.paymentService.Reconcile(ctx, result); err != nil {
		var (
			nf    *models.NotFoundError
			stale *models.StaleRequestError
		)
		if !errors.As(err, &nf) && !errors.As(err, &stale) {
			log.Error().
				Err(err).
				Str("external_ref", result.ExternalRef).
				Msg("Failed to reconcile payment")
			respondError(w, "reconciliation failed", http.StatusInternalServerError)
			return
		}
		// Known-stale or unknown reference: logged by the reconciler,
		// acknowledged here so the gateway stops retrying.
	}

	respondJSON(w, http.StatusOK, callbackAck{ResultCode: 0, ResultDesc: "Accepted"})
}
