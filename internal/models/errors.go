package models

import "fmt"

// Deny reasons returned by the capability gate.
const (
	DenySubscriptionRequired = "SUBSCRIPTION_REQUIRED"
	DenyGenderMismatch       = "GENDER_MISMATCH"
	DenyAccountLocked        = "ACCOUNT_LOCKED"
)

// Failure reasons recorded on payment requests.
const (
	ReasonAmountMismatch = "AMOUNT_MISMATCH"
	ReasonRequestExpired = "REQUEST_EXPIRED"
)

// ValidationError rejects malformed input synchronously (bad amount,
// bad phone format). Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ConflictError marks conditions resolved by returning existing state
// rather than failing: a duplicate pending request, an already-completed
// payment.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NotFoundError marks a missing record.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// PolicyDeniedError is a capability gate refusal. Reason is one of the
// Deny* constants and is surfaced verbatim to the client.
type PolicyDeniedError struct {
	Reason string
}

func (e *PolicyDeniedError) Error() string {
	return "denied: " + e.Reason
}

// ExternalServiceError wraps a gateway failure during payment initiation.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// StaleRequestError marks a late gateway callback against a payment
// request that already auto-cancelled.
type StaleRequestError struct {
	ExternalRef string
}

func (e *StaleRequestError) Error() string {
	return "payment request expired: " + e.ExternalRef
}
