package models

import "time"

// Gender values accepted at registration.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// User represents a registered user in the system
type User struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	DisplayName string    `json:"display_name"`
	Gender      string    `json:"gender"`
	// Preferences lists the genders this user wants to be matched with.
	Preferences []string `json:"preferences"`
	PushToken   *string  `json:"push_token,omitempty"`
	Locked      bool     `json:"locked"`
	// Subscription snapshot columns. Advisory denormalization only: the
	// subscription_periods table is the source of truth, these exist so
	// profile reads do not need a join.
	SubscriptionStatus    string     `json:"subscription_status"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	LastPaymentRef        *string    `json:"last_payment_ref,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

// WantsGender reports whether gender is in the user's preference set.
func (u *User) WantsGender(gender string) bool {
	for _, g := range u.Preferences {
		if g == gender {
			return true
		}
	}
	return false
}

// PaymentRequest statuses.
const (
	PaymentInitiated  = "initiated"
	PaymentProcessing = "processing"
	PaymentCompleted  = "completed"
	PaymentFailed     = "failed"
	PaymentCancelled  = "cancelled"
)

// PaymentRequest represents one outbound mobile-money charge attempt.
// At most one request per user may be in initiated/processing at a time;
// external_ref is globally unique once the gateway assigns it.
type PaymentRequest struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	PhoneNumber   string     `json:"phone_number"`
	Amount        int64      `json:"amount"`
	ExternalRef   *string    `json:"external_ref,omitempty"`
	Status        string     `json:"status"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
}

// Pending reports whether the request is still waiting on the gateway.
func (p *PaymentRequest) Pending() bool {
	return p.Status == PaymentInitiated || p.Status == PaymentProcessing
}

// Terminal reports whether the request has reached a final state.
func (p *PaymentRequest) Terminal() bool {
	return p.Status == PaymentCompleted || p.Status == PaymentFailed || p.Status == PaymentCancelled
}

// SubscriptionPeriod statuses.
const (
	PeriodActive      = "active"
	PeriodDeactivated = "deactivated"
)

// SubscriptionPeriod is a paid entitlement interval. Rows are append-only;
// only the sweeper flips status to deactivated.
type SubscriptionPeriod struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Status          string    `json:"status"`
	StartsAt        time.Time `json:"starts_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	SourcePaymentID string    `json:"source_payment_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// Interest is a directional like from one user toward another.
type Interest struct {
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Match represents a mutual-interest pair. The edge is canonical:
// user_a_id is always the lexicographically smaller id, so a pair can
// exist at most once.
type Match struct {
	ID        string    `json:"id"`
	UserAID   string    `json:"user_a_id"`
	UserBID   string    `json:"user_b_id"`
	ChatID    string    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CanonicalPair orders two user ids into the (user_a, user_b) form used
// to key match edges.
func CanonicalPair(x, y string) (string, string) {
	if x > y {
		return y, x
	}
	return x, y
}

// PartnerOf returns the other member of the match.
func (m *Match) PartnerOf(userID string) string {
	if m.UserAID == userID {
		return m.UserBID
	}
	return m.UserAID
}

// ChatMessage is a message inside a match's chat thread.
type ChatMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Photo represents a profile photo stored in S3.
type Photo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	S3URL     string    `json:"s3_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification types.
const (
	NotifMatch                 = "match"
	NotifSubscriptionActivated = "subscription_activated"
	NotifPaymentFailed         = "payment_failed"
	NotifSubscriptionExpired   = "subscription_expired"
	NotifNewMessage            = "new_message"
)

// Notification is a write-only outbox row. Rows are inserted inside the
// transaction that produced the event, which is what makes "exactly one
// notification" hold; delivery by the dispatcher is at-least-once.
type Notification struct {
	ID          string            `json:"id"`
	RecipientID string            `json:"recipient_id"`
	Type        string            `json:"type"`
	Payload     map[string]string `json:"payload"`
	CreatedAt   time.Time         `json:"created_at"`
	SentAt      *time.Time        `json:"sent_at,omitempty"`
}
