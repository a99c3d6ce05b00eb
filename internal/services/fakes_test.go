package services

import (
	"context"
	"sync"
	"time"

	"datematch-backend/internal/models"
	"datematch-backend/internal/repository"

	"github.com/google/uuid"
)

// memInterestStore is an in-memory InterestStore with the same idempotency
// semantics as the SQL implementation.
type memInterestStore struct {
	mu    sync.Mutex
	edges map[[2]string]bool
}

func newMemInterestStore() *memInterestStore {
	return &memInterestStore{edges: make(map[[2]string]bool)}
}

func (s *memInterestStore) Add(_ context.Context, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{from, to}
	if s.edges[key] {
		return false, nil
	}
	s.edges[key] = true
	return true, nil
}

func (s *memInterestStore) Exists(_ context.Context, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edges[[2]string{from, to}], nil
}

func (s *memInterestStore) ReceivedBy(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for key := range s.edges {
		if key[1] == userID {
			ids = append(ids, key[0])
		}
	}
	return ids, nil
}

// memMatchStore is an in-memory MatchStore. The canonical pair key
// arbitrates concurrent creation exactly like the primary key does in SQL.
type memMatchStore struct {
	mu      sync.Mutex
	matches map[[2]string]*models.Match
	threads map[string]bool
	notifs  []*models.Notification
}

func newMemMatchStore() *memMatchStore {
	return &memMatchStore{
		matches: make(map[[2]string]*models.Match),
		threads: make(map[string]bool),
	}
}

func (s *memMatchStore) CreateWithChat(_ context.Context, match *models.Match, notifs []*models.Notification) (bool, *models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{match.UserAID, match.UserBID}
	if existing, ok := s.matches[key]; ok {
		return false, existing, nil
	}
	s.matches[key] = match
	s.threads[match.ChatID] = true
	s.notifs = append(s.notifs, notifs...)
	return true, match, nil
}

func (s *memMatchStore) GetByID(_ context.Context, id string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, &models.NotFoundError{Resource: "match"}
}

func (s *memMatchStore) GetByPair(_ context.Context, x, y string) (*models.Match, error) {
	a, b := models.CanonicalPair(x, y)
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.matches[[2]string{a, b}]; ok {
		return m, nil
	}
	return nil, &models.NotFoundError{Resource: "match"}
}

func (s *memMatchStore) GetByChatID(_ context.Context, chatID string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.ChatID == chatID {
			return m, nil
		}
	}
	return nil, &models.NotFoundError{Resource: "match"}
}

func (s *memMatchStore) ListByUser(_ context.Context, userID string) ([]*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Match
	for _, m := range s.matches {
		if m.UserAID == userID || m.UserBID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMatchStore) DeleteWithChat(_ context.Context, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, m := range s.matches {
		if m.ID == matchID {
			delete(s.matches, key)
			delete(s.threads, m.ChatID)
			return nil
		}
	}
	return &models.NotFoundError{Resource: "match"}
}

// memLedgerStore is an in-memory PaymentStore plus SubscriptionStore so the
// reconciler and sweeper tests share one consistent state. Conditional
// updates mirror the SQL implementation's guards.
type memLedgerStore struct {
	mu       sync.Mutex
	requests map[string]*models.PaymentRequest
	periods  map[string]*models.SubscriptionPeriod
	notifs   []*models.Notification

	// afterCandidates, when set, runs between the sweeper's read and its
	// conditional deactivation, to stage race scenarios.
	afterCandidates func()
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{
		requests: make(map[string]*models.PaymentRequest),
		periods:  make(map[string]*models.SubscriptionPeriod),
	}
}

func (s *memLedgerStore) CreatePending(_ context.Context, req *models.PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.UserID == req.UserID && r.Pending() {
			return &models.ConflictError{Message: "user already has a pending payment request"}
		}
	}
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *memLedgerStore) PendingByUser(_ context.Context, userID string) (*models.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.UserID == userID && r.Pending() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, &models.NotFoundError{Resource: "payment request"}
}

func (s *memLedgerStore) GetByExternalRef(_ context.Context, ref string) (*models.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.byRefLocked(ref); r != nil {
		cp := *r
		return &cp, nil
	}
	return nil, &models.NotFoundError{Resource: "payment request"}
}

func (s *memLedgerStore) byRefLocked(ref string) *models.PaymentRequest {
	for _, r := range s.requests {
		if r.ExternalRef != nil && *r.ExternalRef == ref {
			return r
		}
	}
	return nil
}

func (s *memLedgerStore) SetProcessing(_ context.Context, id, externalRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.Status != models.PaymentInitiated {
		return &models.ConflictError{Message: "payment request is no longer initiated"}
	}
	r.Status = models.PaymentProcessing
	r.ExternalRef = &externalRef
	return nil
}

func (s *memLedgerStore) Cancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.requests[id]; ok && r.Pending() {
		r.Status = models.PaymentCancelled
	}
	return nil
}

func (s *memLedgerStore) CancelStale(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.requests {
		if r.Pending() && !r.ExpiresAt.After(now) {
			r.Status = models.PaymentCancelled
			reason := models.ReasonRequestExpired
			r.FailureReason = &reason
			n++
		}
	}
	return n, nil
}

func (s *memLedgerStore) CompleteAndActivate(_ context.Context, p repository.CompleteParams) (*models.SubscriptionPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := s.byRefLocked(p.ExternalRef)
	if req == nil || !req.Pending() || !req.ExpiresAt.After(p.Now) {
		return nil, &models.ConflictError{Message: "payment request already settled"}
	}
	req.Status = models.PaymentCompleted

	current := s.currentPeriodLocked(req.UserID)
	if current != nil && current.Status == models.PeriodActive && current.ExpiresAt.After(p.Now) {
		current.ExpiresAt = current.ExpiresAt.Add(p.Duration)
		if p.Notification != nil {
			p.Notification.RecipientID = req.UserID
			s.notifs = append(s.notifs, p.Notification)
		}
		cp := *current
		return &cp, nil
	}

	for _, old := range s.periods {
		if old.UserID == req.UserID {
			old.Status = models.PeriodDeactivated
		}
	}
	fresh := &models.SubscriptionPeriod{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Status:          models.PeriodActive,
		StartsAt:        p.Now,
		ExpiresAt:       p.Now.Add(p.Duration),
		SourcePaymentID: req.ID,
		CreatedAt:       p.Now,
	}
	s.periods[fresh.ID] = fresh
	if p.Notification != nil {
		p.Notification.RecipientID = req.UserID
		s.notifs = append(s.notifs, p.Notification)
	}
	cp := *fresh
	return &cp, nil
}

func (s *memLedgerStore) MarkFailed(_ context.Context, externalRef, reason string, notif *models.Notification) (*models.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := s.byRefLocked(externalRef)
	if req == nil || !req.Pending() {
		return nil, &models.ConflictError{Message: "payment request already settled"}
	}
	req.Status = models.PaymentFailed
	req.FailureReason = &reason
	if notif != nil {
		notif.RecipientID = req.UserID
		s.notifs = append(s.notifs, notif)
	}
	cp := *req
	return &cp, nil
}

func (s *memLedgerStore) currentPeriodLocked(userID string) *models.SubscriptionPeriod {
	var current *models.SubscriptionPeriod
	for _, p := range s.periods {
		if p.UserID != userID {
			continue
		}
		if current == nil || p.ExpiresAt.After(current.ExpiresAt) {
			current = p
		}
	}
	return current
}

func (s *memLedgerStore) CurrentPeriod(_ context.Context, userID string) (*models.SubscriptionPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.currentPeriodLocked(userID); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, &models.NotFoundError{Resource: "subscription period"}
}

func (s *memLedgerStore) ExpiredCandidates(_ context.Context, cutoff time.Time) ([]*models.SubscriptionPeriod, error) {
	s.mu.Lock()
	var out []*models.SubscriptionPeriod
	for _, p := range s.periods {
		if p.Status == models.PeriodActive && p.ExpiresAt.Before(cutoff) && s.currentPeriodLocked(p.UserID).ID == p.ID {
			cp := *p
			out = append(out, &cp)
		}
	}
	s.mu.Unlock()
	if s.afterCandidates != nil {
		s.afterCandidates()
	}
	return out, nil
}

func (s *memLedgerStore) DeactivateIfUnchanged(_ context.Context, period *models.SubscriptionPeriod, notif *models.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.periods[period.ID]
	if !ok || stored.Status != models.PeriodActive || !stored.ExpiresAt.Equal(period.ExpiresAt) {
		return false, nil
	}
	stored.Status = models.PeriodDeactivated
	if notif != nil {
		s.notifs = append(s.notifs, notif)
	}
	return true, nil
}

// stubGateway is a canned PaymentGateway.
type stubGateway struct {
	mu    sync.Mutex
	refs  []string
	calls int
	err   error
}

func (g *stubGateway) InitiatePayment(_ context.Context, _ string, _ int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	ref := uuid.New().String()
	g.refs = append(g.refs, ref)
	return ref, nil
}
