package services

import (
	"context"
	"time"

	"datematch-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// InterestStore is the coordinator's view of directional like storage
type InterestStore interface {
	Add(ctx context.Context, fromUserID, toUserID string) (bool, error)
	Exists(ctx context.Context, fromUserID, toUserID string) (bool, error)
	ReceivedBy(ctx context.Context, userID string) ([]string, error)
}

// MatchStore is the coordinator's view of match edge storage
type MatchStore interface {
	CreateWithChat(ctx context.Context, match *models.Match, notifs []*models.Notification) (bool, *models.Match, error)
	GetByID(ctx context.Context, id string) (*models.Match, error)
	GetByPair(ctx context.Context, x, y string) (*models.Match, error)
	GetByChatID(ctx context.Context, chatID string) (*models.Match, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Match, error)
	DeleteWithChat(ctx context.Context, matchID string) error
}

// InterestOutcome distinguishes what RecordInterest actually did.
type InterestOutcome string

const (
	OutcomeInterestRecorded InterestOutcome = "interest_recorded"
	OutcomeAlreadyRecorded  InterestOutcome = "already_recorded"
	OutcomeMatched          InterestOutcome = "matched"
)

// InterestResult is the coordinator's answer. NewMatch is true only for the
// request that actually created the edge, so callers can tell a brand-new
// match from an idempotent replay.
type InterestResult struct {
	Outcome  InterestOutcome `json:"outcome"`
	Match    *models.Match   `json:"match,omitempty"`
	NewMatch bool            `json:"new_match,omitempty"`
}

// MatchService records interest and promotes mutual interest into matches
type MatchService struct {
	interests InterestStore
	matches   MatchStore
}

// NewMatchService creates a new match service
func NewMatchService(interests InterestStore, matches MatchStore) *MatchService {
	return &MatchService{interests: interests, matches: matches}
}

// RecordInterest records that fromUserID likes toUserID and, when the
// interest is mutual, creates the match. The interest edge insert is
// idempotent; the match edge insert is exactly-once under concurrency
// because the canonical pair key arbitrates in storage. The losing side of
// a simultaneous mutual like observes the existing edge as success and
// emits no second round of notifications.
func (s *MatchService) RecordInterest(ctx context.Context, fromUserID, toUserID string) (*InterestResult, error) {
	if fromUserID == toUserID {
		return nil, &models.ValidationError{Field: "target", Message: "cannot express interest in yourself"}
	}

	inserted, err := s.interests.Add(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, err
	}

	mutual, err := s.interests.Exists(ctx, toUserID, fromUserID)
	if err != nil {
		return nil, err
	}
	if !mutual {
		if !inserted {
			return &InterestResult{Outcome: OutcomeAlreadyRecorded}, nil
		}
		return &InterestResult{Outcome: OutcomeInterestRecorded}, nil
	}

	a, b := models.CanonicalPair(fromUserID, toUserID)
	now := time.Now()
	match := &models.Match{
		ID:        uuid.New().String(),
		UserAID:   a,
		UserBID:   b,
		ChatID:    uuid.New().String(),
		CreatedAt: now,
	}
	notifs := []*models.Notification{
		matchNotification(a, b, match, now),
		matchNotification(b, a, match, now),
	}

	created, edge, err := s.matches.CreateWithChat(ctx, match, notifs)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info().
			Str("match_id", edge.ID).
			Str("user_a_id", edge.UserAID).
			Str("user_b_id", edge.UserBID).
			Msg("Match created")
	}
	return &InterestResult{Outcome: OutcomeMatched, Match: edge, NewMatch: created}, nil
}

func matchNotification(recipient, partner string, match *models.Match, now time.Time) *models.Notification {
	return &models.Notification{
		ID:          uuid.New().String(),
		RecipientID: recipient,
		Type:        models.NotifMatch,
		Payload: map[string]string{
			"match_id":   match.ID,
			"partner_id": partner,
			"chat_id":    match.ChatID,
		},
		CreatedAt: now,
	}
}

// MatchByID returns a match if userID is a member. Non-members get the
// same answer as a missing match.
func (s *MatchService) MatchByID(ctx context.Context, userID, matchID string) (*models.Match, error) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.UserAID != userID && match.UserBID != userID {
		return nil, &models.NotFoundError{Resource: "match"}
	}
	return match, nil
}

// Unmatch removes a match the user is part of, tearing down its chat thread
func (s *MatchService) Unmatch(ctx context.Context, userID, matchID string) error {
	if _, err := s.MatchByID(ctx, userID, matchID); err != nil {
		return err
	}
	return s.matches.DeleteWithChat(ctx, matchID)
}

// ListMatches lists the user's matches
func (s *MatchService) ListMatches(ctx context.Context, userID string) ([]*models.Match, error) {
	return s.matches.ListByUser(ctx, userID)
}

// MatchByChatID resolves the match owning a chat thread
func (s *MatchService) MatchByChatID(ctx context.Context, chatID string) (*models.Match, error) {
	return s.matches.GetByChatID(ctx, chatID)
}

// Admirers lists users who liked userID
func (s *MatchService) Admirers(ctx context.Context, userID string) ([]string, error) {
	return s.interests.ReceivedBy(ctx, userID)
}
