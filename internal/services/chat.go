package services

import (
	"context"
	"time"

	"datematch-backend/internal/models"

	"github.com/google/uuid"
)

// ChatStore is the chat service's view of message storage
type ChatStore interface {
	ThreadExists(ctx context.Context, chatID string) (bool, error)
	InsertMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, chatID string, limit, offset int) ([]*models.ChatMessage, error)
}

// ChatService handles messaging inside match chat threads. Threads are
// created by match creation and torn down by unmatch; this service only
// ever writes into existing threads.
type ChatService struct {
	chats   ChatStore
	matches MatchStore
	notifs  NotificationStore
}

// NewChatService creates a new chat service
func NewChatService(chats ChatStore, matches MatchStore, notifs NotificationStore) *ChatService {
	return &ChatService{chats: chats, matches: matches, notifs: notifs}
}

// ThreadFor returns the match owning chatID if userID is a member
func (s *ChatService) ThreadFor(ctx context.Context, userID, chatID string) (*models.Match, error) {
	match, err := s.matches.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if match.UserAID != userID && match.UserBID != userID {
		return nil, &models.NotFoundError{Resource: "chat thread"}
	}
	return match, nil
}

// SendMessage appends a message to the thread and enqueues a new-message
// notification for the partner.
func (s *ChatService) SendMessage(ctx context.Context, match *models.Match, senderID, body string) (*models.ChatMessage, error) {
	if body == "" {
		return nil, &models.ValidationError{Field: "body", Message: "required"}
	}

	now := time.Now()
	msg := &models.ChatMessage{
		ID:        uuid.New().String(),
		ChatID:    match.ChatID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: now,
	}
	if err := s.chats.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	notif := &models.Notification{
		ID:          uuid.New().String(),
		RecipientID: match.PartnerOf(senderID),
		Type:        models.NotifNewMessage,
		Payload: map[string]string{
			"chat_id":   match.ChatID,
			"sender_id": senderID,
		},
		CreatedAt: now,
	}
	if err := s.notifs.Enqueue(ctx, notif); err != nil {
		// message is already stored, the send still succeeds
		return msg, nil
	}
	return msg, nil
}

// ListMessages returns a page of messages from the thread
func (s *ChatService) ListMessages(ctx context.Context, chatID string, limit, offset int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.chats.ListMessages(ctx, chatID, limit, offset)
}
