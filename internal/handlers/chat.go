package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"datematch-backend/internal/middleware"
	"datematch-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ChatHandler handles chat HTTP requests
type ChatHandler struct {
	chatService  *services.ChatService
	matchService *services.MatchService
	userService  *services.UserService
	gate         *services.CapabilityGate
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *services.ChatService, matchService *services.MatchService, userService *services.UserService, gate *services.CapabilityGate) *ChatHandler {
	return &ChatHandler{
		chatService:  chatService,
		matchService: matchService,
		userService:  userService,
		gate:         gate,
	}
}

// authorizeAgainstPartner loads both parties and runs the capability gate.
// Returns false after writing the response when the action is not allowed.
func (h *ChatHandler) authorizeAgainstPartner(w http.ResponseWriter, r *http.Request, userID, partnerID string, action services.Action) bool {
	ctx := r.Context()

	actor, err := h.userService.GetByID(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return false
	}
	partner, err := h.userService.GetByID(ctx, partnerID)
	if err != nil {
		respondServiceError(w, err)
		return false
	}

	decision, err := h.gate.Authorize(ctx, actor, action, partner)
	if err != nil {
		respondServiceError(w, err)
		return false
	}
	if !decision.Allowed {
		respondDeny(w, decision.Reason)
		return false
	}
	return true
}

// InitiateChatRequest represents the request body for opening a chat
type InitiateChatRequest struct {
	MatchID string `json:"match_id"`
}

// InitiateChat handles POST /api/v1/chats
func (h *ChatHandler) InitiateChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req InitiateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.MatchID == "" {
		respondError(w, "match_id is required", http.StatusBadRequest)
		return
	}

	match, err := h.matchService.MatchByID(ctx, userID, req.MatchID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if !h.authorizeAgainstPartner(w, r, userID, match.PartnerOf(userID), services.ActionInitiateChat) {
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"chat_id": match.ChatID})
}

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	Body string `json:"body"`
}

// SendMessage handles POST /api/v1/chats/{chat_id}/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	chatID := chi.URLParam(r, "chat_id")

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	match, err := h.chatService.ThreadFor(ctx, userID, chatID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if !h.authorizeAgainstPartner(w, r, userID, match.PartnerOf(userID), services.ActionSendMessage) {
		return
	}

	msg, err := h.chatService.SendMessage(ctx, match, userID, req.Body)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("chat_id", chatID).
			Msg("Failed to send message")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, msg)
}

// ListMessages handles GET /api/v1/chats/{chat_id}/messages
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	chatID := chi.URLParam(r, "chat_id")

	if _, err := h.chatService.ThreadFor(ctx, userID, chatID); err != nil {
		respondServiceError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	msgs, err := h.chatService.ListMessages(ctx, chatID, limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, msgs)
}
