package handlers

import (
	"encoding/json"
	"net/http"

	"datematch-backend/internal/middleware"
	"datematch-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// LikeHandler handles interest and match HTTP requests
type LikeHandler struct {
	matchService *services.MatchService
	userService  *services.UserService
	gate         *services.CapabilityGate
}

// NewLikeHandler creates a new like handler
func NewLikeHandler(matchService *services.MatchService, userService *services.UserService, gate *services.CapabilityGate) *LikeHandler {
	return &LikeHandler{
		matchService: matchService,
		userService:  userService,
		gate:         gate,
	}
}

// LikeRequest represents the request body for liking a profile
type LikeRequest struct {
	TargetID string `json:"target_id"`
}

// LikeProfile handles POST /api/v1/likes
func (h *LikeHandler) LikeProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req LikeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TargetID == "" {
		respondError(w, "target_id is required", http.StatusBadRequest)
		return
	}

	actor, err := h.userService.GetByID(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	target, err := h.userService.GetByID(ctx, req.TargetID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	decision, err := h.gate.Authorize(ctx, actor, services.ActionLikeProfile, target)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !decision.Allowed {
		respondDeny(w, decision.Reason)
		return
	}

	result, err := h.matchService.RecordInterest(ctx, userID, req.TargetID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("target_id", req.TargetID).
			Msg("Failed to record interest")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ListMatches handles GET /api/v1/matches
func (h *LikeHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	matches, err := h.matchService.ListMatches(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, matches)
}

// ListAdmirers handles GET /api/v1/likes/received
func (h *LikeHandler) ListAdmirers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	ids, err := h.matchService.Admirers(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string][]string{"user_ids": ids})
}

// Unmatch handles DELETE /api/v1/matches/{match_id}
func (h *LikeHandler) Unmatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	matchID := chi.URLParam(r, "match_id")

	if matchID == "" {
		respondError(w, "match_id is required", http.StatusBadRequest)
		return
	}

	if err := h.matchService.Unmatch(ctx, userID, matchID); err != nil {
		respondServiceError(w, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("match_id", matchID).
		Msg("Match removed")

	w.WriteHeader(http.StatusNoContent)
}
