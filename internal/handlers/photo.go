package handlers

import (
	"encoding/json"
	"net/http"

	"datematch-backend/internal/middleware"
	"datematch-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// PhotoHandler handles profile photo HTTP requests
type PhotoHandler struct {
	photoService *services.PhotoService
	userService  *services.UserService
	gate         *services.CapabilityGate
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photoService *services.PhotoService, userService *services.UserService, gate *services.CapabilityGate) *PhotoHandler {
	return &PhotoHandler{
		photoService: photoService,
		userService:  userService,
		gate:         gate,
	}
}

// UploadRequest represents a request to get a pre-signed upload URL
type UploadRequest struct {
	ContentType string `json:"content_type"`
}

// UploadPhoto handles POST /api/v1/photos/upload
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}

	resp, err := h.photoService.GetPreSignedURL(ctx, userID, req.ContentType)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to create upload URL")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetPhotos handles GET /api/v1/users/{user_id}/photos
func (h *PhotoHandler) GetPhotos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targetID := chi.URLParam(r, "user_id")

	photos, err := h.photoService.GetByUser(ctx, targetID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, photos)
}

// LikePhoto handles POST /api/v1/photos/{photo_id}/like
func (h *PhotoHandler) LikePhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	photoID := chi.URLParam(r, "photo_id")

	photo, err := h.photoService.GetByID(ctx, photoID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if photo.UserID == userID {
		respondError(w, "cannot like your own photo", http.StatusBadRequest)
		return
	}

	actor, err := h.userService.GetByID(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	owner, err := h.userService.GetByID(ctx, photo.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	decision, err := h.gate.Authorize(ctx, actor, services.ActionLikePhoto, owner)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !decision.Allowed {
		respondDeny(w, decision.Reason)
		return
	}

	liked, err := h.photoService.Like(ctx, photoID, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}
