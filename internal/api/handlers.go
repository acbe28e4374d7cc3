package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storycove/mediagen/internal/db"
	"github.com/storycove/mediagen/internal/media"
	"github.com/storycove/mediagen/internal/models"
	"github.com/storycove/mediagen/internal/queue"
	"github.com/storycove/mediagen/internal/quota"
)

type Handler struct {
	db    *db.DB
	media *media.Service
	queue *queue.Queue
}

// NewHandler wires the HTTP surface. q may be nil when the broker is
// unreachable; queue stats then report unavailable.
func NewHandler(database *db.DB, svc *media.Service, q *queue.Queue) *Handler {
	return &Handler{
		db:    database,
		media: svc,
		queue: q,
	}
}

// CreateStory handles POST /v1/stories
func (h *Handler) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req models.CreateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validate
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "content is required")
		return
	}

	now := time.Now().UTC()
	story := &models.Story{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Title:     req.Title,
		Content:   req.Content,
		Theme:     req.Theme,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.db.CreateStory(r.Context(), story); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create story")
		return
	}

	respondJSON(w, http.StatusCreated, story)
}

// GetStory handles GET /v1/stories/{id}
func (h *Handler) GetStory(w http.ResponseWriter, r *http.Request) {
	story, err := h.db.GetStory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrStoryNotFound) {
			respondError(w, http.StatusNotFound, "Story not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to get story")
		return
	}

	respondJSON(w, http.StatusOK, story)
}

// GenerateMedia handles POST /v1/stories/{id}/media
func (h *Handler) GenerateMedia(w http.ResponseWriter, r *http.Request) {
	storyID := chi.URLParam(r, "id")

	var req models.GenerateMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !req.MediaType.Valid() {
		respondError(w, http.StatusBadRequest, "media_type must be 'video' or 'audio'")
		return
	}

	err := h.media.QueueMediaGeneration(r.Context(), storyID, req.MediaType, req.Content, req.Title, req.Theme)
	if err != nil {
		respondMediaError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"story_id": storyID,
		"status":   string(models.MediaStatusPending),
	})
}

// RegenerateMedia handles POST /v1/stories/{id}/media/regenerate
func (h *Handler) RegenerateMedia(w http.ResponseWriter, r *http.Request) {
	storyID := chi.URLParam(r, "id")

	var req models.GenerateMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !req.MediaType.Valid() {
		respondError(w, http.StatusBadRequest, "media_type must be 'video' or 'audio'")
		return
	}

	err := h.media.RegenerateMedia(r.Context(), storyID, req.MediaType, req.Content, req.Title, req.Theme)
	if err != nil {
		respondMediaError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"story_id": storyID,
		"status":   string(models.MediaStatusPending),
	})
}

// GetMediaStatus handles GET /v1/stories/{id}/media/status
func (h *Handler) GetMediaStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.media.GetMediaStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrStoryNotFound) {
			respondError(w, http.StatusNotFound, "Story not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to get media status")
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// GetMediaUsage handles GET /v1/users/{userId}/media/usage
// Query params:
//   - media_type: "video" or "audio" (required)
func (h *Handler) GetMediaUsage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	mediaType := models.MediaType(r.URL.Query().Get("media_type"))
	if !mediaType.Valid() {
		respondError(w, http.StatusBadRequest, "media_type must be 'video' or 'audio'")
		return
	}

	usage, err := h.media.GetMediaUsage(r.Context(), userID, mediaType)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get media usage")
		return
	}

	respondJSON(w, http.StatusOK, usage)
}

// GetQueueStats handles GET /v1/queue/stats
func (h *Handler) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		respondError(w, http.StatusServiceUnavailable, "Queue unavailable")
		return
	}

	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get queue stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// respondMediaError maps service errors onto HTTP statuses.
func respondMediaError(w http.ResponseWriter, err error) {
	var limitErr *quota.LimitError
	switch {
	case errors.Is(err, models.ErrStoryNotFound):
		respondError(w, http.StatusNotFound, "Story not found")
	case errors.As(err, &limitErr):
		respondError(w, http.StatusTooManyRequests, limitErr.Error())
	default:
		respondError(w, http.StatusInternalServerError, "Failed to queue media generation")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
