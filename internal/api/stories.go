package api

import (
	"log/slog"
	"net/http"
	"time"

	"hiddo/internal/db"
)

// storyLifetime is how long a story stays visible after posting.
const storyLifetime = 24 * time.Hour

type StoryHandler struct {
	stories *db.StoryRepository
}

func NewStoryHandler(stories *db.StoryRepository) *StoryHandler {
	return &StoryHandler{stories: stories}
}

type CreateStoryRequest struct {
	ImageURL string  `json:"imageUrl" validate:"required,url,max=2048"`
	Caption  *string `json:"caption" validate:"omitempty,max=2000"`
}

// POST /api/stories
func (h *StoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	var req CreateStoryRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	story, err := h.stories.Create(userID, req.ImageURL, sanitizeTextPtr(req.Caption), time.Now().Add(storyLifetime))
	if err != nil {
		slog.Error("error creating story", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, story)
}

// GET /api/stories/feed
func (h *StoryHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	stories, err := h.stories.ActiveFeed(userID)
	if err != nil {
		slog.Error("error loading story feed", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"stories": stories})
}
