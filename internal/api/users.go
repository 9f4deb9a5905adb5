package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hiddo/internal/db"
	"hiddo/internal/models"
)

type UserHandler struct {
	users   *db.UserRepository
	follows *db.FollowRepository
	posts   *db.PostRepository
}

func NewUserHandler(users *db.UserRepository, follows *db.FollowRepository, posts *db.PostRepository) *UserHandler {
	return &UserHandler{users: users, follows: follows, posts: posts}
}

// GET /api/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	user, err := h.users.FindByID(userID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type UpdateMeRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,max=100"`
	Bio         *string `json:"bio" validate:"omitempty,max=500"`
	Location    *string `json:"location" validate:"omitempty,max=100"`
	Gender      *string `json:"gender" validate:"omitempty,max=32"`
}

// PATCH /api/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	var req UpdateMeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if req.DisplayName == nil && req.Bio == nil && req.Location == nil && req.Gender == nil {
		badRequest(w, "no fields to update")
		return
	}

	err := h.users.UpdateProfile(userID, db.UpdateProfileParams{
		DisplayName: sanitizeTextPtr(req.DisplayName),
		Bio:         sanitizeTextPtr(req.Bio),
		Location:    sanitizeTextPtr(req.Location),
		Gender:      sanitizeTextPtr(req.Gender),
	})
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error updating profile", "error", err)
		internalError(w)
		return
	}

	user, err := h.users.FindByID(userID)
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type ProfileResponse struct {
	User           *models.PublicUser `json:"user"`
	FollowerCount  int                `json:"followerCount"`
	FollowingCount int                `json:"followingCount"`
	PostCount      int                `json:"postCount"`
	Following      bool               `json:"following"`
}

// GET /api/users/{username}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookupByUsername(w, r)
	if !ok {
		return
	}

	followers, following, err := h.follows.Counts(user.ID)
	if err != nil {
		slog.Error("error counting follows", "error", err)
		internalError(w)
		return
	}

	postCount, err := h.posts.CountByAuthor(user.ID)
	if err != nil {
		slog.Error("error counting posts", "error", err)
		internalError(w)
		return
	}

	viewerFollows := false
	if viewerID := GetUserID(r); viewerID != "" {
		viewerFollows, err = h.follows.IsFollowing(viewerID, user.ID)
		if err != nil {
			slog.Error("error checking follow", "error", err)
			internalError(w)
			return
		}
	}

	writeJSON(w, http.StatusOK, ProfileResponse{
		User:           user.Public(),
		FollowerCount:  followers,
		FollowingCount: following,
		PostCount:      postCount,
		Following:      viewerFollows,
	})
}

// POST /api/users/{username}/follow
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	viewerID := GetUserID(r)
	if viewerID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	user, ok := h.lookupByUsername(w, r)
	if !ok {
		return
	}

	err := h.follows.Follow(viewerID, user.ID)
	if errors.Is(err, db.ErrSelfFollow) {
		badRequest(w, "You cannot follow yourself")
		return
	}
	if err != nil {
		slog.Error("error creating follow", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Following " + user.Username})
}

// DELETE /api/users/{username}/follow
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	viewerID := GetUserID(r)
	if viewerID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	user, ok := h.lookupByUsername(w, r)
	if !ok {
		return
	}

	if err := h.follows.Unfollow(viewerID, user.ID); err != nil {
		slog.Error("error deleting follow", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Unfollowed " + user.Username})
}

// GET /api/users/{username}/followers
func (h *UserHandler) Followers(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookupByUsername(w, r)
	if !ok {
		return
	}

	users, err := h.follows.Followers(user.ID)
	if err != nil {
		slog.Error("error listing followers", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// GET /api/users/{username}/following
func (h *UserHandler) Following(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookupByUsername(w, r)
	if !ok {
		return
	}

	users, err := h.follows.Following(user.ID)
	if err != nil {
		slog.Error("error listing following", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *UserHandler) lookupByUsername(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	username := strings.ToLower(chi.URLParam(r, "username"))
	if username == "" {
		badRequest(w, "username is required")
		return nil, false
	}

	user, err := h.users.FindByUsername(username)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "User not found")
		return nil, false
	}
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return nil, false
	}

	return user, true
}
