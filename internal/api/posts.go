package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hiddo/internal/constants"
	"hiddo/internal/db"
	"hiddo/internal/geo"
	"hiddo/internal/models"
)

type PostHandler struct {
	posts    *db.PostRepository
	comments *db.CommentRepository
}

func NewPostHandler(posts *db.PostRepository, comments *db.CommentRepository) *PostHandler {
	return &PostHandler{posts: posts, comments: comments}
}

type CreatePostRequest struct {
	ImageURL  string  `json:"imageUrl" validate:"required,url,max=2048"`
	Caption   *string `json:"caption" validate:"omitempty,max=2000"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// POST /api/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	var req CreatePostRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	post, err := h.posts.Create(db.CreatePostParams{
		AuthorID:  userID,
		ImageURL:  req.ImageURL,
		Caption:   sanitizeTextPtr(req.Caption),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		slog.Error("error creating post", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

// GET /api/posts/{postID}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")

	post, err := h.posts.FindByID(postID, GetUserID(r))
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Post not found")
		return
	}
	if err != nil {
		slog.Error("error finding post", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// DELETE /api/posts/{postID}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	err := h.posts.Delete(chi.URLParam(r, "postID"), userID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Post not found")
		return
	}
	if err != nil {
		slog.Error("error deleting post", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Post deleted"})
}

// GET /api/posts/feed?before=<postID>&limit=<n>
func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	posts, err := h.posts.Feed(userID, r.URL.Query().Get("before"), limit)
	if err != nil {
		slog.Error("error loading feed", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// GET /api/posts/nearby?lat=<deg>&lng=<deg>&radius=<km>
func (h *PostHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		badRequest(w, "lat and lng are required and must be valid coordinates")
		return
	}

	radius := 5.0
	if raw := r.URL.Query().Get("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			badRequest(w, "radius must be a positive number of kilometers")
			return
		}
		radius = parsed
	}
	if radius > constants.NearbyMaxRadiusKm {
		radius = constants.NearbyMaxRadiusKm
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > constants.FeedMaxLimit {
		limit = constants.FeedDefaultLimit
	}

	minLat, maxLat, minLng, maxLng := geo.BoundingBox(lat, lng, radius)
	candidates, err := h.posts.Nearby(lat, lng, minLat, maxLat, minLng, maxLng, GetUserID(r), limit)
	if err != nil {
		slog.Error("error loading nearby posts", "error", err)
		internalError(w)
		return
	}

	// The box overshoots the circle; refine with exact distances.
	posts := make([]*models.Post, 0, len(candidates))
	for _, p := range candidates {
		d := geo.DistanceKm(lat, lng, p.Latitude, p.Longitude)
		if d <= radius {
			distance := d
			p.DistanceKm = &distance
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return *posts[i].DistanceKm < *posts[j].DistanceKm
	})
	if len(posts) > limit {
		posts = posts[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// GET /api/posts/saved
func (h *PostHandler) Saved(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	posts, err := h.posts.SavedByUser(userID, limit)
	if err != nil {
		slog.Error("error loading saved posts", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// POST /api/posts/{postID}/like and DELETE /api/posts/{postID}/like
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.engage(w, r, h.posts.Like, "Post liked")
}

func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.engage(w, r, h.posts.Unlike, "Like removed")
}

// POST /api/posts/{postID}/save and DELETE /api/posts/{postID}/save
func (h *PostHandler) Save(w http.ResponseWriter, r *http.Request) {
	h.engage(w, r, h.posts.Save, "Post saved")
}

func (h *PostHandler) Unsave(w http.ResponseWriter, r *http.Request) {
	h.engage(w, r, h.posts.Unsave, "Post unsaved")
}

func (h *PostHandler) engage(w http.ResponseWriter, r *http.Request, op func(postID, userID string) error, message string) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	err := op(chi.URLParam(r, "postID"), userID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Post not found")
		return
	}
	if err != nil {
		slog.Error("error updating post engagement", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

// POST /api/posts/{postID}/comments
func (h *PostHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	var req CreateCommentRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	content := sanitizeText(req.Content)
	if content == "" {
		badRequest(w, "content is required")
		return
	}

	postID := chi.URLParam(r, "postID")
	if _, err := h.posts.FindByID(postID, userID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Post not found")
			return
		}
		slog.Error("error finding post", "error", err)
		internalError(w)
		return
	}

	comment, err := h.comments.Create(postID, userID, content)
	if err != nil {
		slog.Error("error creating comment", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

// GET /api/posts/{postID}/comments
func (h *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	if _, err := h.posts.FindByID(postID, GetUserID(r)); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Post not found")
			return
		}
		slog.Error("error finding post", "error", err)
		internalError(w)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	comments, err := h.comments.ListByPost(postID, limit)
	if err != nil {
		slog.Error("error listing comments", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// DELETE /api/comments/{commentID}
func (h *PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	comment, err := h.comments.FindByID(chi.URLParam(r, "commentID"))
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Comment not found")
		return
	}
	if err != nil {
		slog.Error("error finding comment", "error", err)
		internalError(w)
		return
	}

	// The comment author or the post author may remove a comment.
	if comment.AuthorID != userID {
		post, err := h.posts.FindByID(comment.PostID, userID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				notFound(w, "Comment not found")
				return
			}
			slog.Error("error finding post", "error", err)
			internalError(w)
			return
		}
		if post.AuthorID != userID {
			writeError(w, http.StatusForbidden, ErrCodeUnauthorized, "You cannot delete this comment")
			return
		}
	}

	if err := h.comments.Delete(comment.ID); err != nil && !errors.Is(err, db.ErrNotFound) {
		slog.Error("error deleting comment", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Comment deleted"})
}
