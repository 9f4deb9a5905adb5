package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hiddo/internal/db"
	"hiddo/internal/models"
)

func newTestPostHandler(t *testing.T) (*PostHandler, *db.DB) {
	t.Helper()

	database := openTestDB(t)
	handler := NewPostHandler(
		db.NewPostRepository(database),
		db.NewCommentRepository(database),
	)
	return handler, database
}

func createTestPost(t *testing.T, database *db.DB, authorID string, lat, lng float64) *models.Post {
	t.Helper()

	post, err := db.NewPostRepository(database).Create(db.CreatePostParams{
		AuthorID:  authorID,
		ImageURL:  "https://img.example.com/p.jpg",
		Latitude:  lat,
		Longitude: lng,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return post
}

func TestCreatePostRejectsInvalidCoordinates(t *testing.T) {
	handler, database := newTestPostHandler(t)
	userID := createTestUser(t, database, "a@example.com", "a")

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/posts/",
		strings.NewReader(`{"imageUrl":"https://img.example.com/p.jpg","latitude":123.0,"longitude":10.0}`)), userID)
	rr := httptest.NewRecorder()
	handler.Create(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestCreatePostReturnsCreated(t *testing.T) {
	handler, database := newTestPostHandler(t)
	userID := createTestUser(t, database, "a@example.com", "a")

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/posts/",
		strings.NewReader(`{"imageUrl":"https://img.example.com/p.jpg","caption":"hi","latitude":59.91,"longitude":10.75}`)), userID)
	rr := httptest.NewRecorder()
	handler.Create(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}

	post := decodeBody[models.Post](t, rr)
	if post.AuthorID != userID {
		t.Fatalf("authorId = %q, want %q", post.AuthorID, userID)
	}
}

func TestNearbyFiltersAndSortsByDistance(t *testing.T) {
	handler, database := newTestPostHandler(t)
	userID := createTestUser(t, database, "a@example.com", "a")

	// Center: Oslo. ~1 km north, ~5 km north, and Bergen (~300 km away).
	near := createTestPost(t, database, userID, 59.922, 10.75)
	mid := createTestPost(t, database, userID, 59.958, 10.75)
	createTestPost(t, database, userID, 60.39, 5.32)

	req := httptest.NewRequest(http.MethodGet, "/api/posts/nearby?lat=59.913&lng=10.75&radius=10", nil)
	rr := httptest.NewRecorder()
	handler.Nearby(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}

	resp := decodeBody[struct {
		Posts []*models.Post `json:"posts"`
	}](t, rr)
	if len(resp.Posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(resp.Posts))
	}
	if resp.Posts[0].ID != near.ID || resp.Posts[1].ID != mid.ID {
		t.Fatalf("order = [%s %s], want [%s %s]", resp.Posts[0].ID, resp.Posts[1].ID, near.ID, mid.ID)
	}
	for _, p := range resp.Posts {
		if p.DistanceKm == nil {
			t.Fatalf("post %s missing distanceKm", p.ID)
		}
	}
}

func TestNearbyRequiresCoordinates(t *testing.T) {
	handler, _ := newTestPostHandler(t)

	for _, query := range []string{"", "lat=59.9", "lat=91&lng=10", "lat=59.9&lng=10.75&radius=-1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/posts/nearby?"+query, nil)
		rr := httptest.NewRecorder()
		handler.Nearby(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("query %q: status = %d, want %d", query, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestLikeUnknownPostReturnsNotFound(t *testing.T) {
	handler, database := newTestPostHandler(t)
	userID := createTestUser(t, database, "a@example.com", "a")

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/posts/pst_missing/like", nil), userID)
	req = withURLParam(req, "postID", "pst_missing")
	rr := httptest.NewRecorder()
	handler.Like(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestDeleteCommentPermissions(t *testing.T) {
	handler, database := newTestPostHandler(t)
	postAuthor := createTestUser(t, database, "author@example.com", "author")
	commenter := createTestUser(t, database, "commenter@example.com", "commenter")
	stranger := createTestUser(t, database, "stranger@example.com", "stranger")

	post := createTestPost(t, database, postAuthor, 59.91, 10.75)

	deleteAs := func(commentID, userID string) *httptest.ResponseRecorder {
		req := asUser(httptest.NewRequest(http.MethodDelete, "/api/comments/"+commentID, nil), userID)
		req = withURLParam(req, "commentID", commentID)
		rr := httptest.NewRecorder()
		handler.DeleteComment(rr, req)
		return rr
	}

	comments := db.NewCommentRepository(database)
	newComment := func() string {
		comment, err := comments.Create(post.ID, commenter, "nice view")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		return comment.ID
	}

	// A stranger cannot delete it.
	commentID := newComment()
	if rr := deleteAs(commentID, stranger); rr.Code != http.StatusForbidden {
		t.Fatalf("stranger delete status = %d, want %d", rr.Code, http.StatusForbidden)
	}

	// The comment author can.
	if rr := deleteAs(commentID, commenter); rr.Code != http.StatusOK {
		t.Fatalf("author delete status = %d, body=%q", rr.Code, rr.Body.String())
	}

	// The post author can moderate someone else's comment.
	if rr := deleteAs(newComment(), postAuthor); rr.Code != http.StatusOK {
		t.Fatalf("post author delete status = %d", rr.Code)
	}
}

func TestCommentContentIsSanitized(t *testing.T) {
	handler, database := newTestPostHandler(t)
	userID := createTestUser(t, database, "a@example.com", "a")
	post := createTestPost(t, database, userID, 59.91, 10.75)

	body := `{"content":"hello <script>alert(1)</script> world"}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/posts/"+post.ID+"/comments", strings.NewReader(body)), userID)
	req = withURLParam(req, "postID", post.ID)
	rr := httptest.NewRecorder()
	handler.CreateComment(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}

	comment := decodeBody[models.Comment](t, rr)
	if strings.Contains(comment.Content, "<script>") {
		t.Fatalf("content was not sanitized: %q", comment.Content)
	}
}
