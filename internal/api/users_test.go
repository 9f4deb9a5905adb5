package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"hiddo/internal/db"
)

func newTestUserHandler(t *testing.T) (*UserHandler, *db.DB) {
	t.Helper()

	database := openTestDB(t)
	handler := NewUserHandler(
		db.NewUserRepository(database),
		db.NewFollowRepository(database),
		db.NewPostRepository(database),
	)
	return handler, database
}

func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestGetMeReturnsCurrentUser(t *testing.T) {
	handler, database := newTestUserHandler(t)
	userID := createTestUser(t, database, "me@example.com", "me")

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), userID)
	rr := httptest.NewRecorder()
	handler.GetMe(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"me@example.com"`) {
		t.Fatalf("body does not contain the user's email: %q", rr.Body.String())
	}
}

func TestUpdateMeRequiresAtLeastOneField(t *testing.T) {
	handler, database := newTestUserHandler(t)
	userID := createTestUser(t, database, "me@example.com", "me")

	req := asUser(httptest.NewRequest(http.MethodPatch, "/api/users/me", strings.NewReader(`{}`)), userID)
	rr := httptest.NewRecorder()
	handler.UpdateMe(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdateMeSetsBio(t *testing.T) {
	handler, database := newTestUserHandler(t)
	userID := createTestUser(t, database, "me@example.com", "me")

	req := asUser(httptest.NewRequest(http.MethodPatch, "/api/users/me",
		strings.NewReader(`{"bio":"roaming the fjords"}`)), userID)
	rr := httptest.NewRecorder()
	handler.UpdateMe(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}

	user, err := db.NewUserRepository(database).FindByID(userID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if user.Bio == nil || *user.Bio != "roaming the fjords" {
		t.Fatalf("bio = %v, want %q", user.Bio, "roaming the fjords")
	}
}

func TestGetProfileReportsCountsAndFollowingFlag(t *testing.T) {
	handler, database := newTestUserHandler(t)
	aliceID := createTestUser(t, database, "alice@example.com", "alice")
	bobID := createTestUser(t, database, "bob@example.com", "bob")

	follows := db.NewFollowRepository(database)
	if err := follows.Follow(bobID, aliceID); err != nil {
		t.Fatalf("Follow() error = %v", err)
	}

	posts := db.NewPostRepository(database)
	if _, err := posts.Create(db.CreatePostParams{
		AuthorID: aliceID,
		ImageURL: "https://img.example.com/1.jpg",
		Latitude: 59.91, Longitude: 10.75,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/users/alice", nil), bobID)
	req = withURLParam(req, "username", "alice")
	rr := httptest.NewRecorder()
	handler.GetProfile(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}

	resp := decodeBody[ProfileResponse](t, rr)
	if resp.FollowerCount != 1 || resp.PostCount != 1 {
		t.Fatalf("followerCount = %d, postCount = %d, want 1 and 1", resp.FollowerCount, resp.PostCount)
	}
	if !resp.Following {
		t.Fatal("viewer follows alice but following = false")
	}
	if resp.User == nil || resp.User.Username != "alice" {
		t.Fatalf("user = %+v, want username alice", resp.User)
	}
}

func TestFollowSelfIsRejected(t *testing.T) {
	handler, database := newTestUserHandler(t)
	aliceID := createTestUser(t, database, "alice@example.com", "alice")

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/users/alice/follow", nil), aliceID)
	req = withURLParam(req, "username", "alice")
	rr := httptest.NewRecorder()
	handler.Follow(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetProfileUnknownUsername(t *testing.T) {
	handler, _ := newTestUserHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users/ghost", nil)
	req = withURLParam(req, "username", "ghost")
	rr := httptest.NewRecorder()
	handler.GetProfile(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
