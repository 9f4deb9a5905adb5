package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"hiddo/internal/db"
)

func createTestUser(t *testing.T, database *db.DB, email, username string) string {
	t.Helper()

	user, err := db.NewUserRepository(database).Create(db.CreateUserParams{
		Email:       email,
		Username:    username,
		DisplayName: username,
		FirstName:   "Test",
		LastName:    "User",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return user.ID
}

func TestLoginEmailDoesNotRevealUnknownAccounts(t *testing.T) {
	h, sender, database := newTestAuthHandler(t)
	createTestUser(t, database, "known@example.com", "known")

	known := doPost(t, h.LoginEmail, `{"email":"known@example.com"}`)
	unknown := doPost(t, h.LoginEmail, `{"email":"nobody@example.com"}`)

	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("status = %d and %d, want both %d", known.Code, unknown.Code, http.StatusOK)
	}

	knownMsg := decodeBody[MessageResponse](t, known)
	unknownMsg := decodeBody[MessageResponse](t, unknown)
	if knownMsg.Message != unknownMsg.Message {
		t.Fatalf("messages differ: %q vs %q", knownMsg.Message, unknownMsg.Message)
	}

	if sender.lastCode("known@example.com") == "" {
		t.Fatal("no login code sent to the registered address")
	}
	if sender.lastCode("nobody@example.com") != "" {
		t.Fatal("a login code was sent to an unregistered address")
	}
}

func loginTestUser(t *testing.T, h *AuthHandler, sender *captureSender, email string) *AuthResponse {
	t.Helper()

	rr := doPost(t, h.LoginEmail, fmt.Sprintf(`{"email":%q}`, email))
	if rr.Code != http.StatusOK {
		t.Fatalf("LoginEmail status = %d, body=%q", rr.Code, rr.Body.String())
	}

	code := sender.lastCode(email)
	if code == "" {
		t.Fatalf("no login code captured for %q", email)
	}

	rr = doPost(t, h.VerifyLogin, fmt.Sprintf(`{"email":%q,"token":%q}`, email, code))
	if rr.Code != http.StatusOK {
		t.Fatalf("VerifyLogin status = %d, body=%q", rr.Code, rr.Body.String())
	}

	resp := decodeBody[AuthResponse](t, rr)
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("VerifyLogin returned empty tokens")
	}
	return &resp
}

func TestVerifyLoginIssuesTokens(t *testing.T) {
	h, sender, database := newTestAuthHandler(t)
	userID := createTestUser(t, database, "login@example.com", "login")

	resp := loginTestUser(t, h, sender, "login@example.com")
	if resp.User == nil || resp.User.ID != userID {
		t.Fatalf("auth response user = %+v, want id %q", resp.User, userID)
	}

	// The code is spent.
	code := sender.lastCode("login@example.com")
	rr := doPost(t, h.VerifyLogin, fmt.Sprintf(`{"email":"login@example.com","token":%q}`, code))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("replayed code status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	h, sender, database := newTestAuthHandler(t)
	createTestUser(t, database, "rot@example.com", "rot")

	first := loginTestUser(t, h, sender, "rot@example.com")

	rr := doPost(t, h.Refresh, fmt.Sprintf(`{"refreshToken":%q}`, first.RefreshToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("Refresh status = %d, body=%q", rr.Code, rr.Body.String())
	}
	rotated := decodeBody[RefreshResponse](t, rr)
	if rotated.RefreshToken == first.RefreshToken {
		t.Fatal("refresh did not rotate the refresh token")
	}

	// The old token is dead after rotation.
	rr = doPost(t, h.Refresh, fmt.Sprintf(`{"refreshToken":%q}`, first.RefreshToken))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("reused token status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	// The rotated token still works.
	rr = doPost(t, h.Refresh, fmt.Sprintf(`{"refreshToken":%q}`, rotated.RefreshToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("rotated token status = %d, body=%q", rr.Code, rr.Body.String())
	}
}

func TestRefreshRejectsUnknownToken(t *testing.T) {
	h, _, _ := newTestAuthHandler(t)

	rr := doPost(t, h.Refresh, `{"refreshToken":"deadbeef"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	resp := decodeBody[ErrorResponse](t, rr)
	if resp.Error.Code != ErrCodeAuthFailed {
		t.Fatalf("error.code = %q, want %q", resp.Error.Code, ErrCodeAuthFailed)
	}
}

func TestLogoutRevokesRefreshTokens(t *testing.T) {
	h, sender, database := newTestAuthHandler(t)
	userID := createTestUser(t, database, "out@example.com", "out")

	resp := loginTestUser(t, h, sender, "out@example.com")

	req := doPost(t, func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
		h.Logout(w, r)
	}, `{}`)
	if req.Code != http.StatusOK {
		t.Fatalf("Logout status = %d, body=%q", req.Code, req.Body.String())
	}

	rr := doPost(t, h.Refresh, fmt.Sprintf(`{"refreshToken":%q}`, resp.RefreshToken))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
