package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hiddo/internal/auth"
	"hiddo/internal/db"
	"hiddo/internal/email"
	"hiddo/internal/models"
)

// signupMessage is returned by signup initiation on every path, registered or
// not, so the endpoint cannot be used to probe which emails have accounts.
const signupMessage = "If this email can be used to sign up, a verification code has been sent"

const loginMessage = "If an account exists with this email, a login code has been sent"

type AuthHandler struct {
	users         *db.UserRepository
	pendingUsers  *db.PendingUserRepository
	tokens        *db.VerificationTokenRepository
	sessions      *db.VerificationSessionRepository
	refreshTokens *db.RefreshTokenRepository
	jwtService    *auth.JWTService
	sender        email.Sender
	signupLimiter *SignupLimiter
	loginLimiter  *SignupLimiter
	verifyLimiter *VerifyLimiter

	signupCodeTTL    time.Duration
	loginCodeTTL     time.Duration
	signupSessionTTL time.Duration
}

func NewAuthHandler(
	users *db.UserRepository,
	pendingUsers *db.PendingUserRepository,
	tokens *db.VerificationTokenRepository,
	sessions *db.VerificationSessionRepository,
	refreshTokens *db.RefreshTokenRepository,
	jwtService *auth.JWTService,
	sender email.Sender,
	signupCodeTTL, loginCodeTTL, signupSessionTTL time.Duration,
) *AuthHandler {
	return &AuthHandler{
		users:            users,
		pendingUsers:     pendingUsers,
		tokens:           tokens,
		sessions:         sessions,
		refreshTokens:    refreshTokens,
		jwtService:       jwtService,
		sender:           sender,
		signupLimiter:    NewSignupLimiter(),
		loginLimiter:     NewSignupLimiter(),
		verifyLimiter:    NewVerifyLimiter(),
		signupCodeTTL:    signupCodeTTL,
		loginCodeTTL:     loginCodeTTL,
		signupSessionTTL: signupSessionTTL,
	}
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// POST /api/auth/signup-email
func (h *AuthHandler) SignupEmail(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	emailAddr := normalizeEmail(req.Email)
	if !validEmail(emailAddr) {
		badRequest(w, "invalid email format")
		return
	}

	if allowed, retryAfter := h.signupLimiter.Check(emailAddr); !allowed {
		tooManyRequests(w, retryAfterSeconds(retryAfter), "Too many signup attempts, please try again later")
		return
	}
	h.signupLimiter.Record(emailAddr)

	registered, err := h.users.EmailRegistered(emailAddr)
	if err != nil {
		slog.Error("error checking email registration", "error", err)
		internalError(w)
		return
	}
	if registered {
		// Indistinguishable from the fresh-signup path.
		writeJSON(w, http.StatusOK, MessageResponse{Message: signupMessage})
		return
	}

	if _, err := h.pendingUsers.Upsert(emailAddr); err != nil {
		slog.Error("error creating pending user", "error", err)
		internalError(w)
		return
	}

	code, err := auth.GenerateCode()
	if err != nil {
		slog.Error("error generating verification code", "error", err)
		internalError(w)
		return
	}

	// Replace invalidates any prior code for this email.
	if _, err := h.tokens.Replace(emailAddr, auth.HashCode(emailAddr, code), models.TokenTypeEmailVerification, time.Now().Add(h.signupCodeTTL)); err != nil {
		slog.Error("error storing verification token", "error", err)
		internalError(w)
		return
	}

	if err := h.sender.SendVerificationCode(emailAddr, code, h.signupCodeTTL); err != nil {
		// Dispatch failure is logged for operators but never surfaced;
		// surfacing it would reveal which emails are registrable.
		slog.Error("error sending verification code", "error", err)
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: signupMessage})
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,max=254"`
	Token string `json:"token" validate:"required,len=6,numeric"`
}

type VerifyEmailResponse struct {
	Message             string            `json:"message"`
	VerificationSession string            `json:"verificationSession"`
	PendingUser         PendingUserDetail `json:"pendingUser"`
}

type PendingUserDetail struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// POST /api/auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	emailAddr := normalizeEmail(req.Email)
	if !validEmail(emailAddr) {
		badRequest(w, "invalid email format")
		return
	}

	if _, locked, retryAfter := h.verifyLimiter.Check(emailAddr); locked {
		tooManyRequests(w, retryAfterSeconds(retryAfter), "Too many failed attempts, verification is temporarily locked")
		return
	}

	token, err := h.tokens.FindValid(auth.HashCode(emailAddr, req.Token), models.TokenTypeEmailVerification)
	if errors.Is(err, db.ErrNotFound) {
		h.verifyLimiter.Record(emailAddr, false)
		writeError(w, http.StatusBadRequest, ErrCodeInvalidToken, "Invalid or expired verification code")
		return
	}
	if err != nil {
		slog.Error("error finding verification token", "error", err)
		internalError(w)
		return
	}

	pending, err := h.pendingUsers.FindByEmail(token.Email)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusBadRequest, ErrCodeNoPendingSignup, "No signup in progress for this email")
		return
	}
	if err != nil {
		slog.Error("error finding pending user", "error", err)
		internalError(w)
		return
	}

	// Consume before issuing a session so a replayed code cannot mint a
	// second session.
	if err := h.tokens.Consume(token.ID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidToken, "Invalid or expired verification code")
			return
		}
		slog.Error("error consuming verification token", "error", err)
		internalError(w)
		return
	}

	if err := h.pendingUsers.MarkVerified(token.Email); err != nil {
		slog.Error("error marking pending user verified", "error", err)
		internalError(w)
		return
	}

	sessionToken, err := auth.GenerateOpaqueToken(32)
	if err != nil {
		slog.Error("error generating verification session token", "error", err)
		internalError(w)
		return
	}

	if _, err := h.sessions.Create(token.Email, auth.HashSessionToken(sessionToken), time.Now().Add(h.signupSessionTTL)); err != nil {
		slog.Error("error creating verification session", "error", err)
		internalError(w)
		return
	}

	h.verifyLimiter.Record(emailAddr, true)

	writeJSON(w, http.StatusOK, VerifyEmailResponse{
		Message:             "Email verified",
		VerificationSession: sessionToken,
		PendingUser: PendingUserDetail{
			FirstName: derefString(pending.FirstName),
			LastName:  derefString(pending.LastName),
		},
	})
}

type CompleteProfileRequest struct {
	FirstName           string `json:"firstName" validate:"required,max=100"`
	LastName            string `json:"lastName" validate:"required,max=100"`
	VerificationSession string `json:"verificationSession" validate:"required"`
}

type CompleteProfileResponse struct {
	Message   string `json:"message"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// POST /api/auth/complete-profile
func (h *AuthHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	var req CompleteProfileRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	firstName := sanitizeText(req.FirstName)
	lastName := sanitizeText(req.LastName)
	if firstName == "" || lastName == "" {
		badRequest(w, "firstName and lastName are required")
		return
	}

	// Identity comes from the session, never from the request body.
	session, err := h.sessions.FindValid(auth.HashSessionToken(req.VerificationSession))
	if errors.Is(err, db.ErrNotFound) {
		invalidSession(w)
		return
	}
	if err != nil {
		slog.Error("error finding verification session", "error", err)
		internalError(w)
		return
	}

	pending, err := h.pendingUsers.FindByEmail(session.Email)
	if errors.Is(err, db.ErrNotFound) {
		invalidSession(w)
		return
	}
	if err != nil {
		slog.Error("error finding pending user", "error", err)
		internalError(w)
		return
	}

	if !pending.IsVerified {
		invalidSession(w)
		return
	}
	if pending.ProfileComplete() {
		// Replay guard: the profile step is not repeatable.
		invalidSession(w)
		return
	}

	if err := h.pendingUsers.SetName(session.Email, firstName, lastName); err != nil {
		slog.Error("error saving pending user name", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, CompleteProfileResponse{
		Message:   "Profile saved",
		FirstName: firstName,
		LastName:  lastName,
	})
}

type CompleteAccountRequest struct {
	Username            string  `json:"username" validate:"required,max=32"`
	DisplayName         *string `json:"displayName" validate:"omitempty,max=100"`
	Bio                 *string `json:"bio" validate:"omitempty,max=500"`
	Location            *string `json:"location" validate:"omitempty,max=100"`
	Gender              *string `json:"gender" validate:"omitempty,max=32"`
	VerificationSession string  `json:"verificationSession" validate:"required"`
}

type CompleteAccountResponse struct {
	Message string      `json:"message"`
	User    CreatedUser `json:"user"`
}

type CreatedUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// POST /api/auth/complete-account
func (h *AuthHandler) CompleteAccount(w http.ResponseWriter, r *http.Request) {
	var req CompleteAccountRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if !usernameRegex.MatchString(username) {
		badRequest(w, "Username must be 3-32 characters and contain only lowercase letters, numbers, underscores, and hyphens")
		return
	}

	sessionHash := auth.HashSessionToken(req.VerificationSession)
	session, err := h.sessions.FindValid(sessionHash)
	if errors.Is(err, db.ErrNotFound) {
		invalidSession(w)
		return
	}
	if err != nil {
		slog.Error("error finding verification session", "error", err)
		internalError(w)
		return
	}

	pending, err := h.pendingUsers.FindByEmail(session.Email)
	if errors.Is(err, db.ErrNotFound) {
		invalidSession(w)
		return
	}
	if err != nil {
		slog.Error("error finding pending user", "error", err)
		internalError(w)
		return
	}

	if !pending.IsVerified || !pending.ProfileComplete() {
		invalidSession(w)
		return
	}

	// Replay guard: a verified user may already exist for this email if a
	// prior completion went through. The users.email UNIQUE constraint is
	// the authoritative check; this read just fails fast.
	registered, err := h.users.EmailRegistered(session.Email)
	if err != nil {
		slog.Error("error checking email registration", "error", err)
		internalError(w)
		return
	}
	if registered {
		invalidSession(w)
		return
	}

	available, err := h.users.IsUsernameAvailable(username)
	if err != nil {
		slog.Error("error checking username availability", "error", err)
		internalError(w)
		return
	}
	if !available {
		writeError(w, http.StatusConflict, ErrCodeUsernameTaken, "Username already taken")
		return
	}

	displayName := username
	if req.DisplayName != nil {
		if clean := sanitizeText(*req.DisplayName); clean != "" {
			displayName = clean
		}
	}

	user, err := h.users.Create(db.CreateUserParams{
		Email:       session.Email,
		Username:    username,
		DisplayName: displayName,
		FirstName:   derefString(pending.FirstName),
		LastName:    derefString(pending.LastName),
		Bio:         sanitizeTextPtr(req.Bio),
		Location:    sanitizeTextPtr(req.Location),
		Gender:      sanitizeTextPtr(req.Gender),
	})
	if err != nil {
		if db.IsUniqueConstraintError(err) {
			// A racing request won: username collision surfaces as taken,
			// anything else collapses to the opaque session failure.
			if strings.Contains(err.Error(), "users.username") {
				writeError(w, http.StatusConflict, ErrCodeUsernameTaken, "Username already taken")
				return
			}
			invalidSession(w)
			return
		}
		slog.Error("error creating user", "error", err)
		internalError(w)
		return
	}

	if _, err := h.sessions.Consume(sessionHash); err != nil {
		slog.Warn("error consuming verification session after account creation", "error", err)
	}
	if err := h.pendingUsers.Delete(session.Email); err != nil {
		slog.Warn("error deleting pending user after account creation", "error", err)
	}

	writeJSON(w, http.StatusOK, CompleteAccountResponse{
		Message: "Account created",
		User: CreatedUser{
			ID:          user.ID,
			Email:       user.Email,
			Username:    user.Username,
			DisplayName: user.DisplayName,
		},
	})
}

// POST /api/auth/login-email
func (h *AuthHandler) LoginEmail(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	emailAddr := normalizeEmail(req.Email)
	if !validEmail(emailAddr) {
		badRequest(w, "invalid email format")
		return
	}

	if allowed, retryAfter := h.loginLimiter.Check(emailAddr); !allowed {
		tooManyRequests(w, retryAfterSeconds(retryAfter), "Too many login attempts, please try again later")
		return
	}
	h.loginLimiter.Record(emailAddr)

	registered, err := h.users.EmailRegistered(emailAddr)
	if err != nil {
		slog.Error("error checking email registration", "error", err)
		internalError(w)
		return
	}

	if registered {
		code, err := auth.GenerateCode()
		if err != nil {
			slog.Error("error generating login code", "error", err)
			internalError(w)
			return
		}
		if _, err := h.tokens.Replace(emailAddr, auth.HashCode(emailAddr, code), models.TokenTypeLogin, time.Now().Add(h.loginCodeTTL)); err != nil {
			slog.Error("error storing login token", "error", err)
			internalError(w)
			return
		}
		if err := h.sender.SendLoginCode(emailAddr, code, h.loginCodeTTL); err != nil {
			slog.Error("error sending login code", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: loginMessage})
}

type VerifyLoginRequest struct {
	Email string `json:"email" validate:"required,max=254"`
	Token string `json:"token" validate:"required,len=6,numeric"`
}

type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresAt    string       `json:"expiresAt"`
}

// POST /api/auth/verify-login
func (h *AuthHandler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req VerifyLoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	emailAddr := normalizeEmail(req.Email)
	if !validEmail(emailAddr) {
		badRequest(w, "invalid email format")
		return
	}

	if _, locked, retryAfter := h.verifyLimiter.Check(emailAddr); locked {
		tooManyRequests(w, retryAfterSeconds(retryAfter), "Too many failed attempts, verification is temporarily locked")
		return
	}

	token, err := h.tokens.FindValid(auth.HashCode(emailAddr, req.Token), models.TokenTypeLogin)
	if errors.Is(err, db.ErrNotFound) {
		h.verifyLimiter.Record(emailAddr, false)
		writeError(w, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid code")
		return
	}
	if err != nil {
		slog.Error("error finding login token", "error", err)
		internalError(w)
		return
	}

	if err := h.tokens.Consume(token.ID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid code")
			return
		}
		slog.Error("error consuming login token", "error", err)
		internalError(w)
		return
	}

	user, err := h.users.FindByEmail(token.Email)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid code")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	h.verifyLimiter.Record(emailAddr, true)

	authResponse, err := h.generateAuthResponse(user)
	if err != nil {
		slog.Error("error issuing auth tokens", "error", err, "user_id", user.ID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, authResponse)
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    string `json:"expiresAt"`
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	refreshToken, err := h.refreshTokens.FindByHash(auth.HashSessionToken(req.RefreshToken))
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid refresh token")
		return
	}
	if err != nil {
		slog.Error("error finding refresh token", "error", err)
		internalError(w)
		return
	}

	if refreshToken.RevokedAt != nil {
		writeError(w, http.StatusUnauthorized, ErrCodeAuthFailed, "Refresh token has been revoked")
		return
	}
	if time.Now().After(refreshToken.ExpiresAt) {
		writeError(w, http.StatusUnauthorized, ErrCodeAuthFailed, "Refresh token has expired")
		return
	}

	user, err := h.users.FindByID(refreshToken.UserID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, ErrCodeAuthFailed, "User not found")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	tokenPair, newRefreshHash, err := h.jwtService.GenerateTokenPair(user)
	if err != nil {
		slog.Error("error generating refreshed token pair", "error", err)
		internalError(w)
		return
	}

	if err := h.refreshTokens.Rotate(refreshToken.ID, user.ID, newRefreshHash, h.jwtService.RefreshTokenExpiry()); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, ErrCodeAuthFailed, "Refresh token has already been used")
			return
		}
		slog.Error("error rotating refresh token", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, RefreshResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    tokenPair.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	if err := h.refreshTokens.RevokeAllForUser(userID); err != nil {
		slog.Error("error revoking refresh tokens", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) generateAuthResponse(user *models.User) (*AuthResponse, error) {
	tokenPair, refreshHash, err := h.jwtService.GenerateTokenPair(user)
	if err != nil {
		return nil, err
	}

	if _, err := h.refreshTokens.Create(user.ID, refreshHash, h.jwtService.RefreshTokenExpiry()); err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    tokenPair.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
