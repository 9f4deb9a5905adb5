package api

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidToken      = "INVALID_OR_EXPIRED_TOKEN"
	ErrCodeInvalidSession    = "INVALID_SESSION"
	ErrCodeNoPendingSignup   = "PENDING_USER_NOT_FOUND"
	ErrCodeAuthFailed        = "AUTH_FAILED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeUsernameTaken     = "USERNAME_TAKEN"
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, message)
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, "An internal error occurred")
}

// invalidSession is the single collapsed outcome for every session/state
// mismatch in the signup flow. Callers never learn which check failed.
func invalidSession(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, ErrCodeInvalidSession, "Invalid or expired verification session")
}

func tooManyRequests(w http.ResponseWriter, retryAfterSecs int, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	writeError(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, message)
}
