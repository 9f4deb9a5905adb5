package models

import "time"

type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email,omitempty"`
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	Bio         *string    `json:"bio,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Gender      *string    `json:"gender,omitempty"`
	IsVerified  bool       `json:"isVerified"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// PublicUser is the subset of User safe to show to other users.
type PublicUser struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Bio         *string   `json:"bio,omitempty"`
	Location    *string   `json:"location,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		Location:    u.Location,
		CreatedAt:   u.CreatedAt,
	}
}

// PendingUser holds a signup in progress, keyed by email. It is promoted to a
// User at account completion and deleted afterwards.
type PendingUser struct {
	Email      string
	FirstName  *string
	LastName   *string
	IsVerified bool
	CreatedAt  time.Time
}

// ProfileComplete reports whether the profile step has already been submitted.
func (p *PendingUser) ProfileComplete() bool {
	return p.FirstName != nil && *p.FirstName != "" && p.LastName != nil && *p.LastName != ""
}

const (
	TokenTypeEmailVerification = "email_verification"
	TokenTypeLogin             = "login"
	TokenTypePasswordReset     = "password_reset"
)

// VerificationToken is a short-lived 6-digit code bound to an email. At most
// one non-expired token exists per (email, type) at any time.
type VerificationToken struct {
	ID        string
	Email     string
	CodeHash  string
	Type      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// VerificationSession is the opaque single-use handle issued after a
// successful email verification; it authorizes the profile and account steps.
type VerificationSession struct {
	ID        string
	Email     string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}
