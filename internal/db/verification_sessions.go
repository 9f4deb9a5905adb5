package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hiddo/internal/models"
)

type VerificationSessionRepository struct {
	db *DB
}

func NewVerificationSessionRepository(db *DB) *VerificationSessionRepository {
	return &VerificationSessionRepository{db: db}
}

func (r *VerificationSessionRepository) Create(email, tokenHash string, expiresAt time.Time) (*models.VerificationSession, error) {
	id, err := generateID("vss")
	if err != nil {
		return nil, fmt.Errorf("generating verification session ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.Exec(
		`INSERT INTO verification_sessions (id, email, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, email, tokenHash, expiresAt.UTC(), now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating verification session: %w", err)
	}

	return &models.VerificationSession{
		ID:        id,
		Email:     email,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// FindValid resolves a live session by token hash. Used and expired sessions
// are both reported as not found; expired rows are removed as a side effect.
func (r *VerificationSessionRepository) FindValid(tokenHash string) (*models.VerificationSession, error) {
	var s models.VerificationSession
	var usedAt sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, email, token_hash, expires_at, used_at, created_at FROM verification_sessions WHERE token_hash = ?`,
		tokenHash,
	).Scan(&s.ID, &s.Email, &s.TokenHash, &s.ExpiresAt, &usedAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying verification session: %w", err)
	}

	if time.Now().After(s.ExpiresAt) {
		if _, err := r.db.Exec(`DELETE FROM verification_sessions WHERE id = ?`, s.ID); err != nil {
			return nil, fmt.Errorf("deleting expired session: %w", err)
		}
		return nil, ErrNotFound
	}
	if usedAt.Valid {
		return nil, ErrNotFound
	}

	s.UsedAt = nullTimeToPtr(usedAt)
	return &s, nil
}

// Consume atomically marks a live session used and returns its email. Two
// racing requests cannot both succeed: the second sees ErrNotFound.
func (r *VerificationSessionRepository) Consume(tokenHash string) (string, error) {
	now := time.Now().UTC()
	var email string

	err := r.db.QueryRow(
		`UPDATE verification_sessions
           SET used_at = ?
         WHERE token_hash = ?
           AND used_at IS NULL
           AND expires_at > ?
     RETURNING email`,
		now, tokenHash, now,
	).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consuming verification session: %w", err)
	}

	return email, nil
}

func (r *VerificationSessionRepository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM verification_sessions WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return result.RowsAffected()
}
