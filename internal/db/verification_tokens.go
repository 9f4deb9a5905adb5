package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hiddo/internal/models"
)

type VerificationTokenRepository struct {
	db *DB
}

func NewVerificationTokenRepository(db *DB) *VerificationTokenRepository {
	return &VerificationTokenRepository{db: db}
}

// Replace deletes any existing token for (email, type) and stores a new one,
// keeping at most one live code per email and type.
func (r *VerificationTokenRepository) Replace(email, codeHash, tokenType string, expiresAt time.Time) (*models.VerificationToken, error) {
	id, err := generateID("vtk")
	if err != nil {
		return nil, fmt.Errorf("generating verification token ID: %w", err)
	}
	now := time.Now().UTC()

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting token replacement transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM verification_tokens WHERE email = ? AND type = ?`, email, tokenType); err != nil {
		return nil, fmt.Errorf("invalidating prior tokens: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO verification_tokens (id, email, code_hash, type, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, email, codeHash, tokenType, expiresAt.UTC(), now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating verification token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing token replacement: %w", err)
	}

	return &models.VerificationToken{
		ID:        id,
		Email:     email,
		CodeHash:  codeHash,
		Type:      tokenType,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// FindValid looks up a token by code hash and type. Expired-but-present rows
// are deleted as a side effect and reported as not found.
func (r *VerificationTokenRepository) FindValid(codeHash, tokenType string) (*models.VerificationToken, error) {
	var t models.VerificationToken

	err := r.db.QueryRow(
		`SELECT id, email, code_hash, type, expires_at, created_at FROM verification_tokens WHERE code_hash = ? AND type = ?`,
		codeHash, tokenType,
	).Scan(&t.ID, &t.Email, &t.CodeHash, &t.Type, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying verification token: %w", err)
	}

	if time.Now().After(t.ExpiresAt) {
		if _, err := r.db.Exec(`DELETE FROM verification_tokens WHERE id = ?`, t.ID); err != nil {
			return nil, fmt.Errorf("deleting expired token: %w", err)
		}
		return nil, ErrNotFound
	}

	return &t, nil
}

// Consume atomically deletes an unexpired token. ErrNotFound means another
// request already consumed it or it expired in the meantime.
func (r *VerificationTokenRepository) Consume(id string) error {
	result, err := r.db.Exec(
		`DELETE FROM verification_tokens WHERE id = ? AND expires_at > ?`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("consuming verification token: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *VerificationTokenRepository) DeleteAllForEmail(email string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM verification_tokens WHERE email = ?`, email)
	if err != nil {
		return 0, fmt.Errorf("deleting tokens for email: %w", err)
	}
	return result.RowsAffected()
}

func (r *VerificationTokenRepository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM verification_tokens WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}
	return result.RowsAffected()
}
