package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hiddo/internal/models"
)

type PendingUserRepository struct {
	db *DB
}

func NewPendingUserRepository(db *DB) *PendingUserRepository {
	return &PendingUserRepository{db: db}
}

// Upsert creates or resets the pending signup for an email. A repeated
// signup-initiation starts the flow over, so verification state is cleared.
func (r *PendingUserRepository) Upsert(email string) (*models.PendingUser, error) {
	now := time.Now().UTC()

	_, err := r.db.Exec(
		`INSERT INTO pending_users (email, is_verified, created_at) VALUES (?, 0, ?)
		 ON CONFLICT(email) DO UPDATE SET first_name = NULL, last_name = NULL, is_verified = 0, created_at = excluded.created_at`,
		email, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting pending user: %w", err)
	}

	return &models.PendingUser{
		Email:     email,
		CreatedAt: now,
	}, nil
}

func (r *PendingUserRepository) FindByEmail(email string) (*models.PendingUser, error) {
	var p models.PendingUser
	var firstName, lastName sql.NullString

	err := r.db.QueryRow(
		`SELECT email, first_name, last_name, is_verified, created_at FROM pending_users WHERE email = ?`,
		email,
	).Scan(&p.Email, &firstName, &lastName, &p.IsVerified, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying pending user: %w", err)
	}

	p.FirstName = nullStringToPtr(firstName)
	p.LastName = nullStringToPtr(lastName)

	return &p, nil
}

func (r *PendingUserRepository) MarkVerified(email string) error {
	result, err := r.db.Exec(`UPDATE pending_users SET is_verified = 1 WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("marking pending user verified: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *PendingUserRepository) SetName(email, firstName, lastName string) error {
	result, err := r.db.Exec(
		`UPDATE pending_users SET first_name = ?, last_name = ? WHERE email = ?`,
		firstName, lastName, email,
	)
	if err != nil {
		return fmt.Errorf("setting pending user name: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *PendingUserRepository) Delete(email string) error {
	_, err := r.db.Exec(`DELETE FROM pending_users WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("deleting pending user: %w", err)
	}
	return nil
}
