package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hiddo/internal/models"
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

type CreateUserParams struct {
	Email       string
	Username    string
	DisplayName string
	FirstName   string
	LastName    string
	Bio         *string
	Location    *string
	Gender      *string
}

// Create inserts a fully verified user. Email and username uniqueness are
// enforced by the table's UNIQUE constraints; callers should translate a
// unique-constraint failure with IsUniqueConstraintError.
func (r *UserRepository) Create(p CreateUserParams) (*models.User, error) {
	id, err := generateID("usr")
	if err != nil {
		return nil, fmt.Errorf("generating user ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.Exec(
		`INSERT INTO users (id, email, username, display_name, first_name, last_name, bio, location, gender, is_verified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		id, p.Email, p.Username, p.DisplayName, p.FirstName, p.LastName, p.Bio, p.Location, p.Gender, now,
	)
	if err != nil {
		return nil, err
	}

	return &models.User{
		ID:          id,
		Email:       p.Email,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Bio:         p.Bio,
		Location:    p.Location,
		Gender:      p.Gender,
		IsVerified:  true,
		CreatedAt:   now,
	}, nil
}

const userColumns = `id, email, username, display_name, first_name, last_name, bio, location, gender, is_verified, created_at, updated_at`

func (r *UserRepository) FindByID(id string) (*models.User, error) {
	return r.findOne(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindByEmail(email string) (*models.User, error) {
	return r.findOne(`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepository) FindByUsername(username string) (*models.User, error) {
	return r.findOne(`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// EmailRegistered reports whether a verified user already owns this email.
func (r *UserRepository) EmailRegistered(email string) (bool, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users WHERE email = ? AND is_verified = 1`, email).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking email registration: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepository) IsUsernameAvailable(username string) (bool, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking username availability: %w", err)
	}
	return count == 0, nil
}

type UpdateProfileParams struct {
	DisplayName *string
	Bio         *string
	Location    *string
	Gender      *string
}

func (r *UserRepository) UpdateProfile(id string, p UpdateProfileParams) error {
	query := `UPDATE users SET updated_at = ?`
	args := []any{time.Now().UTC()}

	if p.DisplayName != nil {
		query += `, display_name = ?`
		args = append(args, *p.DisplayName)
	}
	if p.Bio != nil {
		query += `, bio = ?`
		args = append(args, *p.Bio)
	}
	if p.Location != nil {
		query += `, location = ?`
		args = append(args, *p.Location)
	}
	if p.Gender != nil {
		query += `, gender = ?`
		args = append(args, *p.Gender)
	}

	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) findOne(query string, args ...any) (*models.User, error) {
	var u models.User
	var bio, location, gender sql.NullString
	var updatedAt sql.NullTime

	err := r.db.QueryRow(query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.DisplayName,
		&u.FirstName,
		&u.LastName,
		&bio,
		&location,
		&gender,
		&u.IsVerified,
		&u.CreatedAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	u.Bio = nullStringToPtr(bio)
	u.Location = nullStringToPtr(location)
	u.Gender = nullStringToPtr(gender)
	u.UpdatedAt = nullTimeToPtr(updatedAt)

	return &u, nil
}
