package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hiddo/internal/models"
)

type FollowRepository struct {
	db *DB
}

func NewFollowRepository(db *DB) *FollowRepository {
	return &FollowRepository{db: db}
}

var ErrSelfFollow = errors.New("cannot follow yourself")

// Follow records followerID following followeeID. Idempotent.
func (r *FollowRepository) Follow(followerID, followeeID string) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?)`,
		followerID, followeeID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating follow: %w", err)
	}
	return nil
}

func (r *FollowRepository) Unfollow(followerID, followeeID string) error {
	_, err := r.db.Exec(`DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("deleting follow: %w", err)
	}
	return nil
}

func (r *FollowRepository) IsFollowing(followerID, followeeID string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM follows WHERE follower_id = ? AND followee_id = ?`,
		followerID, followeeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking follow: %w", err)
	}
	return count > 0, nil
}

// Counts returns how many users follow userID and how many userID follows.
func (r *FollowRepository) Counts(userID string) (followers, following int, err error) {
	err = r.db.QueryRow(
		`SELECT
			(SELECT COUNT(*) FROM follows WHERE followee_id = ?),
			(SELECT COUNT(*) FROM follows WHERE follower_id = ?)`,
		userID, userID,
	).Scan(&followers, &following)
	if err != nil {
		return 0, 0, fmt.Errorf("counting follows: %w", err)
	}
	return followers, following, nil
}

func (r *FollowRepository) Followers(userID string) ([]*models.PublicUser, error) {
	return r.queryUsers(
		`SELECT u.id, u.username, u.display_name, u.bio, u.location, u.created_at
		 FROM follows f JOIN users u ON f.follower_id = u.id
		 WHERE f.followee_id = ? ORDER BY f.created_at DESC`,
		userID,
	)
}

func (r *FollowRepository) Following(userID string) ([]*models.PublicUser, error) {
	return r.queryUsers(
		`SELECT u.id, u.username, u.display_name, u.bio, u.location, u.created_at
		 FROM follows f JOIN users u ON f.followee_id = u.id
		 WHERE f.follower_id = ? ORDER BY f.created_at DESC`,
		userID,
	)
}

func (r *FollowRepository) queryUsers(query string, args ...any) ([]*models.PublicUser, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying follow users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.PublicUser, 0)
	for rows.Next() {
		var u models.PublicUser
		var bio, location sql.NullString

		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &bio, &location, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning follow user: %w", err)
		}
		u.Bio = nullStringToPtr(bio)
		u.Location = nullStringToPtr(location)
		users = append(users, &u)
	}

	return users, rows.Err()
}
