package db

import (
	"database/sql"
	"fmt"
	"time"

	"hiddo/internal/models"
)

type StoryRepository struct {
	db *DB
}

func NewStoryRepository(db *DB) *StoryRepository {
	return &StoryRepository{db: db}
}

func (r *StoryRepository) Create(authorID, imageURL string, caption *string, expiresAt time.Time) (*models.Story, error) {
	id, err := generateID("sty")
	if err != nil {
		return nil, fmt.Errorf("generating story ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.Exec(
		`INSERT INTO stories (id, author_id, image_url, caption, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, authorID, imageURL, caption, expiresAt.UTC(), now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating story: %w", err)
	}

	return &models.Story{
		ID:        id,
		AuthorID:  authorID,
		ImageURL:  imageURL,
		Caption:   caption,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// ActiveFeed returns non-expired stories from the viewer and followed
// explorers, newest first. Expiry is evaluated at query time, so a story past
// its expires_at never appears even before the sweeper removes it.
func (r *StoryRepository) ActiveFeed(viewerID string) ([]*models.Story, error) {
	rows, err := r.db.Query(
		`SELECT s.id, s.author_id, u.username, s.image_url, s.caption, s.expires_at, s.created_at
		 FROM stories s
		 LEFT JOIN users u ON s.author_id = u.id
		 WHERE s.expires_at > ?
		   AND (s.author_id = ? OR s.author_id IN (SELECT followee_id FROM follows WHERE follower_id = ?))
		 ORDER BY s.rowid DESC`,
		time.Now().UTC(), viewerID, viewerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying stories: %w", err)
	}
	defer rows.Close()

	stories := make([]*models.Story, 0)
	for rows.Next() {
		var s models.Story
		var authorName, caption sql.NullString

		if err := rows.Scan(&s.ID, &s.AuthorID, &authorName, &s.ImageURL, &caption, &s.ExpiresAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning story: %w", err)
		}
		if authorName.Valid {
			s.AuthorName = authorName.String
		}
		s.Caption = nullStringToPtr(caption)
		stories = append(stories, &s)
	}

	return stories, rows.Err()
}

func (r *StoryRepository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM stories WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired stories: %w", err)
	}
	return result.RowsAffected()
}
