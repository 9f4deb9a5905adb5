package db

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"hiddo/internal/constants"
	"hiddo/internal/models"
)

type PostRepository struct {
	db *DB
}

func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db}
}

type CreatePostParams struct {
	AuthorID  string
	ImageURL  string
	Caption   *string
	Latitude  float64
	Longitude float64
}

func (r *PostRepository) Create(p CreatePostParams) (*models.Post, error) {
	id, err := generateID("pst")
	if err != nil {
		return nil, fmt.Errorf("generating post ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.Exec(
		`INSERT INTO posts (id, author_id, image_url, caption, latitude, longitude, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, p.AuthorID, p.ImageURL, p.Caption, p.Latitude, p.Longitude, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	return &models.Post{
		ID:        id,
		AuthorID:  p.AuthorID,
		ImageURL:  p.ImageURL,
		Caption:   p.Caption,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		CreatedAt: now,
	}, nil
}

// postColumns selects a post joined with its author plus aggregate counts and
// the viewer's like/save flags. The viewer id is bound twice per use.
const postColumns = `p.id, p.author_id, u.username, p.image_url, p.caption, p.latitude, p.longitude,
	(SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id),
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
	EXISTS(SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = ?),
	EXISTS(SELECT 1 FROM post_saves s WHERE s.post_id = p.id AND s.user_id = ?),
	p.created_at, p.updated_at`

func (r *PostRepository) FindByID(id, viewerID string) (*models.Post, error) {
	row := r.db.QueryRow(
		`SELECT `+postColumns+` FROM posts p LEFT JOIN users u ON p.author_id = u.id WHERE p.id = ?`,
		viewerID, viewerID, id,
	)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying post: %w", err)
	}
	return p, nil
}

// Delete removes a post owned by authorID. ErrNotFound covers both a missing
// post and a post owned by someone else.
func (r *PostRepository) Delete(id, authorID string) error {
	result, err := r.db.Exec(`DELETE FROM posts WHERE id = ? AND author_id = ?`, id, authorID)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	return checkRowsAffected(result)
}

// Feed returns posts authored by the viewer and by explorers the viewer
// follows, newest first, with cursor pagination on the post rowid.
func (r *PostRepository) Feed(viewerID, beforeID string, limit int) ([]*models.Post, error) {
	if limit <= 0 || limit > constants.FeedMaxLimit {
		limit = constants.FeedDefaultLimit
	}

	query := `SELECT ` + postColumns + `
		FROM posts p
		LEFT JOIN users u ON p.author_id = u.id
		WHERE (p.author_id = ? OR p.author_id IN (SELECT followee_id FROM follows WHERE follower_id = ?))`
	args := []any{viewerID, viewerID, viewerID, viewerID}

	if beforeID != "" {
		query += ` AND p.rowid < (SELECT rowid FROM posts WHERE id = ?)`
		args = append(args, beforeID)
	}
	query += ` ORDER BY p.rowid DESC LIMIT ?`
	args = append(args, limit)

	return r.queryPosts(query, args...)
}

// Nearby returns posts inside a latitude/longitude bounding box, nearest to
// the center first by a flat-earth approximation. Callers refine the result
// to an exact radius with a haversine pass.
func (r *PostRepository) Nearby(centerLat, centerLng, minLat, maxLat, minLng, maxLng float64, viewerID string, limit int) ([]*models.Post, error) {
	if limit <= 0 || limit > constants.FeedMaxLimit {
		limit = constants.FeedDefaultLimit
	}

	// Squared degrees with the longitude axis scaled by cos(lat). Monotonic
	// in true distance over box-sized spans, so the oversample keeps the
	// nearest candidates rather than the newest.
	cosLat := math.Cos(centerLat * math.Pi / 180)
	query := `SELECT ` + postColumns + `
		FROM posts p
		LEFT JOIN users u ON p.author_id = u.id
		WHERE p.latitude BETWEEN ? AND ? AND p.longitude BETWEEN ? AND ?
		ORDER BY (p.latitude - ?) * (p.latitude - ?) +
			(p.longitude - ?) * (p.longitude - ?) * ? ASC
		LIMIT ?`

	// Oversample the box so the exact-radius filter still fills the page.
	return r.queryPosts(query, viewerID, viewerID, minLat, maxLat, minLng, maxLng,
		centerLat, centerLat, centerLng, centerLng, cosLat*cosLat, limit*4)
}

func (r *PostRepository) SavedByUser(viewerID string, limit int) ([]*models.Post, error) {
	if limit <= 0 || limit > constants.FeedMaxLimit {
		limit = constants.FeedDefaultLimit
	}

	query := `SELECT ` + postColumns + `
		FROM posts p
		LEFT JOIN users u ON p.author_id = u.id
		JOIN post_saves sv ON sv.post_id = p.id AND sv.user_id = ?
		ORDER BY sv.created_at DESC LIMIT ?`

	return r.queryPosts(query, viewerID, viewerID, viewerID, limit)
}

func (r *PostRepository) CountByAuthor(authorID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM posts WHERE author_id = ?`, authorID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting posts: %w", err)
	}
	return count, nil
}

func (r *PostRepository) queryPosts(query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*models.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating posts: %w", err)
	}

	return posts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var p models.Post
	var authorName, caption sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.AuthorID, &authorName, &p.ImageURL, &caption, &p.Latitude, &p.Longitude,
		&p.LikeCount, &p.CommentCount, &p.Liked, &p.Saved, &p.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if authorName.Valid {
		p.AuthorName = authorName.String
	}
	p.Caption = nullStringToPtr(caption)
	p.UpdatedAt = nullTimeToPtr(updatedAt)

	return &p, nil
}
