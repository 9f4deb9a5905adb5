package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hiddo/internal/constants"
	"hiddo/internal/models"
)

type CommentRepository struct {
	db *DB
}

func NewCommentRepository(db *DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(postID, authorID, content string) (*models.Comment, error) {
	id, err := generateID("cmt")
	if err != nil {
		return nil, fmt.Errorf("generating comment ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.Exec(
		`INSERT INTO comments (id, post_id, author_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, postID, authorID, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	return &models.Comment{
		ID:        id,
		PostID:    postID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: now,
	}, nil
}

func (r *CommentRepository) FindByID(id string) (*models.Comment, error) {
	var c models.Comment

	err := r.db.QueryRow(
		`SELECT id, post_id, author_id, content, created_at FROM comments WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying comment: %w", err)
	}

	return &c, nil
}

func (r *CommentRepository) ListByPost(postID string, limit int) ([]*models.Comment, error) {
	if limit <= 0 || limit > constants.FeedMaxLimit {
		limit = constants.FeedDefaultLimit
	}

	rows, err := r.db.Query(
		`SELECT c.id, c.post_id, c.author_id, u.username, c.content, c.created_at
		 FROM comments c
		 LEFT JOIN users u ON c.author_id = u.id
		 WHERE c.post_id = ?
		 ORDER BY c.rowid ASC LIMIT ?`,
		postID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*models.Comment, 0)
	for rows.Next() {
		var c models.Comment
		var authorName sql.NullString

		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &authorName, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		if authorName.Valid {
			c.AuthorName = authorName.String
		}
		comments = append(comments, &c)
	}

	return comments, rows.Err()
}

func (r *CommentRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	return checkRowsAffected(result)
}
