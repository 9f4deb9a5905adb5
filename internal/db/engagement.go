package db

import (
	"fmt"
	"time"
)

// Like records a like. It is idempotent: liking twice is a no-op.
func (r *PostRepository) Like(postID, userID string) error {
	if err := r.requirePost(postID); err != nil {
		return err
	}
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)`,
		postID, userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("liking post: %w", err)
	}
	return nil
}

func (r *PostRepository) Unlike(postID, userID string) error {
	if err := r.requirePost(postID); err != nil {
		return err
	}
	_, err := r.db.Exec(`DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID)
	if err != nil {
		return fmt.Errorf("unliking post: %w", err)
	}
	return nil
}

// Save bookmarks a post for later. Idempotent like Like.
func (r *PostRepository) Save(postID, userID string) error {
	if err := r.requirePost(postID); err != nil {
		return err
	}
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO post_saves (post_id, user_id, created_at) VALUES (?, ?, ?)`,
		postID, userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving post: %w", err)
	}
	return nil
}

func (r *PostRepository) Unsave(postID, userID string) error {
	if err := r.requirePost(postID); err != nil {
		return err
	}
	_, err := r.db.Exec(`DELETE FROM post_saves WHERE post_id = ? AND user_id = ?`, postID, userID)
	if err != nil {
		return fmt.Errorf("unsaving post: %w", err)
	}
	return nil
}

func (r *PostRepository) requirePost(postID string) error {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM posts WHERE id = ?`, postID).Scan(&count); err != nil {
		return fmt.Errorf("checking post existence: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
