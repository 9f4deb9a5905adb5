package models

import "time"

type Post struct {
	ID           string     `json:"id"`
	AuthorID     string     `json:"authorId"`
	AuthorName   string     `json:"authorUsername,omitempty"`
	ImageURL     string     `json:"imageUrl"`
	Caption      *string    `json:"caption,omitempty"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	LikeCount    int        `json:"likeCount"`
	CommentCount int        `json:"commentCount"`
	Liked        bool       `json:"liked"`
	Saved        bool       `json:"saved"`
	DistanceKm   *float64   `json:"distanceKm,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"postId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorUsername,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Story is ephemeral: it disappears 24 hours after creation.
type Story struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorUsername,omitempty"`
	ImageURL   string    `json:"imageUrl"`
	Caption    *string   `json:"caption,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
}
