package models

import (
	"time"
)

// User represents a registered reader/author account
type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never expose password hash in JSON
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Blog represents a single story on ZENITH
type Blog struct {
	ID         string    `json:"id" db:"id"`
	Title      string    `json:"title" db:"title"`
	Excerpt    *string   `json:"excerpt" db:"excerpt"`
	Content    string    `json:"content" db:"content"`
	CoverImage *string   `json:"cover_image" db:"cover_image"`
	AuthorID   int64     `json:"author_id" db:"author_id"`
	Published  bool      `json:"published" db:"published"`
	ReadCount  int64     `json:"read_count" db:"read_count"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// BlogRead records that a user has opened a blog at least once.
// The (blog_id, user_id) pair is unique, which is what makes read
// counting deduplicated.
type BlogRead struct {
	BlogID    string    `json:"blog_id" db:"blog_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BlogStats aggregates dashboard numbers for an author
type BlogStats struct {
	TotalBlogs     int64 `json:"total_blogs"`
	PublishedBlogs int64 `json:"published_blogs"`
	TotalReads     int64 `json:"total_reads"`
}
