package blogs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zenith/pkg/models"
)

// ErrNotFound is returned when a blog does not exist
var ErrNotFound = errors.New("blog not found")

// ErrInvalidBlog is returned when required fields are missing
var ErrInvalidBlog = errors.New("title and content are required")

// Store is the narrow repository interface the handlers (and tests)
// depend on; nothing above this layer knows which backend serves it.
type Store interface {
	List(ctx context.Context, onlyPublished bool) ([]models.Blog, error)
	Get(ctx context.Context, id string) (*models.Blog, error)
	Create(ctx context.Context, blog *models.Blog) error
	SetPublished(ctx context.Context, id string, published bool) error
	Delete(ctx context.Context, id string) error
	TrackRead(ctx context.Context, blogID string, userID int64) error
	Stats(ctx context.Context) (*models.BlogStats, error)
}

// PostgresStore implements Store over a Postgres database
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a blog store backed by the given database
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const blogColumns = `id, title, excerpt, content, cover_image, author_id, published, read_count, created_at, updated_at`

func scanBlog(row interface{ Scan(...interface{}) error }) (*models.Blog, error) {
	b := &models.Blog{}
	err := row.Scan(&b.ID, &b.Title, &b.Excerpt, &b.Content, &b.CoverImage,
		&b.AuthorID, &b.Published, &b.ReadCount, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// List returns blogs newest-first, optionally restricted to published ones
func (s *PostgresStore) List(ctx context.Context, onlyPublished bool) ([]models.Blog, error) {
	query := `SELECT ` + blogColumns + ` FROM blogs`
	if onlyPublished {
		query += ` WHERE published = true`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list blogs: %w", err)
	}
	defer rows.Close()

	var blogs []models.Blog
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blog: %w", err)
		}
		blogs = append(blogs, *b)
	}
	return blogs, rows.Err()
}

// Get returns one blog by ID
func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Blog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+blogColumns+` FROM blogs WHERE id = $1
	`, id)

	b, err := scanBlog(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blog: %w", err)
	}
	return b, nil
}

// Create inserts a new blog. Title and content are required; excerpt and
// cover image stay NULL when empty.
func (s *PostgresStore) Create(ctx context.Context, blog *models.Blog) error {
	blog.Title = strings.TrimSpace(blog.Title)
	blog.Content = strings.TrimSpace(blog.Content)
	if blog.Title == "" || blog.Content == "" {
		return ErrInvalidBlog
	}

	if blog.ID == "" {
		blog.ID = uuid.NewString()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO blogs (id, title, excerpt, content, cover_image, author_id, published)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, blog.ID, blog.Title, blog.Excerpt, blog.Content, blog.CoverImage,
		blog.AuthorID, blog.Published).Scan(&blog.CreatedAt, &blog.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create blog: %w", err)
	}
	return nil
}

// SetPublished toggles the publish state of a blog
func (s *PostgresStore) SetPublished(ctx context.Context, id string, published bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE blogs SET published = $1, updated_at = NOW() WHERE id = $2
	`, published, id)
	if err != nil {
		return fmt.Errorf("failed to update publish state: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a blog and its read records (cascade)
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete blog: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// TrackRead records a deduplicated read for (blog, user) and refreshes the
// denormalized read_count in the same transaction. The count is computed
// inside the UPDATE, so concurrent readers cannot clobber each other.
func (s *PostgresStore) TrackRead(ctx context.Context, blogID string, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO blog_reads (blog_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (blog_id, user_id) DO NOTHING
	`, blogID, userID)
	if err != nil {
		return fmt.Errorf("failed to record read: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE blogs
		SET read_count = (SELECT COUNT(*) FROM blog_reads WHERE blog_id = $1)
		WHERE id = $1
	`, blogID)
	if err != nil {
		return fmt.Errorf("failed to update read count: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit read tracking: %w", err)
	}
	return nil
}

// Stats aggregates the author dashboard numbers
func (s *PostgresStore) Stats(ctx context.Context) (*models.BlogStats, error) {
	stats := &models.BlogStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE published),
		       COALESCE(SUM(read_count), 0)
		FROM blogs
	`).Scan(&stats.TotalBlogs, &stats.PublishedBlogs, &stats.TotalReads)

	if err != nil {
		return nil, fmt.Errorf("failed to get blog stats: %w", err)
	}
	return stats, nil
}
