package blogs

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenith/pkg/models"
)

// testDB opens the database named by DATABASE_URL, skipping the test when
// no database is available.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping database test")
	}

	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	t.Cleanup(func() { db.Close() })
	return db
}

func testUser(t *testing.T, db *sql.DB, email string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`
		INSERT INTO users (email, password_hash) VALUES ($1, 'x')
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, email).Scan(&id)
	require.NoError(t, err)
	t.Cleanup(func() { db.Exec(`DELETE FROM users WHERE id = $1`, id) })
	return id
}

func TestPostgresStoreCreateAndGet(t *testing.T) {
	db := testDB(t)
	store := NewPostgresStore(db)
	authorID := testUser(t, db, "store-create@test.local")

	excerpt := "a short teaser"
	blog := &models.Blog{
		Title:    "First Light",
		Excerpt:  &excerpt,
		Content:  "The telescope opened its eye.",
		AuthorID: authorID,
	}
	require.NoError(t, store.Create(context.Background(), blog))
	t.Cleanup(func() { store.Delete(context.Background(), blog.ID) })

	assert.NotEmpty(t, blog.ID)
	assert.False(t, blog.CreatedAt.IsZero())

	got, err := store.Get(context.Background(), blog.ID)
	require.NoError(t, err)
	assert.Equal(t, "First Light", got.Title)
	require.NotNil(t, got.Excerpt)
	assert.Equal(t, excerpt, *got.Excerpt)
	assert.False(t, got.Published)
	assert.Zero(t, got.ReadCount)
}

func TestPostgresStoreCreateRejectsBlankFields(t *testing.T) {
	db := testDB(t)
	store := NewPostgresStore(db)

	err := store.Create(context.Background(), &models.Blog{Title: "  ", Content: "body"})
	assert.ErrorIs(t, err, ErrInvalidBlog)

	err = store.Create(context.Background(), &models.Blog{Title: "title", Content: "\n"})
	assert.ErrorIs(t, err, ErrInvalidBlog)
}

func TestPostgresStoreListFiltersDrafts(t *testing.T) {
	db := testDB(t)
	store := NewPostgresStore(db)
	authorID := testUser(t, db, "store-list@test.local")

	published := &models.Blog{Title: "Visible", Content: "c", AuthorID: authorID, Published: true}
	draft := &models.Blog{Title: "Hidden", Content: "c", AuthorID: authorID}
	require.NoError(t, store.Create(context.Background(), published))
	require.NoError(t, store.Create(context.Background(), draft))
	t.Cleanup(func() {
		store.Delete(context.Background(), published.ID)
		store.Delete(context.Background(), draft.ID)
	})

	list, err := store.List(context.Background(), true)
	require.NoError(t, err)
	ids := make(map[string]bool)
	for _, b := range list {
		ids[b.ID] = true
	}
	assert.True(t, ids[published.ID])
	assert.False(t, ids[draft.ID])

	all, err := store.List(context.Background(), false)
	require.NoError(t, err)
	ids = make(map[string]bool)
	for _, b := range all {
		ids[b.ID] = true
	}
	assert.True(t, ids[draft.ID])
}

func TestPostgresStoreTrackReadIsIdempotent(t *testing.T) {
	db := testDB(t)
	store := NewPostgresStore(db)
	authorID := testUser(t, db, "store-track-author@test.local")
	readerID := testUser(t, db, "store-track-reader@test.local")

	blog := &models.Blog{Title: "Counted", Content: "c", AuthorID: authorID, Published: true}
	require.NoError(t, store.Create(context.Background(), blog))
	t.Cleanup(func() { store.Delete(context.Background(), blog.ID) })

	// The same reader visiting twice counts once.
	require.NoError(t, store.TrackRead(context.Background(), blog.ID, readerID))
	require.NoError(t, store.TrackRead(context.Background(), blog.ID, readerID))

	got, err := store.Get(context.Background(), blog.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ReadCount)

	require.NoError(t, store.TrackRead(context.Background(), blog.ID, authorID))
	got, err = store.Get(context.Background(), blog.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ReadCount)
}

func TestPostgresStoreTrackReadConcurrentReaders(t *testing.T) {
	db := testDB(t)
	store := NewPostgresStore(db)
	authorID := testUser(t, db, "store-concurrent-author@test.local")

	blog := &models.Blog{Title: "Popular", Content: "c", AuthorID: authorID, Published: true}
	require.NoError(t, store.Create(context.Background(), blog))
	t.Cleanup(func() { store.Delete(context.Background(), blog.ID) })

	const readers = 8
	readerIDs := make([]int64, readers)
	for i := range readerIDs {
		readerIDs[i] = testUser(t, db, fmt.Sprintf("store-concurrent-%d@test.local", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for _, id := range readerIDs {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			errs <- store.TrackRead(context.Background(), blog.ID, userID)
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := store.Get(context.Background(), blog.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(readers), got.ReadCount)
}

func TestPostgresStoreSetPublishedAndDelete(t *testing.T) {
	db := testDB(t)
	store := NewPostgresStore(db)
	authorID := testUser(t, db, "store-publish@test.local")

	blog := &models.Blog{Title: "Toggle", Content: "c", AuthorID: authorID}
	require.NoError(t, store.Create(context.Background(), blog))

	require.NoError(t, store.SetPublished(context.Background(), blog.ID, true))
	got, err := store.Get(context.Background(), blog.ID)
	require.NoError(t, err)
	assert.True(t, got.Published)

	require.NoError(t, store.Delete(context.Background(), blog.ID))
	_, err = store.Get(context.Background(), blog.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.SetPublished(context.Background(), blog.ID, false), ErrNotFound)
	assert.ErrorIs(t, store.Delete(context.Background(), blog.ID), ErrNotFound)
}
