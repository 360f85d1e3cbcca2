package blogs

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/zenith/pkg/models"
)

// ReadRepairQueue accepts deferred read-count repair jobs
type ReadRepairQueue interface {
	Enqueue(ctx context.Context, blogID string) error
}

// Handlers contains the blog HTTP handler methods
type Handlers struct {
	store  Store
	repair ReadRepairQueue
}

// NewHandlers creates blog handlers over the given store. repair may be
// nil, in which case failed read tracking is only logged.
func NewHandlers(store Store, repair ReadRepairQueue) *Handlers {
	return &Handlers{store: store, repair: repair}
}

// RegisterRoutes wires the blog endpoints. requireAuth gates author
// operations; optionalAuth identifies logged-in readers without
// rejecting anonymous ones.
func (h *Handlers) RegisterRoutes(e *echo.Echo, requireAuth, optionalAuth echo.MiddlewareFunc) {
	g := e.Group("/api/v1/blogs")

	g.GET("", h.ListPublished)
	g.GET("/all", h.ListAll, requireAuth)
	g.GET("/stats", h.GetStats, requireAuth)
	g.GET("/:id", h.GetBlog, optionalAuth)
	g.POST("", h.CreateBlog, requireAuth)
	g.PATCH("/:id/publish", h.TogglePublish, requireAuth)
	g.DELETE("/:id", h.DeleteBlog, requireAuth)
}

// CreateBlogRequest is the body for creating a story
type CreateBlogRequest struct {
	Title      string `json:"title"`
	Excerpt    string `json:"excerpt"`
	Content    string `json:"content"`
	CoverImage string `json:"cover_image"`
	Publish    bool   `json:"publish"`
}

// BlogResponse is a blog as seen by a reader. ReadCount is only filled in
// for the author's own view.
type BlogResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Excerpt    *string   `json:"excerpt"`
	Content    string    `json:"content"`
	CoverImage *string   `json:"cover_image"`
	Published  bool      `json:"published"`
	ReadCount  *int64    `json:"read_count,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	IsAuthor   bool      `json:"is_author"`
}

func toResponse(b *models.Blog, isAuthor bool) BlogResponse {
	resp := BlogResponse{
		ID:         b.ID,
		Title:      b.Title,
		Excerpt:    b.Excerpt,
		Content:    b.Content,
		CoverImage: b.CoverImage,
		Published:  b.Published,
		CreatedAt:  b.CreatedAt,
		IsAuthor:   isAuthor,
	}
	if isAuthor {
		count := b.ReadCount
		resp.ReadCount = &count
	}
	return resp
}

// currentUser returns the authenticated user from context, or nil
func currentUser(c echo.Context) *models.User {
	user, _ := c.Get("user").(*models.User)
	return user
}

// ListPublished returns published blogs, newest first
func (h *Handlers) ListPublished(c echo.Context) error {
	list, err := h.store.List(c.Request().Context(), true)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list published blogs")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to list blogs",
		})
	}

	resp := make([]BlogResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toResponse(&list[i], false))
	}
	return c.JSON(http.StatusOK, resp)
}

// ListAll returns every blog, drafts included, for the author dashboard
func (h *Handlers) ListAll(c echo.Context) error {
	list, err := h.store.List(c.Request().Context(), false)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list blogs")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to list blogs",
		})
	}

	resp := make([]BlogResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toResponse(&list[i], true))
	}
	return c.JSON(http.StatusOK, resp)
}

// GetBlog returns one blog. A logged-in reader's visit is tracked as a
// deduplicated read.
func (h *Handlers) GetBlog(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	blog, err := h.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Blog not found",
		})
	}
	if err != nil {
		log.Error().Err(err).Str("blog_id", id).Msg("Failed to get blog")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to get blog",
		})
	}

	user := currentUser(c)
	if user != nil {
		if err := h.store.TrackRead(ctx, id, user.ID); err != nil {
			// The page still renders; a repair job catches the count up.
			log.Warn().Err(err).Str("blog_id", id).Msg("Failed to track read")
			if h.repair != nil {
				if err := h.repair.Enqueue(ctx, id); err != nil {
					log.Warn().Err(err).Str("blog_id", id).Msg("Failed to queue read-count repair")
				}
			}
		} else if fresh, err := h.store.Get(ctx, id); err == nil {
			blog = fresh
		}
	}

	// V1: the founder is the sole author, so any logged-in user sees the
	// author view.
	isAuthor := user != nil
	return c.JSON(http.StatusOK, toResponse(blog, isAuthor))
}

// CreateBlog creates a new story, as draft or published
func (h *Handlers) CreateBlog(c echo.Context) error {
	user := currentUser(c)
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Authentication required",
		})
	}

	var req CreateBlogRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	blog := &models.Blog{
		Title:     req.Title,
		Content:   req.Content,
		AuthorID:  user.ID,
		Published: req.Publish,
	}
	if req.Excerpt != "" {
		blog.Excerpt = &req.Excerpt
	}
	if req.CoverImage != "" {
		blog.CoverImage = &req.CoverImage
	}

	err := h.store.Create(c.Request().Context(), blog)
	if errors.Is(err, ErrInvalidBlog) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Title and content are required",
		})
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to create blog")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to create blog",
		})
	}

	log.Info().Str("blog_id", blog.ID).Bool("published", blog.Published).Msg("Blog created")
	return c.JSON(http.StatusCreated, toResponse(blog, true))
}

// TogglePublishRequest sets the publish state explicitly
type TogglePublishRequest struct {
	Published bool `json:"published"`
}

// TogglePublish flips a blog between draft and published
func (h *Handlers) TogglePublish(c echo.Context) error {
	id := c.Param("id")

	var req TogglePublishRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	err := h.store.SetPublished(c.Request().Context(), id, req.Published)
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Blog not found",
		})
	}
	if err != nil {
		log.Error().Err(err).Str("blog_id", id).Msg("Failed to update publish state")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to update blog",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":        id,
		"published": req.Published,
	})
}

// DeleteBlog removes a story permanently
func (h *Handlers) DeleteBlog(c echo.Context) error {
	id := c.Param("id")

	err := h.store.Delete(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Blog not found",
		})
	}
	if err != nil {
		log.Error().Err(err).Str("blog_id", id).Msg("Failed to delete blog")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to delete blog",
		})
	}

	log.Info().Str("blog_id", id).Msg("Blog deleted")
	return c.NoContent(http.StatusNoContent)
}

// GetStats returns the author dashboard aggregates
func (h *Handlers) GetStats(c echo.Context) error {
	stats, err := h.store.Stats(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to get blog stats")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to get stats",
		})
	}
	return c.JSON(http.StatusOK, stats)
}
