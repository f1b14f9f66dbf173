package handlers

import (
	"net/http"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	posts          *services.PostService
	userRepository repositories.UserRepository
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(posts *services.PostService, userRepo repositories.UserRepository) *PostHandler {
	return &PostHandler{
		posts:          posts,
		userRepository: userRepo,
	}
}

// RegisterPublicPostRoutes registers the read-only post routes. The group is
// expected to run OptionalJWT so authors can preview their own drafts.
func (h *PostHandler) RegisterPublicPostRoutes(g *echo.Group) {
	g.GET("/posts", h.GetPosts)
	g.GET("/posts/slug/:slug", h.GetPostBySlug)
	g.GET("/posts/:id", h.GetPost)
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.GET("/posts/mine", h.GetMyPosts)
	g.POST("/posts", h.CreatePost)
	g.PUT("/posts/:id", h.UpdatePost)
	g.DELETE("/posts/:id", h.DeletePost)
}

// viewer returns the signed-in user, or nil for anonymous requests.
func (h *PostHandler) viewer(c echo.Context) *models.User {
	id := currentUserID(c)
	if id == "" {
		return nil
	}
	user, err := h.userRepository.GetUserByID(c.Request().Context(), id)
	if err != nil {
		return nil
	}
	return user
}

// CreatePost creates a new post
func (h *PostHandler) CreatePost(c echo.Context) error {
	user, err := currentUser(c, h.userRepository)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post, err := h.posts.Create(c.Request().Context(), user, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, post)
}

// GetPost retrieves a published post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.posts.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if post.Status != models.PostPublished {
		viewer := h.viewer(c)
		if viewer == nil || (viewer.ID != post.Author.ID && viewer.Role == models.RoleUser) {
			return echo.NewHTTPError(http.StatusNotFound, repositories.ErrPostNotFound.Error())
		}
	}
	return c.JSON(http.StatusOK, post)
}

// GetPostBySlug serves the article page and counts the view.
func (h *PostHandler) GetPostBySlug(c echo.Context) error {
	post, err := h.posts.GetBySlug(c.Request().Context(), c.Param("slug"), h.viewer(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, post)
}

// GetPosts returns the published feed, filterable by category, tag and author.
func (h *PostHandler) GetPosts(c echo.Context) error {
	page, limit := pagination(c, 10, 50)
	filter := models.PostFilter{
		Status:   models.PostPublished,
		Category: c.QueryParam("category"),
		Tag:      c.QueryParam("tag"),
		AuthorID: c.QueryParam("author"),
	}
	return h.list(c, filter, page, limit)
}

// GetMyPosts lists the caller's posts in every status.
func (h *PostHandler) GetMyPosts(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 10, 50)
	filter := models.PostFilter{
		Status:   models.PostStatus(c.QueryParam("status")),
		AuthorID: userID,
	}
	return h.list(c, filter, page, limit)
}

func (h *PostHandler) list(c echo.Context, filter models.PostFilter, page, limit int) error {
	posts, total, err := h.posts.List(c.Request().Context(), filter, int64(page), int64(limit))
	if err != nil {
		return httpError(err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"posts": posts},
		"meta":    pageMeta(page, limit, total),
	})
}

// UpdatePost updates an existing post
func (h *PostHandler) UpdatePost(c echo.Context) error {
	user, err := currentUser(c, h.userRepository)
	if err != nil {
		return err
	}

	var req models.UpdatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post, err := h.posts.Update(c.Request().Context(), user, c.Param("id"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, post)
}

// DeletePost deletes a post with its comments, reviews and likes.
func (h *PostHandler) DeletePost(c echo.Context) error {
	user, err := currentUser(c, h.userRepository)
	if err != nil {
		return err
	}

	if err := h.posts.Delete(c.Request().Context(), user, c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
