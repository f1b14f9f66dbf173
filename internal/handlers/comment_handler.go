package handlers

import (
	"net/http"
	"strconv"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles HTTP requests related to comments and reviews
type CommentHandler struct {
	posts          *services.PostService
	userRepository repositories.UserRepository
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(posts *services.PostService, userRepo repositories.UserRepository) *CommentHandler {
	return &CommentHandler{
		posts:          posts,
		userRepository: userRepo,
	}
}

// RegisterPublicCommentRoutes registers the read-only comment and review routes
func (h *CommentHandler) RegisterPublicCommentRoutes(g *echo.Group) {
	g.GET("/posts/:id/comments", h.GetCommentsByPostID)
	g.GET("/posts/:id/reviews", h.GetReviews)
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/posts/:id/comments", h.CreateComment)
	g.PUT("/comments/:id", h.UpdateComment)
	g.DELETE("/comments/:id", h.DeleteComment)
	g.POST("/posts/:id/reviews", h.CreateReview)
}

// CreateComment creates a new comment on a post
func (h *CommentHandler) CreateComment(c echo.Context) error {
	user, err := currentUser(c, h.userRepository)
	if err != nil {
		return err
	}

	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment, err := h.posts.AddComment(c.Request().Context(), user, c.Param("id"), req.Content)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, comment)
}

// GetCommentsByPostID retrieves comments for a specific post
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	page, limit := pagination(c, 20, 100)

	comments, err := h.posts.Comments(c.Request().Context(), c.Param("id"), (page-1)*limit, limit)
	if err != nil {
		return httpError(err)
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return c.JSON(http.StatusOK, comments)
}

func commentID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid comment ID")
	}
	return uint(id), nil
}

// UpdateComment updates an existing comment
func (h *CommentHandler) UpdateComment(c echo.Context) error {
	id, err := commentID(c)
	if err != nil {
		return err
	}
	user, err := currentUser(c, h.userRepository)
	if err != nil {
		return err
	}

	var req models.UpdateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment, err := h.posts.UpdateComment(c.Request().Context(), user, id, req.Content)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, comment)
}

// DeleteComment deletes a comment
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	id, err := commentID(c)
	if err != nil {
		return err
	}
	user, err := currentUser(c, h.userRepository)
	if err != nil {
		return err
	}

	if err := h.posts.DeleteComment(c.Request().Context(), user, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateReview stores the caller's rated review of a post.
func (h *CommentHandler) CreateReview(c echo.Context) error {
	user, err := currentUser(c, h.userRepository)
	if err != nil {
		return err
	}

	var req models.CreateReviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	review, err := h.posts.AddReview(c.Request().Context(), user, c.Param("id"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, review)
}

// GetReviews returns a post's reviews and its average rating.
func (h *CommentHandler) GetReviews(c echo.Context) error {
	reviews, summary, err := h.posts.Reviews(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reviews": reviews,
		"summary": summary,
	})
}
