package handlers

import (
	"net/http"

	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	posts          *services.PostService
	likeRepository repositories.LikeRepository
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(posts *services.PostService, likeRepo repositories.LikeRepository) *LikeHandler {
	return &LikeHandler{
		posts:          posts,
		likeRepository: likeRepo,
	}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:id/likes", h.ToggleLike)
	g.GET("/posts/:id/likes", h.GetLikeStatus)
}

// ToggleLike likes the post, or takes the like back.
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	liked, count, err := h.posts.ToggleLike(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"liked": liked, "likesCount": count})
}

// GetLikeStatus reports the like count and whether the caller liked the post.
func (h *LikeHandler) GetLikeStatus(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	postID := c.Param("id")

	liked, err := h.likeRepository.HasUserLikedPost(ctx, postID, userID)
	if err != nil {
		return httpError(err)
	}
	count, err := h.likeRepository.GetLikesCountByPostID(ctx, postID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"liked": liked, "likesCount": count})
}
