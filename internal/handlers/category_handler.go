package handlers

import (
	"net/http"
	"time"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CategoryHandler serves blog categories.
type CategoryHandler struct {
	categoryRepository repositories.CategoryRepository
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryRepo repositories.CategoryRepository) *CategoryHandler {
	return &CategoryHandler{categoryRepository: categoryRepo}
}

func (h *CategoryHandler) RegisterPublicCategoryRoutes(g *echo.Group) {
	g.GET("/categories", h.GetCategories)
}

// RegisterAdminCategoryRoutes registers category management on an admin group
func (h *CategoryHandler) RegisterAdminCategoryRoutes(g *echo.Group) {
	g.POST("/categories", h.CreateCategory)
	g.DELETE("/categories/:id", h.DeleteCategory)
}

func (h *CategoryHandler) GetCategories(c echo.Context) error {
	categories, err := h.categoryRepository.ListCategories(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return c.JSON(http.StatusOK, categories)
}

func (h *CategoryHandler) CreateCategory(c echo.Context) error {
	var req models.CreateCategoryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	category := &models.Category{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Slug:        models.Slugify(req.Name),
		Description: req.Description,
		Icon:        req.Icon,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.categoryRepository.CreateCategory(c.Request().Context(), category); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, category)
}

func (h *CategoryHandler) DeleteCategory(c echo.Context) error {
	if err := h.categoryRepository.DeleteCategory(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
