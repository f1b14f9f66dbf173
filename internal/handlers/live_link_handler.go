package handlers

import (
	"net/http"
	"time"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// LiveLinkHandler serves links to external live broadcasts.
type LiveLinkHandler struct {
	liveLinkRepository repositories.LiveLinkRepository
}

// NewLiveLinkHandler creates a new LiveLinkHandler
func NewLiveLinkHandler(liveLinkRepo repositories.LiveLinkRepository) *LiveLinkHandler {
	return &LiveLinkHandler{liveLinkRepository: liveLinkRepo}
}

func (h *LiveLinkHandler) RegisterPublicLiveLinkRoutes(g *echo.Group) {
	g.GET("/live", h.GetActiveLinks)
}

// RegisterAdminLiveLinkRoutes registers live link management on an admin group
func (h *LiveLinkHandler) RegisterAdminLiveLinkRoutes(g *echo.Group) {
	g.GET("/admin/live", h.GetAllLinks)
	g.POST("/live", h.CreateLink)
	g.PUT("/live/:id", h.UpdateLink)
	g.DELETE("/live/:id", h.DeleteLink)
}

func (h *LiveLinkHandler) GetActiveLinks(c echo.Context) error {
	return h.list(c, true)
}

func (h *LiveLinkHandler) GetAllLinks(c echo.Context) error {
	return h.list(c, false)
}

func (h *LiveLinkHandler) list(c echo.Context, activeOnly bool) error {
	links, err := h.liveLinkRepository.ListLiveLinks(c.Request().Context(), activeOnly)
	if err != nil {
		return httpError(err)
	}
	if links == nil {
		links = []models.LiveLink{}
	}
	return c.JSON(http.StatusOK, links)
}

// CreateLink adds a link; it is active unless the body says otherwise.
func (h *LiveLinkHandler) CreateLink(c echo.Context) error {
	var req models.LiveLinkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	link := &models.LiveLink{
		ID:        uuid.NewString(),
		Title:     req.Title,
		URL:       req.URL,
		Platform:  req.Platform,
		Active:    req.Active == nil || *req.Active,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.liveLinkRepository.CreateLiveLink(c.Request().Context(), link); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, link)
}

func (h *LiveLinkHandler) UpdateLink(c echo.Context) error {
	var req models.LiveLinkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	link := &models.LiveLink{
		ID:       c.Param("id"),
		Title:    req.Title,
		URL:      req.URL,
		Platform: req.Platform,
		Active:   req.Active == nil || *req.Active,
	}
	if err := h.liveLinkRepository.UpdateLiveLink(c.Request().Context(), link); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, link)
}

func (h *LiveLinkHandler) DeleteLink(c echo.Context) error {
	if err := h.liveLinkRepository.DeleteLiveLink(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
