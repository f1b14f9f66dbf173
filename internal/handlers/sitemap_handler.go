package handlers

import (
	"net/http"

	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/labstack/echo/v4"
)

type SitemapHandler struct {
	sitemap *services.SitemapService
}

// NewSitemapHandler creates a new SitemapHandler
func NewSitemapHandler(sitemap *services.SitemapService) *SitemapHandler {
	return &SitemapHandler{sitemap: sitemap}
}

// GetSitemap renders the sitemap on demand.
func (h *SitemapHandler) GetSitemap(c echo.Context) error {
	body, err := h.sitemap.Build(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=3600")
	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, body)
}
