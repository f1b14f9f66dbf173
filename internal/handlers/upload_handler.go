package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/bigyann/lumina/backend/pkg/storage"
	"github.com/labstack/echo/v4"
)

// UploadHandler accepts raw file bodies and stores them in blob storage.
type UploadHandler struct {
	uploads *services.UploadService
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(uploads *services.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

func (h *UploadHandler) RegisterUploadRoutes(g *echo.Group) {
	g.POST("/upload", h.Upload)
}

// Upload stores the request body under a randomized key derived from
// ?filename= and returns its public URL.
func (h *UploadHandler) Upload(c echo.Context) error {
	filename := c.QueryParam("filename")
	if filename == "" {
		return echo.NewHTTPError(http.StatusBadRequest, services.ErrMissingFilename.Error())
	}

	body := http.MaxBytesReader(c.Response(), c.Request().Body, h.uploads.MaxBytes()+1)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, services.ErrPayloadTooLarge.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}
	if len(data) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Empty request body")
	}

	url, err := h.uploads.Upload(c.Request().Context(), filename, c.Request().Header.Get(echo.HeaderContentType), data)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"url": url})
}

// ServeMemoryFiles serves objects held by an in-process store under /files/*.
func ServeMemoryFiles(store *storage.MemoryStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		obj, ok := store.Get(c.Param("*"))
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "File not found")
		}
		return c.Blob(http.StatusOK, obj.ContentType, obj.Data)
	}
}
