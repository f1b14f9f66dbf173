package handlers

import (
	"net/http"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// AdminHandler serves the moderation dashboard.
type AdminHandler struct {
	posts  *services.PostService
	market *services.MarketplaceService

	userRepository        repositories.UserRepository
	postRepository        repositories.PostRepository
	pollRepository        repositories.PollRepository
	callRepository        repositories.CallRepository
	marketplaceRepository repositories.MarketplaceRepository
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	posts *services.PostService,
	market *services.MarketplaceService,
	userRepo repositories.UserRepository,
	postRepo repositories.PostRepository,
	pollRepo repositories.PollRepository,
	callRepo repositories.CallRepository,
	marketRepo repositories.MarketplaceRepository,
) *AdminHandler {
	return &AdminHandler{
		posts:                 posts,
		market:                market,
		userRepository:        userRepo,
		postRepository:        postRepo,
		pollRepository:        pollRepo,
		callRepository:        callRepo,
		marketplaceRepository: marketRepo,
	}
}

// RegisterAdminRoutes registers routes for a group already restricted to admins
func (h *AdminHandler) RegisterAdminRoutes(g *echo.Group) {
	g.GET("/admin/stats", h.GetStats)
	g.GET("/admin/users", h.GetUsers)
	g.PUT("/admin/users/:id/role", h.UpdateUserRole)
	g.GET("/admin/posts/pending", h.GetPendingPosts)
	g.PUT("/admin/posts/:id/status", h.UpdatePostStatus)
	g.GET("/admin/listings/pending", h.GetPendingListings)
	g.PUT("/admin/listings/:id/status", h.UpdateListingStatus)
}

// Stats is the dashboard summary.
type Stats struct {
	Users           int64 `json:"users"`
	PublishedPosts  int64 `json:"publishedPosts"`
	PendingPosts    int64 `json:"pendingPosts"`
	PendingListings int64 `json:"pendingListings"`
	ActivePolls     int64 `json:"activePolls"`
	RingingCalls    int64 `json:"ringingCalls"`
	ConnectedCalls  int64 `json:"connectedCalls"`
}

// GetStats counts users, content awaiting moderation and calls in flight.
func (h *AdminHandler) GetStats(c echo.Context) error {
	var stats Stats
	g, ctx := errgroup.WithContext(c.Request().Context())

	g.Go(func() (err error) {
		stats.Users, err = h.userRepository.CountUsers(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.PublishedPosts, err = h.postRepository.CountByStatus(ctx, models.PostPublished)
		return err
	})
	g.Go(func() (err error) {
		stats.PendingPosts, err = h.postRepository.CountByStatus(ctx, models.PostPending)
		return err
	})
	g.Go(func() (err error) {
		stats.PendingListings, err = h.marketplaceRepository.CountListings(ctx, models.ListingPending)
		return err
	})
	g.Go(func() (err error) {
		stats.ActivePolls, err = h.pollRepository.CountByStatus(ctx, models.PollActive)
		return err
	})
	g.Go(func() (err error) {
		stats.RingingCalls, err = h.callRepository.CountByStatus(ctx, models.CallRinging)
		return err
	})
	g.Go(func() (err error) {
		stats.ConnectedCalls, err = h.callRepository.CountByStatus(ctx, models.CallConnected)
		return err
	})

	if err := g.Wait(); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// GetUsers lists every account, paged.
func (h *AdminHandler) GetUsers(c echo.Context) error {
	page, limit := pagination(c, 20, 100)

	users, total, err := h.userRepository.GetUsers(c.Request().Context(), (page-1)*limit, limit)
	if err != nil {
		return httpError(err)
	}
	if users == nil {
		users = []models.User{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    users,
		"meta":    pageMeta(page, limit, total),
	})
}

// UpdateUserRole changes a user's role. It takes effect on their next login.
func (h *AdminHandler) UpdateUserRole(c echo.Context) error {
	var req models.UpdateRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	id := c.Param("id")
	if id == currentUserID(c) && req.Role != models.RoleAdmin {
		return echo.NewHTTPError(http.StatusBadRequest, "Admins cannot demote themselves")
	}
	if err := h.userRepository.UpdateRole(c.Request().Context(), id, req.Role); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "role": req.Role})
}

func (h *AdminHandler) GetPendingPosts(c echo.Context) error {
	page, limit := pagination(c, 20, 100)

	posts, total, err := h.posts.List(c.Request().Context(), models.PostFilter{Status: models.PostPending}, int64(page), int64(limit))
	if err != nil {
		return httpError(err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    posts,
		"meta":    pageMeta(page, limit, total),
	})
}

func (h *AdminHandler) UpdatePostStatus(c echo.Context) error {
	admin, err := currentUser(c, h.userRepository)
	if err != nil {
		return err
	}

	var req models.UpdatePostStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.posts.SetStatus(c.Request().Context(), admin, c.Param("id"), req.Status); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "status": req.Status})
}

func (h *AdminHandler) GetPendingListings(c echo.Context) error {
	listings, err := h.market.Pending(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if listings == nil {
		listings = []models.PhoneListing{}
	}
	return c.JSON(http.StatusOK, listings)
}

func (h *AdminHandler) UpdateListingStatus(c echo.Context) error {
	admin, err := currentUser(c, h.userRepository)
	if err != nil {
		return err
	}

	var req models.UpdateListingStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	listing, err := h.market.Moderate(c.Request().Context(), admin, c.Param("id"), req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listing)
}
