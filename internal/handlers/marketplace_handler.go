package handlers

import (
	"net/http"
	"strconv"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// MarketplaceHandler serves phone listings and buyer requests.
type MarketplaceHandler struct {
	market         *services.MarketplaceService
	userRepository repositories.UserRepository
}

// NewMarketplaceHandler creates a new MarketplaceHandler
func NewMarketplaceHandler(market *services.MarketplaceService, userRepo repositories.UserRepository) *MarketplaceHandler {
	return &MarketplaceHandler{market: market, userRepository: userRepo}
}

func (h *MarketplaceHandler) RegisterPublicMarketplaceRoutes(g *echo.Group) {
	g.GET("/marketplace/listings", h.GetListings)
	g.GET("/marketplace/listings/:id", h.GetListing)
	g.GET("/marketplace/requests", h.GetBuyerRequests)
}

func (h *MarketplaceHandler) RegisterMarketplaceRoutes(g *echo.Group) {
	g.GET("/marketplace/listings/mine", h.GetMyListings)
	g.POST("/marketplace/listings", h.CreateListing)
	g.PUT("/marketplace/listings/:id/sold", h.MarkSold)
	g.DELETE("/marketplace/listings/:id", h.DeleteListing)
	g.POST("/marketplace/requests", h.CreateBuyerRequest)
	g.DELETE("/marketplace/requests/:id", h.DeleteBuyerRequest)
}

// GetListings returns approved listings filtered by brand, condition and
// min/max price.
func (h *MarketplaceHandler) GetListings(c echo.Context) error {
	filter := models.ListingFilter{
		Brand:     c.QueryParam("brand"),
		Condition: c.QueryParam("condition"),
	}
	var err error
	if v := c.QueryParam("minPrice"); v != "" {
		if filter.MinPrice, err = strconv.ParseFloat(v, 64); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid minPrice")
		}
	}
	if v := c.QueryParam("maxPrice"); v != "" {
		if filter.MaxPrice, err = strconv.ParseFloat(v, 64); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid maxPrice")
		}
	}

	listings, err := h.market.Listings(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listings)
}

// GetListing returns one listing. Listings that are not approved are only
// shown to their seller.
func (h *MarketplaceHandler) GetListing(c echo.Context) error {
	listing, err := h.market.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if listing.Status != models.ListingApproved && listing.Status != models.ListingSold && currentUserID(c) != listing.Seller.ID {
		return echo.NewHTTPError(http.StatusNotFound, repositories.ErrListingNotFound.Error())
	}
	return c.JSON(http.StatusOK, listing)
}

func (h *MarketplaceHandler) GetMyListings(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	listings, err := h.market.SellerListings(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listings)
}

func (h *MarketplaceHandler) CreateListing(c echo.Context) error {
	user, err := currentUser(c, h.userRepository)
	if err != nil {
		return err
	}

	var req models.CreateListingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	listing, err := h.market.CreateListing(c.Request().Context(), user, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, listing)
}

func (h *MarketplaceHandler) MarkSold(c echo.Context) error {
	user, err := currentUser(c, h.userRepository)
	if err != nil {
		return err
	}

	listing, err := h.market.MarkSold(c.Request().Context(), user, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listing)
}

func (h *MarketplaceHandler) DeleteListing(c echo.Context) error {
	user, err := currentUser(c, h.userRepository)
	if err != nil {
		return err
	}

	if err := h.market.DeleteListing(c.Request().Context(), user, c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *MarketplaceHandler) GetBuyerRequests(c echo.Context) error {
	requests, err := h.market.BuyerRequests(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, requests)
}

func (h *MarketplaceHandler) CreateBuyerRequest(c echo.Context) error {
	user, err := currentUser(c, h.userRepository)
	if err != nil {
		return err
	}

	var req models.CreateBuyerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	br, err := h.market.CreateBuyerRequest(c.Request().Context(), user, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, br)
}

func (h *MarketplaceHandler) DeleteBuyerRequest(c echo.Context) error {
	user, err := currentUser(c, h.userRepository)
	if err != nil {
		return err
	}

	if err := h.market.DeleteBuyerRequest(c.Request().Context(), user, c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
