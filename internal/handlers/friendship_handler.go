package handlers

import (
	"net/http"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FriendshipHandler handles HTTP requests related to friendships
type FriendshipHandler struct {
	friends *services.FriendService
}

// NewFriendshipHandler creates a new FriendshipHandler
func NewFriendshipHandler(friends *services.FriendService) *FriendshipHandler {
	return &FriendshipHandler{friends: friends}
}

// RegisterFriendshipRoutes registers friendship-related routes
func (h *FriendshipHandler) RegisterFriendshipRoutes(g *echo.Group) {
	g.POST("/friends/requests", h.SendFriendRequest)
	g.GET("/friends/requests/incoming", h.GetIncomingRequests)
	g.GET("/friends/requests/outgoing", h.GetOutgoingRequests)
	g.PUT("/friends/requests/:id/accept", h.AcceptFriendRequest)
	g.DELETE("/friends/requests/:id", h.DeleteFriendRequest)
	g.GET("/friends", h.GetFriends)
	g.DELETE("/friends/:userId", h.DeleteFriend) // Unfriend
}

// SendFriendRequest handles sending a friend request
func (h *FriendshipHandler) SendFriendRequest(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.CreateFriendRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	friendRequest, err := h.friends.SendRequest(c.Request().Context(), userID, req.ToID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, friendRequest)
}

// GetIncomingRequests lists pending requests addressed to the caller.
func (h *FriendshipHandler) GetIncomingRequests(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	requests, err := h.friends.Incoming(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, requests)
}

// GetOutgoingRequests lists pending requests the caller has sent.
func (h *FriendshipHandler) GetOutgoingRequests(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	requests, err := h.friends.Outgoing(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, requests)
}

// AcceptFriendRequest accepts a request addressed to the caller.
func (h *FriendshipHandler) AcceptFriendRequest(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	friendRequest, err := h.friends.Accept(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, friendRequest)
}

// DeleteFriendRequest rejects (addressee) or cancels (sender) a pending request.
func (h *FriendshipHandler) DeleteFriendRequest(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	if err := h.friends.Decline(c.Request().Context(), userID, c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetFriends retrieves the list of friends for the authenticated user
func (h *FriendshipHandler) GetFriends(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	friends, err := h.friends.Friends(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}

	compact := make([]models.UserCompact, len(friends))
	for i := range friends {
		compact[i] = friends[i].ToCompact()
	}
	return c.JSON(http.StatusOK, compact)
}

// DeleteFriend handles unfriending (deleting an accepted friend request)
func (h *FriendshipHandler) DeleteFriend(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	if err := h.friends.Unfriend(c.Request().Context(), userID, c.Param("userId")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
