package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// errorStatus maps domain errors to HTTP status codes. Anything not listed is
// a 500.
var errorStatus = []struct {
	err    error
	status int
}{
	{repositories.ErrUserNotFound, http.StatusNotFound},
	{repositories.ErrFriendRequestNotFound, http.StatusNotFound},
	{repositories.ErrCallNotFound, http.StatusNotFound},
	{repositories.ErrPostNotFound, http.StatusNotFound},
	{repositories.ErrCategoryNotFound, http.StatusNotFound},
	{repositories.ErrCommentNotFound, http.StatusNotFound},
	{repositories.ErrLikeNotFound, http.StatusNotFound},
	{repositories.ErrNotificationNotFound, http.StatusNotFound},
	{repositories.ErrPollNotFound, http.StatusNotFound},
	{repositories.ErrOptionNotFound, http.StatusNotFound},
	{repositories.ErrLiveLinkNotFound, http.StatusNotFound},
	{repositories.ErrListingNotFound, http.StatusNotFound},
	{repositories.ErrBuyerRequestNotFound, http.StatusNotFound},
	{services.ErrNotFriends, http.StatusNotFound},

	{repositories.ErrUserExists, http.StatusConflict},
	{repositories.ErrFriendRequestExists, http.StatusConflict},
	{repositories.ErrAlreadyFriends, http.StatusConflict},
	{repositories.ErrInvalidTransition, http.StatusConflict},
	{repositories.ErrCategoryExists, http.StatusConflict},
	{repositories.ErrAlreadyReviewed, http.StatusConflict},
	{repositories.ErrAlreadyLiked, http.StatusConflict},
	{repositories.ErrAlreadyVoted, http.StatusConflict},
	{repositories.ErrVoteNotApplied, http.StatusConflict},
	{repositories.ErrPollClosed, http.StatusConflict},
	{services.ErrOfferPending, http.StatusConflict},
	{services.ErrCallClosed, http.StatusConflict},

	{services.ErrForbidden, http.StatusForbidden},
	{services.ErrNotParticipant, http.StatusForbidden},

	{services.ErrSelfCall, http.StatusBadRequest},
	{services.ErrSelfRequest, http.StatusBadRequest},
	{services.ErrInvalidMessage, http.StatusBadRequest},
	{services.ErrInvalidDescription, http.StatusBadRequest},
	{services.ErrMissingFilename, http.StatusBadRequest},

	{services.ErrInvalidCredentials, http.StatusUnauthorized},
	{services.ErrInvalidToken, http.StatusUnauthorized},

	{services.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
}

// httpError converts a service or repository error into an *echo.HTTPError.
func httpError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return echo.NewHTTPError(e.status, e.err.Error())
		}
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// currentUserID returns the authenticated user's id, or "" when the request
// carries no verified claims.
func currentUserID(c echo.Context) string {
	claims, ok := c.Get("user").(*models.JwtCustomClaims)
	if !ok || claims == nil {
		return ""
	}
	return claims.UserID
}

// requireUserID is currentUserID that fails with 401 for anonymous requests.
func requireUserID(c echo.Context) (string, error) {
	id := currentUserID(c)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return id, nil
}

// currentUser loads the full profile of the authenticated user.
func currentUser(c echo.Context, users repositories.UserRepository) (*models.User, error) {
	id, err := requireUserID(c)
	if err != nil {
		return nil, err
	}
	user, err := users.GetUserByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "Authenticated user not found")
		}
		return nil, httpError(err)
	}
	return user, nil
}

// bindAndValidate binds the request body into req and runs the registered
// validator on it.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	return nil
}

// pagination reads page and limit query parameters, applying defaults and
// capping limit at max.
func pagination(c echo.Context, defaultLimit, max int) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > max {
		limit = defaultLimit
	}
	return page, limit
}

// pageMeta is the pagination block returned next to paged lists.
func pageMeta(page, limit int, total int64) echo.Map {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return echo.Map{
		"currentPage":     page,
		"totalPages":      totalPages,
		"totalItems":      total,
		"itemsPerPage":    limit,
		"hasNextPage":     page < totalPages,
		"hasPreviousPage": page > 1,
	}
}
