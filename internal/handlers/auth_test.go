package handlers

import (
	"net/http"
	"testing"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authBody struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/auth/register", "", echo.Map{
		"name": "Dana", "email": "dana@example.com", "password": "correct-horse",
	})
	requireStatus(t, http.StatusCreated, rec)
	registered := decode[authBody](t, rec)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, models.RoleUser, registered.User.Role)
	assert.Contains(t, registered.User.Avatar, "ui-avatars.com")

	claims, err := h.tokens.Parse(registered.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.UserID)

	rec = h.do(t, http.MethodPost, "/api/v1/auth/register", "", echo.Map{
		"name": "Dana Again", "email": "dana@example.com", "password": "correct-horse",
	})
	requireStatus(t, http.StatusConflict, rec)

	rec = h.do(t, http.MethodPost, "/api/v1/auth/login", "", echo.Map{
		"email": "dana@example.com", "password": "wrong-password",
	})
	requireStatus(t, http.StatusUnauthorized, rec)

	rec = h.do(t, http.MethodPost, "/api/v1/auth/login", "", echo.Map{
		"email": "dana@example.com", "password": "correct-horse",
	})
	requireStatus(t, http.StatusOK, rec)
	assert.Equal(t, registered.User.ID, decode[authBody](t, rec).User.ID)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/auth/register", "", echo.Map{
		"name": "D", "email": "not-an-email", "password": "short",
	})
	requireStatus(t, http.StatusBadRequest, rec)
}

func TestRegisterGrantsAdminToConfiguredEmail(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/auth/register", "", echo.Map{
		"name": "Boss", "email": "Boss@Example.com", "password": "correct-horse",
	})
	requireStatus(t, http.StatusCreated, rec)
	assert.Equal(t, models.RoleAdmin, decode[authBody](t, rec).User.Role)
}

func TestFirebaseLoginWithoutVerifier(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/auth/firebase-login", "", echo.Map{"idToken": "x"})
	requireStatus(t, http.StatusServiceUnavailable, rec)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
	requireStatus(t, http.StatusUnauthorized, rec)

	rec = h.do(t, http.MethodGet, "/api/v1/users/me", "alice", nil)
	requireStatus(t, http.StatusOK, rec)
	assert.Equal(t, "alice", decode[models.User](t, rec).ID)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	h := newHarness(t)

	requireStatus(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/v1/admin/stats", "", nil))
	requireStatus(t, http.StatusForbidden, h.do(t, http.MethodGet, "/api/v1/admin/stats", "alice", nil))
	requireStatus(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/admin/stats", "root", nil))
}
