package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whoAmI(c echo.Context) error {
	claims := Claims(c)
	if claims == nil {
		return c.String(http.StatusOK, "anonymous")
	}
	return c.String(http.StatusOK, claims.UserID)
}

func serve(e *echo.Echo, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func issue(t *testing.T, tokens *services.TokenService, id string, role models.Role) string {
	t.Helper()
	tok, err := tokens.Issue(&models.User{ID: id, Email: id + "@example.com", Role: role})
	require.NoError(t, err)
	return tok
}

func TestJWTAuthMiddleware(t *testing.T) {
	tokens := services.NewTokenService("test-secret", time.Hour)
	other := services.NewTokenService("other-secret", time.Hour)
	e := echo.New()
	e.GET("/", whoAmI, JWTAuthMiddleware(tokens))

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer abc", http.StatusUnauthorized, ""},
		{"foreign signature", "Bearer " + issue(t, other, "mallory", models.RoleAdmin), http.StatusUnauthorized, ""},
		{"valid token", "Bearer " + issue(t, tokens, "alice", models.RoleUser), http.StatusOK, "alice"},
		{"lowercase scheme", "bearer " + issue(t, tokens, "bob", models.RoleUser), http.StatusOK, "bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, tt.header)
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestOptionalJWT(t *testing.T) {
	tokens := services.NewTokenService("test-secret", time.Hour)
	e := echo.New()
	e.GET("/", whoAmI, OptionalJWT(tokens))

	rec := serve(e, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())

	// A bad token degrades to an anonymous request.
	rec = serve(e, "Bearer abc")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())

	rec = serve(e, "Bearer "+issue(t, tokens, "alice", models.RoleUser))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	tokens := services.NewTokenService("test-secret", time.Hour)
	e := echo.New()
	e.GET("/", whoAmI, JWTAuthMiddleware(tokens), RequireRole(models.RoleAdmin, models.RoleModerator))

	assert.Equal(t, http.StatusUnauthorized, serve(e, "").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, "Bearer "+issue(t, tokens, "alice", models.RoleUser)).Code)
	assert.Equal(t, http.StatusOK, serve(e, "Bearer "+issue(t, tokens, "mod", models.RoleModerator)).Code)
	assert.Equal(t, http.StatusOK, serve(e, "Bearer "+issue(t, tokens, "root", models.RoleAdmin)).Code)

	// Without the JWT middleware in front there are no claims to check.
	bare := echo.New()
	bare.GET("/", whoAmI, RequireRole(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, serve(bare, "").Code)
}
