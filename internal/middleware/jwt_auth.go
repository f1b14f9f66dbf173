package middleware

import (
	"net/http"
	"strings"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// UserContextKey is where the verified claims are stored on the echo context.
const UserContextKey = "user"

// bearerToken extracts the token of an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive.
func bearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" || strings.Contains(token, " ") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return token, nil
}

// JWTAuthMiddleware checks for a valid JWT and extracts user claims.
func JWTAuthMiddleware(tokens *services.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c)
			if err != nil {
				return err
			}

			claims, err := tokens.Parse(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			c.Set(UserContextKey, claims)
			return next(c)
		}
	}
}

// Claims returns the claims stored by JWTAuthMiddleware, or nil.
func Claims(c echo.Context) *models.JwtCustomClaims {
	claims, _ := c.Get(UserContextKey).(*models.JwtCustomClaims)
	return claims
}

// RequireRole lets the request through only when the caller has one of
// roles. It must run after JWTAuthMiddleware.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := Claims(c)
			if claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
			}
			for _, r := range roles {
				if claims.Role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
		}
	}
}

// OptionalJWT attaches claims when the request carries a valid bearer token
// and lets anonymous requests through untouched.
func OptionalJWT(tokens *services.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token, err := bearerToken(c); err == nil {
				if claims, err := tokens.Parse(token); err == nil {
					c.Set(UserContextKey, claims)
				}
			}
			return next(c)
		}
	}
}
