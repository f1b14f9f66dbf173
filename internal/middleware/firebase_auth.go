package middleware

import (
	"net/http"

	"github.com/bigyann/lumina/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
)

// Context keys set by FirebaseAuthMiddleware.
const (
	FirebaseUIDKey      = "firebaseUID"
	FirebaseIdentityKey = "firebaseIdentity"
)

// FirebaseAuthMiddleware verifies the Firebase ID token carried as a bearer
// token and stores the caller's UID and firebase.Identity on the context.
func FirebaseAuthMiddleware(verifier firebase.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idToken, err := bearerToken(c)
			if err != nil {
				return err
			}

			token, err := verifier.VerifyIDToken(c.Request().Context(), idToken)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired ID token")
			}

			c.Set(FirebaseUIDKey, token.UID)
			c.Set(FirebaseIdentityKey, firebase.IdentityFromToken(token))
			return next(c)
		}
	}
}
