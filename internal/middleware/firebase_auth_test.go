package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/bigyann/lumina/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type stubVerifier map[string]*auth.Token

func (s stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if tok, ok := s[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("token rejected")
}

func TestFirebaseAuthMiddleware(t *testing.T) {
	verifier := stubVerifier{
		"good": {UID: "fb-alice", Claims: map[string]interface{}{"email": "alice@example.com", "name": "Alice"}},
	}
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		id := c.Get(FirebaseIdentityKey).(firebase.Identity)
		return c.String(http.StatusOK, c.Get(FirebaseUIDKey).(string)+" "+id.Email)
	}, FirebaseAuthMiddleware(verifier))

	assert.Equal(t, http.StatusUnauthorized, serve(e, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "Token good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "Bearer bad").Code)

	rec := serve(e, "Bearer good")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fb-alice alice@example.com", rec.Body.String())
}
