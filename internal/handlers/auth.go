package handlers

import (
	"net/http"

	"github.com/bigyann/lumina/backend/internal/middleware"
	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/bigyann/lumina/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	profiles *services.ProfileService
	tokens   *services.TokenService
	verifier firebase.TokenVerifier
	log      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. verifier may be nil when Firebase
// is not configured; firebase-login then answers 503.
func NewAuthHandler(profiles *services.ProfileService, tokens *services.TokenService, verifier firebase.TokenVerifier, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		profiles: profiles,
		tokens:   tokens,
		verifier: verifier,
		log:      log.Named("auth"),
	}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/firebase-login", h.FirebaseLogin)
}

// authResponse is returned by every successful sign-in.
type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles local user registration with email and password
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.CreateLocalUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.profiles.Register(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token after signup")
	}
	return c.JSON(http.StatusCreated, authResponse{Token: token, User: user})
}

// Login handles local user authentication with email and password
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.SignInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.profiles.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}
	return c.JSON(http.StatusOK, authResponse{Token: token, User: user})
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// FirebaseLogin verifies a Firebase ID token, creates or fetches the matching
// profile and issues a local JWT.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	if h.verifier == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Firebase sign-in is not configured")
	}

	var req FirebaseLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	token, err := h.verifier.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}

	return h.signInFirebase(c, firebase.IdentityFromToken(token))
}

// FirebaseSession exchanges the Firebase identity verified by
// FirebaseAuthMiddleware for a local JWT.
func (h *AuthHandler) FirebaseSession(c echo.Context) error {
	id, ok := c.Get(middleware.FirebaseIdentityKey).(firebase.Identity)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Firebase identity missing")
	}
	return h.signInFirebase(c, id)
}

func (h *AuthHandler) signInFirebase(c echo.Context, id firebase.Identity) error {
	user, created, err := h.profiles.Sync(c.Request().Context(), id)
	if err != nil {
		h.log.Error("profile sync failed", zap.String("uid", id.UID), zap.Error(err))
		return httpError(err)
	}
	if created {
		h.log.Info("profile created", zap.String("uid", user.ID))
	}

	localJWT, err := h.tokens.Issue(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate local JWT")
	}
	return c.JSON(http.StatusOK, authResponse{Token: localJWT, User: user})
}
