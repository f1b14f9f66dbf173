package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigyann/lumina/backend/internal/events"
	"github.com/bigyann/lumina/backend/internal/middleware"
	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/realtime"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/bigyann/lumina/backend/pkg/metrics"
	"github.com/bigyann/lumina/backend/pkg/storage"
	"github.com/bigyann/lumina/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// postCounts stands in for the post store in admin tests; only CountByStatus
// is implemented.
type postCounts struct {
	repositories.PostRepository
	byStatus map[models.PostStatus]int64
}

func (p postCounts) CountByStatus(_ context.Context, status models.PostStatus) (int64, error) {
	return p.byStatus[status], nil
}

type harness struct {
	e      *echo.Echo
	tokens *services.TokenService

	users         *repositories.InMemoryUserRepository
	callRepo      *repositories.InMemoryCallRepository
	notifications *repositories.InMemoryNotificationRepository
	market        *repositories.InMemoryMarketplaceRepository
	pollRepo      *repositories.InMemoryPollRepository
	store         *storage.MemoryStore
	events        *events.Recorder

	calls    *services.CallService
	messages *services.MessageService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zap.NewNop()
	users := repositories.NewInMemoryUserRepository()
	h := &harness{
		e:             echo.New(),
		tokens:        services.NewTokenService("test-secret", time.Hour),
		users:         users,
		callRepo:      repositories.NewInMemoryCallRepository(),
		notifications: repositories.NewInMemoryNotificationRepository(),
		market:        repositories.NewInMemoryMarketplaceRepository(),
		pollRepo:      repositories.NewInMemoryPollRepository(),
		store:         storage.NewMemoryStore("http://files.test"),
		events:        &events.Recorder{},
	}
	for _, u := range []models.User{
		{ID: "alice", Name: "Alice", Email: "alice@example.com", Role: models.RoleUser},
		{ID: "bob", Name: "Bob", Email: "bob@example.com", Role: models.RoleUser},
		{ID: "carol", Name: "Carol", Email: "carol@example.com", Role: models.RoleUser},
		{ID: "root", Name: "Root", Email: "root@example.com", Role: models.RoleAdmin},
	} {
		u := u
		require.NoError(t, users.CreateUser(context.Background(), &u))
	}

	hub := realtime.NewHub(log)
	m := metrics.New()
	profiles := services.NewProfileService(users, []string{"boss@example.com"}, log)
	friends := services.NewFriendService(repositories.NewInMemoryFriendshipRepository(users), users, h.notifications, hub, h.events, log)
	h.messages = services.NewMessageService(repositories.NewInMemoryMessageRepository(), users, hub, h.events, m, log,
		services.WithWarmup(0))
	h.calls = services.NewCallService(h.callRepo, users, h.notifications, hub, h.events, m, log,
		services.WithICEServers([]string{"stun:stun.example.com:3478"}))
	polls := services.NewPollService(h.pollRepo, h.events, log)
	marketplace := services.NewMarketplaceService(h.market, h.notifications, h.events, log)
	uploads := services.NewUploadService(h.store, m, 1024, 256, log)

	e := h.e
	e.Validator = validators.NewValidator()

	NewAuthHandler(profiles, h.tokens, nil, log).RegisterAuthRoutes(e.Group("/api/v1/auth"))
	public := e.Group("/api/v1", middleware.OptionalJWT(h.tokens))
	api := e.Group("/api/v1", middleware.JWTAuthMiddleware(h.tokens))
	admin := e.Group("/api/v1", middleware.JWTAuthMiddleware(h.tokens), middleware.RequireRole(models.RoleAdmin))

	NewUserHandler(users, profiles).RegisterUserRoutes(api)
	NewFriendshipHandler(friends).RegisterFriendshipRoutes(api)
	NewMessageHandler(h.messages).RegisterMessageRoutes(api)
	NewCallHandler(h.calls).RegisterCallRoutes(api)
	NewNotificationHandler(h.notifications, users).RegisterNotificationRoutes(api)
	NewUploadHandler(uploads).RegisterUploadRoutes(api)

	pollHandler := NewPollHandler(polls)
	pollHandler.RegisterPublicPollRoutes(public)
	pollHandler.RegisterPollRoutes(api)
	pollHandler.RegisterAdminPollRoutes(admin)

	marketHandler := NewMarketplaceHandler(marketplace, users)
	marketHandler.RegisterPublicMarketplaceRoutes(public)
	marketHandler.RegisterMarketplaceRoutes(api)

	posts := postCounts{byStatus: map[models.PostStatus]int64{models.PostPublished: 4, models.PostPending: 2}}
	NewAdminHandler(nil, marketplace, users, posts, h.pollRepo, h.callRepo, h.market).RegisterAdminRoutes(admin)

	NewWSHandler(h.tokens, h.calls, h.messages, m, nil, log).RegisterWSRoutes(e.Group("/api/v1"))
	return h
}

// token signs a session token for an existing user.
func (h *harness) token(t *testing.T, userID string) string {
	t.Helper()
	user, err := h.users.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	tok, err := h.tokens.Issue(user)
	require.NoError(t, err)
	return tok
}

// do sends a JSON request as userID; an empty userID sends it anonymously.
func (h *harness) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+h.token(t, userID))
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireStatus(t *testing.T, want int, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, want, rec.Code, rec.Body.String())
}

// errorMessage extracts echo's {"message": ...} error body.
func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, rec)["message"].(string)
}
