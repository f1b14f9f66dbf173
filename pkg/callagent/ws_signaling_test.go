package callagent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bigyann/lumina/backend/internal/events"
	"github.com/bigyann/lumina/backend/internal/handlers"
	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/realtime"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/bigyann/lumina/backend/pkg/metrics"
	"github.com/bigyann/lumina/backend/validators"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type wsServer struct {
	endpoint string
	tokens   *services.TokenService
	calls    *services.CallService
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	log := zap.NewNop()
	users := repositories.NewInMemoryUserRepository()
	for _, id := range []string{"alice", "bob"} {
		require.NoError(t, users.CreateUser(context.Background(), &models.User{
			ID: id, Name: id, Email: id + "@example.com", Role: models.RoleUser,
		}))
	}
	hub := realtime.NewHub(log)
	m := metrics.New()
	recorder := &events.Recorder{}
	calls := services.NewCallService(repositories.NewInMemoryCallRepository(), users,
		repositories.NewInMemoryNotificationRepository(), hub, recorder, m, log)
	messages := services.NewMessageService(repositories.NewInMemoryMessageRepository(), users, hub, recorder, m, log,
		services.WithWarmup(0))
	tokens := services.NewTokenService("test-secret", time.Hour)

	e := echo.New()
	e.Validator = validators.NewValidator()
	handlers.NewWSHandler(tokens, calls, messages, m, nil, log).RegisterWSRoutes(e.Group("/api/v1"))

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return &wsServer{
		endpoint: "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws",
		tokens:   tokens,
		calls:    calls,
	}
}

func (s *wsServer) dial(t *testing.T, userID string) *WSSignaling {
	t.Helper()
	token, err := s.tokens.Issue(&models.User{ID: userID, Email: userID + "@example.com", Role: models.RoleUser})
	require.NoError(t, err)
	sig, err := DialWS(context.Background(), s.endpoint, token, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sig.Close() })
	return sig
}

func TestHandshakeOverWebSocket(t *testing.T) {
	srv := newWSServer(t)
	ctx := context.Background()

	alice := &party{peers: &peerRecorder{name: "alice"}, media: &fakeMedia{}, states: &stateLog{}}
	alice.agent = New("alice", srv.dial(t, "alice"), alice.peers.factory, alice.media, WithStateHook(alice.states.hook))
	bob := &party{peers: &peerRecorder{name: "bob"}, media: &fakeMedia{}, states: &stateLog{}}
	bob.agent = New("bob", srv.dial(t, "bob"), bob.peers.factory, bob.media, WithStateHook(bob.states.hook))
	bob.listen(t)

	call, err := alice.agent.Call(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", call.ReceiverID)

	incoming := waitForIncoming(t, bob)
	assert.Equal(t, call.ID, incoming.ID)
	require.NoError(t, bob.agent.Accept(ctx))

	require.Eventually(t, func() bool {
		return alice.agent.State() == StateConnected &&
			alice.agent.ICEState() == webrtc.ICEConnectionStateConnected &&
			bob.agent.ICEState() == webrtc.ICEConnectionStateConnected
	}, waitFor, tick)

	_, _, aliceCandidates, _ := alice.peers.last().snapshot()
	_, _, bobCandidates, _ := bob.peers.last().snapshot()
	require.Len(t, aliceCandidates, 1)
	assert.Contains(t, aliceCandidates[0], "candidate:bob")
	require.Len(t, bobCandidates, 1)
	assert.Contains(t, bobCandidates[0], "candidate:alice")

	require.NoError(t, bob.agent.Hangup(ctx))
	require.Eventually(t, func() bool {
		return alice.agent.State() == StateIdle && alice.closed() && bob.closed()
	}, waitFor, tick)

	stored, err := srv.calls.Get(ctx, "alice", call.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallEnded, stored.Status)
}

func TestWebSocketServerErrors(t *testing.T) {
	srv := newWSServer(t)
	ctx := context.Background()
	sig := srv.dial(t, "alice")

	_, err := sig.CreateCall(ctx, "alice")
	var serverErr *ServerError
	require.True(t, errors.As(err, &serverErr), "got %v", err)
	assert.Equal(t, http.StatusBadRequest, serverErr.Code)

	err = sig.End(ctx, "missing")
	require.True(t, errors.As(err, &serverErr), "got %v", err)
	assert.Equal(t, http.StatusNotFound, serverErr.Code)

	_, err = sig.WatchCall(ctx, "missing")
	assert.Error(t, err)
}

func TestDialRejectsBadToken(t *testing.T) {
	srv := newWSServer(t)

	_, err := DialWS(context.Background(), srv.endpoint, "not-a-token", zap.NewNop())
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
}

func TestWatchEndsWithContext(t *testing.T) {
	srv := newWSServer(t)
	sig := srv.dial(t, "bob")

	ctx, cancel := context.WithCancel(context.Background())
	incoming, err := sig.WatchIncoming(ctx)
	require.NoError(t, err)

	select {
	case calls := <-incoming:
		assert.Empty(t, calls)
	case <-time.After(waitFor):
		t.Fatal("no initial snapshot")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-incoming:
			return !ok
		default:
			return false
		}
	}, waitFor, tick)

	// The key is free again once the old subscription is gone.
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		_, err := sig.WatchIncoming(ctx)
		return err == nil
	}, waitFor, tick)
}
