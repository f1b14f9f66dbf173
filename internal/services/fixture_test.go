package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bigyann/lumina/backend/internal/events"
	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/realtime"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/pkg/metrics"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	users         *repositories.InMemoryUserRepository
	friendships   *repositories.InMemoryFriendshipRepository
	messageRepo   *repositories.InMemoryMessageRepository
	callRepo      *repositories.InMemoryCallRepository
	notifications *repositories.InMemoryNotificationRepository
	hub           *realtime.Hub
	events        *events.Recorder
	metrics       *metrics.Metrics
	log           *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := repositories.NewInMemoryUserRepository()
	f := &fixture{
		users:         users,
		friendships:   repositories.NewInMemoryFriendshipRepository(users),
		messageRepo:   repositories.NewInMemoryMessageRepository(),
		callRepo:      repositories.NewInMemoryCallRepository(),
		notifications: repositories.NewInMemoryNotificationRepository(),
		hub:           realtime.NewHub(zap.NewNop()),
		events:        &events.Recorder{},
		metrics:       metrics.New(),
		log:           zap.NewNop(),
	}
	for _, name := range []string{"alice", "bob", "carol"} {
		require.NoError(t, users.CreateUser(context.Background(), &models.User{
			ID:    name,
			Name:  name,
			Email: name + "@example.com",
			Role:  models.RoleUser,
		}))
	}
	return f
}

func (f *fixture) callService(opts ...CallOption) *CallService {
	return NewCallService(f.callRepo, f.users, f.notifications, f.hub, f.events, f.metrics, f.log, opts...)
}

func (f *fixture) messageService(opts ...MessageOption) *MessageService {
	return NewMessageService(f.messageRepo, f.users, f.hub, f.events, f.metrics, f.log, opts...)
}

func (f *fixture) friendService() *FriendService {
	return NewFriendService(f.friendships, f.users, f.notifications, f.hub, f.events, f.log)
}

// waitFor reads from ch until match accepts a value.
func waitFor[T any](t *testing.T, ch <-chan T, match func(T) bool) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			require.True(t, ok, "channel closed before a matching value arrived")
			if match(v) {
				return v
			}
		case <-timeout:
			t.Fatal("timed out waiting for a matching value")
		}
	}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	return waitFor(t, ch, func(T) bool { return true })
}

// steppingClock is a settable time source.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
