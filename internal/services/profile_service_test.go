package services

import (
	"context"
	"testing"
	"time"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/pkg/firebase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSyncCreatesProfileOnce(t *testing.T) {
	users := repositories.NewInMemoryUserRepository()
	svc := NewProfileService(users, []string{"Boss@Lumina.blog"}, zap.NewNop())
	ctx := context.Background()

	user, created, err := svc.Sync(ctx, firebase.Identity{UID: "fb-1", Email: "reader@example.com"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "fb-1", user.ID)
	assert.Equal(t, "User", user.Name)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Contains(t, user.Avatar, "ui-avatars.com")

	again, created, err := svc.Sync(ctx, firebase.Identity{UID: "fb-1", Email: "reader@example.com", Name: "Changed"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "User", again.Name)

	admin, _, err := svc.Sync(ctx, firebase.Identity{UID: "fb-2", Email: "boss@lumina.blog", Name: "Boss", Picture: "https://img.example.com/b.png"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, "https://img.example.com/b.png", admin.Avatar)
}

func TestSyncLinksExistingEmailAccount(t *testing.T) {
	users := repositories.NewInMemoryUserRepository()
	svc := NewProfileService(users, nil, zap.NewNop())
	ctx := context.Background()

	local, err := svc.Register(ctx, models.CreateLocalUserRequest{Name: "Dana", Email: "dana@example.com", Password: "correct horse"})
	require.NoError(t, err)

	linked, created, err := svc.Sync(ctx, firebase.Identity{UID: "fb-dana", Email: "dana@example.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, local.ID, linked.ID)
	assert.Equal(t, "fb-dana", linked.FirebaseUID)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	users := repositories.NewInMemoryUserRepository()
	svc := NewProfileService(users, nil, zap.NewNop())
	ctx := context.Background()

	user, err := svc.Register(ctx, models.CreateLocalUserRequest{Name: "Eve", Email: "eve@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", user.Password)

	_, err = svc.Register(ctx, models.CreateLocalUserRequest{Name: "Eve", Email: "eve@example.com", Password: "another-pass"})
	assert.ErrorIs(t, err, repositories.ErrUserExists)

	got, err := svc.Authenticate(ctx, "eve@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "eve@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)
	user := &models.User{ID: "u-1", Email: "u1@example.com", Role: models.RoleModerator}

	signed, err := tokens.Issue(user)
	require.NoError(t, err)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleModerator, claims.Role)

	_, err = NewTokenService("other-secret", time.Hour).Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenService("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(user)
	require.NoError(t, err)
	_, err = tokens.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
