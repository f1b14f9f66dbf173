package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bigyann/lumina/backend/internal/events"
	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendRequestRefusedInEitherDirection(t *testing.T) {
	f := newFixture(t)
	svc := f.friendService()
	ctx := context.Background()

	req, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestPending, req.Status)

	_, err = svc.SendRequest(ctx, "alice", "bob")
	assert.ErrorIs(t, err, repositories.ErrFriendRequestExists)
	_, err = svc.SendRequest(ctx, "bob", "alice")
	assert.ErrorIs(t, err, repositories.ErrFriendRequestExists)

	_, err = svc.Accept(ctx, "bob", req.ID)
	require.NoError(t, err)
	_, err = svc.SendRequest(ctx, "bob", "alice")
	assert.ErrorIs(t, err, repositories.ErrAlreadyFriends)

	_, err = svc.SendRequest(ctx, "alice", "alice")
	assert.ErrorIs(t, err, ErrSelfRequest)
	_, err = svc.SendRequest(ctx, "alice", "ghost")
	assert.ErrorIs(t, err, repositories.ErrUserNotFound)
}

func TestConcurrentFriendRequestsCreateOneRow(t *testing.T) {
	f := newFixture(t)
	svc := f.friendService()
	ctx := context.Background()

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = to, from
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SendRequest(ctx, from, to)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, repositories.ErrFriendRequestExists), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	incomingA, err := svc.Incoming(ctx, "alice")
	require.NoError(t, err)
	incomingB, err := svc.Incoming(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, append(incomingA, incomingB...), 1)
}

func TestFriendRequestLifecycle(t *testing.T) {
	f := newFixture(t)
	svc := f.friendService()
	ctx := context.Background()

	req, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	outgoing, err := svc.Outgoing(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, outgoing, 1)

	_, err = svc.Accept(ctx, "alice", req.ID)
	assert.ErrorIs(t, err, ErrForbidden, "only the addressee accepts")
	assert.ErrorIs(t, svc.Decline(ctx, "carol", req.ID), ErrForbidden)

	_, err = svc.Accept(ctx, "bob", req.ID)
	require.NoError(t, err)

	friends, err := svc.Friends(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].ID)
	friends, err = svc.Friends(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "alice", friends[0].ID)

	bobNotes, _, err := f.notifications.GetByRecipientID(ctx, "bob", 1, 10)
	require.NoError(t, err)
	require.Len(t, bobNotes, 1)
	assert.Equal(t, models.NotificationFriendRequest, bobNotes[0].Type)
	aliceNotes, _, err := f.notifications.GetByRecipientID(ctx, "alice", 1, 10)
	require.NoError(t, err)
	require.Len(t, aliceNotes, 1)
	assert.Equal(t, models.NotificationFriendAccepted, aliceNotes[0].Type)

	assert.ErrorIs(t, svc.Decline(ctx, "bob", req.ID), repositories.ErrAlreadyFriends)

	require.NoError(t, svc.Unfriend(ctx, "bob", "alice"))
	friends, err = svc.Friends(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, friends)
	assert.ErrorIs(t, svc.Unfriend(ctx, "bob", "alice"), ErrNotFriends)

	assert.Equal(t, []string{events.FriendRequestSent, events.FriendRequestAccepted}, f.events.Types())
}

func TestDeclineRejectsOrCancels(t *testing.T) {
	f := newFixture(t)
	svc := f.friendService()
	ctx := context.Background()

	req, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, svc.Decline(ctx, "bob", req.ID))

	req, err = svc.SendRequest(ctx, "bob", "alice")
	require.NoError(t, err, "a rejected request frees the pair")
	require.NoError(t, svc.Decline(ctx, "bob", req.ID))

	_, err = svc.Accept(ctx, "alice", req.ID)
	assert.ErrorIs(t, err, repositories.ErrFriendRequestNotFound)
}
