package services

import (
	"context"
	"testing"
	"time"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testOffer  = webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}
	testAnswer = webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}
)

func TestCallHandshake(t *testing.T) {
	f := newFixture(t)
	svc := f.callService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	incoming := svc.WatchIncoming(ctx, "bob")
	assert.Empty(t, recv(t, incoming))

	call, err := svc.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, models.CallRinging, call.Status)
	assert.Equal(t, "alice", call.CallerName)
	assert.Equal(t, "bob", call.ReceiverName)

	callerView, err := svc.WatchCall(ctx, "alice", call.ID)
	require.NoError(t, err)

	_, err = svc.SetOffer(ctx, "alice", call.ID, testOffer)
	require.NoError(t, err)

	ringing := waitFor(t, incoming, func(calls []models.Call) bool {
		return len(calls) == 1 && calls[0].Offer != nil
	})
	assert.Equal(t, call.ID, ringing[0].ID)
	assert.Equal(t, testOffer, ringing[0].Offer.WebRTC())

	connected, err := svc.Answer(ctx, "bob", call.ID, testAnswer)
	require.NoError(t, err)
	assert.Equal(t, models.CallConnected, connected.Status)

	seen := waitFor(t, callerView, func(c models.Call) bool { return c.Status == models.CallConnected })
	require.NotNil(t, seen.Answer)
	assert.Equal(t, testAnswer, seen.Answer.WebRTC())

	waitFor(t, incoming, func(calls []models.Call) bool { return len(calls) == 0 })

	ended, err := svc.End(ctx, "alice", call.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallEnded, ended.Status)
	waitFor(t, callerView, func(c models.Call) bool { return c.Status == models.CallEnded })
}

func TestRejectedCallNeverConnects(t *testing.T) {
	f := newFixture(t)
	svc := f.callService()
	ctx := context.Background()

	call, err := svc.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.SetOffer(ctx, "alice", call.ID, testOffer)
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, "bob", call.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallRejected, rejected.Status)

	_, err = svc.Answer(ctx, "bob", call.ID, testAnswer)
	assert.ErrorIs(t, err, repositories.ErrInvalidTransition)
	_, err = svc.End(ctx, "alice", call.ID)
	assert.ErrorIs(t, err, repositories.ErrInvalidTransition)
	_, err = svc.SetOffer(ctx, "alice", call.ID, testOffer)
	assert.ErrorIs(t, err, repositories.ErrInvalidTransition)

	got, err := svc.Get(ctx, "alice", call.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallRejected, got.Status)
	assert.Nil(t, got.Answer)
}

func TestConnectedCallCannotBeRejected(t *testing.T) {
	f := newFixture(t)
	svc := f.callService()
	ctx := context.Background()

	call, err := svc.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.SetOffer(ctx, "alice", call.ID, testOffer)
	require.NoError(t, err)
	_, err = svc.Answer(ctx, "bob", call.ID, testAnswer)
	require.NoError(t, err)

	_, err = svc.Reject(ctx, "bob", call.ID)
	assert.ErrorIs(t, err, repositories.ErrInvalidTransition)
	_, err = svc.Answer(ctx, "bob", call.ID, testAnswer)
	assert.ErrorIs(t, err, repositories.ErrInvalidTransition)
}

func TestCallRoleChecks(t *testing.T) {
	f := newFixture(t)
	svc := f.callService()
	ctx := context.Background()

	_, err := svc.Initiate(ctx, "alice", "alice")
	assert.ErrorIs(t, err, ErrSelfCall)
	_, err = svc.Initiate(ctx, "alice", "nobody")
	assert.ErrorIs(t, err, repositories.ErrUserNotFound)

	call, err := svc.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.Answer(ctx, "bob", call.ID, testAnswer)
	assert.ErrorIs(t, err, ErrOfferPending)

	_, err = svc.SetOffer(ctx, "bob", call.ID, testOffer)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.SetOffer(ctx, "alice", call.ID, testAnswer)
	assert.ErrorIs(t, err, ErrInvalidDescription)
	_, err = svc.Reject(ctx, "alice", call.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Get(ctx, "carol", call.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = svc.End(ctx, "carol", call.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = svc.Get(ctx, "alice", "missing")
	assert.ErrorIs(t, err, repositories.ErrCallNotFound)
}

func TestCandidatesAreRoutedToTheRemoteRole(t *testing.T) {
	f := newFixture(t)
	svc := f.callService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	call, err := svc.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)

	bobFeed, err := svc.WatchCandidates(ctx, "bob", call.ID)
	require.NoError(t, err)

	mid := "0"
	c1, err := svc.AddCandidate(ctx, "alice", call.ID, webrtc.ICECandidateInit{Candidate: "candidate:1 caller", SDPMid: &mid})
	require.NoError(t, err)
	assert.Equal(t, models.RoleCaller, c1.Role)
	_, err = svc.AddCandidate(ctx, "bob", call.ID, webrtc.ICECandidateInit{Candidate: "candidate:2 receiver"})
	require.NoError(t, err)
	c3, err := svc.AddCandidate(ctx, "alice", call.ID, webrtc.ICECandidateInit{Candidate: "candidate:3 caller"})
	require.NoError(t, err)

	assert.Equal(t, c1.ID, recv(t, bobFeed).ID)
	assert.Equal(t, c3.ID, recv(t, bobFeed).ID)

	forBob, err := svc.ListCandidates(ctx, "bob", call.ID)
	require.NoError(t, err)
	require.Len(t, forBob, 2)
	for _, c := range forBob {
		assert.Equal(t, models.RoleCaller, c.Role)
	}

	forAlice, err := svc.ListCandidates(ctx, "alice", call.ID)
	require.NoError(t, err)
	require.Len(t, forAlice, 1)
	assert.Equal(t, "candidate:2 receiver", forAlice[0].Candidate)

	_, err = svc.AddCandidate(ctx, "carol", call.ID, webrtc.ICECandidateInit{Candidate: "candidate:x"})
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.End(ctx, "bob", call.ID)
	require.NoError(t, err)
	_, err = svc.AddCandidate(ctx, "alice", call.ID, webrtc.ICECandidateInit{Candidate: "candidate:4"})
	assert.ErrorIs(t, err, ErrCallClosed)
}

func TestSweepStaleEndsUnansweredCalls(t *testing.T) {
	f := newFixture(t)
	clock := &steppingClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc := f.callService(WithCallClock(clock.Now), WithRingTimeout(time.Minute))
	ctx := context.Background()

	stale, err := svc.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)
	clock.Advance(50 * time.Second)
	fresh, err := svc.Initiate(ctx, "carol", "bob")
	require.NoError(t, err)
	clock.Advance(20 * time.Second)

	n, err := svc.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.Get(ctx, "alice", stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallEnded, got.Status)
	got, err = svc.Get(ctx, "carol", fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallRinging, got.Status)

	missed, total, err := f.notifications.GetByRecipientID(ctx, "bob", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, models.NotificationMissedCall, missed[0].Type)
	assert.Equal(t, stale.ID, missed[0].TargetID)
}

func TestSweepStaleDisabledByDefault(t *testing.T) {
	f := newFixture(t)
	svc := f.callService()
	_, err := svc.Initiate(context.Background(), "alice", "bob")
	require.NoError(t, err)

	n, err := svc.SweepStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
