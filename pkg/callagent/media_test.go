package callagent

import (
	"context"
	"errors"
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireMedia(t *testing.T) {
	errBroken := errors.New("driver crashed")

	tests := []struct {
		name     string
		media    *fakeMedia
		want     Constraints
		requests []Constraints
		err      error
	}{
		{
			name:     "camera and microphone",
			media:    &fakeMedia{},
			want:     Constraints{Audio: true, Video: true},
			requests: []Constraints{{Audio: true, Video: true}},
		},
		{
			name:     "busy camera falls back to audio",
			media:    &fakeMedia{videoErr: ErrDeviceBusy},
			want:     Constraints{Audio: true, Video: true},
			requests: []Constraints{{Audio: true, Video: true}, {Audio: true}},
		},
		{
			name:     "missing camera falls back to audio",
			media:    &fakeMedia{videoErr: ErrDeviceNotFound},
			want:     Constraints{Audio: true, Video: true},
			requests: []Constraints{{Audio: true, Video: true}, {Audio: true}},
		},
		{
			name:     "overconstrained falls back to audio",
			media:    &fakeMedia{videoErr: ErrOverconstrained},
			want:     Constraints{Audio: true, Video: true},
			requests: []Constraints{{Audio: true, Video: true}, {Audio: true}},
		},
		{
			name:     "permission denied is surfaced",
			media:    &fakeMedia{videoErr: ErrPermissionDenied},
			want:     Constraints{Audio: true, Video: true},
			requests: []Constraints{{Audio: true, Video: true}},
			err:      ErrPermissionDenied,
		},
		{
			name:     "other errors are surfaced",
			media:    &fakeMedia{videoErr: errBroken},
			want:     Constraints{Audio: true, Video: true},
			requests: []Constraints{{Audio: true, Video: true}},
			err:      errBroken,
		},
		{
			name:     "audio-only request is not retried",
			media:    &fakeMedia{err: ErrDeviceBusy},
			want:     Constraints{Audio: true},
			requests: []Constraints{{Audio: true}},
			err:      ErrDeviceBusy,
		},
		{
			name:     "fallback failure keeps the retry error",
			media:    &fakeMedia{err: ErrDeviceNotFound},
			want:     Constraints{Audio: true, Video: true},
			requests: []Constraints{{Audio: true, Video: true}, {Audio: true}},
			err:      ErrDeviceNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := acquireMedia(context.Background(), tt.media, tt.want)
			assert.Equal(t, tt.requests, tt.media.Requests())
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.Nil(t, stream)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, stream.Tracks())
		})
	}
}

func TestSyntheticMedia(t *testing.T) {
	stream, err := SyntheticMedia{}.GetUserMedia(context.Background(), Constraints{Audio: true, Video: true})
	require.NoError(t, err)

	tracks := stream.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, webrtc.RTPCodecTypeAudio, tracks[0].Kind())
	assert.Equal(t, webrtc.RTPCodecTypeVideo, tracks[1].Kind())
	assert.Equal(t, tracks[0].Local().StreamID(), tracks[1].Local().StreamID())
	for _, tr := range tracks {
		assert.Equal(t, TrackLive, tr.ReadyState())
	}

	stream.Stop()
	stream.Stop()
	for _, tr := range tracks {
		assert.Equal(t, TrackEnded, tr.ReadyState())
	}

	_, err = SyntheticMedia{}.GetUserMedia(context.Background(), Constraints{})
	assert.ErrorIs(t, err, ErrOverconstrained)
}
