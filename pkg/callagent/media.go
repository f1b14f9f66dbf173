package callagent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// Media acquisition failures. The first three are device errors and make the
// agent retry without video.
var (
	ErrDeviceBusy       = errors.New("media device is busy")
	ErrDeviceNotFound   = errors.New("media device not found")
	ErrOverconstrained  = errors.New("media constraints cannot be satisfied")
	ErrPermissionDenied = errors.New("media permission denied")
)

// IsDeviceError reports whether err came from a busy, missing or
// over-constrained device.
func IsDeviceError(err error) bool {
	return errors.Is(err, ErrDeviceBusy) ||
		errors.Is(err, ErrDeviceNotFound) ||
		errors.Is(err, ErrOverconstrained)
}

// Track ready states.
const (
	TrackLive  = "live"
	TrackEnded = "ended"
)

// Constraints selects the kinds of media to capture.
type Constraints struct {
	Audio bool
	Video bool
}

// Track is one captured audio or video track.
type Track interface {
	Kind() webrtc.RTPCodecType
	ReadyState() string
	Stop()
	// Local is the track handed to the peer connection; nil for tracks that
	// never leave the process.
	Local() webrtc.TrackLocal
}

// MediaStream groups the tracks of one capture.
type MediaStream interface {
	Tracks() []Track
	Stop()
}

// MediaDevices captures local media.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, c Constraints) (MediaStream, error)
}

// acquireMedia asks for c and, when a device error hits a video request,
// tries once more with audio only.
func acquireMedia(ctx context.Context, devices MediaDevices, c Constraints) (MediaStream, error) {
	stream, err := devices.GetUserMedia(ctx, c)
	if err == nil {
		return stream, nil
	}
	if !c.Video || !IsDeviceError(err) {
		return nil, fmt.Errorf("getting user media: %w", err)
	}
	stream, retryErr := devices.GetUserMedia(ctx, Constraints{Audio: true})
	if retryErr != nil {
		return nil, fmt.Errorf("getting audio-only media after %v: %w", err, retryErr)
	}
	return stream, nil
}

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SyntheticMedia produces pion sample tracks without any capture hardware.
// Audio tracks carry Opus silence; video tracks are negotiated but idle.
type SyntheticMedia struct{}

func (SyntheticMedia) GetUserMedia(ctx context.Context, c Constraints) (MediaStream, error) {
	if !c.Audio && !c.Video {
		return nil, ErrOverconstrained
	}
	streamID := "synthetic-" + uuid.NewString()
	s := &syntheticStream{}
	if c.Audio {
		local, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, "audio", streamID)
		if err != nil {
			return nil, err
		}
		t := newSampleTrack(webrtc.RTPCodecTypeAudio, local)
		go t.pump(opusSilence, 20*time.Millisecond)
		s.tracks = append(s.tracks, t)
	}
	if c.Video {
		local, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}, "video", streamID)
		if err != nil {
			s.Stop()
			return nil, err
		}
		s.tracks = append(s.tracks, newSampleTrack(webrtc.RTPCodecTypeVideo, local))
	}
	return s, nil
}

type syntheticStream struct {
	tracks []Track
}

func (s *syntheticStream) Tracks() []Track { return s.tracks }

func (s *syntheticStream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}

type sampleTrack struct {
	kind  webrtc.RTPCodecType
	local *webrtc.TrackLocalStaticSample

	once    sync.Once
	stopped chan struct{}
}

func newSampleTrack(kind webrtc.RTPCodecType, local *webrtc.TrackLocalStaticSample) *sampleTrack {
	return &sampleTrack{kind: kind, local: local, stopped: make(chan struct{})}
}

func (t *sampleTrack) Kind() webrtc.RTPCodecType { return t.kind }
func (t *sampleTrack) Local() webrtc.TrackLocal  { return t.local }

func (t *sampleTrack) ReadyState() string {
	select {
	case <-t.stopped:
		return TrackEnded
	default:
		return TrackLive
	}
}

func (t *sampleTrack) Stop() {
	t.once.Do(func() { close(t.stopped) })
}

// pump writes frame every interval until the track stops. Writes before the
// track is bound to a connection are dropped by pion.
func (t *sampleTrack) pump(frame []byte, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopped:
			return
		case <-ticker.C:
			_ = t.local.WriteSample(media.Sample{Data: frame, Duration: interval})
		}
	}
}
