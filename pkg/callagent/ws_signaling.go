package callagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/pkg/wsproto"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const (
	wsWriteWait     = 10 * time.Second
	unsubscribeWait = 5 * time.Second
)

// ErrConnectionClosed is returned once the WebSocket is gone.
var ErrConnectionClosed = errors.New("signaling connection closed")

// ServerError is an error frame sent in answer to a request.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// WSSignaling implements Signaling over the server's /api/v1/ws endpoint.
type WSSignaling struct {
	conn *websocket.Conn
	log  *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[string]chan wsproto.ServerFrame
	subs    map[string]*wsSubscription

	done chan struct{}
	err  error
}

type wsSubscription struct {
	frames chan wsproto.ServerFrame
	ctx    context.Context
}

// DialWS connects to endpoint (ws://host/api/v1/ws) with a session token.
func DialWS(ctx context.Context, endpoint, token string, log *zap.Logger) (*WSSignaling, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}
	s := &WSSignaling{
		conn:    conn,
		log:     log.Named("ws_signaling"),
		pending: make(map[string]chan wsproto.ServerFrame),
		subs:    make(map[string]*wsSubscription),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Done is closed when the connection ends.
func (s *WSSignaling) Done() <-chan struct{} { return s.done }

// Err reports why the connection ended.
func (s *WSSignaling) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close shuts the connection down and waits for the reader to stop.
func (s *WSSignaling) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
	s.writeMu.Unlock()
	err := s.conn.Close()
	<-s.done
	return err
}

func (s *WSSignaling) readLoop() {
	defer close(s.done)
	for {
		var f wsproto.ServerFrame
		if err := s.conn.ReadJSON(&f); err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("signaling connection lost", zap.Error(err))
			}
			return
		}
		s.route(f)
	}
}

func (s *WSSignaling) route(f wsproto.ServerFrame) {
	switch f.Type {
	case wsproto.FrameAck, wsproto.FrameError:
		s.mu.Lock()
		ch, ok := s.pending[f.ID]
		delete(s.pending, f.ID)
		s.mu.Unlock()
		if ok {
			ch <- f
		}
	default:
		s.mu.Lock()
		sub, ok := s.subs[f.Sub]
		s.mu.Unlock()
		if !ok {
			return
		}
		select {
		case sub.frames <- f:
		case <-sub.ctx.Done():
		}
	}
}

func (s *WSSignaling) write(f wsproto.ClientFrame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(f)
}

// request sends f and waits for its ack; the ack's data is decoded into out.
func (s *WSSignaling) request(ctx context.Context, f wsproto.ClientFrame, out any) error {
	reply := make(chan wsproto.ServerFrame, 1)
	s.mu.Lock()
	s.nextID++
	f.ID = strconv.FormatUint(s.nextID, 10)
	s.pending[f.ID] = reply
	s.mu.Unlock()

	forget := func() {
		s.mu.Lock()
		delete(s.pending, f.ID)
		s.mu.Unlock()
	}
	if err := s.write(f); err != nil {
		forget()
		return fmt.Errorf("sending %s: %w", f.Action, err)
	}

	select {
	case r := <-reply:
		if r.Type == wsproto.FrameError {
			return &ServerError{Code: r.Code, Message: r.Error}
		}
		if out != nil && len(r.Data) > 0 {
			if err := json.Unmarshal(r.Data, out); err != nil {
				return fmt.Errorf("decoding %s ack: %w", f.Action, err)
			}
		}
		return nil
	case <-ctx.Done():
		forget()
		return ctx.Err()
	case <-s.done:
		return ErrConnectionClosed
	}
}

func (s *WSSignaling) call(ctx context.Context, action, callID string, data, out any) error {
	f, err := wsproto.Request("", action, data)
	if err != nil {
		return err
	}
	f.CallID = callID
	return s.request(ctx, f, out)
}

// subscribe opens a live subscription. The returned channel closes when ctx
// ends or the connection drops; ctx ending also unsubscribes on the server.
func (s *WSSignaling) subscribe(ctx context.Context, topic, callID string) (<-chan wsproto.ServerFrame, error) {
	key, err := wsproto.SubKey(topic, callID, "")
	if err != nil {
		return nil, err
	}
	sub := &wsSubscription{frames: make(chan wsproto.ServerFrame, 64), ctx: ctx}
	s.mu.Lock()
	if _, exists := s.subs[key]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("already subscribed to %s", key)
	}
	s.subs[key] = sub
	s.mu.Unlock()

	drop := func() {
		s.mu.Lock()
		if s.subs[key] == sub {
			delete(s.subs, key)
		}
		s.mu.Unlock()
	}
	if err := s.request(ctx, wsproto.ClientFrame{Action: wsproto.ActionSubscribe, Topic: topic, CallID: callID}, nil); err != nil {
		drop()
		return nil, fmt.Errorf("subscribing to %s: %w", key, err)
	}

	out := make(chan wsproto.ServerFrame)
	go func() {
		defer close(out)
		defer drop()
		for {
			select {
			case <-ctx.Done():
				uctx, cancel := context.WithTimeout(context.Background(), unsubscribeWait)
				_ = s.request(uctx, wsproto.ClientFrame{Action: wsproto.ActionUnsubscribe, Sub: key}, nil)
				cancel()
				return
			case <-s.done:
				return
			case f := <-sub.frames:
				select {
				case out <- f:
				case <-ctx.Done():
				}
			}
		}
	}()
	return out, nil
}

// decodeFrames turns the frames of a subscription into values.
func decodeFrames[T any](ctx context.Context, log *zap.Logger, frames <-chan wsproto.ServerFrame) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for f := range frames {
			var v T
			if err := json.Unmarshal(f.Data, &v); err != nil {
				log.Warn("dropping undecodable frame", zap.String("sub", f.Sub), zap.Error(err))
				continue
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *WSSignaling) CreateCall(ctx context.Context, receiverID string) (*models.Call, error) {
	var call models.Call
	if err := s.call(ctx, wsproto.ActionCallCreate, "", models.CreateCallRequest{ReceiverID: receiverID}, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

func (s *WSSignaling) SetOffer(ctx context.Context, callID string, offer webrtc.SessionDescription) error {
	return s.call(ctx, wsproto.ActionCallOffer, callID,
		models.SessionDescriptionRequest{Type: offer.Type.String(), SDP: offer.SDP}, nil)
}

func (s *WSSignaling) Answer(ctx context.Context, callID string, answer webrtc.SessionDescription) error {
	return s.call(ctx, wsproto.ActionCallAnswer, callID,
		models.SessionDescriptionRequest{Type: answer.Type.String(), SDP: answer.SDP}, nil)
}

func (s *WSSignaling) Reject(ctx context.Context, callID string) error {
	return s.call(ctx, wsproto.ActionCallReject, callID, nil, nil)
}

func (s *WSSignaling) End(ctx context.Context, callID string) error {
	return s.call(ctx, wsproto.ActionCallEnd, callID, nil, nil)
}

func (s *WSSignaling) AddCandidate(ctx context.Context, callID string, c webrtc.ICECandidateInit) error {
	return s.call(ctx, wsproto.ActionCandidate, callID, models.CandidateRequest{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}, nil)
}

func (s *WSSignaling) WatchIncoming(ctx context.Context) (<-chan []models.Call, error) {
	frames, err := s.subscribe(ctx, wsproto.TopicIncomingCalls, "")
	if err != nil {
		return nil, err
	}
	return decodeFrames[[]models.Call](ctx, s.log, frames), nil
}

func (s *WSSignaling) WatchCall(ctx context.Context, callID string) (<-chan models.Call, error) {
	frames, err := s.subscribe(ctx, wsproto.TopicCall, callID)
	if err != nil {
		return nil, err
	}
	return decodeFrames[models.Call](ctx, s.log, frames), nil
}

func (s *WSSignaling) WatchCandidates(ctx context.Context, callID string) (<-chan webrtc.ICECandidateInit, error) {
	frames, err := s.subscribe(ctx, wsproto.TopicCandidates, callID)
	if err != nil {
		return nil, err
	}
	candidates := decodeFrames[models.IceCandidate](ctx, s.log, frames)
	out := make(chan webrtc.ICECandidateInit)
	go func() {
		defer close(out)
		for c := range candidates {
			select {
			case out <- c.Init():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
