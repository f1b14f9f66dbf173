package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/bigyann/lumina/backend/pkg/metrics"
	"github.com/bigyann/lumina/backend/pkg/wsproto"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 64 << 10
	sendBufferSize = 32
)

// WSHandler serves the live endpoint: subscriptions to calls, candidates and
// conversations, plus the signaling and messaging actions.
type WSHandler struct {
	tokens   *services.TokenService
	calls    *services.CallService
	messages *services.MessageService
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewWSHandler creates a new WSHandler. checkOrigin may be nil to accept any
// origin.
func NewWSHandler(
	tokens *services.TokenService,
	calls *services.CallService,
	messages *services.MessageService,
	m *metrics.Metrics,
	checkOrigin func(r *http.Request) bool,
	log *zap.Logger,
) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &WSHandler{
		tokens:   tokens,
		calls:    calls,
		messages: messages,
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		log: log.Named("ws"),
	}
}

// RegisterWSRoutes registers the WebSocket endpoint. Browsers cannot set
// headers on the upgrade request, so the JWT travels as ?token=.
func (h *WSHandler) RegisterWSRoutes(g *echo.Group) {
	g.GET("/ws", h.Serve)
}

// Serve authenticates and upgrades the connection, then runs it until the
// client goes away.
func (h *WSHandler) Serve(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
	}
	claims, err := h.tokens.Parse(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		h.log.Debug("upgrade failed", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	s := &wsSession{
		h:         h,
		userID:    claims.UserID,
		validator: c.Echo().Validator,
		conn:      conn,
		send:      make(chan wsproto.ServerFrame, sendBufferSize),
		ctx:       ctx,
		cancel:    cancel,
		subs:      make(map[string]*wsSub),
		log:       h.log.With(zap.String("user_id", claims.UserID)),
	}

	h.metrics.WSConnections.Inc()
	defer h.metrics.WSConnections.Dec()
	s.log.Info("websocket connected")

	s.run()
	s.log.Info("websocket disconnected")
	return nil
}

type wsSub struct {
	cancel context.CancelFunc
}

// wsSession is one live connection. The reader loop owns subs; every write
// to the socket goes through send and the writer goroutine.
type wsSession struct {
	h         *WSHandler
	userID    string
	validator echo.Validator
	conn      *websocket.Conn
	send      chan wsproto.ServerFrame
	ctx       context.Context
	cancel    context.CancelFunc

	mu   sync.Mutex
	subs map[string]*wsSub
	wg   sync.WaitGroup

	log *zap.Logger
}

func (s *wsSession) run() {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop()
	}()

	if _, err := s.subscribe(wsproto.TopicInbox, "", ""); err != nil {
		s.log.Warn("inbox subscription failed", zap.Error(err))
	}

	s.readLoop()

	s.cancel()
	s.wg.Wait()
	<-writerDone
	s.conn.Close()
}

func (s *wsSession) readLoop() {
	s.conn.SetReadLimit(maxFrameBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f wsproto.ClientFrame
		if err := s.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("read failed", zap.Error(err))
			}
			return
		}
		if s.ctx.Err() != nil {
			return
		}
		s.dispatch(f)
	}
}

func (s *wsSession) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case f := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(f); err != nil {
				s.log.Debug("write failed", zap.Error(err))
				s.cancel()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.cancel()
				return
			}
		}
	}
}

// emit queues f for the writer. It gives up when the connection is closing.
func (s *wsSession) emit(f wsproto.ServerFrame) bool {
	select {
	case s.send <- f:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *wsSession) emitData(frameType, id, sub string, v any) bool {
	f, err := wsproto.Frame(frameType, id, sub, v)
	if err != nil {
		s.log.Error("encoding frame failed", zap.String("type", frameType), zap.Error(err))
		return true
	}
	return s.emit(f)
}

func (s *wsSession) emitError(id string, err error) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := httpError(err).(*echo.HTTPError); ok {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	s.emit(wsproto.ServerFrame{Type: wsproto.FrameError, ID: id, Code: code, Error: msg})
}

// decode unmarshals the frame data into v and validates it.
func (s *wsSession) decode(f wsproto.ClientFrame, v any) error {
	if len(f.Data) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "missing data")
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid data")
	}
	if s.validator != nil {
		if err := s.validator.Validate(v); err != nil {
			return err
		}
	}
	return nil
}

func (s *wsSession) dispatch(f wsproto.ClientFrame) {
	result, err := s.handle(f)
	if err != nil {
		s.emitError(f.ID, err)
		return
	}
	s.emitData(wsproto.FrameAck, f.ID, "", result)
}

func (s *wsSession) handle(f wsproto.ClientFrame) (any, error) {
	ctx := s.ctx
	switch f.Action {
	case wsproto.ActionSubscribe:
		key, err := s.subscribe(f.Topic, f.CallID, f.PeerID)
		if err != nil {
			return nil, err
		}
		return echo.Map{"sub": key}, nil

	case wsproto.ActionUnsubscribe:
		s.unsubscribe(f.Sub)
		return echo.Map{"sub": f.Sub}, nil

	case wsproto.ActionCallCreate:
		var req models.CreateCallRequest
		if err := s.decode(f, &req); err != nil {
			return nil, err
		}
		return s.h.calls.Initiate(ctx, s.userID, req.ReceiverID)

	case wsproto.ActionCallOffer, wsproto.ActionCallAnswer:
		var req models.SessionDescriptionRequest
		if err := s.decode(f, &req); err != nil {
			return nil, err
		}
		sd := webrtc.SessionDescription{Type: webrtc.NewSDPType(req.Type), SDP: req.SDP}
		if f.Action == wsproto.ActionCallOffer {
			return s.h.calls.SetOffer(ctx, s.userID, f.CallID, sd)
		}
		return s.h.calls.Answer(ctx, s.userID, f.CallID, sd)

	case wsproto.ActionCallReject:
		return s.h.calls.Reject(ctx, s.userID, f.CallID)

	case wsproto.ActionCallEnd:
		return s.h.calls.End(ctx, s.userID, f.CallID)

	case wsproto.ActionCandidate:
		var req models.CandidateRequest
		if err := s.decode(f, &req); err != nil {
			return nil, err
		}
		return s.h.calls.AddCandidate(ctx, s.userID, f.CallID, req.Init())

	case wsproto.ActionMessageSend:
		var req models.SendMessageRequest
		if err := s.decode(f, &req); err != nil {
			return nil, err
		}
		return s.h.messages.Send(ctx, s.userID, req)
	}
	return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown action %q", f.Action))
}

// subscribe starts the live query behind topic. Subscribing twice to the same
// key is a no-op.
func (s *wsSession) subscribe(topic, callID, peerID string) (string, error) {
	key, err := wsproto.SubKey(topic, callID, peerID)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	_, exists := s.subs[key]
	s.mu.Unlock()
	if exists {
		return key, nil
	}

	ctx, cancel := context.WithCancel(s.ctx)
	var start func()
	switch topic {
	case wsproto.TopicIncomingCalls:
		ch := s.h.calls.WatchIncoming(ctx, s.userID)
		start = func() { forward(s, key, wsproto.FrameSnapshot, ch) }
	case wsproto.TopicCall:
		ch, err := s.h.calls.WatchCall(ctx, s.userID, callID)
		if err != nil {
			cancel()
			return "", err
		}
		start = func() { forward(s, key, wsproto.FrameSnapshot, ch) }
	case wsproto.TopicCandidates:
		ch, err := s.h.calls.WatchCandidates(ctx, s.userID, callID)
		if err != nil {
			cancel()
			return "", err
		}
		start = func() { forward(s, key, wsproto.FrameCandidate, ch) }
	case wsproto.TopicConversation:
		ch := s.h.messages.WatchConversation(ctx, s.userID, peerID)
		start = func() { forward(s, key, wsproto.FrameSnapshot, ch) }
	case wsproto.TopicInbox:
		ch := s.h.messages.WatchInbox(ctx, s.userID)
		start = func() { forward(s, key, wsproto.FrameNotification, ch) }
	}

	sub := &wsSub{cancel: cancel}
	s.mu.Lock()
	s.subs[key] = sub
	s.mu.Unlock()

	s.h.metrics.Subscriptions.Inc()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.h.metrics.Subscriptions.Dec()
		defer s.drop(key, sub)
		start()
	}()
	return key, nil
}

func (s *wsSession) unsubscribe(key string) {
	s.mu.Lock()
	sub, ok := s.subs[key]
	delete(s.subs, key)
	s.mu.Unlock()
	if ok {
		sub.cancel()
	}
}

// drop forgets sub once its goroutine has finished, unless key has been
// subscribed again in the meantime.
func (s *wsSession) drop(key string, sub *wsSub) {
	s.mu.Lock()
	if s.subs[key] == sub {
		delete(s.subs, key)
	}
	s.mu.Unlock()
	sub.cancel()
}

// forward relays every value of ch as a frame until ch closes.
func forward[T any](s *wsSession, sub, frameType string, ch <-chan T) {
	for v := range ch {
		if !s.emitData(frameType, "", sub, v) {
			return
		}
	}
}
