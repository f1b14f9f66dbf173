// Command callbot is a headless call participant. It signs in with a session
// token, answers every incoming call and can place a call of its own. It is
// meant for smoke-testing the signaling path end to end.
//
// Environment:
//
//	CALLBOT_SERVER       WebSocket endpoint (default ws://localhost:8080/api/v1/ws)
//	CALLBOT_TOKEN        session JWT of the bot's account (required)
//	CALLBOT_CALL         user id to call on start
//	CALLBOT_HANGUP_AFTER hang up after this long (default 30s, 0 keeps the call)
//	CALLBOT_VIDEO        offer a video track too (default true)
//	STUN_SERVERS         comma separated STUN URLs
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/pkg/callagent"
	"github.com/bigyann/lumina/backend/pkg/logger"
	"github.com/golang-jwt/jwt/v4"
	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("CALLBOT_SERVER", "ws://localhost:8080/api/v1/ws")
	v.SetDefault("CALLBOT_HANGUP_AFTER", "30s")
	v.SetDefault("CALLBOT_VIDEO", true)
	v.SetDefault("APP_ENV", "development")

	log := logger.Must(v.GetString("APP_ENV") != "production")
	defer log.Sync()

	token := v.GetString("CALLBOT_TOKEN")
	if token == "" {
		log.Fatal("CALLBOT_TOKEN is required")
	}
	// The server verifies the token; the bot only needs to know who it is.
	claims := &models.JwtCustomClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil || claims.UserID == "" {
		log.Fatal("CALLBOT_TOKEN is not a session token", zap.Error(err))
	}
	log = log.With(zap.String("user_id", claims.UserID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sig, err := callagent.DialWS(ctx, v.GetString("CALLBOT_SERVER"), token, log)
	if err != nil {
		log.Fatal("connecting to signaling server failed", zap.Error(err))
	}
	defer sig.Close()

	hangupAfter := v.GetDuration("CALLBOT_HANGUP_AFTER")
	var agent *callagent.Agent
	agent = callagent.New(claims.UserID, sig, callagent.NewPionPeer, callagent.SyntheticMedia{},
		callagent.WithLogger(log),
		callagent.WithVideo(v.GetBool("CALLBOT_VIDEO")),
		callagent.WithICEServers(iceServers(v.GetString("STUN_SERVERS"))),
		callagent.WithStateHook(func(state callagent.State, call models.Call) {
			log.Info("call state", zap.String("state", string(state)), zap.String("call_id", call.ID))
			switch {
			case state == callagent.StateIncoming && call.Offer != nil:
				go func() {
					if err := agent.Accept(ctx); err != nil {
						log.Warn("auto-answer failed", zap.String("call_id", call.ID), zap.Error(err))
					}
				}()
			case state == callagent.StateConnected && hangupAfter > 0:
				time.AfterFunc(hangupAfter, func() {
					if err := agent.Hangup(context.Background()); err != nil && !errors.Is(err, callagent.ErrNoActiveCall) {
						log.Warn("hangup failed", zap.Error(err))
					}
				})
			}
		}),
	)

	if target := v.GetString("CALLBOT_CALL"); target != "" {
		call, err := agent.Call(ctx, target)
		if err != nil {
			log.Fatal("placing call failed", zap.String("receiver", target), zap.Error(err))
		}
		log.Info("ringing", zap.String("call_id", call.ID), zap.String("receiver", target))
	}

	go func() {
		select {
		case <-sig.Done():
			log.Error("signaling connection closed", zap.Error(sig.Err()))
			stop()
		case <-ctx.Done():
		}
	}()

	if err := agent.Run(ctx); err != nil {
		log.Error("incoming call loop stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := agent.Close(shutdownCtx); err != nil {
		log.Warn("hanging up on shutdown failed", zap.Error(err))
	}
	log.Info("callbot stopped")
}

func iceServers(raw string) []webrtc.ICEServer {
	var urls []string
	for _, u := range strings.Split(raw, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return callagent.DefaultICEServers
	}
	return []webrtc.ICEServer{{URLs: urls}}
}
