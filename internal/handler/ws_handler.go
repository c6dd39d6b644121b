package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/notefold/notefold-backend/internal/config"
	"github.com/notefold/notefold-backend/internal/middleware"
	"github.com/notefold/notefold-backend/internal/service"
	ws "github.com/notefold/notefold-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live completion events of a test to its teachers.
type WSHandler struct {
	rdb            *redis.Client
	gradingService *service.GradingService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, gradingService *service.GradingService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:            rdb,
		gradingService: gradingService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// MonitorTest godoc
// WS /ws/v1/teacher/tests/:test_id/monitor?token=...
// Upgrades to WebSocket and forwards each submission completion of the test
// as it happens.
func (h *WSHandler) MonitorTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid test ID"})
		return
	}

	// Ownership is checked before upgrading so unauthorized callers get a
	// plain HTTP error instead of a half-open socket.
	if err := h.gradingService.AuthorizeTestRead(c.Request.Context(), testID, claims.UserID); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrTestNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrNotTestOwner):
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": "cannot monitor this test"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("teacher_id", claims.UserID).
		Str("test_id", testID.String()).
		Logger()
	wsLog.Info().Msg("Teacher connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub := h.rdb.Subscribe(ctx, config.CacheKey.TestMonitorChannel(testID.String()))
	defer sub.Close()

	pings := make(chan struct{}, 1)
	go h.writeLoop(ctx, conn, sub.Channel(), pings, wsLog)

	// The read loop only services pings and detects the close handshake. It
	// never writes: pongs are handed to writeLoop, which owns the connection's
	// write side (gorilla/websocket forbids concurrent writers).
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		if msg.Action == ws.ActionPing {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}

// writeLoop is the connection's sole writer. It forwards completion events
// from the monitor channel and answers pings queued by the read loop.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan *redis.Message, pings <-chan struct{}, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				log.Debug().Err(err).Msg("pong write failed")
				return
			}
		case msg, ok := <-events:
			if !ok {
				return
			}

			var payload service.PersistCompletionPayload
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				log.Warn().Err(err).Msg("bad monitor payload")
				continue
			}

			event := ws.CompletedResponse{
				Event:        ws.EventCompleted,
				SubmissionID: payload.SubmissionID,
				AuthorID:     payload.AuthorID,
				Score:        payload.Score,
				CompletedOn:  payload.CompletedOn.Format("2006-01-02T15:04:05Z07:00"),
			}
			if err := ws.WriteTyped(conn, event); err != nil {
				log.Debug().Err(err).Msg("monitor write failed")
				return
			}
		}
	}
}
