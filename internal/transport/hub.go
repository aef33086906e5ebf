package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/velahub/signalcore/internal/auth"
	"github.com/velahub/signalcore/internal/kvstore"
	"github.com/velahub/signalcore/internal/logging"
	"github.com/velahub/signalcore/internal/metrics"
	"github.com/velahub/signalcore/internal/room"
	"github.com/velahub/signalcore/internal/router"
)

// Hub owns the WebSocket upgrade endpoint. A single Hub serves every room;
// room membership itself lives in the Registry, not here.
type Hub struct {
	validator      auth.TokenVerifier
	registry       *room.Registry
	router         *router.Router
	store          kvstore.Store
	defaultMaxSize int
	upgrader       websocket.Upgrader
}

// NewHub builds a Hub. allowedOrigins restricts the WebSocket upgrade's
// Origin header the same way the HTTP CORS middleware restricts ordinary
// requests. defaultMaxSize is the descriptor default (§6 config
// max_participants_default) used when a room has no stored descriptor, or
// the descriptor omits max_participants.
func NewHub(validator auth.TokenVerifier, registry *room.Registry, rtr *router.Router, store kvstore.Store, allowedOrigins []string, defaultMaxSize int) *Hub {
	checkOrigin := buildOriginChecker(allowedOrigins)
	return &Hub{
		validator:      validator,
		registry:       registry,
		router:         rtr,
		store:          store,
		defaultMaxSize: defaultMaxSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r.Header.Get("Origin"))
			},
		},
	}
}

// roomCapacity implements invariant I4: capacity comes from the room's
// persisted descriptor when one exists, falling back to the configured
// default when there is no descriptor, it fails to parse, or it omits
// max_participants.
func (h *Hub) roomCapacity(ctx context.Context, roomID string) int {
	raw, found, err := h.store.Get(ctx, fmt.Sprintf("room:%s", roomID))
	if err != nil {
		logging.Warn(ctx, "failed to read room descriptor for capacity check", zap.Error(err))
		return h.defaultMaxSize
	}
	if !found {
		return h.defaultMaxSize
	}

	var desc struct {
		MaxParticipants int `json:"max_participants"`
	}
	if err := json.Unmarshal([]byte(raw), &desc); err != nil || desc.MaxParticipants <= 0 {
		return h.defaultMaxSize
	}
	return desc.MaxParticipants
}

// ServeWs implements the phases of §4.G against a Gin route bound to
// /rooms/ws/:roomId. Auth failure never reaches the upgrade: without a
// websocket connection there is nothing to send a 1008 close frame over,
// so an invalid or missing token is rejected with a plain 401 instead.
func (h *Hub) ServeWs(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("roomId")

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token not provided"})
		return
	}

	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		logging.Warn(ctx, "websocket auth failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(ctx, "websocket upgrade failed", zap.Error(err))
		return
	}
	client := newClient(conn)

	username := c.Query("username")
	if username == "" {
		username = claims.Subject
	}

	metrics.IncConnection()
	capacity := h.roomCapacity(ctx, roomID)
	if !h.registry.Admit(ctx, roomID, claims.Subject, username, client, capacity) {
		metrics.DecConnection()
		return
	}

	h.readLoop(ctx, roomID, claims.Subject, client)
}

// readLoop is phase 4 (read) and phase 5 (teardown) of §4.G. Exactly one
// eviction happens per session, on whatever path ends the loop: orderly
// remote close, a read error, or a panic raised while routing a frame.
func (h *Hub) readLoop(ctx context.Context, roomID, userID string, client *Client) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error(ctx, "router panic, tearing down session", zap.Any("recover", rec))
		}
		h.registry.Evict(ctx, userID, 1011, "session ended")
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.router.Route(ctx, roomID, userID, data)
	}
}
