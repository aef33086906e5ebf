// Package httpapi implements the REST surface around room descriptors, chat
// and whiteboard history, and file uploads (§4.I). It never talks to a
// socket directly: it reads and writes persisted state, reads live
// membership from the registry for GET /rooms/{id}, and hands an upload's
// file_shared frame to the registry for fan-out.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/velahub/signalcore/internal/auth"
	"github.com/velahub/signalcore/internal/config"
	"github.com/velahub/signalcore/internal/kvstore"
	"github.com/velahub/signalcore/internal/middleware"
	"github.com/velahub/signalcore/internal/room"
	"github.com/velahub/signalcore/internal/router"
)

// API bundles the dependencies every handler needs. Construct one per
// process and call Register against the Gin engine's router group.
type API struct {
	store      kvstore.Store
	registry   *room.Registry
	router     *router.Router
	validator  auth.TokenVerifier
	secretKey  string
	algorithm  string
	tokenTTL   time.Duration
	stun       []string
	turn       []config.TurnServer
	uploadsDir string
	maxUpload  int64
}

// New builds an API. cfg supplies the ICE server list, upload limits, and
// the token-signing parameters the demo login endpoint uses to mint bearer
// tokens compatible with validator.
func New(store kvstore.Store, registry *room.Registry, rtr *router.Router, validator auth.TokenVerifier, cfg *config.Config) *API {
	return &API{
		store:      store,
		registry:   registry,
		router:     rtr,
		validator:  validator,
		secretKey:  cfg.SecretKey,
		algorithm:  cfg.Algorithm,
		tokenTTL:   time.Duration(cfg.AccessTokenExpMins) * time.Minute,
		stun:       cfg.StunServers,
		turn:       cfg.TurnServers,
		uploadsDir: cfg.UploadDirectory,
		maxUpload:  cfg.MaxFileSize,
	}
}

// Register wires every route in §4.I plus the supplemented demo-auth and
// download endpoints onto group. Every route requires a bearer token except
// POST /auth/login, which mints one.
func (a *API) Register(group gin.IRouter) {
	authed := middleware.RequireAuth(a.validator)

	roomsGroup := group.Group("/rooms", authed)
	roomsGroup.GET("", a.listRooms)
	roomsGroup.POST("/", a.createRoom)
	roomsGroup.GET("/:id", a.getRoom)
	roomsGroup.GET("/:id/ice-servers", a.iceServers)
	roomsGroup.GET("/:id/messages", a.chatHistory)
	roomsGroup.GET("/:id/whiteboard", a.whiteboardHistory)
	roomsGroup.POST("/:id/upload", a.uploadFile)
	roomsGroup.GET("/:id/download/:filename", a.downloadFile)

	authGroup := group.Group("/auth")
	authGroup.POST("/login", a.login)
	authGroup.GET("/me", authed, a.me)
}
