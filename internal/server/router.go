package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/discord-voice-bridge/internal/device"
	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/metrics"
	"github.com/discord-voice-bridge/internal/relay"
)

const (
	sessionName      = "voice-bridge"
	keyAuthenticated = "authenticated"
	keyUsername      = "username"
)

type Options struct {
	Username      string
	Password      string
	SessionSecret string
	SessionMaxAge time.Duration
	SecureCookie  bool
	// StaticPath is served for any path no route claims. Empty disables it.
	StaticPath string
	Device     device.Options
	Metrics    *metrics.Metrics
	// MCP, when set, is mounted at /mcp/ws behind the login session.
	MCP   http.Handler
	Debug bool
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type handlers struct {
	ctx      context.Context
	relay    device.Relay
	opts     Options
	upgrader websocket.Upgrader
}

// NewRouter builds the bridge's HTTP surface. Device connections started
// through /ws live until their socket closes or ctx ends.
func NewRouter(ctx context.Context, r device.Relay, opts Options) *gin.Engine {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	h := &handlers{ctx: ctx, relay: r, opts: opts}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(opts.Metrics))

	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(opts.SessionMaxAge / time.Second),
		HttpOnly: true,
		Secure:   opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	engine.Use(sessions.Sessions(sessionName, store))

	api := engine.Group("/api")
	api.POST("/login", h.login)
	api.GET("/check-auth", h.checkAuth)
	api.POST("/logout", h.logout)

	engine.GET("/ws", h.deviceSocket)
	engine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	if opts.MCP != nil {
		engine.GET("/mcp/ws", requireLogin(), gin.WrapH(opts.MCP))
	}
	if opts.StaticPath != "" {
		files := http.FileServer(http.Dir(opts.StaticPath))
		engine.NoRoute(gin.WrapH(files))
		logging.Infow("serving static assets", "path", opts.StaticPath)
	}
	return engine
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if !h.credentialsMatch(req.Username, req.Password) {
		logging.Warnw("failed login attempt", "user.name", req.Username, "remote", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid credentials"})
		return
	}

	sess := sessions.Default(c)
	sess.Set(keyAuthenticated, true)
	sess.Set(keyUsername, req.Username)
	if err := sess.Save(); err != nil {
		logging.Errorw("session save failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "session error"})
		return
	}
	logging.Infow("user logged in", "user.name", req.Username)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) credentialsMatch(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.opts.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(h.opts.Password)) == 1
	return userOK && passOK
}

func (h *handlers) checkAuth(c *gin.Context) {
	_, ok := authenticatedUser(c)
	c.JSON(http.StatusOK, gin.H{"authenticated": ok})
}

func (h *handlers) logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := sess.Save(); err != nil {
		logging.Warnw("session clear failed", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func authenticatedUser(c *gin.Context) (string, bool) {
	sess := sessions.Default(c)
	if ok, _ := sess.Get(keyAuthenticated).(bool); !ok {
		return "", false
	}
	name, _ := sess.Get(keyUsername).(string)
	return name, true
}

// requireLogin stops requests without an authenticated session.
func requireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := authenticatedUser(c); !ok {
			logging.Warnw("unauthenticated request rejected", "path", c.Request.URL.Path, "remote", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": relay.ErrNotAuthenticated.Error()})
			return
		}
		c.Next()
	}
}

func (h *handlers) deviceSocket(c *gin.Context) {
	user, ok := authenticatedUser(c)
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnw("device ws upgrade failed", "error", err)
		return
	}
	if !ok {
		logging.Warnw("unauthenticated device connection rejected", "remote", c.ClientIP())
		device.Reject(ws, relay.ErrNotAuthenticated)
		return
	}
	conn := device.NewConn(ws, user, h.opts.Device.SendBuffer)
	device.Serve(h.ctx, conn, h.relay, h.opts.Device)
}

// requestLogger records every request in the access log and, when m is
// set, in the HTTP metrics. Routes are labelled by their pattern.
func requestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "static"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		m.RecordHTTPRequest(c.Request.Method, endpoint, strconv.Itoa(status), elapsed.Seconds())
		logging.Debugw("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}
