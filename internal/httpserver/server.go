package httpserver

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/mcbroken/internal/model"
	"github.com/tinytelemetry/mcbroken/internal/session"
	"github.com/tinytelemetry/mcbroken/internal/settings"
)

// CacheStatus reports the upstream cache's freshness.
type CacheStatus interface {
	Age() (time.Duration, bool)
	Fetches() int64
}

// SessionStatus reports the dispatcher's current session.
type SessionStatus interface {
	Snapshot() session.Snapshot
}

// Peer is the websocket endpoint for the peer device.
type Peer interface {
	http.Handler
	Connected() bool
}

// SlotStore reads and replaces the saved slots.
type SlotStore interface {
	Slots() model.SavedSlots
	Replace(labels []string) (model.SavedSlots, error)
}

// FixSink accepts coordinate fixes pushed by the phone.
type FixSink interface {
	Set(model.Coordinate) error
}

// Deps are the components the API exposes.
type Deps struct {
	Cache    CacheStatus
	Sessions SessionStatus
	Peer     Peer
	Slots    SlotStore
	Location FixSink
}

// Server provides the bridge's HTTP API and mounts the peer websocket.
type Server struct {
	addr      string
	deps      Deps
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, deps Deps) *Server {
	if addr == "" {
		addr = model.DefaultAPIAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	// No WriteTimeout: the peer websocket is long-lived and sets its own
	// per-frame deadlines.
	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Addr returns the bound listen address, useful when configured with port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/settings", s.handleGetSettings)
	r.PUT("/api/settings", s.handlePutSettings)
	r.PUT("/api/location", s.handlePutLocation)
	if s.deps.Peer != nil {
		r.GET(model.DefaultPeerPath, gin.WrapH(s.deps.Peer))
	}
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.deps.Cache != nil {
		cache := gin.H{"fetches": s.deps.Cache.Fetches(), "fresh": false}
		if age, ok := s.deps.Cache.Age(); ok {
			cache["fresh"] = true
			cache["age"] = age.Round(time.Millisecond).String()
		}
		body["cache"] = cache
	}
	if s.deps.Sessions != nil {
		body["session"] = s.deps.Sessions.Snapshot()
	}
	if s.deps.Peer != nil {
		body["peer_connected"] = s.deps.Peer.Connected()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleGetSettings(c *gin.Context) {
	slots := s.deps.Slots.Slots()
	c.JSON(http.StatusOK, gin.H{"slots": slots[:]})
}

func (s *Server) handlePutSettings(c *gin.Context) {
	var req struct {
		Slots []string `json:"slots" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing slots field"})
		return
	}

	slots, err := s.deps.Slots.Replace(req.Slots)
	switch {
	case errors.Is(err, settings.ErrTooManySlots), errors.Is(err, settings.ErrSlotTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Printf("httpserver: save settings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots[:]})
}

func (s *Server) handlePutLocation(c *gin.Context) {
	var req struct {
		Lat *float64 `json:"lat" binding:"required"`
		Lon *float64 `json:"lon" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing lat/lon"})
		return
	}

	fix := model.Coordinate{Lat: *req.Lat, Lon: *req.Lon}
	if err := s.deps.Location.Set(fix); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lat": fix.Lat, "lon": fix.Lon})
}
