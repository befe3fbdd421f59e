package server

import (
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/meshweave/engine/internal/engine"
	"github.com/meshweave/engine/pkg/util"
)

// Server implements the local control surface. It talks only to the local
// engine; peers are reached exclusively through the sync substrate
type Server struct {
	engine  *engine.Engine
	sockets util.Set[*Client]
	mu      sync.Mutex
}

// NewServer creates a new HTTP API server over the local engine
func NewServer(eng *engine.Engine) *Server {
	return &Server{
		engine:  eng,
		sockets: util.Set[*Client]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", s.handleHealth)

	// Replication trigger
	router.POST("/sync", s.handleSync)

	// Session endpoints
	sessions := router.Group("/session")
	{
		sessions.GET("", s.listSessions)
		sessions.POST("/invite", s.handleInvite)
		sessions.POST("/join", s.handleJoin)
		sessions.GET("/:sessionID", s.getSessionState)
		sessions.GET("/:sessionID/progress", s.getProgress)
		sessions.GET("/:sessionID/mesh", s.getDiagnostics)

		// Step actions
		sessions.POST("/:sessionID/step/:stepID/run", s.runStep)
		sessions.POST("/:sessionID/step/:stepID/share", s.shareStep)
		sessions.GET("/:sessionID/step/:stepID/outputs", s.getStepOutputs)

		// WebSocket progress stream
		sessions.GET("/:sessionID/ws", s.handleWebSocket)
	}

	return router
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections.
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
