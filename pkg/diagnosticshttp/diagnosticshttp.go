// Package diagnosticshttp implements the read-only Diagnostics HTTP
// Endpoint, serving /, /status, /health, /events, and /watchers as JSON
// over gin-gonic/gin.
package diagnosticshttp

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/0xmhha/filewatchrest/pkg/diagnostics"
	"github.com/0xmhha/filewatchrest/pkg/logger"
)

// Server serves the diagnostics endpoint.
type Server struct {
	store  *diagnostics.Store
	engine *gin.Engine
	srv    *http.Server
	logger logger.Logger
}

// NewServer builds a diagnostics Server bound to addr (e.g. "127.0.0.1:9000",
// derived from Configuration.DiagnosticsURLPrefix).
func NewServer(addr string, store *diagnostics.Store, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(corsMiddleware(), ginRecovery(log))

	s := &Server{
		store:  store,
		engine: engine,
		logger: log,
		srv:    &http.Server{Addr: addr, Handler: engine},
	}

	engine.GET("/", s.handleStatus)
	engine.GET("/status", s.handleStatus)
	engine.GET("/health", s.handleHealth)
	engine.GET("/events", s.handleEvents)
	engine.GET("/watchers", s.handleWatchers)
	engine.NoRoute(s.handleNotFound)

	return s
}

// ListenAndServe starts the HTTP server. Blocks until it exits.
func (s *Server) ListenAndServe() error {
	s.logger.Info("diagnostics endpoint listening", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	return s.srv.Close()
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Status(time.Now()))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

func (s *Server) handleEvents(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Events(0))
}

func (s *Server) handleWatchers(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Watchers())
}

func (s *Server) handleNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":     "not found",
		"endpoints": []string{"/", "/status", "/health", "/events", "/watchers"},
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Next()
	}
}

func ginRecovery(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered interface{}) {
		log.Error("diagnostics endpoint panic recovered", "error", recovered)
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}
