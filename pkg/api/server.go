package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ismaeeldev/nexa-server/pkg/buildinfo"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
	"github.com/ismaeeldev/nexa-server/pkg/webhook"
)

// HealthChecker reports dependency health for /healthz.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address       string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	EnableCORS    bool
	SessionSecret string
}

// Deps are the wired handlers and shared infrastructure the server mounts.
type Deps struct {
	Agents   *AgentsHandler
	Meetings *MeetingsHandler
	Webhook  *webhook.Handler
	Health   HealthChecker
	Registry *prometheus.Registry
	Logger   logging.Logger
}

// Server is the HTTP front of the service.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	logger logging.Logger
}

// NewServer builds the router and wires all routes.
func NewServer(cfg ServerConfig, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(deps.Logger))

	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		engine: engine,
		logger: deps.Logger.With(logging.F("component", "http_server")),
	}

	s.setupRoutes(cfg, deps)

	s.http = &http.Server{
		Addr:         cfg.Address,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes(cfg ServerConfig, deps Deps) {
	// Operational endpoints, unauthenticated.
	s.engine.GET("/healthz", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, buildinfo.Get("nexa-server"))
	})

	if deps.Registry != nil {
		s.engine.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	// The webhook authenticates by signature, not session.
	if deps.Webhook != nil {
		s.engine.POST("/api/webhook", deps.Webhook.Handle)
	}

	authed := s.engine.Group("/api", Auth(cfg.SessionSecret))

	if deps.Agents != nil {
		authed.GET("/agents", deps.Agents.List)
		authed.GET("/agents/:id", deps.Agents.Get)
		authed.POST("/agents", deps.Agents.Create)
		authed.PUT("/agents/:id", deps.Agents.Update)
		authed.DELETE("/agents/:id", deps.Agents.Delete)
	}

	if deps.Meetings != nil {
		authed.GET("/meetings", deps.Meetings.List)
		authed.GET("/meetings/:id", deps.Meetings.Get)
		authed.POST("/meetings", deps.Meetings.Create)
		authed.PUT("/meetings/:id", deps.Meetings.Update)
		authed.DELETE("/meetings/:id", deps.Meetings.Delete)
		authed.POST("/meetings/:id/cancel", deps.Meetings.Cancel)
		authed.POST("/meetings/:id/token", deps.Meetings.Token)
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", logging.F("address", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.http.Shutdown(ctx)
}
