package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/stocklens/stocklens/internal/models"
)

// Analyzer is the orchestrator surface the API depends on.
type Analyzer interface {
	Analyze(ctx context.Context, ticker string, flags models.PillarFlags) (*models.AnalysisRecord, error)
	IsCached(ctx context.Context, ticker string) bool
	InvalidateCache(ctx context.Context, ticker string) error
	ClearCache(ctx context.Context)
}

// Server is the REST API server.
type Server struct {
	router   *gin.Engine
	analyzer Analyzer
	limiter  *ipRateLimiter
	addr     string
	timeout  time.Duration
	server   *http.Server
}

// Config contains server configuration.
type Config struct {
	Host              string
	Port              int
	Analyzer          Analyzer
	UncachedPerMinute int
	RequestTimeout    time.Duration
	EnableMetrics     bool
}

// NewServer creates the API server with routes and middleware configured.
func NewServer(config Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	if config.UncachedPerMinute <= 0 {
		config.UncachedPerMinute = 5
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 60 * time.Second
	}

	s := &Server{
		router:   router,
		analyzer: config.Analyzer,
		limiter:  newIPRateLimiter(config.UncachedPerMinute),
		addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		timeout:  config.RequestTimeout,
	}
	s.setupRoutes(config.EnableMetrics)
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes(enableMetrics bool) {
	s.router.GET("/health", s.handleHealth)
	if enableMetrics {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/analyze", s.handleAnalyze)
		v1.GET("/analyze/:ticker", s.handleAnalyzeByPath)
		v1.DELETE("/cache/:ticker", s.handleInvalidate)
		v1.DELETE("/cache", s.handleClearCache)
	}
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping API server")
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}

// LoggerMiddleware logs one structured line per request.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		event := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("Request handled")
	}
}
