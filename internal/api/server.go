package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	apimw "github.com/streamgrab/streamgrab/internal/api/middleware"
	"github.com/streamgrab/streamgrab/internal/config"
	"github.com/streamgrab/streamgrab/internal/extractor"
	"github.com/streamgrab/streamgrab/internal/files"
	"github.com/streamgrab/streamgrab/internal/job"
	"github.com/streamgrab/streamgrab/internal/ratelimit"
	"github.com/streamgrab/streamgrab/internal/websocket"
)

// ExtractorService is the slice of the extraction adapter the HTTP layer
// consumes directly: the metadata probe and tool maintenance. Downloads go
// through the job runner instead.
type ExtractorService interface {
	Probe(ctx context.Context, url, browser string) (*extractor.Metadata, error)
	Version(ctx context.Context) (string, error)
	SelfUpdate(ctx context.Context) (string, error)
}

// Server handles HTTP requests for the streamgrab API.
type Server struct {
	echo   *echo.Echo
	hub    *websocket.Hub
	logger zerolog.Logger
	cfg    *config.Config

	// Services
	registry     *job.Registry
	runner       *job.Runner
	extractor    ExtractorService
	filesService *files.Service
	rateLimiter  *ratelimit.Limiter
}

// NewServer creates a new API server instance and wires the core services.
func NewServer(cfg *config.Config, hub *websocket.Hub, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		hub:    hub,
		logger: logger,
		cfg:    cfg,
	}

	s.filesService = files.NewService(cfg.Downloads.Dir, cfg.Downloads.MaxListed, logger)

	client := extractor.NewClient(extractor.Config{
		Binary:         cfg.YTDLP.Binary,
		FFmpegLocation: cfg.YTDLP.FFmpegLocation,
		DownloadDir:    cfg.Downloads.Dir,
	}, logger)
	s.extractor = client

	s.registry = job.NewRegistry(logger)
	if hub != nil {
		s.registry.SetBroadcaster(hub)
	}
	s.runner = job.NewRunner(s.registry, client, logger)

	s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{
		DownloadLimit:  cfg.RateLimit.DownloadLimit,
		DownloadWindow: cfg.RateLimit.DownloadWindow,
		UpdateLimit:    cfg.RateLimit.UpdateLimit,
		UpdateWindow:   cfg.RateLimit.UpdateWindow,
	}, logger)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Security headers
	s.echo.Use(apimw.SecurityHeaders())

	// Request body size limit
	s.echo.Use(middleware.BodyLimit("1M"))

	// CORS
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	// Gzip compression
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket and file streaming
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// basicAuthMiddleware gates the API behind HTTP Basic-Auth when enabled.
func (s *Server) basicAuthMiddleware() echo.MiddlewareFunc {
	return middleware.BasicAuth(func(username, password string, c echo.Context) (bool, error) {
		userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Auth.Username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Auth.Password)) == 1
		return userMatch && passMatch, nil
	})
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Registry returns the job registry, for maintenance tasks.
func (s *Server) Registry() *job.Registry {
	return s.registry
}

// RateLimiter returns the admission rate limiter, for maintenance tasks.
func (s *Server) RateLimiter() *ratelimit.Limiter {
	return s.rateLimiter
}

// EnsureDownloadDir creates the completed-downloads directory.
func (s *Server) EnsureDownloadDir() error {
	return s.filesService.EnsureDir()
}

// Start begins listening on the given address.
func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
