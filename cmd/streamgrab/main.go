package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/streamgrab/streamgrab/internal/api"
	"github.com/streamgrab/streamgrab/internal/config"
	"github.com/streamgrab/streamgrab/internal/logger"
	"github.com/streamgrab/streamgrab/internal/scheduler"
	"github.com/streamgrab/streamgrab/internal/websocket"
	"github.com/streamgrab/streamgrab/web"
)

func main() {
	// .env is optional; real deployments use environment variables directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting streamgrab")

	hub := websocket.NewHub()
	go hub.Run()

	server := api.NewServer(cfg, hub, log.Logger)

	if err := server.EnsureDownloadDir(); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Downloads.Dir).Msg("failed to create downloads directory")
	}

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}

	// Terminal jobs stay queryable for an hour, then get pruned.
	if err := sched.RegisterTask(scheduler.TaskConfig{
		ID:       "job-prune",
		Name:     "Prune finished downloads",
		Interval: 10 * time.Minute,
		Func: func(ctx context.Context) error {
			pruned := server.Registry().Prune(time.Hour)
			if pruned > 0 {
				log.Debug().Int("pruned", pruned).Msg("pruned finished jobs")
			}
			return nil
		},
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to register prune task")
	}

	// Drop idle clients from the rate limiter so its memory stays bounded.
	if err := sched.RegisterTask(scheduler.TaskConfig{
		ID:       "ratelimit-sweep",
		Name:     "Sweep rate limiter windows",
		Interval: 15 * time.Minute,
		Func: func(ctx context.Context) error {
			server.RateLimiter().Sweep()
			return nil
		},
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to register sweep task")
	}

	sched.Start()

	if staticFS, err := web.StaticFS(); err == nil {
		registerFrontendHandler(server.Echo(), staticFS)
	} else {
		log.Warn().Err(err).Msg("frontend assets unavailable")
	}

	go func() {
		addr := cfg.Server.Address()
		log.Info().Str("address", addr).Msg("HTTP server listening")
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}

	log.Info().Msg("server stopped")
}

// registerFrontendHandler serves the embedded UI, falling back to index.html
// for any path the API and asset tree don't claim.
func registerFrontendHandler(e *echo.Echo, staticFS fs.FS) {
	fileServer := http.FileServer(http.FS(staticFS))

	e.GET("/*", func(c echo.Context) error {
		path := c.Request().URL.Path

		if strings.HasPrefix(path, "/api/") || path == "/ws" {
			return echo.ErrNotFound
		}

		if path != "/" {
			cleanPath := strings.TrimPrefix(path, "/")
			if file, err := staticFS.Open(cleanPath); err == nil {
				file.Close()
				fileServer.ServeHTTP(c.Response(), c.Request())
				return nil
			}
		}

		indexFile, err := staticFS.Open("index.html")
		if err != nil {
			return echo.ErrNotFound
		}
		defer indexFile.Close()

		return c.Stream(http.StatusOK, "text/html; charset=utf-8", indexFile)
	})
}
