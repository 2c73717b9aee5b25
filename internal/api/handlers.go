package api

import (
	"errors"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/streamgrab/streamgrab/internal/config"
	"github.com/streamgrab/streamgrab/internal/extractor"
	"github.com/streamgrab/streamgrab/internal/files"
	"github.com/streamgrab/streamgrab/internal/job"
	"github.com/streamgrab/streamgrab/internal/ratelimit"
)

type infoRequest struct {
	URL     string `json:"url"`
	Browser string `json:"browser"`
}

type downloadRequest struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Browser string `json:"browser"`
}

// normalizeURL trims the submitted URL and defaults the scheme to https
// when none is given, so bare hostnames paste straight from the address bar.
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("please enter a video URL")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", errors.New("invalid URL")
	}
	return raw, nil
}

// retryAfterSeconds rounds a retry hint up so clients never retry early.
func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

// handleHealth returns service health status.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": config.Version,
	})
}

// handleInfo probes a URL for metadata without downloading.
func (s *Server) handleInfo(c echo.Context) error {
	var req infoRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	normalized, err := normalizeURL(req.URL)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	meta, err := s.extractor.Probe(c.Request().Context(), normalized, req.Browser)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", normalized).Msg("Probe failed")
		return c.JSON(probeStatus(err), map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, meta)
}

// probeStatus maps probe failures onto HTTP statuses.
func probeStatus(err error) int {
	switch {
	case errors.Is(err, extractor.ErrInvalidURL), errors.Is(err, extractor.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, extractor.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, extractor.ErrBlocked):
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}

// handleDownload admits a download through the rate limiter and starts a job.
func (s *Server) handleDownload(c echo.Context) error {
	var req downloadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	normalized, err := normalizeURL(req.URL)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	clientID := c.RealIP()
	allowed, retryAfter := s.rateLimiter.Admit(clientID, ratelimit.ActionDownload)
	if !allowed {
		return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
			"error":       "download rate limit exceeded, please wait before starting another download",
			"retry_after": retryAfterSeconds(retryAfter),
		})
	}

	j := s.runner.Start(job.DownloadRequest{
		URL:     normalized,
		Format:  req.Format,
		Browser: req.Browser,
	})

	s.logger.Info().
		Str("job_id", j.ID).
		Str("url", normalized).
		Str("format", req.Format).
		Msg("Download started")

	return c.JSON(http.StatusOK, map[string]string{
		"download_id": j.ID,
		"message":     "download started",
	})
}

// handleProgress returns the current snapshot of a download job.
func (s *Server) handleProgress(c echo.Context) error {
	j, err := s.registry.Get(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "download not found"})
	}
	return c.JSON(http.StatusOK, j)
}

// handleCancel requests cooperative cancellation of a running download.
func (s *Server) handleCancel(c echo.Context) error {
	id := c.Param("id")
	switch err := s.runner.Cancel(id); {
	case errors.Is(err, job.ErrJobNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "download not found"})
	case errors.Is(err, job.ErrJobFinished):
		return c.JSON(http.StatusConflict, map[string]string{"error": "download already finished"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"message": "cancellation requested"})
}

// handleListDownloads lists completed files, newest first.
func (s *Server) handleListDownloads(c echo.Context) error {
	list, err := s.filesService.List()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list downloads")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list downloads"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"files": list})
}

// handleFile streams a completed file back as an attachment.
func (s *Server) handleFile(c echo.Context) error {
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid filename"})
	}
	path, err := s.filesService.Resolve(name)
	switch {
	case errors.Is(err, files.ErrInvalidName):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid filename"})
	case errors.Is(err, files.ErrFileNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "file not found"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to open file"})
	}
	return c.Attachment(path, name)
}

// handleToolVersion reports the installed yt-dlp version.
func (s *Server) handleToolVersion(c echo.Context) error {
	version, err := s.extractor.Version(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read yt-dlp version")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read yt-dlp version"})
	}
	return c.JSON(http.StatusOK, map[string]string{"version": version})
}

// handleToolUpdate runs yt-dlp self-update, rate limited separately from
// downloads so update attempts never eat download capacity.
func (s *Server) handleToolUpdate(c echo.Context) error {
	clientID := c.RealIP()
	allowed, retryAfter := s.rateLimiter.Admit(clientID, ratelimit.ActionToolUpdate)
	if !allowed {
		return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
			"error":       "update rate limit exceeded, please wait before retrying",
			"retry_after": retryAfterSeconds(retryAfter),
		})
	}

	output, err := s.extractor.SelfUpdate(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("yt-dlp self-update failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "update failed: " + err.Error()})
	}

	s.logger.Info().Str("output", output).Msg("yt-dlp self-update finished")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": output,
	})
}
