package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"
)

const defaultProgressInterval = 500 * time.Millisecond

// Config holds extraction tool configuration.
type Config struct {
	// Binary is the yt-dlp executable used for version/update queries.
	Binary string
	// FFmpegLocation overrides ffmpeg auto-detection when set.
	FFmpegLocation string
	// DownloadDir is where final artifacts are written.
	DownloadDir string
}

// Client drives yt-dlp. It implements Prober and Fetcher.
type Client struct {
	cfg              Config
	logger           zerolog.Logger
	progressInterval time.Duration
}

// NewClient creates a new extraction client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Binary == "" {
		cfg.Binary = "yt-dlp"
	}
	return &Client{
		cfg:              cfg,
		logger:           logger.With().Str("component", "extractor").Logger(),
		progressInterval: defaultProgressInterval,
	}
}

// probeInfo is the subset of yt-dlp's info JSON the probe surfaces.
type probeInfo struct {
	Title       string        `json:"title"`
	Uploader    string        `json:"uploader"`
	ViewCount   int64         `json:"view_count"`
	Duration    float64       `json:"duration"`
	Thumbnail   string        `json:"thumbnail"`
	Description string        `json:"description"`
	Formats     []probeFormat `json:"formats"`
}

type probeFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Resolution     string  `json:"resolution"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	FPS            float64 `json:"fps"`
	TBR            float64 `json:"tbr"`
}

// Probe extracts metadata for a URL without downloading anything.
func (c *Client) Probe(ctx context.Context, url, browser string) (*Metadata, error) {
	cmd := ytdlp.New().
		NoWarnings().
		SkipDownload().
		DumpSingleJSON()

	if c.cfg.FFmpegLocation != "" {
		cmd = cmd.FFmpegLocation(c.cfg.FFmpegLocation)
	}
	if useCookies(browser) {
		cmd = cmd.CookiesFromBrowser(browser)
	}

	result, err := cmd.Run(ctx, url)
	if err != nil {
		stderr := ""
		if result != nil {
			stderr = result.Stderr
		}
		c.logger.Debug().Err(err).Str("url", url).Msg("Probe failed")
		return nil, classifyProbeError(err, stderr)
	}

	var info probeInfo
	if err := json.Unmarshal([]byte(result.Stdout), &info); err != nil {
		return nil, fmt.Errorf("parse tool output: %w", err)
	}

	return &Metadata{
		Title:       info.Title,
		Uploader:    info.Uploader,
		ViewCount:   info.ViewCount,
		Duration:    info.Duration,
		Thumbnail:   info.Thumbnail,
		Description: truncate(info.Description, 500),
		Formats:     translateFormats(info.Formats),
	}, nil
}

// translateFormats filters the tool's format list down to variants a user
// could pick: anything with video, or standalone audio. Storyboard and
// image-only entries are dropped.
func translateFormats(raw []probeFormat) []Format {
	formats := make([]Format, 0, len(raw))
	for _, f := range raw {
		hasVideo := f.VCodec != "" && f.VCodec != "none"
		hasAudio := f.ACodec != "" && f.ACodec != "none"
		if !hasVideo && !hasAudio {
			continue
		}

		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}
		resolution := f.Resolution
		if resolution == "" {
			resolution = "audio only"
		}

		formats = append(formats, Format{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			Resolution: resolution,
			Filesize:   size,
			VCodec:     f.VCodec,
			ACodec:     f.ACodec,
			FPS:        f.FPS,
			TBR:        f.TBR,
		})
	}
	return formats
}

// Fetch downloads and transcodes a URL, forwarding translated progress
// events to onProgress at the tool's cadence. It returns the path of the
// final artifact.
func (c *Client) Fetch(ctx context.Context, req FetchRequest, onProgress ProgressFunc) (string, error) {
	spec := ResolveFormat(req.Format)

	prefix := ""
	if req.OutputPrefix != "" {
		prefix = req.OutputPrefix + "_"
	}
	outputTemplate := filepath.Join(c.cfg.DownloadDir, prefix+"%(title)s.%(ext)s")

	cmd := ytdlp.New().
		NoWarnings().
		NoPlaylist().
		RestrictFilenames().
		ForceOverwrites().
		Format(spec.selector).
		Output(outputTemplate)

	if spec.extractAudio {
		cmd = cmd.ExtractAudio().AudioFormat(spec.audioFormat)
	}
	if c.cfg.FFmpegLocation != "" {
		cmd = cmd.FFmpegLocation(c.cfg.FFmpegLocation)
	}
	if useCookies(req.Browser) {
		cmd = cmd.CookiesFromBrowser(req.Browser)
	}

	if onProgress != nil {
		cmd.ProgressFunc(c.progressInterval, func(update ytdlp.ProgressUpdate) {
			onProgress(translateProgress(update))
		})
	}

	c.logger.Info().
		Str("url", req.URL).
		Str("format", req.Format).
		Str("selector", spec.selector).
		Msg("Starting fetch")

	result, err := cmd.Run(ctx, req.URL)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		stderr := ""
		if result != nil {
			stderr = result.Stderr
		}
		return "", classifyFetchError(err, stderr)
	}

	path, err := c.artifactPath(result, req.OutputPrefix, spec)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: artifact missing after fetch", ErrEmptyResult)
	}
	if info.Size() == 0 {
		// A zero-byte artifact signals an upstream block, not a transient
		// failure. Remove it so it never shows up in the completed listing.
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: tool produced a zero-byte file", ErrEmptyResult)
	}

	c.logger.Info().
		Str("url", req.URL).
		Str("path", path).
		Int64("size", info.Size()).
		Msg("Fetch complete")

	return path, nil
}

// artifactPath locates the final artifact after a successful run. The
// extracted info filename is authoritative; audio extraction rewrites the
// extension, and as a last resort the download dir is scanned for the
// request's output prefix.
func (c *Client) artifactPath(result *ytdlp.Result, outputPrefix string, spec formatSpec) (string, error) {
	var path string

	if result != nil {
		if infos, err := result.GetExtractedInfo(); err == nil && len(infos) > 0 {
			if infos[0].Filename != nil && *infos[0].Filename != "" {
				path = *infos[0].Filename
			}
		}
	}

	if path != "" && spec.extractAudio {
		converted := strings.TrimSuffix(path, filepath.Ext(path)) + "." + spec.audioFormat
		if _, err := os.Stat(converted); err == nil {
			path = converted
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if outputPrefix != "" {
		if found := newestMatch(filepath.Join(c.cfg.DownloadDir, outputPrefix+"_*")); found != "" {
			return found, nil
		}
	}

	return "", fmt.Errorf("%w: could not locate artifact", ErrEmptyResult)
}

// newestMatch returns the most recently modified path matching the glob.
func newestMatch(pattern string) string {
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return ""
	}

	newest := ""
	var newestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = m
			newestMod = info.ModTime()
		}
	}
	return newest
}

// translateProgress converts a tool-native progress event into the adapter
// schema. Percent is computed from byte counts and clamped downstream.
func translateProgress(update ytdlp.ProgressUpdate) Progress {
	p := Progress{Stage: StageDownloading}

	if update.TotalBytes > 0 {
		p.Percent = float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
	}
	if !update.Started.IsZero() {
		if elapsed := time.Since(update.Started); elapsed > 0 {
			p.Speed = float64(update.DownloadedBytes) / elapsed.Seconds()
		}
	}
	if eta := update.ETA(); eta > 0 {
		p.ETA = int64(eta.Seconds())
	}

	switch update.Status {
	case ytdlp.ProgressStatusPostProcessing, ytdlp.ProgressStatusFinished:
		p.Stage = StageProcessing
		p.Percent = 100
		p.Speed = 0
		p.ETA = 0
	}

	return p
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
