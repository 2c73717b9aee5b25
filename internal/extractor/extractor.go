// Package extractor wraps the yt-dlp extraction tool behind a narrow
// contract: a metadata-only probe and a fetch-with-transcode operation that
// reports progress through a caller-supplied callback. The tool's native
// event shape never leaks past this package.
package extractor

import (
	"context"
	"errors"
)

// Taxonomy of adapter failures. Callers match with errors.Is; the concrete
// error keeps the tool's own message for logs.
var (
	ErrInvalidURL   = errors.New("invalid url")
	ErrUnsupported  = errors.New("unsupported source")
	ErrNetwork      = errors.New("network error")
	ErrAuthRequired = errors.New("authentication required")
	ErrBlocked      = errors.New("extraction blocked")
	ErrTranscode    = errors.New("transcode failed")
	ErrEmptyResult  = errors.New("empty result")
)

// Metadata describes a media URL without downloading it.
type Metadata struct {
	Title       string   `json:"title"`
	Uploader    string   `json:"uploader"`
	ViewCount   int64    `json:"view_count"`
	Duration    float64  `json:"duration"`
	Thumbnail   string   `json:"thumbnail"`
	Description string   `json:"description"`
	Formats     []Format `json:"formats"`
}

// Format is one stream variant the source offers, as reported by the tool.
type Format struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	Resolution string  `json:"resolution"`
	Filesize   int64   `json:"filesize,omitempty"`
	VCodec     string  `json:"vcodec"`
	ACodec     string  `json:"acodec"`
	FPS        float64 `json:"fps,omitempty"`
	TBR        float64 `json:"tbr,omitempty"`
}

// Stage identifies which phase of a fetch a progress event belongs to.
type Stage string

const (
	// StageDownloading covers raw stream transfer.
	StageDownloading Stage = "downloading"
	// StageProcessing covers post-download muxing/transcoding, during which
	// percent is pinned at 100.
	StageProcessing Stage = "processing"
)

// Progress is one translated progress event. Speed is bytes/sec and ETA is
// seconds; both are zero when the tool does not report them.
type Progress struct {
	Stage   Stage
	Percent float64
	Speed   float64
	ETA     int64
}

// ProgressFunc receives progress events at the tool's own cadence.
type ProgressFunc func(Progress)

// FetchRequest describes one fetch-with-transcode operation.
type FetchRequest struct {
	URL string
	// Format is one of the quality choices in Formats.
	Format string
	// Browser selects the browser whose stored cookies authenticate the
	// request; "" or "none" fetches anonymously. Passed through opaquely.
	Browser string
	// OutputPrefix namespaces the artifact filename, typically the job id.
	OutputPrefix string
}

// Prober is the metadata-only probe operation.
type Prober interface {
	Probe(ctx context.Context, url, browser string) (*Metadata, error)
}

// Fetcher is the full fetch-with-transcode operation. It returns the path
// of the final artifact.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest, onProgress ProgressFunc) (string, error)
}

func useCookies(browser string) bool {
	return browser != "" && browser != "none"
}
