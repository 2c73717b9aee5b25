package job

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/streamgrab/streamgrab/internal/extractor"
)

// Fetcher is the slice of the extraction adapter the runner drives.
type Fetcher interface {
	Fetch(ctx context.Context, req extractor.FetchRequest, onProgress extractor.ProgressFunc) (string, error)
}

// DownloadRequest describes one accepted download.
type DownloadRequest struct {
	URL     string
	Format  string
	Browser string
}

// Runner launches one worker goroutine per accepted download and drives it
// through the job state machine. Each worker is the sole writer for its job;
// the registry is the only state shared with pollers. A worker always leaves
// its job in exactly one terminal state, whatever the exit path.
type Runner struct {
	registry *Registry
	fetcher  Fetcher
	logger   zerolog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRunner creates a new job runner.
func NewRunner(registry *Registry, fetcher Fetcher, logger zerolog.Logger) *Runner {
	return &Runner{
		registry: registry,
		fetcher:  fetcher,
		logger:   logger.With().Str("component", "job-runner").Logger(),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start registers a job and schedules its worker. It returns immediately
// with the starting-state snapshot; all blocking work happens in the worker.
func (r *Runner) Start(req DownloadRequest) Job {
	j := r.registry.Create()

	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancels[j.ID] = cancel
	r.mu.Unlock()

	go r.run(ctx, j.ID, req)

	r.logger.Info().
		Str("jobId", j.ID).
		Str("url", req.URL).
		Str("format", req.Format).
		Msg("Download accepted")

	return j
}

// Cancel requests cooperative cancellation of a running job. The worker
// terminates the underlying tool and records a cancelled-cause error state.
func (r *Runner) Cancel(id string) error {
	j, err := r.registry.Get(id)
	if err != nil {
		return err
	}
	if j.Status.IsTerminal() {
		return ErrJobFinished
	}

	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if !ok {
		return ErrJobFinished
	}

	cancel()
	return nil
}

// run is the worker body. The deferred block guarantees a terminal update
// on every exit path, including panics; the registry's terminal-state check
// makes a second terminal transition impossible.
func (r *Runner) run(ctx context.Context, id string, req DownloadRequest) {
	defer func() {
		r.mu.Lock()
		if cancel, ok := r.cancels[id]; ok {
			cancel()
			delete(r.cancels, id)
		}
		r.mu.Unlock()

		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("jobId", id).
				Interface("panic", rec).
				Msg("Worker panicked")
			r.fail(id, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	path, err := r.fetcher.Fetch(ctx, extractor.FetchRequest{
		URL:          req.URL,
		Format:       req.Format,
		Browser:      req.Browser,
		OutputPrefix: id,
	}, func(p extractor.Progress) {
		r.applyProgress(id, p)
	})

	if err != nil {
		r.logger.Warn().Err(err).Str("jobId", id).Msg("Download failed")
		r.fail(id, errorMessage(ctx, err))
		return
	}

	filename := filepath.Base(path)
	if uerr := r.registry.Update(id, Update{
		Status:   statusPtr(StatusComplete),
		Percent:  float64Ptr(100),
		Filename: stringPtr(filename),
	}); uerr != nil && !errors.Is(uerr, ErrJobFinished) {
		r.logger.Error().Err(uerr).Str("jobId", id).Msg("Failed to record completion")
		return
	}

	r.logger.Info().
		Str("jobId", id).
		Str("filename", filename).
		Msg("Download complete")
}

// applyProgress maps one adapter progress event onto the registry.
func (r *Runner) applyProgress(id string, p extractor.Progress) {
	var upd Update
	switch p.Stage {
	case extractor.StageProcessing:
		upd = Update{
			Status:  statusPtr(StatusProcessing),
			Percent: float64Ptr(100),
			Speed:   float64Ptr(0),
			ETA:     int64Ptr(0),
		}
	default:
		upd = Update{
			Status:  statusPtr(StatusDownloading),
			Percent: float64Ptr(p.Percent),
			Speed:   float64Ptr(p.Speed),
			ETA:     int64Ptr(p.ETA),
		}
	}

	if err := r.registry.Update(id, upd); err != nil && !errors.Is(err, ErrJobFinished) {
		r.logger.Debug().Err(err).Str("jobId", id).Msg("Dropped progress update")
	}
}

// fail records the terminal error state. A no-op if the job already
// reached a terminal state.
func (r *Runner) fail(id, message string) {
	err := r.registry.Update(id, Update{
		Status: statusPtr(StatusError),
		Error:  stringPtr(message),
	})
	if err != nil && !errors.Is(err, ErrJobFinished) {
		r.logger.Error().Err(err).Str("jobId", id).Msg("Failed to record error state")
	}
}

// errorMessage converts adapter failures into the human-readable causes the
// polling client displays. Empty results get actionable guidance because
// they signal an upstream block rather than a transient error.
func errorMessage(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return "download cancelled"
	case errors.Is(err, extractor.ErrEmptyResult):
		return "the source returned an empty file, which usually means the download was blocked upstream; try supplying browser cookies"
	case errors.Is(err, extractor.ErrAuthRequired):
		return "the source requires authentication; select a browser to supply cookies"
	case errors.Is(err, extractor.ErrBlocked):
		return "the source blocked the download request"
	case errors.Is(err, extractor.ErrTranscode):
		return "post-processing failed: " + err.Error()
	case errors.Is(err, extractor.ErrInvalidURL):
		return "the URL is not valid"
	case errors.Is(err, extractor.ErrUnsupported):
		return "the URL is not supported by the extraction tool"
	default:
		return err.Error()
	}
}
