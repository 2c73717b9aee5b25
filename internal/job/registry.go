package job

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already reached a terminal state")
)

// Broadcaster pushes job snapshots to connected clients. Satisfied by the
// websocket hub; polling via the registry works without one.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// Registry is the in-memory single source of truth for job state.
//
// Jobs are mutated only through Update, under one mutex, so concurrent
// pollers observe either the pre-update or post-update state in full.
// Nothing is persisted; a restart forgets all jobs.
type Registry struct {
	logger zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]*Job

	broadcaster Broadcaster
	now         func() time.Time
}

// NewRegistry creates an empty job registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		logger: logger.With().Str("component", "job-registry").Logger(),
		jobs:   make(map[string]*Job),
		now:    time.Now,
	}
}

// SetBroadcaster enables push notifications for job transitions.
func (r *Registry) SetBroadcaster(b Broadcaster) {
	r.broadcaster = b
}

// Create registers a new job in the starting state and returns a snapshot.
// The id is an opaque token, never reused.
func (r *Registry) Create() Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	j := &Job{
		ID:        uuid.NewString(),
		Status:    StatusStarting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.jobs[j.ID] = j

	r.logger.Debug().Str("jobId", j.ID).Msg("Job created")

	snapshot := *j
	r.notify(snapshot)
	return snapshot
}

// Get returns a snapshot of the job with the given id.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, exists := r.jobs[id]
	if !exists {
		return Job{}, ErrJobNotFound
	}
	return *j, nil
}

// Update applies a partial state change to the job. Fields left nil in upd
// are preserved. Updates against a job already in a terminal state are
// rejected, which keeps complete/error immutable.
func (r *Registry) Update(id string, upd Update) error {
	r.mu.Lock()

	j, exists := r.jobs[id]
	if !exists {
		r.mu.Unlock()
		return ErrJobNotFound
	}
	if j.Status.IsTerminal() {
		r.mu.Unlock()
		return ErrJobFinished
	}

	if upd.Status != nil {
		j.Status = *upd.Status
	}
	if upd.Percent != nil {
		j.Percent = clampPercent(*upd.Percent)
	}
	if upd.Speed != nil {
		j.Speed = *upd.Speed
	}
	if upd.ETA != nil {
		j.ETA = *upd.ETA
	}
	if upd.Filename != nil {
		j.Filename = *upd.Filename
	}
	if upd.Error != nil {
		j.Error = *upd.Error
	}
	j.UpdatedAt = r.now()

	snapshot := *j
	r.mu.Unlock()

	r.notify(snapshot)
	return nil
}

// Prune removes terminal jobs that have not been updated within maxAge and
// returns how many were removed. Active jobs are never pruned.
func (r *Registry) Prune(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	removed := 0
	for id, j := range r.jobs {
		if j.Status.IsTerminal() && j.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}

	if removed > 0 {
		r.logger.Debug().Int("removed", removed).Msg("Pruned stale jobs")
	}
	return removed
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func (r *Registry) notify(snapshot Job) {
	if r.broadcaster == nil {
		return
	}
	r.broadcaster.Broadcast("job:update", snapshot)
}

// clampPercent keeps progress within [0,100] even when the tool reports
// transient out-of-range values during multi-stream merges.
func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
