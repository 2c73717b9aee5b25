// Package ratelimit provides per-client sliding-window admission control.
package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Action identifies a limited action class.
type Action string

const (
	ActionDownload   Action = "download"
	ActionToolUpdate Action = "tool-update"
)

// Config defines the limit and trailing window per action class.
type Config struct {
	// DownloadLimit is the maximum number of downloads accepted per window
	DownloadLimit int
	// DownloadWindow is the trailing window for download admission
	DownloadWindow time.Duration
	// UpdateLimit is the maximum number of tool updates accepted per window
	UpdateLimit int
	// UpdateWindow is the trailing window for tool-update admission
	UpdateWindow time.Duration
}

// DefaultConfig returns the default rate limit configuration.
func DefaultConfig() Config {
	return Config{
		DownloadLimit:  10,
		DownloadWindow: 10 * time.Minute,
		UpdateLimit:    2,
		UpdateWindow:   5 * time.Minute,
	}
}

type clientKey struct {
	clientID string
	action   Action
}

// Limiter tracks acceptance timestamps per (client, action) pair.
//
// Unlike a fixed bucket that resets on a tick, the window boundary is
// recomputed at every evaluation, and rejected attempts never consume
// capacity. Expired timestamps are evicted lazily on the next evaluation.
type Limiter struct {
	config Config
	logger zerolog.Logger

	mu      sync.Mutex
	windows map[clientKey][]time.Time
	now     func() time.Time
}

// NewLimiter creates a new rate limiter.
func NewLimiter(config Config, logger zerolog.Logger) *Limiter {
	if config.DownloadLimit <= 0 {
		config.DownloadLimit = DefaultConfig().DownloadLimit
	}
	if config.DownloadWindow <= 0 {
		config.DownloadWindow = DefaultConfig().DownloadWindow
	}
	if config.UpdateLimit <= 0 {
		config.UpdateLimit = DefaultConfig().UpdateLimit
	}
	if config.UpdateWindow <= 0 {
		config.UpdateWindow = DefaultConfig().UpdateWindow
	}

	return &Limiter{
		config:  config,
		logger:  logger.With().Str("component", "rate-limiter").Logger(),
		windows: make(map[clientKey][]time.Time),
		now:     time.Now,
	}
}

// limitFor returns the limit and window for an action class.
func (l *Limiter) limitFor(action Action) (int, time.Duration) {
	switch action {
	case ActionToolUpdate:
		return l.config.UpdateLimit, l.config.UpdateWindow
	default:
		return l.config.DownloadLimit, l.config.DownloadWindow
	}
}

// Admit decides whether the client may perform the action now.
//
// On acceptance the current timestamp is recorded against the client's
// window. On rejection retryAfter reports how long until the oldest
// retained timestamp exits the window; nothing is recorded, so rejected
// attempts do not consume a slot. Check-and-record is atomic.
func (l *Limiter) Admit(clientID string, action Action) (allowed bool, retryAfter time.Duration) {
	limit, window := l.limitFor(action)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := clientKey{clientID: clientID, action: action}

	kept := l.evictLocked(key, now.Add(-window))

	if len(kept) >= limit {
		oldest := kept[0]
		retryAfter = oldest.Add(window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		l.logger.Warn().
			Str("clientId", clientID).
			Str("action", string(action)).
			Int("count", len(kept)).
			Int("limit", limit).
			Dur("retryAfter", retryAfter).
			Msg("Rate limit reached")
		return false, retryAfter
	}

	l.windows[key] = append(kept, now)

	l.logger.Debug().
		Str("clientId", clientID).
		Str("action", string(action)).
		Int("count", len(kept)+1).
		Int("limit", limit).
		Msg("Recorded action")

	return true, 0
}

// Remaining returns how many more actions the client could perform now
// without being rejected. It does not record anything.
func (l *Limiter) Remaining(clientID string, action Action) int {
	limit, window := l.limitFor(action)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.evictLocked(clientKey{clientID: clientID, action: action}, l.now().Add(-window))
	remaining := limit - len(kept)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// evictLocked drops timestamps at or before cutoff for the key and returns
// the retained slice. Caller must hold l.mu.
func (l *Limiter) evictLocked(key clientKey, cutoff time.Time) []time.Time {
	stamps := l.windows[key]
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		stamps = append([]time.Time(nil), stamps[idx:]...)
		if len(stamps) == 0 {
			delete(l.windows, key)
		} else {
			l.windows[key] = stamps
		}
	}
	return stamps
}

// Sweep removes clients whose entire window has expired. It exists so a
// periodic task can keep the map from accumulating idle clients; admission
// correctness does not depend on it.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key := range l.windows {
		_, window := l.limitFor(key.action)
		l.evictLocked(key, now.Add(-window))
	}
}
