package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsRegisteredTask(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)

	var runs atomic.Int32
	err = s.RegisterTask(TaskConfig{
		ID:       "tick",
		Name:     "Tick",
		Interval: 10 * time.Millisecond,
		Func: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runs.Load() >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task ran %d times, want at least 2", runs.Load())
}

func TestScheduler_RejectsDuplicateID(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)
	defer s.Stop()

	task := TaskConfig{
		ID:       "dup",
		Name:     "Duplicate",
		Interval: time.Minute,
		Func:     func(ctx context.Context) error { return nil },
	}

	require.NoError(t, s.RegisterTask(task))
	assert.Error(t, s.RegisterTask(task))
}

func TestScheduler_TaskErrorDoesNotStopOthers(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)

	var healthy atomic.Int32
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:       "failing",
		Name:     "Failing",
		Interval: 10 * time.Millisecond,
		Func: func(ctx context.Context) error {
			return assert.AnError
		},
	}))
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:       "healthy",
		Name:     "Healthy",
		Interval: 10 * time.Millisecond,
		Func: func(ctx context.Context) error {
			healthy.Add(1)
			return nil
		},
	}))

	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if healthy.Load() >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("healthy task ran %d times alongside a failing task", healthy.Load())
}
