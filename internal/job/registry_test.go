package job

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRegistry_Create(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	j := reg.Create()
	if j.ID == "" {
		t.Fatal("Create() returned empty id")
	}
	if j.Status != StatusStarting {
		t.Errorf("Status = %q, want %q", j.Status, StatusStarting)
	}

	other := reg.Create()
	if other.ID == j.ID {
		t.Error("Create() reused a job id")
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	if _, err := reg.Get("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Get() error = %v, want ErrJobNotFound", err)
	}
}

func TestRegistry_PartialUpdatePreservesFields(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	j := reg.Create()

	if err := reg.Update(j.ID, Update{
		Status:  statusPtr(StatusDownloading),
		Percent: float64Ptr(12.5),
		Speed:   float64Ptr(1024),
		ETA:     int64Ptr(90),
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	// A percent-only tick must not erase status, speed, or eta.
	if err := reg.Update(j.ID, Update{Percent: float64Ptr(20)}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := reg.Get(j.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusDownloading {
		t.Errorf("Status = %q, want %q", got.Status, StatusDownloading)
	}
	if got.Percent != 20 {
		t.Errorf("Percent = %v, want 20", got.Percent)
	}
	if got.Speed != 1024 {
		t.Errorf("Speed = %v, want 1024 (partial update erased it)", got.Speed)
	}
	if got.ETA != 90 {
		t.Errorf("ETA = %v, want 90 (partial update erased it)", got.ETA)
	}
}

func TestRegistry_PercentClamped(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	j := reg.Create()

	reg.Update(j.ID, Update{Percent: float64Ptr(150)})
	if got, _ := reg.Get(j.ID); got.Percent != 100 {
		t.Errorf("Percent = %v, want clamped to 100", got.Percent)
	}

	reg.Update(j.ID, Update{Percent: float64Ptr(-5)})
	if got, _ := reg.Get(j.ID); got.Percent != 0 {
		t.Errorf("Percent = %v, want clamped to 0", got.Percent)
	}
}

func TestRegistry_TerminalStateIsImmutable(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	j := reg.Create()

	if err := reg.Update(j.ID, Update{
		Status:   statusPtr(StatusComplete),
		Filename: stringPtr("video.mp4"),
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	err := reg.Update(j.ID, Update{Status: statusPtr(StatusError), Error: stringPtr("late failure")})
	if !errors.Is(err, ErrJobFinished) {
		t.Errorf("Update() after terminal = %v, want ErrJobFinished", err)
	}

	got, _ := reg.Get(j.ID)
	if got.Status != StatusComplete {
		t.Errorf("Status = %q, want unchanged %q", got.Status, StatusComplete)
	}
	if got.Filename != "video.mp4" {
		t.Errorf("Filename = %q, want unchanged", got.Filename)
	}
	if got.Error != "" {
		t.Errorf("Error = %q, want empty", got.Error)
	}
}

func TestRegistry_Prune(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	now := time.Now()
	reg.now = func() time.Time { return now }

	done := reg.Create()
	reg.Update(done.ID, Update{Status: statusPtr(StatusComplete), Filename: stringPtr("a.mp4")})
	active := reg.Create()
	reg.Update(active.ID, Update{Status: statusPtr(StatusDownloading)})

	now = now.Add(2 * time.Hour)

	if removed := reg.Prune(time.Hour); removed != 1 {
		t.Errorf("Prune() = %d, want 1", removed)
	}
	if _, err := reg.Get(done.ID); !errors.Is(err, ErrJobNotFound) {
		t.Error("terminal job survived Prune()")
	}
	if _, err := reg.Get(active.ID); err != nil {
		t.Error("active job was pruned")
	}
}

func TestRegistry_NoTornReads(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				j := reg.Create()
				reg.Update(j.ID, Update{Status: statusPtr(StatusDownloading), Percent: float64Ptr(50)})
				reg.Update(j.ID, Update{
					Status:   statusPtr(StatusComplete),
					Percent:  float64Ptr(100),
					Filename: stringPtr("out.mp4"),
				})

				// A poller must never observe complete without filename.
				got, err := reg.Get(j.ID)
				if err != nil {
					t.Error("Get() failed for just-created job")
					return
				}
				if got.Status == StatusComplete && got.Filename == "" {
					t.Error("observed status=complete with unset filename")
					return
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBroadcaster) Broadcast(event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func TestRegistry_BroadcastsTransitions(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	b := &recordingBroadcaster{}
	reg.SetBroadcaster(b)

	j := reg.Create()
	reg.Update(j.ID, Update{Status: statusPtr(StatusDownloading)})

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) != 2 {
		t.Fatalf("broadcast count = %d, want 2", len(b.events))
	}
	for _, e := range b.events {
		if e != "job:update" {
			t.Errorf("event = %q, want job:update", e)
		}
	}
}
