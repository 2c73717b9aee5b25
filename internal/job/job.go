// Package job tracks download jobs from creation to terminal state.
package job

import "time"

// Status represents the lifecycle state of a download job.
type Status string

const (
	StatusStarting    Status = "starting"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusComplete    Status = "complete"
	StatusError       Status = "error"
)

// IsTerminal returns true if no further transition can occur.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// Job represents one in-flight or completed download.
//
// Percent is meaningful only while downloading; Speed (bytes/sec) and ETA
// (seconds) are best-effort and present only during the downloading phase.
// Filename is set on the transition into complete, Error on the transition
// into error.
type Job struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Percent   float64   `json:"percent"`
	Speed     float64   `json:"speed,omitempty"`
	ETA       int64     `json:"eta,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Update carries a partial state change. Nil fields are left untouched by
// Registry.Update, so a progress tick never erases a previously set field.
type Update struct {
	Status   *Status
	Percent  *float64
	Speed    *float64
	ETA      *int64
	Filename *string
	Error    *string
}

func statusPtr(s Status) *Status    { return &s }
func float64Ptr(f float64) *float64 { return &f }
func int64Ptr(i int64) *int64       { return &i }
func stringPtr(s string) *string    { return &s }
