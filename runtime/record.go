package runtime

import (
	"time"

	"github.com/kbukum/whisperjob/worker"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusInQueue    Status = "IN_QUEUE"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Record is the stored state of one job.
type Record struct {
	ID     string         `json:"id"`
	Status Status         `json:"status"`
	Input  map[string]any `json:"input"`
	// Stream holds every message emitted so far, in order.
	Stream []worker.Message `json:"stream,omitempty"`
	// Output is the aggregate of Stream, set on completion.
	Output      []worker.Message `json:"output,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// Clone returns a copy that shares no slices with r.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Stream = append([]worker.Message(nil), r.Stream...)
	cp.Output = append([]worker.Message(nil), r.Output...)
	return &cp
}
