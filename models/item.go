package models

import (
	"fmt"
	"time"
)

// ItemStatus is the lifecycle state of one batch item.
type ItemStatus string

const (
	StatusQueued     ItemStatus = "queued"
	StatusProcessing ItemStatus = "processing"
	StatusComplete   ItemStatus = "complete"
	StatusError      ItemStatus = "error"
	StatusCancelled  ItemStatus = "cancelled"
)

// Terminal reports whether the status is final for the item.
func (s ItemStatus) Terminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusCancelled
}

// Submission is one item handed to the scheduler. Data, when non-nil, is
// used as the source bytes directly; otherwise the scheduler reads Path.
type Submission struct {
	ID   string
	Path string
	Name string
	Data []byte
}

// Item is the scheduler's per-item record. Mutated only by the
// scheduler in response to worker messages.
type Item struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    ItemStatus `json:"status"`
	Progress  int        `json:"progress"` // 0-100
	Err       string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at,omitempty"`
	EndedAt   time.Time  `json:"ended_at,omitempty"`
	Result    *Result    `json:"result,omitempty"`
}

// ItemUpdate is the per-item status stream payload.
type ItemUpdate struct {
	ID       string     `json:"id"`
	Progress int        `json:"progress"`
	Status   ItemStatus `json:"status"`
}

// BatchUpdate is the batch-level progress signal.
type BatchUpdate struct {
	Overall   int `json:"overall_progress"` // 0-100
	Completed int `json:"completed_count"`
	Total     int `json:"total_count"`
}

// Summary describes a finished batch.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// String renders the user-facing batch outcome line.
func (s Summary) String() string {
	switch {
	case s.Cancelled > 0:
		return "cancelled"
	case s.Failed == 0:
		return "all succeeded"
	default:
		return fmt.Sprintf("completed with %d errors", s.Failed)
	}
}
