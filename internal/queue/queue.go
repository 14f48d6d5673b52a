// Package queue defines asynchronous cycle jobs and the queue that carries
// them from the API to the worker pool.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/harpoon/internal/fragment"
)

// ErrClosed is returned by Dequeue once the queue has been closed and drained.
var ErrClosed = errors.New("queue closed")

// Job is one cycle submitted for background execution.
type Job struct {
	ID            string
	Fragments     []fragment.Input
	Threshold     float64
	MaxIterations *int
	SubmittedAt   time.Time
}

// State tracks a job through its lifecycle.
type State string

// Job states.
const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether the job will not change state again.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Status is the externally visible view of a job.
type Status struct {
	JobID       string     `json:"job_id"`
	State       State      `json:"state"`
	Fragments   int        `json:"fragments"`
	CycleID     string     `json:"cycle_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	Warnings    []string   `json:"warnings,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Queue moves jobs between producers and workers.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (Job, error)
	Close()
}
