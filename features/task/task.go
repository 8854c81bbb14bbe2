package task

import (
	"errors"
	"fmt"
	"time"
)

// Status is the closed lifecycle enumeration of an embedding task. The
// database enforces the same set with a CHECK constraint, so an invalid
// value can never be persisted.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var (
	// ErrNotFound means no task row exists for the given id.
	ErrNotFound = errors.New("task not found")

	// ErrConflictingState means a status transition was rejected because the
	// stored status is not a legal predecessor. Callers must be able to tell
	// this apart from ErrNotFound: it is the serialization point that keeps
	// concurrent workers from double-claiming a task.
	ErrConflictingState = errors.New("conflicting task state")

	// ErrInvalidStatus means the submitted status is outside the closed enum.
	ErrInvalidStatus = errors.New("invalid task status")
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// priorStates maps a target status to the statuses a row may hold before
// transitioning into it. Transitions are one-directional:
// pending -> processing -> {completed, failed}.
var priorStates = map[Status][]Status{
	StatusProcessing: {StatusPending},
	StatusCompleted:  {StatusProcessing},
	StatusFailed:     {StatusProcessing},
}

// PriorStates returns the legal predecessor statuses for a target status.
// Targeting pending returns nil: no transition re-enters pending.
func PriorStates(target Status) []Status {
	return priorStates[target]
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, s := range priorStates[to] {
		if s == from {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status permits no further transitions.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one embedding job and its audit trail. The row is the single
// source of truth for pipeline progress; the event channel only carries a
// reference to it. All timestamps are set by the store, never by callers.
type Task struct {
	ID             int64      `json:"id"`
	FileName       string     `json:"file_name"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	ErrorMessage   *string    `json:"error_message"`
	EmbeddingCount *int       `json:"embedding_count"`
}

// Patch is a partial update applied through the store's transition guard.
// Nil fields are left untouched.
type Patch struct {
	Status         *Status
	ErrorMessage   *string
	EmbeddingCount *int
}
