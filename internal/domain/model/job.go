package model

import (
	"fmt"
	"math"
	"strings"
	"time"

	"media-transcoder/internal/domain"

	"github.com/oklog/ulid/v2"
)

// JobStatus is the lifecycle state of a transcoding job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition may leave s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// CanTransition enforces pending -> processing -> {completed, failed}.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusProcessing
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// Job is one transcoding work item and its persisted state.
type Job struct {
	ID             string    `json:"id"`
	SourceName     string    `json:"filename"`
	Status         JobStatus `json:"status"`
	Progress       float64   `json:"progress"`
	OutputArtifact string    `json:"output_file,omitempty"`
	LastError      string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewJob creates a pending job for a stored input artifact.
func NewJob(sourceName string) (*Job, error) {
	if strings.TrimSpace(sourceName) == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Job{
		ID:         ulid.Make().String(),
		SourceName: sourceName,
		Status:     JobStatusPending,
		Progress:   0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Transition moves the job to status to, rejecting illegal edges.
func (j *Job) Transition(to JobStatus) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	return nil
}

// AdvanceProgress raises progress to p, clamped to [0, 100] and never below
// the current value. It reports whether the stored value changed.
func (j *Job) AdvanceProgress(p float64) bool {
	p = ClampPercent(p)
	if p <= j.Progress {
		return false
	}
	j.Progress = p
	return true
}

// Complete finalizes a processing job with its output artifact.
func (j *Job) Complete(output string) error {
	if strings.TrimSpace(output) == "" {
		return domain.ErrInvalidArgument
	}
	if err := j.Transition(JobStatusCompleted); err != nil {
		return err
	}
	j.Progress = 100
	j.OutputArtifact = output
	j.LastError = ""
	return nil
}

// Fail finalizes a processing job; progress keeps its last value.
func (j *Job) Fail(detail string) error {
	if err := j.Transition(JobStatusFailed); err != nil {
		return err
	}
	j.LastError = detail
	return nil
}

// ClampPercent bounds p to [0, 100].
func ClampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
