package model

// ProgressEvent is the message pushed to subscribers; it is never stored.
type ProgressEvent struct {
	JobID       string    `json:"jobId"`
	Progress    float64   `json:"progress"`
	Status      JobStatus `json:"status"`
	ErrorDetail string    `json:"errorDetail,omitempty"`
}

// Terminal reports whether this is the final event of its job.
func (e ProgressEvent) Terminal() bool { return e.Status.IsTerminal() }

// EventFor snapshots a job into an event.
func EventFor(j *Job) ProgressEvent {
	ev := ProgressEvent{
		JobID:    j.ID,
		Progress: j.Progress,
		Status:   j.Status,
	}
	if j.Status == JobStatusFailed {
		ev.ErrorDetail = j.LastError
	}
	return ev
}
