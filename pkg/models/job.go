package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the state of a remote generation task.
type JobStatus string

const (
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ParseJobStatus normalizes a status string reported by the service.
// The service reports queued tasks as "waiting". Unknown non-empty values are
// kept verbatim and treated as non-terminal.
func ParseJobStatus(raw string) (JobStatus, bool) {
	switch raw {
	case "":
		return "", false
	case "waiting", "pending", "queued", string(JobStatusSubmitted):
		return JobStatusSubmitted, true
	default:
		return JobStatus(raw), true
	}
}

// IsTerminal reports whether no further transition can leave s.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

func (s JobStatus) String() string { return string(s) }

// Run status values. A run mirrors the remote job status once submitted, with
// pending before submission and aborted when the run stops on an error.
const (
	RunStatusPending   = "pending"
	RunStatusSubmitted = string(JobStatusSubmitted)
	RunStatusRunning   = string(JobStatusRunning)
	RunStatusCompleted = string(JobStatusCompleted)
	RunStatusFailed    = string(JobStatusFailed)
	RunStatusCancelled = string(JobStatusCancelled)
	RunStatusAborted   = "aborted"
)

// Run tracks one orchestrated generation. The API returns a run on POST /api/v1/generate;
// the client polls GET /api/v1/generate/{run_id} until the status is final.
type Run struct {
	ID           uuid.UUID      `db:"id"            json:"id"`
	Prompt       string         `db:"prompt"        json:"prompt"`
	Parameters   map[string]any `db:"parameters"    json:"parameters"`
	TaskID       *string        `db:"task_id"       json:"task_id,omitempty"`
	Status       string         `db:"status"        json:"status"`
	MediaID      *string        `db:"media_id"      json:"media_id,omitempty"`
	ArtifactURL  *string        `db:"artifact_url"  json:"artifact_url,omitempty"`
	FilePath     *string        `db:"file_path"     json:"file_path,omitempty"`
	ErrorMessage *string        `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time     `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time     `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"    json:"updated_at"`
}

// IsFinal reports whether the run will not change status again.
func (r *Run) IsFinal() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusAborted:
		return true
	}
	return false
}
