package job

import (
	"context"
	"encoding/json"
	"time"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// TaskTypeIngest loads a document set and uploads it to the search index
const TaskTypeIngest = "ingest"

// Topic is the queue ingestion jobs are published to
const Topic = "jobs"

// Job represents a background job
type Job struct {
	ID        int             `json:"id"`
	TaskType  string          `json:"task_type"`
	Payload   json.RawMessage `json:"payload"`
	Status    JobStatus       `json:"status"`
	Error     *string         `json:"error,omitempty"`
	Report    json.RawMessage `json:"report,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IngestPayload carries the same knobs as the ingest command.
// A nil MaxRetries keeps the configured default; zero disables retries.
type IngestPayload struct {
	Input      string `json:"input"`
	BatchSize  int    `json:"batchSize,omitempty"`
	MaxRetries *int   `json:"maxRetries,omitempty"`
	Clear      bool   `json:"clear,omitempty"`
}

// JobRepository defines the interface for job persistence
type JobRepository interface {
	Create(ctx context.Context, taskType string, payload json.RawMessage) (*Job, error)
	Get(ctx context.Context, id int) (*Job, error)
	UpdateStatus(ctx context.Context, id int, status JobStatus, err *string) error
	SaveReport(ctx context.Context, id int, report json.RawMessage) error
}
