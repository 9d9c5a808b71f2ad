package job

import (
	"encoding/json"
	"time"
)

// Lifecycle statuses for an extraction job. "unknown" is reported for ids
// that have no record, never stored.
const (
	StatusUnknown    = "unknown"
	StatusSubmitted  = "submitted"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusError      = "error"
)

// ExtractionJob is the durable record of one document ingestion run. Payload
// holds the original task message so a terminal-failed job can be requeued
// as-is.
type ExtractionJob struct {
	ID         string          `json:"job_id"`
	DocumentID string          `json:"document_id"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Payload    json.RawMessage `json:"-"`
	Retries    int             `json:"retries"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Terminal reports whether the job has stopped and may be retried.
func (j *ExtractionJob) Terminal() bool {
	return j.Status == StatusFailed || j.Status == StatusError
}
