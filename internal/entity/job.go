package entity

import "time"

// JobStatus enumerates the lifecycle states of an ingestion job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusRetry      JobStatus = "retry"
)

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusRetry:
		return true
	}
	return false
}

// Terminal reports whether a job in this status will see no further
// automatic transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job mirrors the `jobs` table schema. One job exists per conversation;
// ConversationID is the unique business key.
type Job struct {
	ID             int64
	ConversationID string
	Status         JobStatus
	Priority       int
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	RetryCount     int
	MaxRetries     int
	LastError      string
	ContentHash    string
	PromptHash     string
	Metadata       map[string]string // opaque to the queue, stored as JSON
}

// CanRetry reports whether a failure should send the job to retry
// rather than terminal failed.
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// DefaultMaxRetries is applied when a producer enqueues without an
// explicit retry budget.
const DefaultMaxRetries = 3
