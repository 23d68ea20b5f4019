package repository

import (
	"context"

	"github.com/Dadudekc/DreamVault/internal/entity"
)

// EnqueueParams carries everything a producer supplies when scheduling
// a conversation for ingestion.
type EnqueueParams struct {
	ConversationID string
	Priority       int
	Metadata       map[string]string
	ContentHash    string
	PromptHash     string
	// MaxRetries <= 0 means entity.DefaultMaxRetries.
	MaxRetries int
}

// JobRepository defines the contract for the durable job queue. The
// backing store is the single source of truth for job state; claim
// races are resolved by the store's conditional-update semantics, not
// by callers.
type JobRepository interface {
	// Enqueue inserts a new pending job. Returns false without error
	// when a job for the conversation already exists (idempotent).
	Enqueue(ctx context.Context, params EnqueueParams) (bool, error)

	// ClaimNext returns the highest-priority, oldest job in the given
	// status, or nil when none match. Ties break by insertion order.
	ClaimNext(ctx context.Context, status entity.JobStatus) (*entity.Job, error)

	// MarkStarted performs the atomic pending->processing transition.
	// Returns false with no side effect if the job is not pending;
	// exactly one of N racing claimants receives true.
	MarkStarted(ctx context.Context, jobID int64) (bool, error)

	// MarkCompleted transitions the job to completed and stamps
	// completed_at.
	MarkCompleted(ctx context.Context, jobID int64) (bool, error)

	// MarkFailed records the error and transitions the job to retry
	// while attempts remain, otherwise to terminal failed.
	MarkFailed(ctx context.Context, jobID int64, errorMessage string) (bool, error)

	// StatusOf returns the status of the job keyed by conversation ID,
	// or ErrJobNotFound.
	StatusOf(ctx context.Context, conversationID string) (entity.JobStatus, error)

	// Stats returns aggregate counts by status.
	Stats(ctx context.Context) (*entity.QueueStats, error)

	// PurgeOlderThan deletes completed and failed jobs whose
	// completed_at predates the cutoff. Live jobs are never purged.
	PurgeOlderThan(ctx context.Context, days int) (int64, error)

	// RequeueFailed is the operator recovery lever: failed jobs go back
	// to pending with retry_count reset and last_error cleared.
	RequeueFailed(ctx context.Context) (int64, error)

	// RequeueRetries re-admits retry-status jobs to the claimable pool.
	// Retry jobs are never re-admitted implicitly; this reconciliation
	// pass is the only path back to pending.
	RequeueRetries(ctx context.Context) (int64, error)
}
