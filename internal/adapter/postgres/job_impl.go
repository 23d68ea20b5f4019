package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dadudekc/DreamVault/internal/entity"
	"github.com/Dadudekc/DreamVault/internal/repository"
)

// JobRepoImpl provides a concrete implementation for the JobRepository
// interface using PostgreSQL. It is the multi-process alternative to
// the SQLite store; the conditional-update claim semantics are
// identical.
type JobRepoImpl struct {
	db *pgxpool.Pool
}

// NewJobRepo creates a new instance of JobRepoImpl. The jobs table is
// expected to exist; see Migrate.
func NewJobRepo(db *pgxpool.Pool) *JobRepoImpl {
	return &JobRepoImpl{db: db}
}

// Migrate creates the jobs table and its claim index if absent.
func (r *JobRepoImpl) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id              BIGSERIAL PRIMARY KEY,
			conversation_id TEXT UNIQUE NOT NULL,
			status          TEXT NOT NULL DEFAULT 'pending',
			priority        INTEGER NOT NULL DEFAULT 0,
			created_at      TIMESTAMPTZ NOT NULL,
			started_at      TIMESTAMPTZ,
			completed_at    TIMESTAMPTZ,
			retry_count     INTEGER NOT NULL DEFAULT 0,
			max_retries     INTEGER NOT NULL DEFAULT 3,
			error_message   TEXT,
			metadata        JSONB,
			content_hash    TEXT,
			prompt_hash     TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
		CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs(priority DESC, created_at ASC);
	`)
	return err
}

// Enqueue inserts a pending job unless the conversation is already
// scheduled. ON CONFLICT DO NOTHING keeps duplicate enqueues silent.
func (r *JobRepoImpl) Enqueue(ctx context.Context, params repository.EnqueueParams) (bool, error) {
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = entity.DefaultMaxRetries
	}

	var metadataJSON []byte
	if len(params.Metadata) > 0 {
		raw, err := json.Marshal(params.Metadata)
		if err != nil {
			return false, err
		}
		metadataJSON = raw
	}

	tag, err := r.db.Exec(ctx, `
		INSERT INTO jobs (conversation_id, status, priority, created_at, max_retries, metadata, content_hash, prompt_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (conversation_id) DO NOTHING;
	`,
		params.ConversationID, entity.StatusPending, params.Priority, time.Now().UTC(),
		maxRetries, metadataJSON, params.ContentHash, params.PromptHash,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const jobColumns = `id, conversation_id, status, priority, created_at, started_at, completed_at,
	retry_count, max_retries, COALESCE(error_message, ''), metadata,
	COALESCE(content_hash, ''), COALESCE(prompt_hash, '')`

// ClaimNext returns the next job in the given status by
// (priority DESC, created_at ASC), ties broken by insertion order.
func (r *JobRepoImpl) ClaimNext(ctx context.Context, status entity.JobStatus) (*entity.Job, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = $1
		ORDER BY priority DESC, created_at ASC, id ASC
		LIMIT 1;
	`, status)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// MarkStarted performs the atomic pending->processing transition;
// RowsAffected tells the caller whether it won the claim race.
func (r *JobRepoImpl) MarkStarted(ctx context.Context, jobID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE jobs SET status = $1, started_at = $2
		WHERE id = $3 AND status = $4;
	`, entity.StatusProcessing, time.Now().UTC(), jobID, entity.StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCompleted transitions the job to completed and stamps the
// completion time.
func (r *JobRepoImpl) MarkCompleted(ctx context.Context, jobID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE jobs SET status = $1, completed_at = $2 WHERE id = $3;
	`, entity.StatusCompleted, time.Now().UTC(), jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFailed sends the job to retry while attempts remain, otherwise to
// terminal failed. A single UPDATE with CASE keeps the decision and the
// write atomic without an explicit transaction.
func (r *JobRepoImpl) MarkFailed(ctx context.Context, jobID int64, errorMessage string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE jobs SET
			status        = CASE WHEN retry_count < max_retries THEN $1 ELSE $2 END,
			retry_count   = CASE WHEN retry_count < max_retries THEN retry_count + 1 ELSE retry_count END,
			started_at    = CASE WHEN retry_count < max_retries THEN NULL ELSE started_at END,
			completed_at  = CASE WHEN retry_count < max_retries THEN completed_at ELSE $3 END,
			error_message = $4
		WHERE id = $5;
	`, entity.StatusRetry, entity.StatusFailed, time.Now().UTC(), errorMessage, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// StatusOf looks a job up by its conversation key.
func (r *JobRepoImpl) StatusOf(ctx context.Context, conversationID string) (entity.JobStatus, error) {
	var status entity.JobStatus
	err := r.db.QueryRow(ctx,
		`SELECT status FROM jobs WHERE conversation_id = $1;`, conversationID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", repository.ErrJobNotFound
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

// Stats aggregates counts by status. Pending counts both pending and
// retry jobs.
func (r *JobRepoImpl) Stats(ctx context.Context) (*entity.QueueStats, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &entity.QueueStats{ByStatus: make(map[entity.JobStatus]int64)}
	for rows.Next() {
		var status entity.JobStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.Pending = stats.ByStatus[entity.StatusPending] + stats.ByStatus[entity.StatusRetry]
	return stats, nil
}

// PurgeOlderThan deletes completed and failed jobs finished before the
// cutoff. Live jobs are never purged.
func (r *JobRepoImpl) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	tag, err := r.db.Exec(ctx,
		`DELETE FROM jobs WHERE status IN ($1, $2) AND completed_at < $3;`,
		entity.StatusCompleted, entity.StatusFailed, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RequeueFailed resets all failed jobs to pending with a fresh retry
// budget.
func (r *JobRepoImpl) RequeueFailed(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = $1, retry_count = 0, error_message = NULL WHERE status = $2;`,
		entity.StatusPending, entity.StatusFailed,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RequeueRetries re-admits retry jobs to the claimable pool, keeping
// their retry count and last error.
func (r *JobRepoImpl) RequeueRetries(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = $1 WHERE status = $2;`,
		entity.StatusPending, entity.StatusRetry,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	var job entity.Job
	var startedAt, completedAt *time.Time
	var metadataJSON []byte

	err := row.Scan(
		&job.ID, &job.ConversationID, &job.Status, &job.Priority, &job.CreatedAt,
		&startedAt, &completedAt, &job.RetryCount, &job.MaxRetries, &job.LastError,
		&metadataJSON, &job.ContentHash, &job.PromptHash,
	)
	if err != nil {
		return nil, err
	}

	job.StartedAt = startedAt
	job.CompletedAt = completedAt
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &job.Metadata); err != nil {
			return nil, err
		}
	}
	return &job, nil
}
