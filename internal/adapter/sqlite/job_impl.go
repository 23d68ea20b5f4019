package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/Dadudekc/DreamVault/internal/entity"
	"github.com/Dadudekc/DreamVault/internal/repository"
	_ "modernc.org/sqlite"
)

const jobSchema = `
CREATE TABLE IF NOT EXISTS jobs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT UNIQUE NOT NULL,
    status          TEXT NOT NULL DEFAULT 'pending',
    priority        INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL,
    started_at      DATETIME,
    completed_at    DATETIME,
    retry_count     INTEGER NOT NULL DEFAULT 0,
    max_retries     INTEGER NOT NULL DEFAULT 3,
    error_message   TEXT,
    metadata        TEXT,
    content_hash    TEXT,
    prompt_hash     TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs(priority DESC, created_at ASC);
`

// JobRepoImpl implements repository.JobRepository on SQLite. The table
// is the single source of truth for job state; the conditional UPDATE
// in MarkStarted is what makes concurrent claimants safe.
type JobRepoImpl struct {
	db *sql.DB
}

// NewJobRepo opens (creating if needed) the queue database at dbPath.
func NewJobRepo(dbPath string) (*JobRepoImpl, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite locks the whole file on write; a single connection avoids
	// SQLITE_BUSY churn under concurrent workers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(jobSchema); err != nil {
		db.Close()
		return nil, err
	}

	return &JobRepoImpl{db: db}, nil
}

// Close closes the database handle.
func (r *JobRepoImpl) Close() error {
	return r.db.Close()
}

// Enqueue inserts a pending job unless the conversation is already
// scheduled. INSERT OR IGNORE keeps duplicate enqueues silent.
func (r *JobRepoImpl) Enqueue(ctx context.Context, params repository.EnqueueParams) (bool, error) {
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = entity.DefaultMaxRetries
	}

	var metadataJSON any
	if len(params.Metadata) > 0 {
		raw, err := json.Marshal(params.Metadata)
		if err != nil {
			return false, err
		}
		metadataJSON = string(raw)
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO jobs
		 (conversation_id, status, priority, created_at, max_retries, metadata, content_hash, prompt_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		params.ConversationID, entity.StatusPending, params.Priority, time.Now().UTC(),
		maxRetries, metadataJSON, params.ContentHash, params.PromptHash,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

const jobColumns = `id, conversation_id, status, priority, created_at, started_at, completed_at,
	retry_count, max_retries, COALESCE(error_message, ''), metadata,
	COALESCE(content_hash, ''), COALESCE(prompt_hash, '')`

// ClaimNext returns the next job in the given status by
// (priority DESC, created_at ASC), ties broken by insertion order.
func (r *JobRepoImpl) ClaimNext(ctx context.Context, status entity.JobStatus) (*entity.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE status = ?
		 ORDER BY priority DESC, created_at ASC, id ASC
		 LIMIT 1`, status,
	)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// MarkStarted performs the atomic pending->processing transition.
// RowsAffected tells the caller whether it won the claim race.
func (r *JobRepoImpl) MarkStarted(ctx context.Context, jobID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ?
		 WHERE id = ? AND status = ?`,
		entity.StatusProcessing, time.Now().UTC(), jobID, entity.StatusPending,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkCompleted transitions the job to completed and stamps the
// completion time.
func (r *JobRepoImpl) MarkCompleted(ctx context.Context, jobID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, completed_at = ? WHERE id = ?`,
		entity.StatusCompleted, time.Now().UTC(), jobID,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkFailed sends the job to retry while attempts remain, otherwise to
// terminal failed. The read and the update share one transaction so a
// concurrent failure report cannot double-increment.
func (r *JobRepoImpl) MarkFailed(ctx context.Context, jobID int64, errorMessage string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var retryCount, maxRetries int
	err = tx.QueryRowContext(ctx,
		`SELECT retry_count, max_retries FROM jobs WHERE id = ?`, jobID,
	).Scan(&retryCount, &maxRetries)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if retryCount < maxRetries {
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, retry_count = retry_count + 1,
			 error_message = ?, started_at = NULL
			 WHERE id = ?`,
			entity.StatusRetry, errorMessage, jobID,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, error_message = ?, completed_at = ?
			 WHERE id = ?`,
			entity.StatusFailed, errorMessage, time.Now().UTC(), jobID,
		)
	}
	if err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// StatusOf looks a job up by its conversation key.
func (r *JobRepoImpl) StatusOf(ctx context.Context, conversationID string) (entity.JobStatus, error) {
	var status entity.JobStatus
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM jobs WHERE conversation_id = ?`, conversationID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", repository.ErrJobNotFound
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

// Stats aggregates counts by status. Pending counts both pending and
// retry jobs, matching what an operator thinks of as "work remaining".
func (r *JobRepoImpl) Stats(ctx context.Context) (*entity.QueueStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
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
// cutoff. Pending, processing and retry jobs are never purged.
func (r *JobRepoImpl) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND completed_at < ?`,
		entity.StatusCompleted, entity.StatusFailed, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RequeueFailed resets all failed jobs to pending with a fresh retry
// budget. This is the operator's recovery lever.
func (r *JobRepoImpl) RequeueFailed(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, retry_count = 0, error_message = NULL
		 WHERE status = ?`,
		entity.StatusPending, entity.StatusFailed,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RequeueRetries re-admits retry jobs to the claimable pool. The retry
// count and last error survive so the next failure still lands in
// terminal failed at the same budget.
func (r *JobRepoImpl) RequeueRetries(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ? WHERE status = ?`,
		entity.StatusPending, entity.StatusRetry,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*entity.Job, error) {
	var job entity.Job
	var startedAt, completedAt sql.NullTime
	var metadataJSON sql.NullString

	err := row.Scan(
		&job.ID, &job.ConversationID, &job.Status, &job.Priority, &job.CreatedAt,
		&startedAt, &completedAt, &job.RetryCount, &job.MaxRetries, &job.LastError,
		&metadataJSON, &job.ContentHash, &job.PromptHash,
	)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &job.Metadata); err != nil {
			return nil, err
		}
	}
	return &job, nil
}
