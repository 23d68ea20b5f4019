package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dadudekc/DreamVault/internal/entity"
	"github.com/Dadudekc/DreamVault/internal/ratelimit"
	"github.com/Dadudekc/DreamVault/internal/repository"
	"github.com/Dadudekc/DreamVault/pkg/metrics"
)

// QueueManager is the operator surface over the queue and the limiter:
// manual enqueues, status lookups, stats, recovery levers and cleanup.
type QueueManager interface {
	Enqueue(ctx context.Context, params repository.EnqueueParams) (bool, error)
	StatusOf(ctx context.Context, conversationID string) (entity.JobStatus, error)
	Stats(ctx context.Context) (*SystemStats, error)
	RequeueFailed(ctx context.Context) (int64, error)
	RequeueRetries(ctx context.Context) (int64, error)
	// Cleanup purges finished jobs and embedding artifacts older than
	// the given number of days.
	Cleanup(ctx context.Context, days int) (*CleanupResult, error)
	Search(ctx context.Context, term string) ([]string, error)
}

// SystemStats joins the queue snapshot with the limiter snapshot.
type SystemStats struct {
	Queue   *entity.QueueStats `json:"queue"`
	Limiter *ratelimit.Stats   `json:"limiter"`
}

// CleanupResult reports what a cleanup pass removed.
type CleanupResult struct {
	JobsPurged        int64 `json:"jobs_purged"`
	EmbeddingsRemoved int   `json:"embeddings_removed"`
}

type queueManagerUseCase struct {
	jobRepo     repository.JobRepository
	embedder    repository.Embedder
	indexer     repository.Indexer
	limiter     *ratelimit.RateLimiter
	resourceKey string
	modelKey    string
}

// NewQueueManager creates the queue manager use case.
func NewQueueManager(
	jobRepo repository.JobRepository,
	embedder repository.Embedder,
	indexer repository.Indexer,
	limiter *ratelimit.RateLimiter,
	resourceKey, modelKey string,
) QueueManager {
	return &queueManagerUseCase{
		jobRepo:     jobRepo,
		embedder:    embedder,
		indexer:     indexer,
		limiter:     limiter,
		resourceKey: resourceKey,
		modelKey:    modelKey,
	}
}

func (uc *queueManagerUseCase) Enqueue(ctx context.Context, params repository.EnqueueParams) (bool, error) {
	inserted, err := uc.jobRepo.Enqueue(ctx, params)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue conversation %s: %w", params.ConversationID, err)
	}
	if inserted {
		slog.Info("job enqueued", "conversation_id", params.ConversationID, "priority", params.Priority)
	}
	return inserted, nil
}

func (uc *queueManagerUseCase) StatusOf(ctx context.Context, conversationID string) (entity.JobStatus, error) {
	return uc.jobRepo.StatusOf(ctx, conversationID)
}

// Stats snapshots the queue and the limiter and refreshes the queue
// depth gauges on the way out.
func (uc *queueManagerUseCase) Stats(ctx context.Context) (*SystemStats, error) {
	queueStats, err := uc.jobRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	for _, status := range []entity.JobStatus{
		entity.StatusPending, entity.StatusProcessing, entity.StatusCompleted,
		entity.StatusFailed, entity.StatusRetry,
	} {
		metrics.JobsInQueue.WithLabelValues(string(status)).Set(float64(queueStats.ByStatus[status]))
	}

	return &SystemStats{
		Queue:   queueStats,
		Limiter: uc.limiter.Stats(uc.resourceKey, uc.modelKey),
	}, nil
}

func (uc *queueManagerUseCase) RequeueFailed(ctx context.Context) (int64, error) {
	n, err := uc.jobRepo.RequeueFailed(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue failed jobs: %w", err)
	}
	if n > 0 {
		slog.Info("requeued failed jobs", "count", n)
	}
	return n, nil
}

func (uc *queueManagerUseCase) RequeueRetries(ctx context.Context) (int64, error) {
	n, err := uc.jobRepo.RequeueRetries(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue retry jobs: %w", err)
	}
	if n > 0 {
		slog.Info("requeued retry jobs", "count", n)
	}
	return n, nil
}

func (uc *queueManagerUseCase) Cleanup(ctx context.Context, days int) (*CleanupResult, error) {
	purged, err := uc.jobRepo.PurgeOlderThan(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("failed to purge old jobs: %w", err)
	}

	removed, err := uc.embedder.CleanupOlderThan(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("failed to clean up embedding artifacts: %w", err)
	}

	slog.Info("cleanup finished", "days", days, "jobs_purged", purged, "embeddings_removed", removed)
	return &CleanupResult{JobsPurged: purged, EmbeddingsRemoved: removed}, nil
}

func (uc *queueManagerUseCase) Search(ctx context.Context, term string) ([]string, error) {
	return uc.indexer.Search(ctx, term)
}
