package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Dadudekc/DreamVault/internal/entity"
	"github.com/Dadudekc/DreamVault/internal/ratelimit"
	"github.com/Dadudekc/DreamVault/internal/repository"
	"github.com/Dadudekc/DreamVault/pkg/metrics"
)

const (
	defaultAdmitRetries   = 5
	defaultAdmitBaseDelay = 2 * time.Second
)

// Ingestor drives jobs through the full pipeline: claim, admit, fetch,
// redact, summarize, embed, index.
type Ingestor interface {
	// ProcessNextJob runs one job end to end. It returns false when the
	// queue had nothing claimable.
	ProcessNextJob(ctx context.Context) (bool, error)
	// RunBatch processes up to maxJobs jobs, stopping early on an empty
	// queue or a dead driver.
	RunBatch(ctx context.Context, maxJobs int) (*BatchResult, error)
}

// BatchResult summarizes one runner pass.
type BatchResult struct {
	RunID     string        `json:"run_id"`
	Processed int           `json:"processed"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// IngestConfig carries the admission keys and source location for the
// ingest loop.
type IngestConfig struct {
	// ResourceKey scopes the per-resource bucket, normally the source
	// host.
	ResourceKey string
	// ModelKey scopes the per-model bucket for downstream quota
	// tracking. Empty skips the model check.
	ModelKey string
	// BaseURL builds conversation URLs for jobs enqueued without one.
	BaseURL string
	// AdmitRetries and AdmitBaseDelay shape the admission backoff.
	// Zero values take the defaults.
	AdmitRetries   int
	AdmitBaseDelay time.Duration
}

type ingestUseCase struct {
	jobRepo     repository.JobRepository
	transcripts repository.TranscriptRepository
	redactor    repository.Redactor
	summarizer  repository.Summarizer
	embedder    repository.Embedder
	indexer     repository.Indexer
	limiter     *ratelimit.RateLimiter
	cfg         IngestConfig
}

// NewIngestUseCase creates the ingest use case.
func NewIngestUseCase(
	jobRepo repository.JobRepository,
	transcripts repository.TranscriptRepository,
	redactor repository.Redactor,
	summarizer repository.Summarizer,
	embedder repository.Embedder,
	indexer repository.Indexer,
	limiter *ratelimit.RateLimiter,
	cfg IngestConfig,
) Ingestor {
	if cfg.AdmitRetries <= 0 {
		cfg.AdmitRetries = defaultAdmitRetries
	}
	if cfg.AdmitBaseDelay <= 0 {
		cfg.AdmitBaseDelay = defaultAdmitBaseDelay
	}
	return &ingestUseCase{
		jobRepo:     jobRepo,
		transcripts: transcripts,
		redactor:    redactor,
		summarizer:  summarizer,
		embedder:    embedder,
		indexer:     indexer,
		limiter:     limiter,
		cfg:         cfg,
	}
}

// ProcessNextJob claims the next pending job and runs it through the
// pipeline. A lost claim race is not an error; the job simply belongs
// to another worker now.
func (uc *ingestUseCase) ProcessNextJob(ctx context.Context) (bool, error) {
	job, err := uc.jobRepo.ClaimNext(ctx, entity.StatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim next job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	started, err := uc.jobRepo.MarkStarted(ctx, job.ID)
	if err != nil {
		return false, fmt.Errorf("failed to mark job %d started: %w", job.ID, err)
	}
	if !started {
		slog.Debug("lost claim race", "job_id", job.ID)
		return true, nil
	}

	slog.Info("processing job", "job_id", job.ID, "conversation_id", job.ConversationID)
	startTime := time.Now()

	if !uc.limiter.AcquireWithBackoff(ctx, uc.cfg.ResourceKey, uc.cfg.ModelKey, 1, uc.cfg.AdmitRetries, uc.cfg.AdmitBaseDelay) {
		uc.recordDenial()
		return true, uc.fail(ctx, job, errors.New("rate limit admission denied after backoff"))
	}

	err = uc.runPipeline(ctx, job)
	duration := time.Since(startTime)

	if err != nil {
		slog.Error("job failed", "job_id", job.ID, "conversation_id", job.ConversationID, "error", err)
		metrics.IngestDuration.WithLabelValues("failed").Observe(duration.Seconds())
		failErr := uc.fail(ctx, job, err)
		if errors.Is(err, repository.ErrDriverGone) {
			// The caller owns the browser session and must rebuild it.
			return true, repository.ErrDriverGone
		}
		return true, failErr
	}

	if _, err := uc.jobRepo.MarkCompleted(ctx, job.ID); err != nil {
		return true, fmt.Errorf("failed to mark job %d completed: %w", job.ID, err)
	}
	metrics.JobsTotal.WithLabelValues("completed").Inc()
	metrics.IngestDuration.WithLabelValues("completed").Observe(duration.Seconds())
	slog.Info("job completed", "job_id", job.ID, "conversation_id", job.ConversationID,
		"duration_ms", duration.Milliseconds())
	return true, nil
}

// runPipeline executes fetch, redact, summarize, embed, index for a
// claimed job.
func (uc *ingestUseCase) runPipeline(ctx context.Context, job *entity.Job) error {
	conv, err := uc.transcripts.FetchConversation(ctx, uc.recordFor(job))
	if err != nil {
		return fmt.Errorf("fetch transcript: %w", err)
	}

	redacted, counts := uc.redactor.RedactConversation(conv)
	if total := totalRedactions(counts); total > 0 {
		slog.Info("redacted transcript", "conversation_id", conv.ID, "redactions", total)
	}

	summary, err := uc.summarizer.Summarize(ctx, redacted)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	if _, err := uc.embedder.Embed(ctx, summary); err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if err := uc.indexer.Index(ctx, summary); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	return nil
}

// RunBatch claims and processes jobs until the queue is drained or the
// cap is hit. A dead driver stops the batch; everything processed so
// far is reported.
func (uc *ingestUseCase) RunBatch(ctx context.Context, maxJobs int) (*BatchResult, error) {
	result := &BatchResult{RunID: uuid.NewString()}
	startTime := time.Now()
	defer func() { result.Duration = time.Since(startTime) }()

	slog.Info("batch run started", "run_id", result.RunID, "max_jobs", maxJobs)

	for maxJobs <= 0 || result.Processed < maxJobs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		processed, err := uc.ProcessNextJob(ctx)
		if !processed {
			break
		}
		result.Processed++
		if err != nil {
			result.Failed++
			if errors.Is(err, repository.ErrDriverGone) {
				slog.Warn("batch run aborted, driver gone", "run_id", result.RunID)
				return result, err
			}
			continue
		}
		result.Completed++
	}

	slog.Info("batch run finished", "run_id", result.RunID,
		"processed", result.Processed, "completed", result.Completed, "failed", result.Failed)
	return result, nil
}

// fail routes a job failure to the retry state machine and records the
// outcome metric.
func (uc *ingestUseCase) fail(ctx context.Context, job *entity.Job, cause error) error {
	outcome := "failed"
	if job.CanRetry() {
		outcome = "retry"
	}
	metrics.JobsTotal.WithLabelValues(outcome).Inc()

	if _, err := uc.jobRepo.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		return fmt.Errorf("failed to mark job %d failed: %w", job.ID, err)
	}
	return nil
}

// recordFor rebuilds the discovery record a job was enqueued from.
func (uc *ingestUseCase) recordFor(job *entity.Job) entity.DiscoveryRecord {
	record := entity.DiscoveryRecord{
		ID:           job.ConversationID,
		DisplayTitle: job.Metadata["title"],
		SourceURL:    job.Metadata["source_url"],
	}
	if record.SourceURL == "" {
		record.SourceURL = uc.cfg.BaseURL + "/c/" + job.ConversationID
	}
	return record
}

// recordDenial attributes an admission denial to the scope that is out
// of tokens, checked in the limiter's own order.
func (uc *ingestUseCase) recordDenial() {
	stats := uc.limiter.Stats(uc.cfg.ResourceKey, uc.cfg.ModelKey)
	scope := "model"
	switch {
	case stats.Global.Tokens < 1:
		scope = "global"
	case stats.Resource != nil && stats.Resource.Tokens < 1:
		scope = "resource"
	}
	metrics.AdmissionDenials.WithLabelValues(scope).Inc()
}

func totalRedactions(counts map[string]int) int {
	total := 0
	for _, v := range counts {
		total += v
	}
	return total
}
