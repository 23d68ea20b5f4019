package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dadudekc/DreamVault/internal/locator"
	"github.com/Dadudekc/DreamVault/internal/repository"
	"github.com/Dadudekc/DreamVault/pkg/metrics"
)

// Discoverer finds conversations upstream and enqueues them as jobs.
type Discoverer interface {
	// DiscoverAndEnqueue runs one discovery pass and enqueues every new
	// record, returning how many jobs were actually enqueued. Partial
	// results from a dying driver are still enqueued; the
	// ErrDriverGone is propagated so the caller can rebuild the
	// session.
	DiscoverAndEnqueue(ctx context.Context, driver repository.FetchDriver) (int, error)
}

type discoverUseCase struct {
	loc      *locator.Locator
	jobRepo  repository.JobRepository
	priority int
}

// NewDiscoverUseCase creates the discovery use case. priority is
// attached to every enqueued job.
func NewDiscoverUseCase(loc *locator.Locator, jobRepo repository.JobRepository, priority int) Discoverer {
	return &discoverUseCase{loc: loc, jobRepo: jobRepo, priority: priority}
}

func (uc *discoverUseCase) DiscoverAndEnqueue(ctx context.Context, driver repository.FetchDriver) (int, error) {
	startTime := time.Now()

	records, discoverErr := uc.loc.Discover(ctx, driver, func(total int) {
		if total%25 == 0 {
			slog.Info("discovery progress", "records", total)
		}
	})
	metrics.DiscoverDuration.Observe(time.Since(startTime).Seconds())

	if discoverErr != nil && !errors.Is(discoverErr, repository.ErrDriverGone) {
		return 0, fmt.Errorf("discovery pass failed: %w", discoverErr)
	}

	enqueued := 0
	for _, record := range records {
		inserted, err := uc.jobRepo.Enqueue(ctx, repository.EnqueueParams{
			ConversationID: record.ID,
			Priority:       uc.priority,
			Metadata: map[string]string{
				"title":      record.DisplayTitle,
				"source_url": record.SourceURL,
			},
		})
		if err != nil {
			return enqueued, fmt.Errorf("failed to enqueue conversation %s: %w", record.ID, err)
		}
		if inserted {
			enqueued++
		}
	}

	slog.Info("discovery pass finished",
		"records", len(records), "enqueued", enqueued,
		"duration_ms", time.Since(startTime).Milliseconds())
	return enqueued, discoverErr
}
