package locator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Dadudekc/DreamVault/internal/entity"
	"github.com/Dadudekc/DreamVault/internal/repository"
)

const (
	defaultMaxIterations   = 50
	defaultStabilityWindow = 3
	defaultRevealPause     = 2 * time.Second
	defaultProbePause      = 3 * time.Second
)

// Config tunes the discovery loop. Zero values take the defaults
// above; a negative pause disables the wait entirely.
type Config struct {
	MaxIterations   int           // hard cap on collection iterations
	StabilityWindow int           // consecutive no-new-record iterations before stopping
	RevealPause     time.Duration // wait after each reveal for content to load
	ProbePause      time.Duration // wait after navigating to a candidate base URL
}

// Locator discovers conversation records from a semi-structured source,
// remembering which extraction strategies worked so later runs try them
// first. The cache is injected; multiple locators never share ambient
// state.
type Locator struct {
	cacheRepo  repository.SelectorCacheRepository
	strategies []Strategy
	bases      []string
	cfg        Config
}

// New builds a locator over the static strategy library.
func New(cacheRepo repository.SelectorCacheRepository, cfg Config) *Locator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.StabilityWindow <= 0 {
		cfg.StabilityWindow = defaultStabilityWindow
	}
	if cfg.RevealPause == 0 {
		cfg.RevealPause = defaultRevealPause
	}
	if cfg.ProbePause == 0 {
		cfg.ProbePause = defaultProbePause
	}
	return &Locator{
		cacheRepo:  cacheRepo,
		strategies: Library(),
		bases:      baseURLs,
		cfg:        cfg,
	}
}

// Discover navigates to a working base URL, finds a strategy that
// extracts valid records, and incrementally collects until the source
// stops yielding new ones. An empty result is a valid outcome, never an
// error; the only error surfaced is repository.ErrDriverGone, returned
// together with whatever was collected before the session died.
func (l *Locator) Discover(ctx context.Context, driver repository.FetchDriver, progress func(total int)) ([]entity.DiscoveryRecord, error) {
	base := l.probeBaseURL(ctx, driver)

	for _, strat := range l.trialOrder(ctx) {
		elements, err := driver.QueryElements(ctx, strat.Query)
		if errors.Is(err, repository.ErrDriverGone) {
			return nil, err
		}
		if err != nil {
			slog.Debug("strategy query failed", "query", strat.Query, "error", err)
			continue
		}
		if countValid(elements, strat.Validate) == 0 {
			continue
		}

		slog.Info("selected extraction strategy", "query", strat.Query)
		l.promote(ctx, strat.Query, base)
		return l.collect(ctx, driver, strat, progress)
	}

	slog.Warn("no strategy matched, falling back to full link scan")
	return l.fallbackScan(ctx, driver)
}

// probeBaseURL tries the candidate entry points in order until one
// loads a page whose title signals the upstream application. When none
// do, the first candidate is used anyway.
func (l *Locator) probeBaseURL(ctx context.Context, driver repository.FetchDriver) string {
	for _, base := range l.bases {
		if err := driver.Navigate(ctx, base); err != nil {
			slog.Debug("base URL failed", "url", base, "error", err)
			continue
		}
		l.pause(ctx, l.cfg.ProbePause)

		title, err := driver.Title(ctx)
		if err != nil {
			continue
		}
		lower := strings.ToLower(title)
		if strings.Contains(lower, "chat") || strings.Contains(lower, "gpt") {
			slog.Info("found working base URL", "url", base)
			return base
		}
	}

	fallback := l.bases[0]
	slog.Warn("no base URL signalled success, using first candidate", "url", fallback)
	driver.Navigate(ctx, fallback)
	l.pause(ctx, l.cfg.ProbePause)
	return fallback
}

// trialOrder returns cached strategies first (most-recently-successful
// leading), then the full library, deduplicated with order preserved.
func (l *Locator) trialOrder(ctx context.Context) []Strategy {
	var order []Strategy
	seen := make(map[string]bool)

	cache, err := l.cacheRepo.Load(ctx)
	if err != nil && !errors.Is(err, repository.ErrCacheMiss) {
		slog.Warn("failed to load selector cache", "error", err)
	}
	if cache != nil {
		for _, q := range cache.Queries {
			if !seen[q] {
				seen[q] = true
				order = append(order, Strategy{Query: q, Validate: ValidRecord})
			}
		}
	}
	for _, strat := range l.strategies {
		if !seen[strat.Query] {
			seen[strat.Query] = true
			order = append(order, strat)
		}
	}
	return order
}

// promote writes the winning strategy to the front of the persisted
// cache immediately, so even an aborted run leaves the preference
// behind.
func (l *Locator) promote(ctx context.Context, query, base string) {
	cache, err := l.cacheRepo.Load(ctx)
	if err != nil {
		cache = &repository.SelectorCache{}
	}
	cache.Promote(query)
	cache.BaseURL = base
	if err := l.cacheRepo.Save(ctx, cache); err != nil {
		slog.Warn("failed to persist selector cache", "error", err)
	}
}

// collect repeatedly re-queries with the selected strategy, keeps any
// record not yet seen (keyed by source URL), and asks the driver to
// reveal more. It stops at the iteration cap or once the stability
// window passes with nothing new, whichever comes first.
func (l *Locator) collect(ctx context.Context, driver repository.FetchDriver, strat Strategy, progress func(int)) ([]entity.DiscoveryRecord, error) {
	var records []entity.DiscoveryRecord
	seen := make(map[string]bool)
	stable := 0

	for iteration := 0; iteration < l.cfg.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			return records, nil
		}

		elements, err := driver.QueryElements(ctx, strat.Query)
		if errors.Is(err, repository.ErrDriverGone) {
			return records, err
		}
		if err != nil {
			slog.Warn("re-query failed during collection", "iteration", iteration, "error", err)
			break
		}

		found := 0
		for _, el := range elements {
			title := el.Text()
			href := el.Attr("href")
			if !strat.Validate(title, href) || seen[href] {
				continue
			}
			seen[href] = true
			records = append(records, entity.DiscoveryRecord{
				ID:           recordID(href),
				DisplayTitle: title,
				SourceURL:    href,
			})
			found++
		}

		if progress != nil {
			progress(len(records))
		}
		slog.Debug("collection iteration", "iteration", iteration, "new", found, "total", len(records))

		if found == 0 {
			stable++
			if stable >= l.cfg.StabilityWindow {
				break
			}
		} else {
			stable = 0
		}

		if err := driver.TriggerReveal(ctx); errors.Is(err, repository.ErrDriverGone) {
			return records, err
		}
		l.pause(ctx, l.cfg.RevealPause)
	}

	slog.Info("collection finished", "records", len(records))
	return records, nil
}

// fallbackScan is the maximally permissive extraction: every link-like
// element in the document, filtered by the record-reference shape.
func (l *Locator) fallbackScan(ctx context.Context, driver repository.FetchDriver) ([]entity.DiscoveryRecord, error) {
	links, err := driver.AllLinks(ctx)
	if errors.Is(err, repository.ErrDriverGone) {
		return nil, err
	}
	if err != nil {
		return nil, nil
	}

	var records []entity.DiscoveryRecord
	seen := make(map[string]bool)
	for _, link := range links {
		title := link.Text()
		href := link.Attr("href")
		if !ValidRecord(title, href) || seen[href] {
			continue
		}
		seen[href] = true
		records = append(records, entity.DiscoveryRecord{
			ID:           recordID(href),
			DisplayTitle: title,
			SourceURL:    href,
		})
	}

	slog.Info("fallback extraction finished", "records", len(records))
	return records, nil
}

func (l *Locator) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
