package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/Dadudekc/DreamVault/internal/entity"
	"github.com/Dadudekc/DreamVault/internal/locator"
	"github.com/Dadudekc/DreamVault/internal/repository"
)

type fakeElement struct {
	text string
	href string
}

func (e fakeElement) Text() string { return e.text }

func (e fakeElement) Attr(name string) string {
	if name == "href" {
		return e.href
	}
	return ""
}

// listDriver answers every XPath query with the same conversation list.
type listDriver struct {
	elements []repository.Element
}

func (d *listDriver) Navigate(context.Context, string) error { return nil }
func (d *listDriver) Title(context.Context) (string, error)  { return "ChatGPT", nil }
func (d *listDriver) QueryElements(context.Context, string) ([]repository.Element, error) {
	return d.elements, nil
}
func (d *listDriver) AllLinks(context.Context) ([]repository.Element, error) {
	return d.elements, nil
}
func (d *listDriver) TriggerReveal(context.Context) error { return nil }

type memCache struct {
	cache *repository.SelectorCache
}

func (c *memCache) Load(context.Context) (*repository.SelectorCache, error) {
	if c.cache == nil {
		return nil, repository.ErrCacheMiss
	}
	return c.cache, nil
}

func (c *memCache) Save(_ context.Context, cache *repository.SelectorCache) error {
	c.cache = cache
	return nil
}

func conversationElements(n int) []repository.Element {
	out := make([]repository.Element, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, fakeElement{
			text: fmt.Sprintf("Conversation %d", i),
			href: fmt.Sprintf("https://chatgpt.com/c/conv-%d", i),
		})
	}
	return out
}

func TestDiscoverAndEnqueue(t *testing.T) {
	loc := locator.New(&memCache{}, locator.Config{RevealPause: -1, ProbePause: -1})
	jobs := newFakeJobRepo()
	uc := NewDiscoverUseCase(loc, jobs, 5)
	ctx := context.Background()

	enqueued, err := uc.DiscoverAndEnqueue(ctx, &listDriver{elements: conversationElements(3)})
	if err != nil {
		t.Fatalf("DiscoverAndEnqueue() error = %v", err)
	}
	if enqueued != 3 {
		t.Fatalf("enqueued = %d, want 3", enqueued)
	}

	for i := 1; i <= 3; i++ {
		status, err := jobs.StatusOf(ctx, fmt.Sprintf("conv-%d", i))
		if err != nil {
			t.Fatalf("StatusOf(conv-%d) error = %v", i, err)
		}
		if status != entity.StatusPending {
			t.Errorf("conv-%d status = %q, want pending", i, status)
		}
	}

	// Discovered jobs carry the locator's priority and source metadata.
	job, err := jobs.ClaimNext(ctx, entity.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if job.Priority != 5 {
		t.Errorf("job.Priority = %d, want 5", job.Priority)
	}
	if job.Metadata["source_url"] == "" {
		t.Error("job missing source_url metadata")
	}
}

func TestDiscoverAndEnqueue_RerunIsIdempotent(t *testing.T) {
	loc := locator.New(&memCache{}, locator.Config{RevealPause: -1, ProbePause: -1})
	jobs := newFakeJobRepo()
	uc := NewDiscoverUseCase(loc, jobs, 0)
	ctx := context.Background()
	driver := &listDriver{elements: conversationElements(2)}

	if _, err := uc.DiscoverAndEnqueue(ctx, driver); err != nil {
		t.Fatal(err)
	}
	enqueued, err := uc.DiscoverAndEnqueue(ctx, driver)
	if err != nil {
		t.Fatal(err)
	}
	if enqueued != 0 {
		t.Errorf("second pass enqueued = %d, want 0", enqueued)
	}

	stats, _ := jobs.Stats(ctx)
	if stats.Total != 2 {
		t.Errorf("total jobs = %d, want 2", stats.Total)
	}
}
