package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Dadudekc/DreamVault/internal/repository"
)

func setupCacheRepo(t *testing.T) *CacheRepoImpl {
	t.Helper()
	repo, err := NewCacheRepo(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewCacheRepo() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCacheRepo_LoadMiss(t *testing.T) {
	repo := setupCacheRepo(t)

	_, err := repo.Load(context.Background())
	if !errors.Is(err, repository.ErrCacheMiss) {
		t.Errorf("Load() on empty cache error = %v, want ErrCacheMiss", err)
	}
}

func TestCacheRepo_SaveLoadRoundTrip(t *testing.T) {
	repo := setupCacheRepo(t)
	ctx := context.Background()

	in := &repository.SelectorCache{
		Queries: []string{"//nav//a", "//a[contains(@href, '/c/')]"},
		BaseURL: "https://chatgpt.com",
	}
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out.BaseURL != in.BaseURL {
		t.Errorf("Load().BaseURL = %q, want %q", out.BaseURL, in.BaseURL)
	}
	if len(out.Queries) != 2 || out.Queries[0] != "//nav//a" {
		t.Errorf("Load().Queries = %v, want order preserved", out.Queries)
	}
}

func TestCacheRepo_SaveOverwrites(t *testing.T) {
	repo := setupCacheRepo(t)
	ctx := context.Background()

	repo.Save(ctx, &repository.SelectorCache{Queries: []string{"old"}})
	repo.Save(ctx, &repository.SelectorCache{Queries: []string{"new"}})

	out, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(out.Queries) != 1 || out.Queries[0] != "new" {
		t.Errorf("Load().Queries = %v, want single overwritten entry", out.Queries)
	}
}

func TestSelectorCache_Promote(t *testing.T) {
	cache := &repository.SelectorCache{Queries: []string{"a", "b", "c"}}

	cache.Promote("b")
	want := []string{"b", "a", "c"}
	for i := range want {
		if cache.Queries[i] != want[i] {
			t.Fatalf("Promote(existing) order = %v, want %v", cache.Queries, want)
		}
	}

	cache.Promote("d")
	if cache.Queries[0] != "d" || len(cache.Queries) != 4 {
		t.Errorf("Promote(new) = %v, want d prepended", cache.Queries)
	}
}
