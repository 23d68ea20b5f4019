package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Dadudekc/DreamVault/internal/repository"
	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS selector_cache (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    payload    TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// CacheRepoImpl persists the selector preference list as a single-row
// JSON payload. The cache is tiny and written whole on every promotion.
type CacheRepoImpl struct {
	db *sql.DB
}

// NewCacheRepo opens (creating if needed) the selector cache database.
func NewCacheRepo(dbPath string) (*CacheRepoImpl, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &CacheRepoImpl{db: db}, nil
}

// Close closes the database handle.
func (r *CacheRepoImpl) Close() error {
	return r.db.Close()
}

// Load returns the persisted cache, or ErrCacheMiss when nothing has
// been saved yet.
func (r *CacheRepoImpl) Load(ctx context.Context) (*repository.SelectorCache, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM selector_cache WHERE id = 1`,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, repository.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var cache repository.SelectorCache
	if err := json.Unmarshal([]byte(payload), &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

// Save replaces the persisted cache.
func (r *CacheRepoImpl) Save(ctx context.Context, cache *repository.SelectorCache) error {
	payload, err := json.Marshal(cache)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO selector_cache (id, payload, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
		string(payload),
	)
	return err
}
