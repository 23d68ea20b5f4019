package repository

import "context"

// SelectorCache is the persisted preference order of extraction
// strategies, most-recently-successful first, plus the base URL they
// last worked against.
type SelectorCache struct {
	Queries []string `json:"selectors"`
	BaseURL string   `json:"base_url"`
}

// Promote moves query to the front of the preference order, inserting
// it if absent.
func (c *SelectorCache) Promote(query string) {
	out := make([]string, 0, len(c.Queries)+1)
	out = append(out, query)
	for _, q := range c.Queries {
		if q != query {
			out = append(out, q)
		}
	}
	c.Queries = out
}

// SelectorCacheRepository persists the selector preference list between
// runs. Load returns ErrCacheMiss when nothing has been saved yet.
type SelectorCacheRepository interface {
	Load(ctx context.Context) (*SelectorCache, error)
	Save(ctx context.Context, cache *SelectorCache) error
}
