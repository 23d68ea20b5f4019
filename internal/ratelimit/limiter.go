package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sleepSlice bounds each sleep inside WaitForTokens so waiters notice
// refills and timeouts promptly.
const sleepSlice = 100 * time.Millisecond

// ModelQuota describes one upstream model's published rate limit, e.g.
// 150 requests per 3 hours with a burst of 10. An entry may instead be
// an alias: when AutoThrottle is set the model borrows the bucket of
// the model named by AliasOf and gets no bucket of its own.
type ModelQuota struct {
	Requests     float64
	Window       time.Duration
	Burst        float64
	AliasOf      string
	AutoThrottle bool
}

// Rate returns the quota's refill rate in tokens per second.
func (q ModelQuota) Rate() float64 {
	if q.Window <= 0 {
		return 0
	}
	return q.Requests / q.Window.Seconds()
}

// Config configures the limiter hierarchy. All per-resource buckets
// share one capacity and rate; model buckets come from the quota table.
type Config struct {
	GlobalRequestsPerMinute   float64
	GlobalBurst               float64
	ResourceRequestsPerMinute float64
	ResourceBurst             float64
	Models                    map[string]ModelQuota
}

// RateLimiter is the multi-scope admission controller: one global
// bucket, lazily created per-resource buckets, and pre-provisioned
// per-model buckets. A request is admitted only when every named scope
// has tokens. Buckets are in-memory only; a restart resets all quotas.
type RateLimiter struct {
	global *Bucket

	resourceCapacity float64
	resourceRate     float64

	mu        sync.Mutex // guards resources map shape, not the buckets
	resources map[string]*Bucket

	models map[string]*Bucket // alias entries share the target's bucket
}

// Stats aggregates bucket snapshots for the observability surface.
type Stats struct {
	Global    BucketStats            `json:"global"`
	Resource  *BucketStats           `json:"resource,omitempty"`
	Model     *BucketStats           `json:"model,omitempty"`
	AllModels map[string]BucketStats `json:"models"`
}

// New builds the limiter, resolving model aliases once so call sites
// never branch on model names.
func New(cfg Config) *RateLimiter {
	l := &RateLimiter{
		global:           NewBucket(cfg.GlobalBurst, cfg.GlobalRequestsPerMinute/60.0),
		resourceCapacity: cfg.ResourceBurst,
		resourceRate:     cfg.ResourceRequestsPerMinute / 60.0,
		resources:        make(map[string]*Bucket),
		models:           make(map[string]*Bucket),
	}

	for name, quota := range cfg.Models {
		if quota.AliasOf != "" {
			continue
		}
		l.models[name] = NewBucket(quota.Burst, quota.Rate())
	}
	for name, quota := range cfg.Models {
		if quota.AliasOf == "" || !quota.AutoThrottle {
			continue
		}
		if target, ok := l.models[quota.AliasOf]; ok {
			l.models[name] = target
		}
	}

	return l
}

// resourceBucket returns the bucket for a resource key, creating it at
// full capacity on first use. Create-if-absent is race-free: the map
// lock covers the check and the insert.
func (l *RateLimiter) resourceBucket(key string) *Bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.resources[key]
	if !ok {
		b = NewBucket(l.resourceCapacity, l.resourceRate)
		l.resources[key] = b
	}
	return b
}

// modelBucket resolves a model key to its bucket. Unknown keys get nil,
// which skips the model check entirely.
func (l *RateLimiter) modelBucket(key string) *Bucket {
	return l.models[key]
}

// applicable collects the buckets a request must pass, in check order.
func (l *RateLimiter) applicable(resourceKey, modelKey string) []*Bucket {
	buckets := []*Bucket{l.global}
	if resourceKey != "" {
		buckets = append(buckets, l.resourceBucket(resourceKey))
	}
	if modelKey != "" {
		if b := l.modelBucket(modelKey); b != nil {
			buckets = append(buckets, b)
		}
	}
	return buckets
}

// TryAcquire attempts a non-blocking acquisition against every
// applicable scope. Scopes are debited in order and tokens consumed
// from earlier buckets are not refunded when a later scope refuses;
// under contention the global bucket drains slightly faster than
// strictly necessary, which errs on the conservative side for an
// admission controller.
func (l *RateLimiter) TryAcquire(resourceKey, modelKey string, tokens float64) bool {
	for _, b := range l.applicable(resourceKey, modelKey) {
		if !b.TryAcquire(tokens) {
			return false
		}
	}
	return true
}

// WaitForTokens blocks until every applicable scope admits the request
// or the timeout elapses. The wait is recomputed each round as the
// worst deficit across scopes and slept in bounded slices. A timeout
// of zero or less means no deadline beyond ctx.
func (l *RateLimiter) WaitForTokens(ctx context.Context, resourceKey, modelKey string, tokens float64, timeout time.Duration) bool {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if l.TryAcquire(resourceKey, modelKey, tokens) {
			return true
		}

		var wait time.Duration
		for _, b := range l.applicable(resourceKey, modelKey) {
			if w := b.WaitTime(tokens); w > wait {
				wait = w
			}
		}
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return false
			}
			if wait > remaining {
				wait = remaining
			}
		}
		if wait <= 0 {
			wait = sleepSlice
		}
		if wait > sleepSlice {
			wait = sleepSlice
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

// AcquireWithBackoff retries TryAcquire up to maxRetries+1 times with
// exponential delays of baseDelay*2^attempt between attempts.
func (l *RateLimiter) AcquireWithBackoff(ctx context.Context, resourceKey, modelKey string, tokens float64, maxRetries int, baseDelay time.Duration) bool {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if l.TryAcquire(resourceKey, modelKey, tokens) {
			return true
		}
		if attempt == maxRetries {
			break
		}
		delay := baseDelay * (1 << attempt)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
	}
	return false
}

// Stats snapshots the global bucket, the named scopes if any, and every
// model bucket.
func (l *RateLimiter) Stats(resourceKey, modelKey string) *Stats {
	s := &Stats{
		Global:    l.global.Stats(),
		AllModels: make(map[string]BucketStats, len(l.models)),
	}
	if resourceKey != "" {
		rs := l.resourceBucket(resourceKey).Stats()
		s.Resource = &rs
	}
	if modelKey != "" {
		if b := l.modelBucket(modelKey); b != nil {
			ms := b.Stats()
			s.Model = &ms
		}
	}
	for name, b := range l.models {
		s.AllModels[name] = b.Stats()
	}
	return s
}

// ResetResource discards a resource bucket's accumulated state; the
// next request against the key sees a full bucket.
func (l *RateLimiter) ResetResource(resourceKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.resources, resourceKey)
}

// ResourceKeys lists the resource scopes seen so far.
func (l *RateLimiter) ResourceKeys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, len(l.resources))
	for k := range l.resources {
		keys = append(keys, k)
	}
	return keys
}
