package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a leaky bucket: a capacity-bounded token counter that
// refills at a fixed rate and is debited on admission. Refill happens
// lazily on each access, so an idle bucket costs nothing.
type Bucket struct {
	mu       sync.Mutex
	capacity float64
	tokens   float64
	leakRate float64 // tokens per second
	last     time.Time

	now func() time.Time // test hook
}

// BucketStats is a point-in-time snapshot of a bucket's fill level.
type BucketStats struct {
	Tokens      float64 `json:"tokens"`
	Capacity    float64 `json:"capacity"`
	LeakRate    float64 `json:"leak_rate"`
	Utilization float64 `json:"utilization"`
}

// NewBucket creates a full bucket with the given burst capacity and
// refill rate in tokens per second.
func NewBucket(capacity, leakRate float64) *Bucket {
	now := time.Now
	return &Bucket{
		capacity: capacity,
		tokens:   capacity,
		leakRate: leakRate,
		last:     now(),
		now:      now,
	}
}

// refillLocked tops the bucket up for the time elapsed since the last
// access. Caller must hold b.mu.
func (b *Bucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.leakRate)
	}
	b.last = now
}

// TryAcquire debits the bucket if enough tokens are available. It
// never blocks.
func (b *Bucket) TryAcquire(tokens float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens >= tokens {
		b.tokens -= tokens
		return true
	}
	return false
}

// WaitTime returns how long the bucket needs to refill enough for the
// requested tokens, zero if they are available now.
func (b *Bucket) WaitTime(tokens float64) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens >= tokens {
		return 0
	}
	deficit := tokens - b.tokens
	return time.Duration(deficit / b.leakRate * float64(time.Second))
}

// Stats snapshots the bucket after a lazy refill.
func (b *Bucket) Stats() BucketStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	return BucketStats{
		Tokens:      b.tokens,
		Capacity:    b.capacity,
		LeakRate:    b.leakRate,
		Utilization: (b.capacity - b.tokens) / b.capacity,
	}
}
