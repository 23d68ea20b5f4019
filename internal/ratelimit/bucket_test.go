package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests advance bucket time deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBucket(capacity, rate float64, clock *fakeClock) *Bucket {
	b := NewBucket(capacity, rate)
	b.now = clock.Now
	b.last = clock.Now()
	return b
}

func TestBucket_BurstThenDeny(t *testing.T) {
	clock := newFakeClock()
	b := newTestBucket(5, 1, clock)

	for i := 0; i < 5; i++ {
		if !b.TryAcquire(1) {
			t.Fatalf("TryAcquire() #%d = false, want true", i+1)
		}
	}
	if b.TryAcquire(1) {
		t.Error("TryAcquire() #6 = true, want false")
	}

	clock.Advance(1 * time.Second)
	if !b.TryAcquire(1) {
		t.Error("TryAcquire() after 1s refill = false, want true")
	}
}

func TestBucket_RefillNeverExceedsCapacity(t *testing.T) {
	clock := newFakeClock()
	b := newTestBucket(3, 10, clock)

	clock.Advance(time.Hour)
	stats := b.Stats()
	if stats.Tokens != 3 {
		t.Errorf("Stats().Tokens = %v, want capacity 3", stats.Tokens)
	}
}

func TestBucket_TokensNeverNegative(t *testing.T) {
	clock := newFakeClock()
	b := newTestBucket(2, 1, clock)

	b.TryAcquire(2)
	if b.TryAcquire(1) {
		t.Error("TryAcquire() on empty bucket = true, want false")
	}
	if got := b.Stats().Tokens; got < 0 {
		t.Errorf("Stats().Tokens = %v, want >= 0", got)
	}
}

func TestBucket_EmptyReachesCapacityAfterFullRefill(t *testing.T) {
	clock := newFakeClock()
	b := newTestBucket(4, 2, clock)
	b.TryAcquire(4)

	// capacity/leakRate seconds later the bucket is full again.
	clock.Advance(2 * time.Second)
	if !b.TryAcquire(4) {
		t.Error("TryAcquire(capacity) after capacity/rate seconds = false, want true")
	}
}

func TestBucket_WaitTime(t *testing.T) {
	clock := newFakeClock()
	b := newTestBucket(2, 1, clock)

	if got := b.WaitTime(1); got != 0 {
		t.Errorf("WaitTime() with tokens available = %v, want 0", got)
	}

	b.TryAcquire(2)
	got := b.WaitTime(1)
	if got != time.Second {
		t.Errorf("WaitTime() for deficit of 1 at 1 token/s = %v, want 1s", got)
	}
}

func TestBucket_Utilization(t *testing.T) {
	clock := newFakeClock()
	b := newTestBucket(4, 1, clock)

	b.TryAcquire(3)
	stats := b.Stats()
	if stats.Utilization != 0.75 {
		t.Errorf("Stats().Utilization = %v, want 0.75", stats.Utilization)
	}
}

func TestBucket_ConcurrentAcquire(t *testing.T) {
	clock := newFakeClock()
	b := newTestBucket(10, 0.001, clock)

	var wg sync.WaitGroup
	granted := make(chan struct{}, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.TryAcquire(1) {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	if count != 10 {
		t.Errorf("granted %d acquisitions, want exactly capacity 10", count)
	}
}
