package ratelimit

import (
	"context"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		GlobalRequestsPerMinute:   600, // 10/s
		GlobalBurst:               100,
		ResourceRequestsPerMinute: 600,
		ResourceBurst:             3,
		Models: map[string]ModelQuota{
			"gpt4o":        {Requests: 150, Window: 3 * time.Hour, Burst: 2},
			"gpt45":        {Requests: 50, Window: 7 * 24 * time.Hour, Burst: 1},
			"gpt4o-mini":   {AliasOf: "gpt4o", AutoThrottle: true},
			"experimental": {AliasOf: "gpt45"}, // auto-throttle off: no bucket
		},
	}
}

func TestLimiter_GlobalOnly(t *testing.T) {
	l := New(testConfig())
	if !l.TryAcquire("", "", 1) {
		t.Error("TryAcquire() with no scopes = false, want true")
	}
}

func TestLimiter_ResourceScopeDenies(t *testing.T) {
	l := New(testConfig())

	for i := 0; i < 3; i++ {
		if !l.TryAcquire("chatgpt.com", "", 1) {
			t.Fatalf("TryAcquire() #%d = false, want true", i+1)
		}
	}
	if l.TryAcquire("chatgpt.com", "", 1) {
		t.Error("TryAcquire() past resource burst = true, want false")
	}
	// A different resource key has its own bucket.
	if !l.TryAcquire("chat.openai.com", "", 1) {
		t.Error("TryAcquire() on fresh resource = false, want true")
	}
}

func TestLimiter_UnknownModelSkipped(t *testing.T) {
	l := New(testConfig())
	if !l.TryAcquire("", "no-such-model", 1) {
		t.Error("TryAcquire() with unknown model = false, want the model check skipped")
	}
}

func TestLimiter_AliasBorrowsTargetBucket(t *testing.T) {
	l := New(testConfig())

	// Drain gpt4o's burst through the alias.
	if !l.TryAcquire("", "gpt4o-mini", 2) {
		t.Fatal("TryAcquire() via alias = false, want true")
	}
	if l.TryAcquire("", "gpt4o", 1) {
		t.Error("TryAcquire() on gpt4o after alias drain = true, want shared bucket empty")
	}
}

func TestLimiter_AliasWithoutAutoThrottleHasNoBucket(t *testing.T) {
	l := New(testConfig())

	// "experimental" aliases gpt45 but auto-throttle is off, so the
	// model check is skipped even though gpt45's burst is 1.
	for i := 0; i < 5; i++ {
		if !l.TryAcquire("", "experimental", 1) {
			t.Fatalf("TryAcquire() #%d via unthrottled alias = false, want true", i+1)
		}
	}
}

func TestLimiter_GlobalDebitedOnResourceDenial(t *testing.T) {
	l := New(testConfig())

	before := l.Stats("", "").Global.Tokens
	for i := 0; i < 3; i++ {
		l.TryAcquire("host-a", "", 1)
	}
	// Denied at the resource scope, but the global bucket still pays.
	if l.TryAcquire("host-a", "", 1) {
		t.Fatal("TryAcquire() past resource burst = true, want false")
	}
	after := l.Stats("", "").Global.Tokens
	if before-after != 4 {
		t.Errorf("global tokens consumed = %v, want 4 (3 admitted + 1 denied downstream)", before-after)
	}
}

func TestLimiter_WaitForTokensTimesOut(t *testing.T) {
	cfg := testConfig()
	cfg.GlobalBurst = 1
	cfg.GlobalRequestsPerMinute = 0.6 // 1 token per 100s
	l := New(cfg)

	l.TryAcquire("", "", 1)

	start := time.Now()
	ok := l.WaitForTokens(context.Background(), "", "", 1, 200*time.Millisecond)
	if ok {
		t.Error("WaitForTokens() = true, want timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("WaitForTokens() blocked %v, want prompt return after timeout", elapsed)
	}
}

func TestLimiter_WaitForTokensSucceedsAfterRefill(t *testing.T) {
	cfg := testConfig()
	cfg.GlobalBurst = 1
	cfg.GlobalRequestsPerMinute = 600 // 10/s: ~100ms per token
	l := New(cfg)

	l.TryAcquire("", "", 1)
	if !l.WaitForTokens(context.Background(), "", "", 1, 2*time.Second) {
		t.Error("WaitForTokens() = false, want success once the bucket refills")
	}
}

func TestLimiter_WaitForTokensHonorsContext(t *testing.T) {
	cfg := testConfig()
	cfg.GlobalBurst = 1
	cfg.GlobalRequestsPerMinute = 0.6
	l := New(cfg)
	l.TryAcquire("", "", 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	if l.WaitForTokens(ctx, "", "", 1, 0) {
		t.Error("WaitForTokens() = true, want false after context cancellation")
	}
}

func TestLimiter_AcquireWithBackoffBounded(t *testing.T) {
	cfg := testConfig()
	cfg.GlobalBurst = 1
	cfg.GlobalRequestsPerMinute = 0.6
	l := New(cfg)
	l.TryAcquire("", "", 1)

	start := time.Now()
	ok := l.AcquireWithBackoff(context.Background(), "", "", 1, 2, 10*time.Millisecond)
	if ok {
		t.Error("AcquireWithBackoff() = true, want false with no refill")
	}
	// Delays are 10ms + 20ms; generous upper bound to avoid flakes.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("AcquireWithBackoff() took %v, want bounded retries", elapsed)
	}
}

func TestLimiter_ResetResource(t *testing.T) {
	l := New(testConfig())

	for i := 0; i < 3; i++ {
		l.TryAcquire("host-b", "", 1)
	}
	if l.TryAcquire("host-b", "", 1) {
		t.Fatal("TryAcquire() past resource burst = true, want false")
	}

	l.ResetResource("host-b")
	if !l.TryAcquire("host-b", "", 1) {
		t.Error("TryAcquire() after ResetResource() = false, want a fresh full bucket")
	}
}

func TestLimiter_Stats(t *testing.T) {
	l := New(testConfig())
	l.TryAcquire("host-c", "gpt4o", 1)

	s := l.Stats("host-c", "gpt4o")
	if s.Resource == nil {
		t.Fatal("Stats().Resource = nil, want snapshot for named resource")
	}
	if s.Model == nil {
		t.Fatal("Stats().Model = nil, want snapshot for named model")
	}
	if s.Model.Tokens != 1 {
		t.Errorf("Stats().Model.Tokens = %v, want 1 after one acquisition from burst 2", s.Model.Tokens)
	}
	// Alias entries show up under their own name, sharing fill levels.
	if _, ok := s.AllModels["gpt4o-mini"]; !ok {
		t.Error("Stats().AllModels missing alias entry gpt4o-mini")
	}
	if s.AllModels["gpt4o-mini"].Tokens != s.AllModels["gpt4o"].Tokens {
		t.Error("alias bucket snapshot diverges from its target")
	}
}
