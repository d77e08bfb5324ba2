package quota

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func TestAllowMonotonic(t *testing.T) {
	clock := newClock()
	tracker := NewWithClock(clock.Now)

	for i := 1; i <= 10; i++ {
		if !tracker.Allow("alice", ClassGeneral, 10, time.Hour) {
			t.Fatalf("call %d expected to be allowed", i)
		}
		if got := tracker.UsageStats("alice").Classes[ClassGeneral].Count; got != i {
			t.Fatalf("expected count %d after call %d, got %d", i, i, got)
		}
		clock.Advance(time.Second)
	}

	if tracker.Allow("alice", ClassGeneral, 10, time.Hour) {
		t.Fatalf("expected 11th call to be refused")
	}

	usage := tracker.UsageStats("alice").Classes[ClassGeneral]
	if usage.Count != 10 || usage.Limit != 10 {
		t.Fatalf("expected 10/10 usage, got %d/%d", usage.Count, usage.Limit)
	}
}

func TestAllowPrunesExpired(t *testing.T) {
	clock := newClock()
	tracker := NewWithClock(clock.Now)

	for i := 0; i < 3; i++ {
		tracker.Allow("bob", ClassLLM, 3, time.Minute)
	}
	if tracker.Allow("bob", ClassLLM, 3, time.Minute) {
		t.Fatalf("expected refusal at the limit")
	}

	clock.Advance(time.Minute + time.Millisecond)

	if !tracker.Allow("bob", ClassLLM, 3, time.Minute) {
		t.Fatalf("expected call to be allowed after window passed")
	}
	if got := tracker.UsageStats("bob").Classes[ClassLLM].Count; got != 1 {
		t.Fatalf("expected pruned count of 1, got %d", got)
	}
}

func TestClassesAndIdentitiesAreIndependent(t *testing.T) {
	tracker := New()

	if !tracker.Allow("carol", ClassLLM, 1, time.Hour) {
		t.Fatalf("expected first llm call to be allowed")
	}
	if tracker.Allow("carol", ClassLLM, 1, time.Hour) {
		t.Fatalf("expected second llm call to be refused")
	}
	if !tracker.Allow("carol", ClassGeneral, 1, time.Hour) {
		t.Fatalf("general class must not share the llm budget")
	}
	if !tracker.Allow("dave", ClassLLM, 1, time.Hour) {
		t.Fatalf("identities must not share budgets")
	}
}

func TestUsageStatsBoundaries(t *testing.T) {
	clock := newClock()
	tracker := NewWithClock(clock.Now)

	start := clock.Now()
	tracker.Allow("erin", ClassGeneral, 5, time.Hour)
	clock.Advance(10 * time.Minute)

	usage := tracker.UsageStats("erin").Classes[ClassGeneral]
	if !usage.OldestCall.Equal(start) {
		t.Fatalf("expected oldest call %v, got %v", start, usage.OldestCall)
	}
	if !usage.ResetAt.Equal(start.Add(time.Hour)) {
		t.Fatalf("unexpected reset time %v", usage.ResetAt)
	}
	if !usage.WindowEnd.Equal(clock.Now()) || !usage.WindowStart.Equal(clock.Now().Add(-time.Hour)) {
		t.Fatalf("unexpected window boundaries %v - %v", usage.WindowStart, usage.WindowEnd)
	}

	if len(tracker.UsageStats("unknown").Classes) != 0 {
		t.Fatalf("expected no classes for unknown identity")
	}
}

func TestAllowConcurrent(t *testing.T) {
	tracker := New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tracker.Allow("frank", ClassGeneral, 20, time.Hour) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 20 {
		t.Fatalf("expected exactly 20 allowed calls, got %d", allowed)
	}
}

func TestAllowRejectsInvalidLimits(t *testing.T) {
	tracker := New()
	if tracker.Allow("gina", ClassGeneral, 0, time.Hour) {
		t.Fatalf("expected zero limit to refuse")
	}
	if tracker.Allow("gina", ClassGeneral, 1, 0) {
		t.Fatalf("expected zero window to refuse")
	}
}

func TestAllowLimit(t *testing.T) {
	clock := newClock()
	tr := NewWithClock(clock.Now)
	l := Limit{MaxCalls: 1, Window: time.Minute}

	if !tr.AllowLimit("u", ClassLLM, l) {
		t.Fatal("expected first call to pass")
	}
	if tr.AllowLimit("u", ClassLLM, l) {
		t.Fatal("expected second call to be refused")
	}
}
