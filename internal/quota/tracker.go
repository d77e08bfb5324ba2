package quota

import (
	"sync"
	"time"
)

// Class separates budgets that are accounted independently.
type Class string

const (
	ClassGeneral Class = "general"
	ClassLLM     Class = "llm"
)

// Tracker counts calls per identity and class in sliding windows.
// Expired timestamps are pruned when a bucket is checked.
type Tracker struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	mu      sync.Mutex
	windows map[Class]*window
}

type window struct {
	calls  []time.Time
	limit  int
	length time.Duration
}

// ClassUsage describes one class of an identity at the time of the call.
type ClassUsage struct {
	Count       int           `json:"count"`
	Limit       int           `json:"limit"`
	Window      time.Duration `json:"window"`
	WindowStart time.Time     `json:"window_start"`
	WindowEnd   time.Time     `json:"window_end"`
	OldestCall  time.Time     `json:"oldest_call,omitempty"`
	ResetAt     time.Time     `json:"reset_at,omitempty"`
}

type Usage struct {
	Identity string               `json:"identity"`
	Classes  map[Class]ClassUsage `json:"classes"`
}

func New() *Tracker {
	return NewWithClock(time.Now)
}

// NewWithClock creates a tracker reading time from now.
func NewWithClock(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		buckets: make(map[string]*bucket),
		now:     now,
	}
}

func (t *Tracker) bucketFor(identity string) *bucket {
	t.mu.Lock()
	defer t.mu.Unlock()

	if b, ok := t.buckets[identity]; ok {
		return b
	}
	b := &bucket{windows: make(map[Class]*window)}
	t.buckets[identity] = b
	return b
}

// Allow records a call and returns true when fewer than maxCalls were made by
// identity for class within the trailing window. A refused call is not recorded.
func (t *Tracker) Allow(identity string, class Class, maxCalls int, length time.Duration) bool {
	if maxCalls <= 0 || length <= 0 {
		return false
	}

	b := t.bucketFor(identity)
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.windows[class]
	if !ok {
		w = &window{}
		b.windows[class] = w
	}
	w.limit = maxCalls
	w.length = length

	now := t.now()
	w.prune(now)

	if len(w.calls) >= maxCalls {
		return false
	}

	w.calls = append(w.calls, now)
	return true
}

// UsageStats reports counts and window boundaries for every class the identity used.
func (t *Tracker) UsageStats(identity string) Usage {
	usage := Usage{Identity: identity, Classes: make(map[Class]ClassUsage)}

	t.mu.Lock()
	b, ok := t.buckets[identity]
	t.mu.Unlock()
	if !ok {
		return usage
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := t.now()
	for class, w := range b.windows {
		w.prune(now)

		cu := ClassUsage{
			Count:       len(w.calls),
			Limit:       w.limit,
			Window:      w.length,
			WindowStart: now.Add(-w.length),
			WindowEnd:   now,
		}
		if len(w.calls) > 0 {
			cu.OldestCall = w.calls[0]
			cu.ResetAt = w.calls[0].Add(w.length)
		}
		usage.Classes[class] = cu
	}

	return usage
}

func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.length)
	idx := 0
	for idx < len(w.calls) && !w.calls[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		w.calls = append(w.calls[:0], w.calls[idx:]...)
	}
}

// Limit is the configured budget of one class.
type Limit struct {
	MaxCalls int           `mapstructure:"max-calls"`
	Window   time.Duration `mapstructure:"window"`
}

// AllowLimit is Allow with the budget taken from l.
func (t *Tracker) AllowLimit(identity string, class Class, l Limit) bool {
	return t.Allow(identity, class, l.MaxCalls, l.Window)
}
