package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a process-local fixed-window Limiter. Limits are only
// enforced per instance; multi-instance deployments use RedisLimiter.
type MemoryLimiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	max      int
	span     time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryLimiter creates a limiter allowing max requests per span window.
// A janitor goroutine drops windows past their reset time so entries do not
// accumulate for the process lifetime.
func NewMemoryLimiter(max int, span time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		windows: make(map[string]*window),
		max:     max,
		span:    span,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.janitor()
	return l
}

// SetClock overrides the limiter's notion of now. Test hook.
func (l *MemoryLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Close stops the janitor goroutine.
func (l *MemoryLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Allow counts a request against the key's current window.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 0, resetAt: now.Add(l.span)}
		l.windows[key] = w
	}

	if w.count >= l.max {
		return Result{OK: false, Remaining: 0, RetryAfter: w.resetAt.Sub(now)}, nil
	}

	w.count++
	return Result{OK: true, Remaining: l.max - w.count, RetryAfter: w.resetAt.Sub(now)}, nil
}

func (l *MemoryLimiter) janitor() {
	ticker := time.NewTicker(l.span)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, w := range l.windows {
				if !now.Before(w.resetAt) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
