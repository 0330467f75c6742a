// Package ratelimit implements fixed-window request counting. A window's
// count resets wholesale when its reset time passes; it never slides.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of one Allow call.
type Result struct {
	// OK is false once the window's ceiling is reached.
	OK bool
	// Remaining is how many requests are left in the current window.
	Remaining int
	// RetryAfter is how long until the window resets. Meaningful when !OK.
	RetryAfter time.Duration
}

// Limiter counts requests per key within fixed windows. Implementations must
// be safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}
