package github

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RequestBudget mirrors the rate-limit headers of the most recent response.
//
// It never waits: once the service reported an exhausted budget (or asked for
// a Retry-After cooldown), Acquire refuses until the reset time so no request
// is sent that the service would reject anyway.
type RequestBudget struct {
	mu        sync.Mutex
	remaining int // -1 until the first response is observed
	reset     time.Time
	cooldown  time.Time
	now       func() time.Time
}

// RateLimitedError is returned by Acquire while the budget is exhausted.
type RateLimitedError struct {
	Until time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exhausted until %s", e.Until.UTC().Format(time.RFC3339))
}

func NewRequestBudget() *RequestBudget {
	return &RequestBudget{
		remaining: -1,
		now:       time.Now,
	}
}

// Remaining reports the last observed remaining request count, or -1 when no
// response has been observed yet.
func (b *RequestBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

func (b *RequestBudget) Acquire(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("Acquire: nil context")
	}
	if b == nil {
		return fmt.Errorf("Acquire: nil RequestBudget")
	}
	if b.now == nil {
		return fmt.Errorf("Acquire: RequestBudget.now is nil (use NewRequestBudget)")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Before(b.cooldown) {
		return &RateLimitedError{Until: b.cooldown}
	}
	if b.remaining == 0 && now.Before(b.reset) {
		return &RateLimitedError{Until: b.reset}
	}
	if b.remaining > 0 {
		b.remaining--
	}
	return nil
}

func (b *RequestBudget) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}
	if b == nil {
		return
	}
	if b.now == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			until := b.now().Add(time.Duration(seconds) * time.Second)
			if until.After(b.cooldown) {
				b.cooldown = until
			}
		}
	}

	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil && val >= 0 {
			b.remaining = val
		}
	}

	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil && val > 0 {
			b.reset = time.Unix(val, 0)
		}
	}
}
