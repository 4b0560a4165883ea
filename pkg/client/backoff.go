package client

import (
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// BackoffStrategy yields the wait before retry attempt n (0-based).
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// ExponentialBackoff waits Base*Factor^attempt, at most Max, spread by
// ±Jitter (a fraction in [0, 1]).
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64

	// Rand returns values in [0, 1). Nil uses math/rand/v2.
	Rand func() float64
}

// DefaultBackoff starts at 100ms and doubles up to 5s with 20% jitter.
func DefaultBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Base:   100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: 0.2,
	}
}

func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	attempt = max(attempt, 0)
	d := math.Min(float64(b.Base)*math.Pow(b.Factor, float64(attempt)), float64(b.Max))
	if b.Jitter > 0 {
		random := rand.Float64
		if b.Rand != nil {
			random = b.Rand
		}
		d *= 1 + (random()*2-1)*b.Jitter
	}
	return time.Duration(math.Max(d, 0))
}

// maxRetryAfter bounds a server supplied Retry-After.
const maxRetryAfter = 30 * time.Second

// retryWait is the pause before retry attempt n. A Retry-After sent with
// the previous failure wins over the strategy.
func retryWait(b BackoffStrategy, attempt int, lastErr error) time.Duration {
	var se *StatusError
	if errors.As(lastErr, &se) && se.RetryAfter > 0 {
		return min(se.RetryAfter, maxRetryAfter)
	}
	return b.Next(attempt)
}

// parseRetryAfter reads a delay-seconds or HTTP-date Retry-After header.
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
