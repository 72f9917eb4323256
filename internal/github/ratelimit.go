package github

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v81/github"
)

// MaxBackoff caps how long a single rate-limit wait may last.
// Search rate limit windows are one minute and core windows reset hourly;
// anything beyond this cap means the run should fail loudly rather than
// appear hung.
const MaxBackoff = 15 * time.Minute

// minBackoff is the floor for computed waits. Reset timestamps have
// one-second granularity, so a tiny safety margin avoids re-hitting the
// limit right at the boundary.
const minBackoff = 2 * time.Second

// RetryDelay inspects an API error and/or HTTP response and reports how
// long to wait before retrying. ok is false when the failure is not a
// rate limit and should not be retried here.
//
// Recognized, in order:
//  1. go-github's RateLimitError (primary limit, carries the reset time)
//  2. go-github's AbuseRateLimitError (secondary limit, carries Retry-After)
//  3. Raw 403/429 responses with Retry-After or X-RateLimit-Reset headers,
//     for requests that bypass go-github (GraphQL, page scraping)
func RetryDelay(resp *http.Response, err error) (delay time.Duration, ok bool) {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return clampDelay(time.Until(rateErr.Rate.Reset.Time)), true
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		if abuseErr.RetryAfter != nil {
			return clampDelay(*abuseErr.RetryAfter), true
		}
		return minBackoff, true
	}

	if resp == nil {
		return 0, false
	}
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if secs, parseErr := strconv.Atoi(retryAfter); parseErr == nil {
			return clampDelay(time.Duration(secs) * time.Second), true
		}
	}

	// A 403 with remaining quota is a real permission error, not a limit.
	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" && remaining != "0" {
		return 0, false
	}

	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if unix, parseErr := strconv.ParseInt(reset, 10, 64); parseErr == nil {
			return clampDelay(time.Until(time.Unix(unix, 0))), true
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		// 429 without headers: back off conservatively.
		return time.Minute, true
	}

	return 0, false
}

// clampDelay bounds a wait to [minBackoff, MaxBackoff].
func clampDelay(d time.Duration) time.Duration {
	if d < minBackoff {
		return minBackoff
	}
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}

// SleepUntilReset waits for the given delay, honoring context cancellation.
func SleepUntilReset(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
