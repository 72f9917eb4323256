package github

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-github/v81/github"
)

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	t.Run("rate limit error uses reset time", func(t *testing.T) {
		t.Parallel()

		err := &github.RateLimitError{
			Rate: github.Rate{Reset: github.Timestamp{Time: time.Now().Add(30 * time.Second)}},
		}
		delay, ok := RetryDelay(nil, err)
		if !ok {
			t.Fatal("RetryDelay should recognize RateLimitError")
		}
		if delay < 25*time.Second || delay > 35*time.Second {
			t.Errorf("delay = %v, want about 30s", delay)
		}
	})

	t.Run("abuse error uses retry-after", func(t *testing.T) {
		t.Parallel()

		retryAfter := 10 * time.Second
		err := &github.AbuseRateLimitError{RetryAfter: &retryAfter}
		delay, ok := RetryDelay(nil, err)
		if !ok || delay != 10*time.Second {
			t.Errorf("delay, ok = %v, %v; want 10s, true", delay, ok)
		}
	})

	t.Run("abuse error without retry-after uses floor", func(t *testing.T) {
		t.Parallel()

		delay, ok := RetryDelay(nil, &github.AbuseRateLimitError{})
		if !ok || delay != minBackoff {
			t.Errorf("delay, ok = %v, %v; want %v, true", delay, ok, minBackoff)
		}
	})

	t.Run("403 with exhausted quota uses reset header", func(t *testing.T) {
		t.Parallel()

		reset := time.Now().Add(45 * time.Second).Unix()
		resp := &http.Response{
			StatusCode: http.StatusForbidden,
			Header: http.Header{
				"X-Ratelimit-Remaining": []string{"0"},
				"X-Ratelimit-Reset":     []string{strconv.FormatInt(reset, 10)},
			},
		}
		delay, ok := RetryDelay(resp, errors.New("403 Forbidden"))
		if !ok {
			t.Fatal("RetryDelay should recognize exhausted 403")
		}
		if delay < 40*time.Second || delay > 50*time.Second {
			t.Errorf("delay = %v, want about 45s", delay)
		}
	})

	t.Run("403 with remaining quota is not retryable", func(t *testing.T) {
		t.Parallel()

		resp := &http.Response{
			StatusCode: http.StatusForbidden,
			Header:     http.Header{"X-Ratelimit-Remaining": []string{"12"}},
		}
		if _, ok := RetryDelay(resp, errors.New("403 Forbidden")); ok {
			t.Error("permission 403 must not be treated as a rate limit")
		}
	})

	t.Run("429 prefers retry-after header", func(t *testing.T) {
		t.Parallel()

		resp := &http.Response{
			StatusCode: http.StatusTooManyRequests,
			Header:     http.Header{"Retry-After": []string{"7"}},
		}
		delay, ok := RetryDelay(resp, nil)
		if !ok || delay != 7*time.Second {
			t.Errorf("delay, ok = %v, %v; want 7s, true", delay, ok)
		}
	})

	t.Run("429 without headers backs off one minute", func(t *testing.T) {
		t.Parallel()

		resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
		delay, ok := RetryDelay(resp, nil)
		if !ok || delay != time.Minute {
			t.Errorf("delay, ok = %v, %v; want 1m, true", delay, ok)
		}
	})

	t.Run("success status is not retryable", func(t *testing.T) {
		t.Parallel()

		resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}}
		if _, ok := RetryDelay(resp, nil); ok {
			t.Error("200 must not be retryable")
		}
	})

	t.Run("reset far in the future is capped", func(t *testing.T) {
		t.Parallel()

		err := &github.RateLimitError{
			Rate: github.Rate{Reset: github.Timestamp{Time: time.Now().Add(2 * time.Hour)}},
		}
		delay, ok := RetryDelay(nil, err)
		if !ok || delay != MaxBackoff {
			t.Errorf("delay = %v, want cap %v", delay, MaxBackoff)
		}
	})

	t.Run("past reset uses floor", func(t *testing.T) {
		t.Parallel()

		err := &github.RateLimitError{
			Rate: github.Rate{Reset: github.Timestamp{Time: time.Now().Add(-time.Minute)}},
		}
		delay, ok := RetryDelay(nil, err)
		if !ok || delay != minBackoff {
			t.Errorf("delay = %v, want floor %v", delay, minBackoff)
		}
	})
}

func TestSleepUntilReset(t *testing.T) {
	t.Parallel()

	t.Run("returns after delay", func(t *testing.T) {
		t.Parallel()

		start := time.Now()
		if err := SleepUntilReset(context.Background(), 10*time.Millisecond); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if time.Since(start) < 10*time.Millisecond {
			t.Error("returned before delay elapsed")
		}
	})

	t.Run("honors cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := SleepUntilReset(ctx, time.Hour); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}
