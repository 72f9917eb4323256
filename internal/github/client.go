package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v81/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Client bundles the REST client with the HTTP client it rides on.
// The HTTP client is exposed so the GraphQL helper and the dependents
// page scraper reuse the same transport configuration (auth, logging).
type Client struct {
	// REST is the go-github client.
	REST *github.Client

	// HTTP is the underlying HTTP client with auth and logging applied.
	HTTP *http.Client

	// limiter paces outbound requests. Nil means no pacing.
	limiter *rate.Limiter
}

type options struct {
	baseURL string
	timeout time.Duration
	pace    rate.Limit
	burst   int
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL points the client at a GitHub Enterprise Server REST
// endpoint (e.g. https://ghe.example.com/api/v3/). The default is
// api.github.com.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithPacing limits outbound requests to the given rate.
// Zero disables pacing.
func WithPacing(requestsPerSecond float64, burst int) Option {
	return func(o *options) {
		o.pace = rate.Limit(requestsPerSecond)
		o.burst = burst
	}
}

// WithRequestLogging logs one debug line per request and response via
// the given logger. URLs are logged; credentials never are (the
// Authorization header lives in the transport, not in attributes).
func WithRequestLogging(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// loggingRoundTripper wraps an underlying transport and emits one debug
// line per request and response, including latency.
type loggingRoundTripper struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.logger.Debug("github request", "method", req.Method, "url", req.URL.String())
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.logger.Debug("github response", "url", req.URL.String(), "error", err, "duration", dur)
		return resp, err
	}
	t.logger.Debug("github response", "url", req.URL.String(), "status", resp.StatusCode, "duration", dur)
	return resp, nil
}

// NewClient creates a GitHub API client.
// An empty token yields an unauthenticated client with much lower rate
// limits; collection still works, just slowly.
func NewClient(token string, opts ...Option) (*Client, error) {
	o := &options{
		timeout: 30 * time.Second,
	}
	for _, apply := range opts {
		apply(o)
	}

	transport := http.DefaultTransport
	if o.logger != nil {
		transport = &loggingRoundTripper{base: transport, logger: o.logger}
	}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}

	hc := &http.Client{
		Transport: transport,
		Timeout:   o.timeout,
	}

	rest := github.NewClient(hc)
	if o.baseURL != "" && !strings.HasPrefix(o.baseURL, "https://api.github.com") {
		var err error
		rest, err = rest.WithEnterpriseURLs(o.baseURL, o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure enterprise base URL: %w", err)
		}
	}

	c := &Client{
		REST: rest,
		HTTP: hc,
	}
	if o.pace > 0 {
		burst := o.burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(o.pace, burst)
	}

	return c, nil
}

// Wait blocks until the pacer admits the next request, or the context is
// cancelled. A client without pacing returns immediately.
func (c *Client) Wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
