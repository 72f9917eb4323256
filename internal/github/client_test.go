package github

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("token is sent as bearer auth", func(t *testing.T) {
		t.Parallel()

		var gotAuth string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		client, err := NewClient("test-token-value")
		if err != nil {
			t.Fatalf("NewClient() error: %v", err)
		}

		resp, err := client.HTTP.Get(ts.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		_ = resp.Body.Close()

		if !strings.Contains(gotAuth, "test-token-value") {
			t.Errorf("Authorization = %q, want token present", gotAuth)
		}
	})

	t.Run("empty token sends no auth header", func(t *testing.T) {
		t.Parallel()

		var gotAuth string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		client, err := NewClient("")
		if err != nil {
			t.Fatalf("NewClient() error: %v", err)
		}

		resp, err := client.HTTP.Get(ts.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		_ = resp.Body.Close()

		if gotAuth != "" {
			t.Errorf("Authorization = %q, want empty", gotAuth)
		}
	})

	t.Run("request logging emits debug lines without the token", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		client, err := NewClient("secret-token", WithRequestLogging(logger))
		if err != nil {
			t.Fatalf("NewClient() error: %v", err)
		}

		resp, err := client.HTTP.Get(ts.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		_ = resp.Body.Close()

		out := buf.String()
		if !strings.Contains(out, "github request") || !strings.Contains(out, "github response") {
			t.Errorf("missing request/response log lines: %s", out)
		}
		if strings.Contains(out, "secret-token") {
			t.Errorf("token leaked into log output: %s", out)
		}
	})

	t.Run("enterprise base URL", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("", WithBaseURL("https://ghe.example.com/api/v3/"))
		if err != nil {
			t.Fatalf("NewClient() error: %v", err)
		}
		if got := client.REST.BaseURL.String(); !strings.Contains(got, "ghe.example.com") {
			t.Errorf("BaseURL = %q, want enterprise host", got)
		}
	})
}

func TestClientWait(t *testing.T) {
	t.Parallel()

	t.Run("no pacing returns immediately", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("")
		if err != nil {
			t.Fatalf("NewClient() error: %v", err)
		}
		start := time.Now()
		if err := client.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error: %v", err)
		}
		if time.Since(start) > 100*time.Millisecond {
			t.Error("unpaced Wait should not block")
		}
	})

	t.Run("pacing spaces out requests", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("", WithPacing(50, 1))
		if err != nil {
			t.Fatalf("NewClient() error: %v", err)
		}

		ctx := context.Background()
		start := time.Now()
		for range 3 {
			if err := client.Wait(ctx); err != nil {
				t.Fatalf("Wait() error: %v", err)
			}
		}
		// 50 req/s with burst 1: third request waits ~40ms total.
		if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
			t.Errorf("elapsed = %v, want pacing delay", elapsed)
		}
	})
}
