package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestGetVersion tests version string resolution.
func TestGetVersion(t *testing.T) {
	t.Run("returns ldflags version when set", func(t *testing.T) {
		orig := version
		defer func() { version = orig }()

		version = "v1.2.3"
		if got := getVersion(); got != "v1.2.3" {
			t.Errorf("getVersion() = %q, want v1.2.3", got)
		}
	})

	t.Run("falls back without ldflags", func(t *testing.T) {
		orig := version
		defer func() { version = orig }()

		version = ""
		if got := getVersion(); got == "" {
			t.Error("getVersion() should never be empty")
		}
	})
}

// TestNewVersionCmd tests the version command output.
func TestNewVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	cmd := NewVersionCmd()
	cmd.SetOut(&buf)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "depwatch version") {
		t.Errorf("output missing version line:\n%s", output)
	}
	if !strings.Contains(output, "commit:") {
		t.Errorf("output missing commit line:\n%s", output)
	}
}
