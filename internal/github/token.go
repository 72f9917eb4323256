package github

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// TokenSource identifies where the API token came from.
type TokenSource string

const (
	// TokenSourceExplicit means the token was passed on the command line.
	TokenSourceExplicit TokenSource = "explicit"
	// TokenSourceEnv means the token came from the GITHUB_TOKEN variable.
	TokenSourceEnv TokenSource = "env:GITHUB_TOKEN"
	// TokenSourceGitHubCLI means the token was read from the gh CLI.
	TokenSourceGitHubCLI TokenSource = "gh"
	// TokenSourceNone means no token was found; requests go unauthenticated.
	TokenSourceNone TokenSource = "none"
)

// ResolveToken resolves a GitHub access token.
//
// Precedence:
//  1. provided (if non-empty)
//  2. GITHUB_TOKEN env var
//  3. GitHub CLI: `gh auth token -h github.com`
//
// A missing token is not an error; the caller decides whether
// unauthenticated access is acceptable. The token is never printed.
func ResolveToken(ctx context.Context, provided string) (token string, source TokenSource, err error) {
	if tok := strings.TrimSpace(provided); tok != "" {
		return tok, TokenSourceExplicit, nil
	}

	if env := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); env != "" {
		return env, TokenSourceEnv, nil
	}

	tok, ok, err := tokenFromGitHubCLI(ctx)
	if err != nil {
		return "", TokenSourceNone, err
	}
	if ok {
		return tok, TokenSourceGitHubCLI, nil
	}
	return "", TokenSourceNone, nil
}

// tokenFromGitHubCLI asks the gh CLI for its stored token.
// Absent or not-logged-in gh is treated as "no token", not an error.
func tokenFromGitHubCLI(ctx context.Context) (token string, ok bool, err error) {
	if _, lookErr := exec.LookPath("gh"); lookErr != nil {
		return "", false, nil
	}

	// Keep this bounded so a broken gh config or credential helper
	// doesn't hang collection startup.
	cmdCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, "gh", "auth", "token", "-h", "github.com")
	out, runErr := cmd.Output()
	if runErr != nil {
		if cmdCtx.Err() != nil {
			return "", false, cmdCtx.Err()
		}
		// gh present but not logged in, or otherwise failing: no token.
		// The raw gh output is not surfaced to avoid leaking context.
		return "", false, nil
	}

	tok := strings.TrimSpace(string(out))
	if tok == "" {
		return "", false, nil
	}
	if strings.ContainsAny(tok, " \t\n\r") {
		return "", false, errors.New("invalid token returned by gh: contains whitespace")
	}

	return tok, true, nil
}
