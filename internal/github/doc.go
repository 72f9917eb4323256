// Package github provides the GitHub API plumbing shared by all collectors.
//
// It wraps the go-github REST client with:
//   - Token resolution (flag, GITHUB_TOKEN, gh CLI) that never logs the token
//   - An oauth2 transport plus optional verbose request logging
//   - A typed GraphQL helper sharing the same transport and auth
//   - Rate-limit handling: outbound pacing and reset-header-aware backoff
//     for 403/429 responses
package github
