// Package log provides logging with automatic sanitization of API
// credentials, built on top of the standard slog package.
//
// depwatch talks to the GitHub API with a personal access token, and the
// collectors log request URLs and headers at debug level. The
// SecureHandler guarantees that a token can never reach the log output,
// even in verbose mode:
//   - Attributes whose key names a credential (authorization, token,
//     api_key, ...) are masked by key
//   - String values that look like GitHub tokens (ghp_..., github_pat_...),
//     bearer headers, or JWTs are masked by pattern
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Debug("github request",
//	    "url", u,
//	    "authorization", "Bearer ghp_abc...",  // masked
//	)
package log
