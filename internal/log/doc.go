// Package log builds the slog loggers used by hostcrawl.
//
// Every logger returned here wraps its handler in a SecureHandler, which
// masks credentials before they are written:
//   - headers and config values such as Cookie, Authorization or passwords
//   - bearer tokens, JWTs and similar values matched by pattern
//   - passwords and token-like query parameters inside logged URLs,
//     including URLs quoted in error messages
//
// Logs go to stderr at Warn level unless --verbose is given:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
