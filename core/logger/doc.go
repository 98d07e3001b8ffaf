// Package logger provides typed slog attribute helpers shared across the
// framework's packages.
//
// Every helper returns a slog.Attr with a stable key, so log output stays
// consistent between the dispatcher, the session stores, and application
// handlers. Helpers taking values that may legitimately be absent (a nil
// error, an anonymous principal) return the empty Attr, which slog drops,
// so call sites never need nil checks:
//
//	log.Info("request completed",
//		logger.Method(r.Method),
//		logger.Path(r.URL.Path),
//		logger.StatusCode(status),
//		logger.Error(err), // no-op when err is nil
//	)
//
// The helpers are intentionally thin. Anything not covered here should use
// slog's own constructors directly rather than growing this package.
package logger
