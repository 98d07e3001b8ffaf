// Package middleware provides cross-cutting middleware for dispatcher
// handlers: structured request logging and request ID propagation.
//
// Middleware wraps the per-method handler chain and composes with the
// dispatcher through its WithMiddleware option:
//
//	d := dispatcher.New(frontend,
//		dispatcher.WithMiddleware(
//			middleware.RequestID[handler.Context](),
//			middleware.Logging[handler.Context](),
//		),
//	)
//
// Order matters: RequestID should run before Logging so the completion log
// line carries the generated ID.
package middleware
