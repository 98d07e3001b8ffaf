package handler

import "net/http"

// Response performs the deferred write phase of a request: headers, status,
// and body. The dispatcher invokes it after the middleware chain has
// finished composing, so middleware can wrap the write as well as the call.
// A write error means the body has already started and no status can be
// sent; such errors go to the dispatcher's ErrorHandler.
type Response func(w http.ResponseWriter, r *http.Request) error

// HandlerFunc maps a request carrier to a Response. Returning nil means the
// handler completed the exchange itself.
type HandlerFunc[C Context] func(ctx C) Response

// ErrorHandler consumes errors surfaced after the response write began.
type ErrorHandler[C Context] func(ctx C, err error)

// Middleware wraps a HandlerFunc, observing the carrier on the way in and
// the Response on the way out.
type Middleware[C Context] func(next HandlerFunc[C]) HandlerFunc[C]
