package handler

import (
	"context"
	"net/http"

	"github.com/iclass/poto/core/auth"
)

// Context is the per-request carrier passed to remote methods. It extends the
// standard context with access to the HTTP exchange, the authenticated
// principal, and request-scoped storage. Cancellation follows the request: the
// Done channel closes when the client disconnects or the exchange completes.
type Context interface {
	context.Context
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
	Principal() *auth.Principal
	SetHeader(key, value string)
	SetValue(key, val any)
}
