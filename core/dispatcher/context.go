package dispatcher

import (
	"context"
	"net/http"
	"sync"

	"github.com/iclass/poto/core/auth"
)

// requestContext is the per-request carrier handed to methods. It embeds the
// request's context, so Done() fires when the client disconnects, and owns
// the principal, the response-header buffer, and request-scoped values.
// Nothing here is shared across requests.
type requestContext struct {
	context.Context

	r *http.Request
	w http.ResponseWriter
	p *auth.Principal

	mu     sync.RWMutex
	values map[any]any
}

func newRequestContext(r *http.Request, w http.ResponseWriter, p *auth.Principal) *requestContext {
	return &requestContext{
		Context: r.Context(),
		r:       r,
		w:       w,
		p:       p,
	}
}

func (c *requestContext) Request() *http.Request              { return c.r }
func (c *requestContext) ResponseWriter() http.ResponseWriter { return c.w }
func (c *requestContext) Principal() *auth.Principal          { return c.p }

// SetHeader stages a response header. Mutations after the first written
// byte are lost; headers travel with the status line.
func (c *requestContext) SetHeader(key, value string) {
	c.w.Header().Set(key, value)
}

// SetValue stores a request-scoped value retrievable through Value.
func (c *requestContext) SetValue(key, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = val
}

// Value consults request-scoped values before the embedded context chain.
func (c *requestContext) Value(key any) any {
	c.mu.RLock()
	v, ok := c.values[key]
	c.mu.RUnlock()
	if ok {
		return v
	}
	return c.Context.Value(key)
}
