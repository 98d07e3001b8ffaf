// Package dispatcher exposes plain Go structs as remote HTTP endpoints.
//
// A handler is any value whose exported methods end with an underscore.
// The trailing underscore is the opt-in marker: helpers without it stay
// private to the process. Method names map to routes mechanically, with an
// optional Get/Post/Put/Delete/Patch prefix selecting the HTTP verb (POST
// when absent) and the remainder, lowercased, naming the route:
//
//	type Counter struct{ n atomic.Int64 }
//
//	// POST /counter/increment
//	func (c *Counter) PostIncrement_(delta int64) int64 {
//		return c.n.Add(delta)
//	}
//
//	// GET /counter/value
//	func (c *Counter) GetValue_() int64 { return c.n.Load() }
//
//	d := dispatcher.New(frontend)
//	d.Register(&Counter{})
//	http.ListenAndServe(":8080", d)
//
// # Arguments and responses
//
// Arguments arrive as a JSON array: the request body for POST, PUT, and
// PATCH, or the "args" query parameter for GET and DELETE. Both sides go
// through the type-preserving codec, so dates, maps, sets, binary buffers,
// and shared references survive the trip. Calls with fewer arguments than
// the method declares are rejected with 400; extra arguments are ignored.
//
// The return value picks the response framing. An io.Reader streams as
// application/octet-stream, or as whatever content type the handler staged
// through the carrier. A channel streams as server-sent events, one
// encoded frame per element, terminated by {"__done": true} on close or an
// {"__error": ...} frame when the channel yields an error. Everything else
// is encoded as a single JSON body.
//
// # The request carrier
//
// A method may declare handler.Context as its first parameter to reach the
// request, the authenticated principal, response headers, and
// request-scoped values. The carrier's Done channel fires on client
// disconnect, which is how streaming producers learn to stop:
//
//	func (t *Ticker) PostTick_(ctx handler.Context, count int) <-chan map[string]any {
//		ch := make(chan map[string]any)
//		go func() {
//			defer close(ch)
//			for i := range count {
//				select {
//				case ch <- map[string]any{"i": i}:
//				case <-ctx.Done():
//					return
//				}
//			}
//		}()
//		return ch
//	}
//
// # Authentication and authorization
//
// The dispatcher serves POST /login/visitor and POST /login through the
// auth frontend and resolves Authorization bearer tokens to principals on
// every call. Handlers implementing RoleRestricted protect individual
// methods: anonymous callers get 401, authenticated callers lacking every
// required role get 403.
package dispatcher
