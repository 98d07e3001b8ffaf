// Package handler defines the request-processing contracts shared by the
// dispatcher, session stores, and middleware: a per-request Context carrier
// and type-safe handler, response, and middleware function types.
//
// # Context Carrier
//
// Context extends Go's standard context.Context with the HTTP exchange and
// the authenticated principal:
//
//	type Context interface {
//		context.Context                      // cancellation follows the request
//		Request() *http.Request              // access to the HTTP request
//		ResponseWriter() http.ResponseWriter // access to the response writer
//		Principal() *auth.Principal          // authenticated caller, nil when anonymous
//		SetHeader(key, value string)         // stage a response header
//		SetValue(key, val any)               // store request-scoped values
//	}
//
// Remote methods that declare a Context parameter receive the live carrier
// for the request being served. Because Context embeds context.Context, the
// carrier can be passed directly to any context-aware API, and ctx.Done()
// fires when the client disconnects:
//
//	func (h *Reports) PostGenerate_(ctx handler.Context, id string) (*Report, error) {
//		rows, err := h.db.QueryContext(ctx, reportQuery, id)
//		if err != nil {
//			return nil, err
//		}
//		...
//	}
//
// Session stores receive the same carrier, so a session backend can read
// cookies from the request and stage Set-Cookie headers on the response
// without knowing how the request was routed.
//
// # Responses and Middleware
//
// A handler returns a Response, a function that performs the actual write.
// Deferring the write keeps handlers testable and lets middleware wrap both
// phases:
//
//	func logging[C handler.Context](log *slog.Logger) handler.Middleware[C] {
//		return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
//			return func(ctx C) handler.Response {
//				start := time.Now()
//				resp := next(ctx)
//				return func(w http.ResponseWriter, r *http.Request) error {
//					err := resp(w, r)
//					log.Info("request", "path", r.URL.Path, "took", time.Since(start))
//					return err
//				}
//			}
//		}
//	}
//
// Middleware composes in the usual order: the first middleware in the chain
// observes the request first and the response last.
package handler
