package dispatcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/iclass/poto/core/auth"
	"github.com/iclass/poto/core/codec"
	"github.com/iclass/poto/core/handler"
)

// Dispatcher routes HTTP requests to methods discovered on registered
// handler instances. It owns the login endpoints, bearer authentication,
// role checks, argument decoding, and response framing. A Dispatcher is
// safe for concurrent use; registration is expected to finish before
// serving starts but is guarded regardless.
type Dispatcher struct {
	frontend   *auth.Frontend
	codec      *codec.Codec
	log        *slog.Logger
	middleware []handler.Middleware[handler.Context]
	onError    handler.ErrorHandler[handler.Context]

	mu       sync.RWMutex
	handlers map[string]*registration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCodec overrides the codec used for arguments and responses.
func WithCodec(c *codec.Codec) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.codec = c
		}
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithMiddleware appends middleware applied around every method invocation,
// outermost first.
func WithMiddleware(mw ...handler.Middleware[handler.Context]) Option {
	return func(d *Dispatcher) {
		d.middleware = append(d.middleware, mw...)
	}
}

// WithErrorHandler sets the hook invoked when a response write fails after
// the body has started, when no error status can be sent anymore. The
// default logs through the dispatcher's logger.
func WithErrorHandler(eh handler.ErrorHandler[handler.Context]) Option {
	return func(d *Dispatcher) {
		if eh != nil {
			d.onError = eh
		}
	}
}

// New creates a Dispatcher backed by the given authentication frontend.
func New(frontend *auth.Frontend, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		frontend: frontend,
		codec:    codec.New(),
		log:      slog.Default(),
		handlers: make(map[string]*registration),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.onError == nil {
		d.onError = func(ctx handler.Context, err error) {
			d.log.ErrorContext(ctx, "response write failed", slog.Any("error", err))
		}
	}
	return d
}

// Register exposes a handler instance under its lowercased type name. The
// instance is shared across requests: any state it keeps must be safe for
// concurrent use.
func (d *Dispatcher) Register(instance any) error {
	return d.RegisterName(handlerName(instance), instance)
}

// RegisterName exposes a handler instance under an explicit route name.
func (d *Dispatcher) RegisterName(name string, instance any) error {
	if name == "" {
		return fmt.Errorf("%w: empty handler name", ErrNotRoutable)
	}
	reg, err := discover(name, instance)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, name)
	}
	d.handlers[name] = reg
	return nil
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")

	if r.Method == http.MethodPost {
		switch path {
		case "login/visitor":
			d.serveVisitorLogin(w, r)
			return
		case "login":
			d.serveLogin(w, r)
			return
		}
	}

	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}

	d.mu.RLock()
	reg := d.handlers[parts[0]]
	d.mu.RUnlock()
	if reg == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown handler: %s.", parts[0]))
		return
	}
	m := reg.lookup(r.Method, parts[1])
	if m == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown method: %s %s/%s.", r.Method, parts[0], parts[1]))
		return
	}

	principal, err := d.frontend.Authenticate(r.Context(), r)
	if err != nil {
		d.log.ErrorContext(r.Context(), "authentication lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	if len(m.roles) > 0 {
		if principal == nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized. User id not found.")
			return
		}
		if !hasAnyRole(principal, m.roles) {
			writeError(w, http.StatusForbidden,
				fmt.Sprintf("Forbidden. Method %q requires one of roles %v.", m.name, m.roles))
			return
		}
	}

	ctx := newRequestContext(r, w, principal)

	args, err := d.readArgs(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, firstUpper(err.Error())+".")
		return
	}
	in, err := buildCall(m, args)
	if err != nil {
		writeError(w, http.StatusBadRequest, firstUpper(err.Error())+".")
		return
	}

	d.dispatch(ctx, m, in)
}

// dispatch runs the middleware chain around the method invocation and
// renders the outcome.
func (d *Dispatcher) dispatch(ctx *requestContext, m *method, in []reflect.Value) {
	h := handler.HandlerFunc[handler.Context](func(hc handler.Context) handler.Response {
		out, err := d.invoke(ctx, m, in)
		return func(w http.ResponseWriter, _ *http.Request) error {
			if err != nil {
				d.log.ErrorContext(ctx, "handler failed",
					slog.String("method", m.name), slog.Any("error", err))
				d.writeErrorValue(ctx, w, http.StatusInternalServerError, err)
				return nil
			}
			return d.respond(ctx, w, out)
		}
	})
	for i := len(d.middleware) - 1; i >= 0; i-- {
		h = d.middleware[i](h)
	}

	resp := h(ctx)
	if resp == nil {
		return
	}
	if err := resp(ctx.ResponseWriter(), ctx.Request()); err != nil {
		// Rendering failed mid-body; headers are gone, so hand the error to
		// the hook instead of attempting a status.
		d.onError(ctx, fmt.Errorf("%s: %w", m.name, err))
	}
}

// invoke calls the method, converting a panic into an error.
func (d *Dispatcher) invoke(ctx *requestContext, m *method, in []reflect.Value) (out any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()

	callIn := in
	if m.wantsContext {
		callIn = append([]reflect.Value{reflect.ValueOf(handler.Context(ctx))}, in...)
	}

	results := m.fn.Call(callIn)
	if m.hasErr {
		if e, _ := results[len(results)-1].Interface().(error); e != nil {
			return nil, e
		}
	}
	if m.hasValue {
		return results[0].Interface(), nil
	}
	return nil, nil
}

// visitorLoginRequest is the plain-JSON body of POST /login/visitor. Both
// fields empty means a fresh anonymous registration.
type visitorLoginRequest struct {
	VisitorID       string `json:"visitorId"`
	VisitorPassword string `json:"visitorPassword"`
}

func (d *Dispatcher) serveVisitorLogin(w http.ResponseWriter, r *http.Request) {
	var req visitorLoginRequest
	if err := decodeLoginBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request. Malformed login body.")
		return
	}

	grant, err := d.frontend.VisitorLogin(r.Context(), req.VisitorID, req.VisitorPassword)
	if err != nil {
		d.writeLoginFailure(w, r, err)
		return
	}
	writeJSON(w, grant)
}

// loginRequest is the plain-JSON body of POST /login.
type loginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

func (d *Dispatcher) serveLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeLoginBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request. Malformed login body.")
		return
	}

	token, err := d.frontend.Login(r.Context(), req.UserID, req.Password)
	if err != nil {
		d.writeLoginFailure(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"token": token})
}

func (d *Dispatcher) writeLoginFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Unauthorized. "+credentialDetail(err)+".")
		return
	}
	d.log.ErrorContext(r.Context(), "login failed", slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "Internal server error.")
}

// decodeLoginBody reads a plain JSON object body; an empty body decodes to
// the zero request.
func decodeLoginBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// credentialDetail extracts the human detail from a wrapped credentials
// error, capitalized for the response body.
func credentialDetail(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	return firstUpper(msg)
}

func firstUpper(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func hasAnyRole(p *auth.Principal, roles []string) bool {
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}
