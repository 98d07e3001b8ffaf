package dispatcher

import "errors"

var (
	// ErrUnknownHandler is returned when no handler is registered under the
	// requested name.
	ErrUnknownHandler = errors.New("unknown handler")

	// ErrUnknownMethod is returned when the handler has no routable method
	// matching the requested name and HTTP verb.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrBadArguments is returned when the request arguments cannot be
	// decoded or do not satisfy the method's parameters.
	ErrBadArguments = errors.New("bad arguments")

	// ErrNotRoutable is returned at registration when a handler exposes no
	// routable methods.
	ErrNotRoutable = errors.New("handler has no routable methods")

	// ErrDuplicateHandler is returned when two handlers register under the
	// same name.
	ErrDuplicateHandler = errors.New("handler already registered")
)
