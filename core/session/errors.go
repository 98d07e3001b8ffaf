package session

import "errors"

var (
	// ErrNoContext is returned when a session operation runs without a
	// request carrier or without an authenticated principal on it.
	ErrNoContext = errors.New("no request context with principal")

	// ErrSizeLimit is returned when a session record exceeds the backend's
	// storage budget (the 4KB cookie ceiling on the cookie backend).
	ErrSizeLimit = errors.New("session record exceeds size limit")

	// ErrSaveSession is returned when persisting a session record fails.
	ErrSaveSession = errors.New("failed to save session")

	// ErrDeleteSession is returned when removing a session record fails.
	ErrDeleteSession = errors.New("failed to delete session")
)
