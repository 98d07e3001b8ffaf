package session

import (
	"context"
	"time"

	"github.com/iclass/poto/core/handler"
)

// Stats summarizes a backend's session population. Backends that cannot
// enumerate sessions by construction (the cookie backend) report zero
// sessions and no principals.
type Stats struct {
	ActiveSessions int
	Principals     []string
}

// Store is the pluggable session backend. Every per-record operation takes
// the request carrier: the current principal is read from it and never named
// by the caller, and backends that ride the request/response pair (cookies)
// use it to reach the HTTP exchange.
//
// Implementations must make SetValue atomic with respect to other writers
// for the same principal where the backend's construction allows it; the
// cookie backend is explicitly last-response-wins across requests.
type Store interface {
	// GetSession returns the carrier principal's record, or nil when no
	// session exists. Fails with ErrNoContext when the carrier has no
	// principal.
	GetSession(ctx handler.Context) (*Record, error)

	// SetSession stores the record under the carrier's principal,
	// stamping PrincipalID and LastActivity. Fails with ErrNoContext or
	// ErrSizeLimit.
	SetSession(ctx handler.Context, rec *Record) error

	// DeleteSession removes the carrier principal's record.
	DeleteSession(ctx handler.Context) error

	// GetValue reads one key from the principal's record. Absent keys and
	// absent sessions report found=false.
	GetValue(ctx handler.Context, key string) (value any, found bool, err error)

	// SetValue writes one key into the principal's record, creating the
	// record on first write.
	SetValue(ctx handler.Context, key string, value any) error

	// Stats reports the backend's session population.
	Stats(ctx context.Context) (Stats, error)

	// CleanupOlderThan evicts sessions idle longer than age and returns
	// the eviction count. Backends without enumeration return 0.
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// principalID extracts the session owner from the carrier.
func principalID(ctx handler.Context) (string, error) {
	if ctx == nil {
		return "", ErrNoContext
	}
	p := ctx.Principal()
	if p == nil || p.ID == "" {
		return "", ErrNoContext
	}
	return p.ID, nil
}
