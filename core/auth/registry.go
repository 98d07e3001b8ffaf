package auth

import (
	"context"
	"fmt"
	"sync"
)

// Registry is the capability interface through which the frontend looks up
// and persists principals. Implementations back it with whatever store the
// application uses; AddPrincipal must be atomic so that concurrent inserts
// of the same identifier admit exactly one winner.
type Registry interface {
	// FindPrincipal returns the principal stored under id, or
	// ErrPrincipalNotFound.
	FindPrincipal(ctx context.Context, id string) (*Principal, error)

	// AddPrincipal stores a new principal. It fails with ErrPrincipalExists
	// if the identifier is already taken, atomically under concurrency.
	AddPrincipal(ctx context.Context, p *Principal) error
}

// MemoryRegistry is an in-process Registry guarded by a mutex. Suitable for
// tests and single-process deployments.
type MemoryRegistry struct {
	mu         sync.RWMutex
	principals map[string]*Principal
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{principals: make(map[string]*Principal)}
}

// FindPrincipal implements Registry.
func (r *MemoryRegistry) FindPrincipal(_ context.Context, id string) (*Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.principals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPrincipalNotFound, id)
	}
	return p.clone(), nil
}

// AddPrincipal implements Registry.
func (r *MemoryRegistry) AddPrincipal(_ context.Context, p *Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.principals[p.ID]; ok {
		return fmt.Errorf("%w: %q", ErrPrincipalExists, p.ID)
	}
	r.principals[p.ID] = p.clone()
	return nil
}

// Len returns the number of stored principals.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.principals)
}
