package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iclass/poto/core/handler"
)

// memoryEntry guards one principal's record. The per-principal mutex makes
// read-modify-write cycles a single critical section without serializing
// unrelated principals.
type memoryEntry struct {
	mu  sync.Mutex
	rec *Record
}

// MemoryStore is a process-wide Store keeping records in a map keyed by
// principal identifier. It supports enumeration, stats, and idle-age
// cleanup.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	log     *slog.Logger
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryLogger sets the logger used by the background cleanup loop.
func WithMemoryLogger(log *slog.Logger) MemoryOption {
	return func(s *MemoryStore) {
		if log != nil {
			s.log = log
		}
	}
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// entry returns the principal's entry, creating it when create is set.
func (s *MemoryStore) entry(principalID string, create bool) *memoryEntry {
	s.mu.RLock()
	e, ok := s.entries[principalID]
	s.mu.RUnlock()
	if ok || !create {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[principalID]; ok {
		return e
	}
	e = &memoryEntry{}
	s.entries[principalID] = e
	return e
}

// GetSession implements Store.
func (s *MemoryStore) GetSession(ctx handler.Context) (*Record, error) {
	pid, err := principalID(ctx)
	if err != nil {
		return nil, err
	}

	e := s.entry(pid, false)
	if e == nil {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec == nil {
		return nil, nil
	}
	return e.rec.clone(), nil
}

// SetSession implements Store.
func (s *MemoryStore) SetSession(ctx handler.Context, rec *Record) error {
	pid, err := principalID(ctx)
	if err != nil {
		return err
	}

	stored := rec.clone()
	stored.PrincipalID = pid
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.Touch()

	e := s.entry(pid, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec = stored
	return nil
}

// DeleteSession implements Store.
func (s *MemoryStore) DeleteSession(ctx handler.Context) error {
	pid, err := principalID(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, pid)
	return nil
}

// GetValue implements Store.
func (s *MemoryStore) GetValue(ctx handler.Context, key string) (any, bool, error) {
	pid, err := principalID(ctx)
	if err != nil {
		return nil, false, err
	}

	e := s.entry(pid, false)
	if e == nil {
		return nil, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec == nil {
		return nil, false, nil
	}
	v, ok := e.rec.Data[key]
	return v, ok, nil
}

// SetValue implements Store. The record is read, mutated, and stored under
// the principal's mutex, so concurrent writers for the same principal never
// lose updates.
func (s *MemoryStore) SetValue(ctx handler.Context, key string, value any) error {
	pid, err := principalID(ctx)
	if err != nil {
		return err
	}

	e := s.entry(pid, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec == nil {
		e.rec = NewRecord(pid)
	}
	e.rec.Data[key] = value
	e.rec.Touch()
	return nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Principals: make([]string, 0, len(s.entries))}
	for pid, e := range s.entries {
		e.mu.Lock()
		live := e.rec != nil
		e.mu.Unlock()
		if live {
			stats.ActiveSessions++
			stats.Principals = append(stats.Principals, pid)
		}
	}
	return stats, nil
}

// CleanupOlderThan implements Store: it evicts records idle longer than age.
func (s *MemoryStore) CleanupOlderThan(_ context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for pid, e := range s.entries {
		e.mu.Lock()
		stale := e.rec == nil || e.rec.LastActivity.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(s.entries, pid)
			evicted++
		}
	}
	return evicted, nil
}

// StartCleanup runs CleanupOlderThan every interval until ctx is cancelled.
func (s *MemoryStore) StartCleanup(ctx context.Context, interval, maxIdleAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				evicted, _ := s.CleanupOlderThan(ctx, maxIdleAge)
				if evicted > 0 {
					s.log.InfoContext(ctx, "evicted idle sessions", slog.Int("count", evicted))
				}
			}
		}
	}()
}
