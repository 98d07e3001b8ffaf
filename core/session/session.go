package session

import (
	"maps"
	"time"
)

// Record is one principal's session state: identity, timestamps, and a
// string-keyed data mapping. Records always satisfy
// created_at <= last_activity <= now.
type Record struct {
	// PrincipalID names the session owner. It is set by the store from the
	// carrier's principal and never trusted from the wire.
	PrincipalID string

	CreatedAt    time.Time
	LastActivity time.Time

	// Data holds application values. Values round-trip through the typed
	// codec on backends that serialize records.
	Data map[string]any
}

// NewRecord creates a fresh record for the given principal with both
// timestamps set to now.
func NewRecord(principalID string) *Record {
	now := time.Now()
	return &Record{
		PrincipalID:  principalID,
		CreatedAt:    now,
		LastActivity: now,
		Data:         make(map[string]any),
	}
}

// Touch advances the last-activity timestamp.
func (r *Record) Touch() {
	r.LastActivity = time.Now()
}

// IdleFor returns how long ago the session was last active.
func (r *Record) IdleFor() time.Duration {
	return time.Since(r.LastActivity)
}

// clone returns a copy whose Data map is independent of the original.
// Values are shared; stores treat them as immutable once set.
func (r *Record) clone() *Record {
	cp := *r
	cp.Data = make(map[string]any, len(r.Data))
	maps.Copy(cp.Data, r.Data)
	return &cp
}
