// Package session provides per-principal key-value state behind a pluggable
// Store interface. Operations take the request carrier: the session owner is
// always the carrier's authenticated principal, never named by the caller.
//
// Three backends ship with the package:
//
//   - MemoryStore — a process-wide map with a per-principal mutex, so
//     concurrent writers for one principal never lose updates. Supports
//     enumeration, stats, and idle-age cleanup (on demand or via a
//     background loop).
//   - CookieStore — the record rides the client in a sealed poto_session
//     cookie (typed-codec payload, AES-256-GCM plus an outer HMAC).
//     Tampered, stale, or wrong-principal cookies are silently treated as
//     absent. The current record is cached on the carrier, so reads within
//     one request observe earlier writes. No server-side state: stats are
//     empty and concurrent requests are last-response-wins.
//   - RedisStore — one Redis key per principal with a TTL; writes run as
//     optimistic transactions. For multi-process deployments.
//
// Typical handler usage:
//
//	func (h *Cart) PostAdd_(ctx handler.Context, item string) error {
//		return h.sessions.SetValue(ctx, "cart:"+item, 1)
//	}
//
// Records satisfy created_at <= last_activity <= now; stores stamp both the
// principal identifier and last_activity on every write.
package session
