package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iclass/poto/core/codec"
	"github.com/iclass/poto/core/cookie"
	"github.com/iclass/poto/core/handler"
)

// DefaultCookieName is the session cookie written by CookieStore.
const DefaultCookieName = "poto_session"

// defaultCookieMaxAge bounds session age when none is configured.
const defaultCookieMaxAge = 24 * time.Hour

// recordCacheKey keys the carrier's per-request record cache, scoped by
// cookie name so differently named stores sharing a request do not collide.
type recordCacheKey struct{ name string }

// CookieStore keeps the session record on the client: the record is encoded
// through the typed codec, sealed (AES-256-GCM plus an outer HMAC), and
// round-tripped through a cookie on the carrier's request/response pair.
// Within one request the current record is cached on the carrier, so reads
// observe earlier writes even though the request cookie never changes.
//
// By construction there is no server-side state: enumeration and stats
// report empty, cleanup is a no-op, and concurrent requests from the same
// client are last-response-wins.
type CookieStore struct {
	sealer *cookie.Sealer
	codec  *codec.Codec
	name   string
	maxAge time.Duration
	log    *slog.Logger
}

// CookieStoreOption configures a CookieStore.
type CookieStoreOption func(*CookieStore)

// WithCookieName overrides the default poto_session cookie name.
func WithCookieName(name string) CookieStoreOption {
	return func(s *CookieStore) {
		if name != "" {
			s.name = name
		}
	}
}

// WithCookieMaxAge sets the maximum session age; records idle longer are
// rejected on read and the cookie's Max-Age attribute follows it.
func WithCookieMaxAge(maxAge time.Duration) CookieStoreOption {
	return func(s *CookieStore) {
		if maxAge > 0 {
			s.maxAge = maxAge
		}
	}
}

// WithCookieCodec overrides the codec used to serialize records.
func WithCookieCodec(c *codec.Codec) CookieStoreOption {
	return func(s *CookieStore) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithCookieLogger sets the logger for rejected-cookie diagnostics.
func WithCookieLogger(log *slog.Logger) CookieStoreOption {
	return func(s *CookieStore) {
		if log != nil {
			s.log = log
		}
	}
}

// NewCookieStore creates a cookie-backed session store sealing records under
// keys derived from secret.
func NewCookieStore(secret string, opts ...CookieStoreOption) (*CookieStore, error) {
	sealer, err := cookie.NewSealer(secret)
	if err != nil {
		return nil, err
	}

	s := &CookieStore{
		sealer: sealer,
		codec:  codec.New(),
		name:   DefaultCookieName,
		maxAge: defaultCookieMaxAge,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetSession implements Store. Cookies that fail signature verification,
// decode, age, or principal checks are treated as absent, never surfaced as
// errors: a bad cookie must not break the request carrying it. A record
// already read or written during this request is served from the carrier
// cache without reopening the cookie.
func (s *CookieStore) GetSession(ctx handler.Context) (*Record, error) {
	pid, err := principalID(ctx)
	if err != nil {
		return nil, err
	}

	if v := ctx.Value(recordCacheKey{s.name}); v != nil {
		rec, _ := v.(*Record)
		return rec, nil
	}

	raw, err := cookie.Get(ctx.Request(), s.name)
	if err != nil {
		return nil, nil
	}

	payload, err := s.sealer.Open(raw)
	if err != nil {
		s.log.DebugContext(ctx, "session cookie rejected", slog.Any("error", err))
		return nil, nil
	}

	rec, err := decodeRecord(s.codec, payload)
	if err != nil {
		s.log.DebugContext(ctx, "session cookie undecodable", slog.Any("error", err))
		return nil, nil
	}

	// Fixation guard: a session minted for another principal is not ours.
	if rec.PrincipalID != pid {
		s.log.DebugContext(ctx, "session cookie principal mismatch",
			slog.String("carrier", pid), slog.String("cookie", rec.PrincipalID))
		return nil, nil
	}
	if rec.IdleFor() > s.maxAge {
		return nil, nil
	}
	ctx.SetValue(recordCacheKey{s.name}, rec)
	return rec, nil
}

// SetSession implements Store.
func (s *CookieStore) SetSession(ctx handler.Context, rec *Record) error {
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

	payload, err := encodeRecord(ctx, s.codec, stored)
	if err != nil {
		return errors.Join(ErrSaveSession, err)
	}
	sealed, err := s.sealer.Seal(payload)
	if err != nil {
		return errors.Join(ErrSaveSession, err)
	}

	if err := cookie.Set(ctx.ResponseWriter(), ctx.Request(), s.name, sealed, int(s.maxAge.Seconds())); err != nil {
		var tooLarge cookie.ErrCookieTooLarge
		if errors.As(err, &tooLarge) {
			return errors.Join(ErrSizeLimit, err)
		}
		return errors.Join(ErrSaveSession, err)
	}
	ctx.SetValue(recordCacheKey{s.name}, stored)
	return nil
}

// DeleteSession implements Store.
func (s *CookieStore) DeleteSession(ctx handler.Context) error {
	if _, err := principalID(ctx); err != nil {
		return err
	}
	cookie.Delete(ctx.ResponseWriter(), ctx.Request(), s.name)
	// Tombstone: later reads in this request must not resurrect the record
	// from the inbound cookie.
	ctx.SetValue(recordCacheKey{s.name}, (*Record)(nil))
	return nil
}

// GetValue implements Store.
func (s *CookieStore) GetValue(ctx handler.Context, key string) (any, bool, error) {
	rec, err := s.GetSession(ctx)
	if err != nil || rec == nil {
		return nil, false, err
	}
	v, ok := rec.Data[key]
	return v, ok, nil
}

// SetValue implements Store. The read-mutate-write cycle starts from the
// carrier's cached record, so sequential writes within one request
// accumulate; concurrent requests from the same client still overwrite each
// other and the last response written wins.
func (s *CookieStore) SetValue(ctx handler.Context, key string, value any) error {
	rec, err := s.GetSession(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		pid, err := principalID(ctx)
		if err != nil {
			return err
		}
		rec = NewRecord(pid)
	}
	rec.Data[key] = value
	return s.SetSession(ctx, rec)
}

// Stats implements Store. The backend cannot enumerate client-held cookies,
// so it reports zero sessions and no principals.
func (s *CookieStore) Stats(_ context.Context) (Stats, error) {
	return Stats{}, nil
}

// CleanupOlderThan implements Store. Expiry rides the cookie Max-Age and the
// read-side age check; there is nothing server-side to evict.
func (s *CookieStore) CleanupOlderThan(_ context.Context, _ time.Duration) (int, error) {
	return 0, nil
}

