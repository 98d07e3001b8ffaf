package session_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iclass/poto/core/session"
)

const testSecret = "session-store-test-secret-value"

// sessionCookie extracts the session cookie written to the carrier's
// response recorder. A request that writes several times sets several
// cookies; the client keeps the last one, so that is what we return.
func sessionCookie(t *testing.T, ctx *testContext) *http.Cookie {
	t.Helper()
	rec, ok := ctx.w.(*httptest.ResponseRecorder)
	require.True(t, ok)
	var last *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			last = c
		}
	}
	require.NotNil(t, last, "no session cookie written")
	return last
}

// carryCookie builds a follow-up request carrier presenting the cookie.
func carryCookie(principalID string, c *http.Cookie) *testContext {
	ctx := newTestContext(principalID)
	ctx.r.AddCookie(c)
	return ctx
}

func newCookieStore(t *testing.T, opts ...session.CookieStoreOption) *session.CookieStore {
	t.Helper()
	store, err := session.NewCookieStore(testSecret, opts...)
	require.NoError(t, err)
	return store
}

func TestCookieStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store := newCookieStore(t)
	first := newTestContext("visitor_a")

	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetValue(first, "joined", when))

	c := sessionCookie(t, first)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Len(t, strings.Split(c.Value, ":"), 4)

	// A later request from the same principal carries the cookie back.
	second := carryCookie("visitor_a", c)
	v, found, err := store.GetValue(second, "joined")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, when, v, "rich values survive the cookie round trip")

	rec, err := store.GetSession(second)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "visitor_a", rec.PrincipalID)
	assert.False(t, rec.CreatedAt.After(rec.LastActivity))
}

func TestCookieStore_ReadAfterWriteSameRequest(t *testing.T) {
	t.Parallel()

	store := newCookieStore(t)
	ctx := newTestContext("visitor_a")

	// The request cookie never changes mid-request, so the read must be
	// served from the carrier's cached record.
	require.NoError(t, store.SetValue(ctx, "draft", "v1"))

	v, found, err := store.GetValue(ctx, "draft")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v1", v)

	rec, err := store.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "visitor_a", rec.PrincipalID)
}

func TestCookieStore_SequentialWritesSameRequest(t *testing.T) {
	t.Parallel()

	store := newCookieStore(t)
	first := newTestContext("visitor_a")

	require.NoError(t, store.SetValue(first, "a", 1))
	require.NoError(t, store.SetValue(first, "b", 2))

	// The second write started from the first write's record, not from the
	// stale request cookie.
	_, found, err := store.GetValue(first, "a")
	require.NoError(t, err)
	assert.True(t, found)

	// Both keys survive into the cookie the client keeps.
	next := carryCookie("visitor_a", sessionCookie(t, first))
	for _, key := range []string{"a", "b"} {
		_, found, err := store.GetValue(next, key)
		require.NoError(t, err)
		assert.True(t, found, "key %q lost across the round trip", key)
	}
}

func TestCookieStore_DeleteHidesRecordSameRequest(t *testing.T) {
	t.Parallel()

	store := newCookieStore(t)
	first := newTestContext("visitor_a")
	require.NoError(t, store.SetValue(first, "k", "v"))

	// A follow-up request deletes and then reads: the inbound cookie still
	// carries the record, but the deletion must win.
	second := carryCookie("visitor_a", sessionCookie(t, first))
	require.NoError(t, store.DeleteSession(second))

	rec, err := store.GetSession(second)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCookieStore_NoCookieMeansNoSession(t *testing.T) {
	t.Parallel()

	store := newCookieStore(t)
	rec, err := store.GetSession(newTestContext("visitor_a"))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCookieStore_RejectsTampering(t *testing.T) {
	t.Parallel()

	store := newCookieStore(t)
	first := newTestContext("visitor_a")
	require.NoError(t, store.SetValue(first, "k", "v"))
	c := sessionCookie(t, first)

	// Flip one byte in each segment; every altered cookie reads as absent,
	// never as an error.
	parts := strings.Split(c.Value, ":")
	for i := range parts {
		segments := strings.Split(c.Value, ":")
		raw, err := base64.StdEncoding.DecodeString(segments[i])
		require.NoError(t, err)
		raw[len(raw)/2] ^= 0x01
		segments[i] = base64.StdEncoding.EncodeToString(raw)

		tampered := &http.Cookie{Name: c.Name, Value: strings.Join(segments, ":")}
		rec, err := store.GetSession(carryCookie("visitor_a", tampered))
		require.NoError(t, err, "segment %d", i)
		assert.Nil(t, rec, "segment %d", i)
	}
}

func TestCookieStore_RejectsForeignPrincipal(t *testing.T) {
	t.Parallel()

	store := newCookieStore(t)
	first := newTestContext("visitor_a")
	require.NoError(t, store.SetValue(first, "k", "v"))
	c := sessionCookie(t, first)

	// Presenting A's cookie as principal B must not leak A's session.
	rec, err := store.GetSession(carryCookie("visitor_b", c))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCookieStore_RejectsStaleSession(t *testing.T) {
	t.Parallel()

	store := newCookieStore(t, session.WithCookieMaxAge(time.Nanosecond))
	first := newTestContext("visitor_a")
	require.NoError(t, store.SetValue(first, "k", "v"))
	c := sessionCookie(t, first)

	time.Sleep(5 * time.Millisecond)

	rec, err := store.GetSession(carryCookie("visitor_a", c))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCookieStore_Delete(t *testing.T) {
	t.Parallel()

	store := newCookieStore(t)
	ctx := newTestContext("visitor_a")
	require.NoError(t, store.DeleteSession(ctx))

	c := sessionCookie(t, ctx)
	assert.Empty(t, c.Value)
	assert.Negative(t, c.MaxAge) // Max-Age=0 on the wire parses back as -1
}

func TestCookieStore_StatsAreEmpty(t *testing.T) {
	t.Parallel()

	store := newCookieStore(t)
	first := newTestContext("visitor_a")
	require.NoError(t, store.SetValue(first, "k", "v"))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.ActiveSessions)
	assert.Empty(t, stats.Principals)

	evicted, err := store.CleanupOlderThan(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, evicted)
}

func TestCookieStore_RequiresPrincipal(t *testing.T) {
	t.Parallel()

	store := newCookieStore(t)
	anon := newTestContext("")

	_, err := store.GetSession(anon)
	assert.ErrorIs(t, err, session.ErrNoContext)
	assert.ErrorIs(t, store.SetValue(anon, "k", "v"), session.ErrNoContext)
}

func TestCookieStore_LastResponseWins(t *testing.T) {
	t.Parallel()

	store := newCookieStore(t)
	first := newTestContext("visitor_a")
	require.NoError(t, store.SetValue(first, "seed", true))
	seeded := sessionCookie(t, first)

	// Two concurrent requests both start from the seeded cookie; each
	// response carries only its own addition.
	reqA := carryCookie("visitor_a", seeded)
	reqB := carryCookie("visitor_a", seeded)
	require.NoError(t, store.SetValue(reqA, "a", 1))
	require.NoError(t, store.SetValue(reqB, "b", 2))

	// The client keeps whichever response landed last; here we replay B's.
	final := carryCookie("visitor_a", sessionCookie(t, reqB))
	_, found, err := store.GetValue(final, "a")
	require.NoError(t, err)
	assert.False(t, found, "A's addition was overwritten")
	_, found, err = store.GetValue(final, "b")
	require.NoError(t, err)
	assert.True(t, found)
}
