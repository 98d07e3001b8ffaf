package session_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iclass/poto/core/auth"
	"github.com/iclass/poto/core/session"
)

// testContext is a minimal request carrier for store tests.
type testContext struct {
	context.Context
	r *http.Request
	w http.ResponseWriter
	p *auth.Principal

	mu     sync.Mutex
	values map[any]any
}

func newTestContext(principalID string) *testContext {
	r := httptest.NewRequest("POST", "/", nil)
	ctx := &testContext{
		Context: r.Context(),
		r:       r,
		w:       httptest.NewRecorder(),
	}
	if principalID != "" {
		ctx.p = &auth.Principal{ID: principalID, Roles: []string{auth.RoleVisitor}}
	}
	return ctx
}

func (c *testContext) Request() *http.Request              { return c.r }
func (c *testContext) ResponseWriter() http.ResponseWriter { return c.w }
func (c *testContext) Principal() *auth.Principal          { return c.p }
func (c *testContext) SetHeader(key, value string)         { c.w.Header().Set(key, value) }

func (c *testContext) SetValue(key, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = val
}

func (c *testContext) Value(key any) any {
	c.mu.Lock()
	v, ok := c.values[key]
	c.mu.Unlock()
	if ok {
		return v
	}
	return c.Context.Value(key)
}

func TestMemoryStore_RequiresPrincipal(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	anon := newTestContext("")

	_, err := store.GetSession(anon)
	assert.ErrorIs(t, err, session.ErrNoContext)
	assert.ErrorIs(t, store.SetValue(anon, "k", "v"), session.ErrNoContext)
	assert.ErrorIs(t, store.DeleteSession(anon), session.ErrNoContext)
}

func TestMemoryStore_ValueLifecycle(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	ctx := newTestContext("visitor_a")

	_, found, err := store.GetValue(ctx, "theme")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SetValue(ctx, "theme", "dark"))

	v, found, err := store.GetValue(ctx, "theme")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "dark", v)

	rec, err := store.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "visitor_a", rec.PrincipalID)
	assert.False(t, rec.CreatedAt.After(rec.LastActivity))
	assert.False(t, rec.LastActivity.After(time.Now()))

	require.NoError(t, store.DeleteSession(ctx))
	after, err := store.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, after)
}

func TestMemoryStore_PrincipalsIsolated(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	a := newTestContext("visitor_a")
	b := newTestContext("visitor_b")

	require.NoError(t, store.SetValue(a, "who", "a"))
	require.NoError(t, store.SetValue(b, "who", "b"))

	v, _, err := store.GetValue(a, "who")
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	v, _, err = store.GetValue(b, "who")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestMemoryStore_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	ctx := newTestContext("visitor_busy")

	const writers = 100

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.SetValue(ctx, fmt.Sprintf("key-%03d", i), i))
		}()
	}
	wg.Wait()

	// Every write landed: the read-mutate-store cycle is a single critical
	// section per principal.
	rec, err := store.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Len(t, rec.Data, writers)

	assert.False(t, rec.CreatedAt.After(rec.LastActivity))
	assert.False(t, rec.LastActivity.After(time.Now()))
}

func TestMemoryStore_StatsAndCleanup(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	require.NoError(t, store.SetValue(newTestContext("visitor_a"), "k", 1))
	require.NoError(t, store.SetValue(newTestContext("visitor_b"), "k", 2))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActiveSessions)
	assert.ElementsMatch(t, []string{"visitor_a", "visitor_b"}, stats.Principals)

	// Nothing is idle for an hour yet.
	evicted, err := store.CleanupOlderThan(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, evicted)

	// A zero idle allowance evicts everything.
	evicted, err = store.CleanupOlderThan(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, evicted)

	stats, err = store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.ActiveSessions)
}

func TestMemoryStore_SetSessionStampsOwner(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	ctx := newTestContext("visitor_a")

	// The stored owner comes from the carrier, not from the record.
	rec := session.NewRecord("someone_else")
	rec.Data["k"] = "v"
	require.NoError(t, store.SetSession(ctx, rec))

	got, err := store.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "visitor_a", got.PrincipalID)
	assert.Equal(t, "v", got.Data["k"])
}
