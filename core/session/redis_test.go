package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iclass/poto/core/session"
)

func newRedisStore(t *testing.T, opts ...session.RedisStoreOption) (*session.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return session.NewRedisStore(client, opts...), mr
}

func TestRedisStore_ValueLifecycle(t *testing.T) {
	t.Parallel()

	store, _ := newRedisStore(t)
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

	require.NoError(t, store.DeleteSession(ctx))
	after, err := store.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, after)
}

func TestRedisStore_RichValues(t *testing.T) {
	t.Parallel()

	store, _ := newRedisStore(t)
	ctx := newTestContext("visitor_a")

	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetValue(ctx, "joined", when))

	v, found, err := store.GetValue(ctx, "joined")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, when, v)
}

func TestRedisStore_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	store, _ := newRedisStore(t)
	ctx := newTestContext("visitor_busy")

	const writers = 20

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.SetValue(ctx, fmt.Sprintf("key-%02d", i), i))
		}()
	}
	wg.Wait()

	rec, err := store.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Len(t, rec.Data, writers, "optimistic transactions must not lose writes")
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t, session.WithRedisMaxAge(time.Minute))
	ctx := newTestContext("visitor_a")
	require.NoError(t, store.SetValue(ctx, "k", "v"))

	mr.FastForward(2 * time.Minute)

	rec, err := store.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRedisStore_Stats(t *testing.T) {
	t.Parallel()

	store, _ := newRedisStore(t)
	require.NoError(t, store.SetValue(newTestContext("visitor_a"), "k", 1))
	require.NoError(t, store.SetValue(newTestContext("visitor_b"), "k", 2))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActiveSessions)
	assert.ElementsMatch(t, []string{"visitor_a", "visitor_b"}, stats.Principals)
}

func TestRedisStore_RequiresPrincipal(t *testing.T) {
	t.Parallel()

	store, _ := newRedisStore(t)
	anon := newTestContext("")

	_, err := store.GetSession(anon)
	assert.ErrorIs(t, err, session.ErrNoContext)
	assert.ErrorIs(t, store.SetValue(anon, "k", "v"), session.ErrNoContext)
}
