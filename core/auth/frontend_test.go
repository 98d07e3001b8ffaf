package auth_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iclass/poto/core/auth"
)

// countingRegistry wraps a registry and counts atomic insert attempts.
type countingRegistry struct {
	auth.Registry
	inserts atomic.Int64
}

func (r *countingRegistry) AddPrincipal(ctx context.Context, p *auth.Principal) error {
	r.inserts.Add(1)
	return r.Registry.AddPrincipal(ctx, p)
}

func newFrontend(t *testing.T, registry auth.Registry) *auth.Frontend {
	t.Helper()
	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)
	return auth.NewFrontend(registry, tokens)
}

func TestFrontend_VisitorLogin(t *testing.T) {
	t.Parallel()

	registry := auth.NewMemoryRegistry()
	frontend := newFrontend(t, registry)

	grant, err := frontend.VisitorLogin(context.Background(), "", "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(grant.UserID, "visitor_"))
	assert.NotEmpty(t, grant.Token)
	assert.NotEmpty(t, grant.Password)

	p, err := registry.FindPrincipal(context.Background(), grant.UserID)
	require.NoError(t, err)
	assert.True(t, p.IsVisitor())
	assert.True(t, auth.VerifyPassword(p.PasswordHash, grant.Password))
}

func TestFrontend_VisitorRelogin(t *testing.T) {
	t.Parallel()

	frontend := newFrontend(t, auth.NewMemoryRegistry())

	grant, err := frontend.VisitorLogin(context.Background(), "", "")
	require.NoError(t, err)

	again, err := frontend.VisitorLogin(context.Background(), grant.UserID, grant.Password)
	require.NoError(t, err)
	assert.Equal(t, grant.UserID, again.UserID)
	assert.NotEmpty(t, again.Token)

	_, err = frontend.VisitorLogin(context.Background(), grant.UserID, "wrong password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = frontend.VisitorLogin(context.Background(), "visitor_unknown", "whatever")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestFrontend_ConcurrentVisitorLogins(t *testing.T) {
	t.Parallel()

	registry := &countingRegistry{Registry: auth.NewMemoryRegistry()}
	frontend := newFrontend(t, registry)

	const clients = 10

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		grants []*auth.VisitorGrant
	)
	errs := make([]error, clients)

	for i := 0; i < clients; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			grant, err := frontend.VisitorLogin(context.Background(), "", "")
			if err != nil {
				errs[i] = err
				return
			}
			mu.Lock()
			grants = append(grants, grant)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, grants, clients)

	// Every identifier is distinct and each token verifies to its own
	// principal.
	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	seen := make(map[string]bool, clients)
	for _, grant := range grants {
		assert.False(t, seen[grant.UserID], "duplicate principal %s", grant.UserID)
		seen[grant.UserID] = true

		userID, err := tokens.Verify(grant.Token)
		require.NoError(t, err)
		assert.Equal(t, grant.UserID, userID)
	}

	// Fresh identifiers never collide, so the atomic insert fires exactly
	// once per login.
	assert.Equal(t, int64(clients), registry.inserts.Load())
}

func TestFrontend_Login(t *testing.T) {
	t.Parallel()

	registry := auth.NewMemoryRegistry()
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	require.NoError(t, registry.AddPrincipal(context.Background(), &auth.Principal{
		ID:           "user_1",
		PasswordHash: hash,
		Roles:        []string{"admin"},
	}))

	frontend := newFrontend(t, registry)

	token, err := frontend.Login(context.Background(), "user_1", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = frontend.Login(context.Background(), "user_1", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = frontend.Login(context.Background(), "ghost", "s3cret")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestFrontend_Authenticate(t *testing.T) {
	t.Parallel()

	registry := auth.NewMemoryRegistry()
	frontend := newFrontend(t, registry)

	grant, err := frontend.VisitorLogin(context.Background(), "", "")
	require.NoError(t, err)

	t.Run("valid bearer", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest("POST", "/counter/increment", nil)
		req.Header.Set("Authorization", "Bearer "+grant.Token)

		p, err := frontend.Authenticate(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, grant.UserID, p.ID)
		assert.True(t, p.IsVisitor())
	})

	t.Run("missing header", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest("POST", "/counter/increment", nil)

		p, err := frontend.Authenticate(context.Background(), req)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("malformed header", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest("POST", "/counter/increment", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

		p, err := frontend.Authenticate(context.Background(), req)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("garbage token", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest("POST", "/counter/increment", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")

		p, err := frontend.Authenticate(context.Background(), req)
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}

func TestMemoryRegistry_ReturnsCopies(t *testing.T) {
	t.Parallel()

	registry := auth.NewMemoryRegistry()
	require.NoError(t, registry.AddPrincipal(context.Background(), &auth.Principal{
		ID:    "user_1",
		Roles: []string{"admin"},
	}))

	p, err := registry.FindPrincipal(context.Background(), "user_1")
	require.NoError(t, err)
	p.Roles[0] = "mutated"

	fresh, err := registry.FindPrincipal(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, fresh.Roles)

	err = registry.AddPrincipal(context.Background(), &auth.Principal{ID: "user_1"})
	assert.ErrorIs(t, err, auth.ErrPrincipalExists)
	assert.Equal(t, 1, registry.Len())
}
