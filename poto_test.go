package poto_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iclass/poto"
	"github.com/iclass/poto/core/auth"
	"github.com/iclass/poto/core/codec"
	"github.com/iclass/poto/core/handler"
	"github.com/iclass/poto/core/session"
)

const testSecret = "poto-root-test-secret"

func baseConfig() poto.Config {
	return poto.Config{
		Secret:         testSecret,
		TokenTTL:       time.Hour,
		SessionBackend: poto.BackendMemory,
		SessionMaxAge:  24 * time.Hour,
	}
}

type greeter struct{}

func (greeter) PostHello_(name string) string { return "hello " + name }

// notebook keeps one note per principal in the app's session store.
type notebook struct {
	sessions session.Store
}

func (n *notebook) PostWrite_(ctx handler.Context, note string) error {
	return n.sessions.SetValue(ctx, "note", note)
}

func (n *notebook) GetRead_(ctx handler.Context) (string, error) {
	v, ok, err := n.sessions.GetValue(ctx, "note")
	if err != nil || !ok {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

type request struct {
	method  string
	target  string
	body    string
	token   string
	cookies []*http.Cookie
}

func do(t *testing.T, app *poto.App, req request) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if req.body != "" {
		rd = strings.NewReader(req.body)
	}
	r := httptest.NewRequest(req.method, req.target, rd)
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, r)
	return rec
}

func visitorGrant(t *testing.T, app *poto.App) *auth.VisitorGrant {
	t.Helper()

	rec := do(t, app, request{method: http.MethodPost, target: "/login/visitor"})
	require.Equal(t, http.StatusOK, rec.Code)

	var grant auth.VisitorGrant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grant))
	return &grant
}

func TestApp_EndToEnd(t *testing.T) {
	t.Parallel()

	app, err := poto.New(baseConfig())
	require.NoError(t, err)
	require.NoError(t, app.Register(greeter{}, &notebook{sessions: app.Sessions}))

	grant := visitorGrant(t, app)

	rec := do(t, app, request{method: http.MethodPost, target: "/greeter/hello", body: `["world"]`})
	require.Equal(t, http.StatusOK, rec.Code)
	decoded, err := codec.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "hello world", decoded)

	rec = do(t, app, request{
		method: http.MethodPost, target: "/notebook/write",
		body: `["remember me"]`, token: grant.Token,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, app, request{method: http.MethodGet, target: "/notebook/read", token: grant.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	decoded, err = codec.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "remember me", decoded)

	// A different visitor sees an empty notebook.
	other := visitorGrant(t, app)
	rec = do(t, app, request{method: http.MethodGet, target: "/notebook/read", token: other.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	decoded, err = codec.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "", decoded)
}

func TestApp_CookieBackend(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.SessionBackend = poto.BackendCookie

	app, err := poto.New(cfg)
	require.NoError(t, err)
	require.NoError(t, app.Register(&notebook{sessions: app.Sessions}))

	grant := visitorGrant(t, app)

	rec := do(t, app, request{
		method: http.MethodPost, target: "/notebook/write",
		body: `["sealed in a cookie"]`, token: grant.Token,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies, "cookie backend must set a session cookie")

	rec = do(t, app, request{
		method: http.MethodGet, target: "/notebook/read",
		token: grant.Token, cookies: cookies,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decoded, err := codec.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "sealed in a cookie", decoded)
}

func TestApp_RedisBackend(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := baseConfig()
	cfg.SessionBackend = poto.BackendRedis

	app, err := poto.New(cfg, poto.WithRedisClient(client))
	require.NoError(t, err)
	require.NoError(t, app.Register(&notebook{sessions: app.Sessions}))

	grant := visitorGrant(t, app)

	rec := do(t, app, request{
		method: http.MethodPost, target: "/notebook/write",
		body: `["stored in redis"]`, token: grant.Token,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, app, request{method: http.MethodGet, target: "/notebook/read", token: grant.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	decoded, err := codec.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "stored in redis", decoded)
}

func TestNew_UnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.SessionBackend = "papyrus"

	_, err := poto.New(cfg)
	require.ErrorIs(t, err, poto.ErrUnknownSessionBackend)
}

func TestNew_MissingSecret(t *testing.T) {
	t.Parallel()

	_, err := poto.New(poto.Config{SessionBackend: poto.BackendMemory})
	require.ErrorIs(t, err, auth.ErrMissingSecret)
}
