package poto

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iclass/poto/core/auth"
	"github.com/iclass/poto/core/codec"
	"github.com/iclass/poto/core/config"
	"github.com/iclass/poto/core/dispatcher"
	"github.com/iclass/poto/core/handler"
	"github.com/iclass/poto/core/session"
)

// Session backends selectable through Config.SessionBackend.
const (
	BackendMemory = "memory"
	BackendCookie = "cookie"
	BackendRedis  = "redis"
)

// ErrUnknownSessionBackend is returned by New when Config.SessionBackend
// names no known backend.
var ErrUnknownSessionBackend = errors.New("unknown session backend")

// Config is the top-level framework configuration, loadable from the
// environment via LoadConfig.
type Config struct {
	// Secret seals session cookies and, when JWTSecret is empty, signs
	// bearer tokens.
	Secret string `env:"POTO_SECRET,required"`

	// JWTSecret signs bearer tokens when token and cookie secrets must
	// rotate independently.
	JWTSecret string `env:"POTO_JWT_SECRET"`

	// TokenTTL is the bearer token lifetime.
	TokenTTL time.Duration `env:"POTO_TOKEN_TTL" envDefault:"1h"`

	// SessionBackend selects the session store: memory, cookie, or redis.
	SessionBackend string `env:"POTO_SESSION_BACKEND" envDefault:"memory"`

	// SessionMaxAge is the idle age after which sessions expire.
	SessionMaxAge time.Duration `env:"POTO_SESSION_MAX_AGE" envDefault:"24h"`

	// RedisURL connects the redis backend, e.g. redis://localhost:6379/0.
	RedisURL string `env:"POTO_REDIS_URL"`

	// Codec ceilings. Zero keeps the codec defaults.
	CodecMaxDepth     int `env:"POTO_CODEC_MAX_DEPTH"`
	CodecMaxStringLen int `env:"POTO_CODEC_MAX_STRING_LEN"`
	CodecMaxBlobBytes int `env:"POTO_CODEC_MAX_BLOB_BYTES"`
}

// LoadConfig loads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// App bundles the framework's assembled components. Register handlers on
// it and serve it; it is an http.Handler.
type App struct {
	Codec      *codec.Codec
	Tokens     *auth.TokenService
	Frontend   *auth.Frontend
	Sessions   session.Store
	Dispatcher *dispatcher.Dispatcher
}

type options struct {
	logger     *slog.Logger
	registry   auth.Registry
	middleware []handler.Middleware[handler.Context]
	redis      redis.UniversalClient
}

// Option configures the assembly in New.
type Option func(*options)

// WithLogger sets the logger shared by all components.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithRegistry backs principal storage with a custom registry instead of
// the default in-memory one.
func WithRegistry(r auth.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithMiddleware appends dispatcher middleware, outermost first.
func WithMiddleware(mw ...handler.Middleware[handler.Context]) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithRedisClient supplies an existing Redis client for the redis session
// backend, overriding Config.RedisURL.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		o.redis = client
	}
}

// New assembles the framework from configuration: codec, token service,
// authentication frontend, session store, and dispatcher.
func New(cfg Config, opts ...Option) (*App, error) {
	o := &options{
		logger:   slog.Default(),
		registry: auth.NewMemoryRegistry(),
	}
	for _, opt := range opts {
		opt(o)
	}

	c := codec.New(
		codec.WithMaxDepth(cfg.CodecMaxDepth),
		codec.WithMaxStringLen(cfg.CodecMaxStringLen),
		codec.WithMaxBlobBytes(cfg.CodecMaxBlobBytes),
		codec.WithLogger(o.logger),
	)

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = cfg.Secret
	}
	tokens, err := auth.NewTokenService(jwtSecret, auth.WithTokenTTL(cfg.TokenTTL))
	if err != nil {
		return nil, err
	}

	frontend := auth.NewFrontend(o.registry, tokens, auth.WithFrontendLogger(o.logger))

	store, err := newSessionStore(cfg, c, o)
	if err != nil {
		return nil, err
	}

	d := dispatcher.New(frontend,
		dispatcher.WithCodec(c),
		dispatcher.WithLogger(o.logger),
		dispatcher.WithMiddleware(o.middleware...),
	)

	return &App{
		Codec:      c,
		Tokens:     tokens,
		Frontend:   frontend,
		Sessions:   store,
		Dispatcher: d,
	}, nil
}

func newSessionStore(cfg Config, c *codec.Codec, o *options) (session.Store, error) {
	switch cfg.SessionBackend {
	case BackendMemory, "":
		return session.NewMemoryStore(session.WithMemoryLogger(o.logger)), nil

	case BackendCookie:
		store, err := session.NewCookieStore(cfg.Secret,
			session.WithCookieMaxAge(cfg.SessionMaxAge),
			session.WithCookieCodec(c),
			session.WithCookieLogger(o.logger),
		)
		if err != nil {
			return nil, err
		}
		return store, nil

	case BackendRedis:
		client := o.redis
		if client == nil {
			ropts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("parsing redis url: %w", err)
			}
			client = redis.NewClient(ropts)
		}
		return session.NewRedisStore(client,
			session.WithRedisMaxAge(cfg.SessionMaxAge),
			session.WithRedisCodec(c),
		), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSessionBackend, cfg.SessionBackend)
}

// Register exposes handler instances through the dispatcher.
func (a *App) Register(instances ...any) error {
	for _, instance := range instances {
		if err := a.Dispatcher.Register(instance); err != nil {
			return err
		}
	}
	return nil
}

// ServeHTTP implements http.Handler by delegating to the dispatcher.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Dispatcher.ServeHTTP(w, r)
}
