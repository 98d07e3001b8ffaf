package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// visitorIDPrefix marks principals created by anonymous login.
const visitorIDPrefix = "visitor_"

// VisitorGrant is the result of a visitor login: the principal identifier,
// a bearer token, and the password the client can use to log in again.
type VisitorGrant struct {
	UserID   string `json:"userId"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Frontend issues bearer credentials and resolves them back to principals.
// Principal storage goes through the Registry capability so applications
// choose their own backing store.
type Frontend struct {
	registry Registry
	tokens   *TokenService
	log      *slog.Logger
}

// FrontendOption configures a Frontend.
type FrontendOption func(*Frontend)

// WithFrontendLogger sets the logger used for authentication diagnostics.
func WithFrontendLogger(log *slog.Logger) FrontendOption {
	return func(f *Frontend) {
		if log != nil {
			f.log = log
		}
	}
}

// NewFrontend creates an authentication frontend over the given registry and
// token service.
func NewFrontend(registry Registry, tokens *TokenService, opts ...FrontendOption) *Frontend {
	f := &Frontend{
		registry: registry,
		tokens:   tokens,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// VisitorLogin registers or re-authenticates a visitor principal.
//
// With empty credentials it mints a fresh identifier and password, persists
// the principal through the registry's atomic insert, and returns the grant.
// The insert loop retries on identifier collision, so concurrent anonymous
// logins each receive a distinct principal registered exactly once.
//
// With credentials it verifies them against the stored visitor and returns a
// fresh token for the same identifier.
func (f *Frontend) VisitorLogin(ctx context.Context, visitorID, visitorPassword string) (*VisitorGrant, error) {
	if visitorID != "" {
		return f.revisit(ctx, visitorID, visitorPassword)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := visitorIDPrefix + uuid.NewString()
		password := uuid.NewString()
		hash, err := HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("hashing visitor password: %w", err)
		}

		p := &Principal{ID: id, PasswordHash: hash, Roles: []string{RoleVisitor}}
		if err := f.registry.AddPrincipal(ctx, p); err != nil {
			if errors.Is(err, ErrPrincipalExists) {
				continue
			}
			return nil, fmt.Errorf("registering visitor: %w", err)
		}

		token, err := f.tokens.Issue(id)
		if err != nil {
			return nil, err
		}

		f.log.InfoContext(ctx, "visitor registered", slog.String("user_id", id))
		return &VisitorGrant{UserID: id, Token: token, Password: password}, nil
	}
}

func (f *Frontend) revisit(ctx context.Context, visitorID, visitorPassword string) (*VisitorGrant, error) {
	p, err := f.registry.FindPrincipal(ctx, visitorID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, fmt.Errorf("%w: user id not found", ErrInvalidCredentials)
		}
		return nil, err
	}
	if !p.IsVisitor() || !VerifyPassword(p.PasswordHash, visitorPassword) {
		return nil, fmt.Errorf("%w: password mismatch", ErrInvalidCredentials)
	}

	token, err := f.tokens.Issue(p.ID)
	if err != nil {
		return nil, err
	}
	return &VisitorGrant{UserID: p.ID, Token: token, Password: visitorPassword}, nil
}

// Login authenticates a stored principal by identifier and password and
// returns a bearer token.
func (f *Frontend) Login(ctx context.Context, userID, password string) (string, error) {
	p, err := f.registry.FindPrincipal(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return "", fmt.Errorf("%w: user id not found", ErrInvalidCredentials)
		}
		return "", err
	}
	if !VerifyPassword(p.PasswordHash, password) {
		return "", fmt.Errorf("%w: password mismatch", ErrInvalidCredentials)
	}
	return f.tokens.Issue(p.ID)
}

// Authenticate resolves the request's Authorization header to a principal.
// A missing header or an invalid token yields (nil, nil): the request
// proceeds anonymously and role checks downstream decide whether that is
// acceptable. Only registry failures surface as errors.
func (f *Frontend) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, nil
	}

	userID, err := f.tokens.Verify(token)
	if err != nil {
		f.log.DebugContext(ctx, "bearer token rejected", slog.Any("error", err))
		return nil, nil
	}

	p, err := f.registry.FindPrincipal(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			f.log.DebugContext(ctx, "token principal missing", slog.String("user_id", userID))
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}
