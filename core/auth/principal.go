package auth

import (
	"slices"

	"golang.org/x/crypto/bcrypt"
)

// RoleVisitor tags transient principals created by anonymous login.
const RoleVisitor = "visitor"

// Principal is an authenticated caller: an identifier, an optional credential
// hash, and a set of role tags. Principals are immutable after creation;
// registries return defensive copies.
type Principal struct {
	ID           string
	PasswordHash string
	Roles        []string
}

// HasRole reports whether the principal carries the given role tag.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Roles, role)
}

// IsVisitor reports whether the principal was created by anonymous login.
func (p *Principal) IsVisitor() bool {
	return p.HasRole(RoleVisitor)
}

// clone returns a deep copy so callers cannot mutate stored principals.
func (p *Principal) clone() *Principal {
	cp := *p
	cp.Roles = slices.Clone(p.Roles)
	return &cp
}

// HashPassword derives a bcrypt hash suitable for Principal.PasswordHash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
