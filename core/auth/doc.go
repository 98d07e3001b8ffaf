// Package auth provides bearer-token authentication for remote method
// dispatch: principal identity, an atomic principal registry capability,
// HMAC-SHA256 token issuance and verification, and a login frontend that
// registers transient visitor principals.
//
// # Principals
//
// A Principal is an identifier, an optional bcrypt credential hash, and a
// set of role tags. Visitor principals carry identifiers of the form
// visitor_<random> and the role tag "visitor". Principals are immutable
// after creation.
//
// # Tokens
//
// Bearer tokens are JWTs signed with a process-wide secret, carrying the
// principal identifier and an expiry (one hour by default). Verification
// needs no state lookup:
//
//	tokens, err := auth.NewTokenService(cfg.JWTSecret)
//	...
//	token, err := tokens.Issue("user_42")
//	userID, err := tokens.Verify(token)
//
// # Frontend
//
// Frontend binds a TokenService to a Registry, the capability interface
// through which principals are stored and looked up:
//
//	frontend := auth.NewFrontend(auth.NewMemoryRegistry(), tokens)
//
//	// Anonymous login mints and atomically registers a fresh visitor.
//	grant, err := frontend.VisitorLogin(ctx, "", "")
//
//	// Every request resolves its Authorization header to a principal;
//	// absent or invalid tokens resolve to nil without error.
//	principal, err := frontend.Authenticate(ctx, req)
//
// Applications with their own user store implement Registry over it;
// AddPrincipal must admit exactly one winner under concurrent inserts of
// the same identifier.
package auth
