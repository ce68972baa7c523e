// Package domain contains pure business logic and types.
// No external dependencies allowed - this is the innermost ring of Clean Architecture.
package domain

// Subject is the authenticated principal a token represents. Any user-like
// entity can be issued tokens by implementing these two methods; no
// implementation inheritance is needed.
type Subject interface {
	// Identifier returns the unique subject identifier stored in the
	// token's "sub" claim.
	Identifier() string

	// CustomClaims returns additional claims to merge into the token
	// payload. May return nil. Registered claim names (sub, iss, aud,
	// exp, nbf, iat, jti) are never overridden by custom claims.
	CustomClaims() map[string]any
}
