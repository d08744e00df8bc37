// Package auth provides JWT-based authentication for the underwriting engine.
// Tokens are validated against JWKS endpoints and carry the tenant in the
// "tid" claim.
package auth

import (
	"context"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Audience is the required "aud" value for tokens accepted by the engine.
const Audience = "underwriting-engine"

// Roles checked by the API. Any authenticated underwriter may read, clear and
// evaluate submissions.
const (
	RoleClearanceAdmin = "clearance_admin"
	RoleGuidelineAdmin = "guideline_admin"
)

// Claims are the token claims the engine reads.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tid,omitempty"` // carrier or MGA
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// HasRole reports whether the claims include role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

type claimsKey struct{}

// GetClaims returns the claims stored by RequireAuth.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}
