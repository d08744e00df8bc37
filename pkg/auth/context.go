package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNoUser means the request carries no authenticated subject.
	ErrNoUser = errors.New("user ID not found in context")
	// ErrNoTenant means the request carries no usable "tid" claim.
	ErrNoTenant = errors.New("tenant ID not found in context")
)

// GetUserIDFromContext returns the token subject, or "" when unauthenticated.
func GetUserIDFromContext(ctx context.Context) string {
	if claims, ok := GetClaims(ctx); ok && claims != nil {
		return claims.Subject
	}
	return ""
}

// GetTenantIDFromContext returns the tenant from the token, or uuid.Nil when
// the claim is absent or malformed.
func GetTenantIDFromContext(ctx context.Context) uuid.UUID {
	tenantID, _ := tenantFromClaims(ctx)
	return tenantID
}

func RequireUserIDFromContext(ctx context.Context) (string, error) {
	if userID := GetUserIDFromContext(ctx); userID != "" {
		return userID, nil
	}
	return "", ErrNoUser
}

// RequireTenantIDFromContext is GetTenantIDFromContext with an error that
// distinguishes a missing claim from a malformed one.
func RequireTenantIDFromContext(ctx context.Context) (uuid.UUID, error) {
	return tenantFromClaims(ctx)
}

func tenantFromClaims(ctx context.Context) (uuid.UUID, error) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil || claims.TenantID == "" {
		return uuid.Nil, ErrNoTenant
	}
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil || tenantID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: malformed tid claim %q", ErrNoTenant, claims.TenantID)
	}
	return tenantID, nil
}
