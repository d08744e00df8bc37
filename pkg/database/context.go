package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/keystone-uw/underwriting-engine/pkg/apperrors"
)

type contextKey struct{}

// GetTenantScope retrieves the tenant-scoped connection from context.
func GetTenantScope(ctx context.Context) (*TenantScope, bool) {
	scope, ok := ctx.Value(contextKey{}).(*TenantScope)
	return scope, ok && scope != nil
}

// SetTenantScope stores the tenant-scoped connection in context.
func SetTenantScope(ctx context.Context, scope *TenantScope) context.Context {
	return context.WithValue(ctx, contextKey{}, scope)
}

// RequireTenantScope returns the scope in ctx, which must belong to tenantID.
// Row-level security would hide another tenant's rows anyway; the check turns
// a wiring mistake into an error instead of an empty result.
func RequireTenantScope(ctx context.Context, tenantID uuid.UUID) (*TenantScope, error) {
	scope, ok := GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context: %w", apperrors.ErrTenantRequired)
	}
	if scope.TenantID != tenantID {
		return nil, fmt.Errorf("tenant scope is for %s, not %s: %w", scope.TenantID, tenantID, apperrors.ErrTenantRequired)
	}
	return scope, nil
}

// TenantScopeProvider opens tenant scopes for work that runs outside an HTTP
// request: clearance re-checks and guideline seed import.
type TenantScopeProvider struct {
	db *DB
}

func NewTenantScopeProvider(db *DB) *TenantScopeProvider {
	return &TenantScopeProvider{db: db}
}

// WithTenantScope acquires a tenant connection and returns ctx carrying it.
// Call the returned func to release the connection.
func (p *TenantScopeProvider) WithTenantScope(ctx context.Context, tenantID uuid.UUID) (context.Context, func(), error) {
	scope, err := p.db.WithTenant(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	return SetTenantScope(ctx, scope), scope.Close, nil
}
