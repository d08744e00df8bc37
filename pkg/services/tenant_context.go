package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/keystone-uw/underwriting-engine/pkg/database"
)

// TenantContextFunc returns ctx carrying a connection scoped to tenantID.
// Work that runs outside an HTTP request (recheck workers, seed import) uses
// it in place of the per-request tenant middleware. The returned release func
// must be called exactly once on success.
type TenantContextFunc func(ctx context.Context, tenantID uuid.UUID) (context.Context, func(), error)

// NewTenantContextFunc binds a TenantContextFunc to db.
func NewTenantContextFunc(db *database.DB) TenantContextFunc {
	provider := database.NewTenantScopeProvider(db)

	return func(ctx context.Context, tenantID uuid.UUID) (context.Context, func(), error) {
		scoped, release, err := provider.WithTenantScope(ctx, tenantID)
		if err != nil {
			return nil, nil, fmt.Errorf("tenant %s: %w", tenantID, err)
		}
		return scoped, release, nil
	}
}
