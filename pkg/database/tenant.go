package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// tenantSetting is the session variable the uw_* row-level security policies read.
const tenantSetting = "app.current_tenant_id"

// resetTimeout bounds the RESET issued when a scope is released.
const resetTimeout = 5 * time.Second

// TenantScope is a pooled connection bound to one tenant.
type TenantScope struct {
	TenantID uuid.UUID
	Conn     *pgxpool.Conn
}

// Close clears the tenant setting and returns the connection to the pool.
// If the setting cannot be cleared the connection is closed instead, so it
// never serves another tenant.
func (s *TenantScope) Close() {
	if s == nil || s.Conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	defer cancel()

	if _, err := s.Conn.Exec(ctx, "RESET "+tenantSetting); err != nil {
		_ = s.Conn.Hijack().Close(ctx)
		s.Conn = nil
		return
	}
	s.Conn.Release()
	s.Conn = nil
}

// WithTenant acquires a connection and binds it to tenantID.
// The caller must Close the returned scope.
func (db *DB) WithTenant(ctx context.Context, tenantID uuid.UUID) (*TenantScope, error) {
	if tenantID == uuid.Nil {
		return nil, fmt.Errorf("tenant ID is required")
	}

	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT set_config($1, $2, false)", tenantSetting, tenantID.String()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to set tenant context: %w", err)
	}

	return &TenantScope{TenantID: tenantID, Conn: conn}, nil
}
