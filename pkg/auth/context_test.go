package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestGetUserIDFromContext(t *testing.T) {
	claims := &Claims{}
	claims.Subject = "user-42"

	if got := GetUserIDFromContext(WithClaims(context.Background(), claims)); got != "user-42" {
		t.Errorf("expected 'user-42', got %q", got)
	}
	if got := GetUserIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty user ID, got %q", got)
	}
}

func TestGetTenantIDFromContext(t *testing.T) {
	tenantID := uuid.New()

	tests := []struct {
		name string
		ctx  context.Context
		want uuid.UUID
	}{
		{
			name: "valid tenant",
			ctx:  WithClaims(context.Background(), &Claims{TenantID: tenantID.String()}),
			want: tenantID,
		},
		{
			name: "no claims",
			ctx:  context.Background(),
			want: uuid.Nil,
		},
		{
			name: "empty tenant",
			ctx:  WithClaims(context.Background(), &Claims{}),
			want: uuid.Nil,
		},
		{
			name: "malformed tenant",
			ctx:  WithClaims(context.Background(), &Claims{TenantID: "acme"}),
			want: uuid.Nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetTenantIDFromContext(tt.ctx); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRequireUserIDFromContext(t *testing.T) {
	if _, err := RequireUserIDFromContext(context.Background()); err == nil {
		t.Error("expected error without claims")
	}

	claims := &Claims{}
	claims.Subject = "user-1"
	got, err := RequireUserIDFromContext(WithClaims(context.Background(), claims))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "user-1" {
		t.Errorf("expected 'user-1', got %q", got)
	}
}

func TestRequireTenantIDFromContext(t *testing.T) {
	if _, err := RequireTenantIDFromContext(context.Background()); err == nil {
		t.Error("expected error without claims")
	}

	tenantID := uuid.New()
	got, err := RequireTenantIDFromContext(WithClaims(context.Background(), &Claims{TenantID: tenantID.String()}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != tenantID {
		t.Errorf("expected %s, got %s", tenantID, got)
	}
}

func TestRequireTenantIDFromContext_Malformed(t *testing.T) {
	ctx := WithClaims(context.Background(), &Claims{TenantID: uuid.Nil.String()})

	_, err := RequireTenantIDFromContext(ctx)
	if !errors.Is(err, ErrNoTenant) {
		t.Fatalf("expected ErrNoTenant, got %v", err)
	}
	if !strings.Contains(err.Error(), "malformed") {
		t.Errorf("expected malformed claim to be reported, got %v", err)
	}
}
