package database

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/auth"
)

func TestWithTenantContext_RejectsMissingTenant(t *testing.T) {
	tests := []struct {
		name   string
		claims *auth.Claims
	}{
		{"no claims", nil},
		{"empty tid", &auth.Claims{}},
		{"malformed tid", &auth.Claims{TenantID: "acme"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := WithTenantContext(nil, zap.NewNop())(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})

			req := httptest.NewRequest(http.MethodGet, "/api/guidelines", nil)
			if tt.claims != nil {
				req = req.WithContext(auth.WithClaims(context.Background(), tt.claims))
			}
			rec := httptest.NewRecorder()
			h(rec, req)

			if called {
				t.Fatal("handler must not run without a tenant")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != "tenant_required" {
				t.Errorf("expected tenant_required, got %q", body["error"])
			}
		})
	}
}
