package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/auth"
	"github.com/keystone-uw/underwriting-engine/pkg/testhelpers"
)

// TestRoutes_RealAuthStack drives the routes through the production auth
// chain in development mode instead of the mock auth service.
func TestRoutes_RealAuthStack(t *testing.T) {
	jwks, err := auth.NewJWKSClient(&auth.JWKSConfig{EnableVerification: false})
	require.NoError(t, err)
	defer jwks.Close()

	logger := zap.NewNop()
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(jwks, logger), logger)
	guidelines := &mockGuidelineService{}
	mux := http.NewServeMux()
	NewGuidelineHandler(guidelines, logger).RegisterRoutes(mux, authMiddleware, passthroughTenant)

	tenantID := uuid.NewString()
	tests := []struct {
		name       string
		auth       string
		wantStatus int
		wantCode   string
	}{
		{"guideline admin", testhelpers.GenerateTestJWTWithBearer("uw-1", tenantID, auth.RoleGuidelineAdmin), http.StatusCreated, ""},
		{"underwriter without role", testhelpers.GenerateTestJWTWithBearer("uw-2", tenantID), http.StatusForbidden, "forbidden"},
		{"token without tenant", testhelpers.GenerateTestJWTWithBearer("uw-3", "", auth.RoleGuidelineAdmin), http.StatusForbidden, "tenant_required"},
		{"no token", "", http.StatusUnauthorized, "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/guidelines", strings.NewReader(`{"name":"Habitational"}`))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeErrorCode(t, rec))
			}
		})
	}
}
