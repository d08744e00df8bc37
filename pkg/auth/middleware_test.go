package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAuthService struct {
	claims  *Claims
	authErr error
	roleErr error
}

func (m *mockAuthService) Authenticate(r *http.Request) (*Claims, error) {
	return m.claims, m.authErr
}

func (m *mockAuthService) RequireRole(claims *Claims, role string) error {
	return m.roleErr
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestMiddleware_RequireAuth(t *testing.T) {
	tests := []struct {
		name       string
		svc        *mockAuthService
		wantStatus int
		wantCode   string
	}{
		{"authenticated", &mockAuthService{claims: &Claims{TenantID: testTenant}}, http.StatusOK, ""},
		{"no token", &mockAuthService{authErr: ErrMissingAuthorization}, http.StatusUnauthorized, "unauthorized"},
		{"bad token", &mockAuthService{authErr: ErrInvalidAudience}, http.StatusUnauthorized, "unauthorized"},
		{"no tenant", &mockAuthService{authErr: ErrMissingTenantID}, http.StatusForbidden, "tenant_required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *Claims
			h := NewMiddleware(tt.svc, zap.NewNop()).RequireAuth(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = GetClaims(r.Context())
			})

			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/api/guidelines", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode == "" {
				assert.Same(t, tt.svc.claims, seen)
				return
			}
			assert.Nil(t, seen, "handler must not run")
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
		})
	}
}

func TestMiddleware_RequireAuth_ChallengeHeader(t *testing.T) {
	h := NewMiddleware(&mockAuthService{authErr: ErrMissingAuthorization}, zap.NewNop()).
		RequireAuth(func(http.ResponseWriter, *http.Request) {})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/guidelines", nil))

	assert.Equal(t, `Bearer realm="underwriting-engine"`, rec.Header().Get("WWW-Authenticate"))
}

func TestMiddleware_RequireRole(t *testing.T) {
	tests := []struct {
		name        string
		withClaims  bool
		roleErr     error
		wantStatus  int
		wantHandler bool
	}{
		{name: "role present", withClaims: true, wantStatus: http.StatusOK, wantHandler: true},
		{name: "role missing", withClaims: true, roleErr: ErrMissingRole, wantStatus: http.StatusForbidden},
		{name: "no claims", withClaims: false, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			h := NewMiddleware(&mockAuthService{roleErr: tt.roleErr}, zap.NewNop()).
				RequireRole(RoleGuidelineAdmin)(func(w http.ResponseWriter, r *http.Request) {
					called = true
				})

			req := httptest.NewRequest(http.MethodPost, "/api/guidelines", nil)
			if tt.withClaims {
				req = req.WithContext(WithClaims(req.Context(), &Claims{TenantID: testTenant}))
			}
			rec := httptest.NewRecorder()
			h(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantHandler, called)
		})
	}
}
