package database

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/auth"
)

// WithTenantContext pins one tenant-scoped connection to each request. It must
// be installed inside the auth middleware, which supplies the tenant claim.
// The connection is released when next returns.
func WithTenantContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	logger = logger.Named("tenant-scope")

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := auth.RequireTenantIDFromContext(r.Context())
			if err != nil {
				logger.Warn("Request without usable tenant claim",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				writeScopeError(w, http.StatusUnauthorized, "tenant_required", "Token does not identify a tenant")
				return
			}

			scope, err := db.WithTenant(r.Context(), tenantID)
			if err != nil {
				if errors.Is(err, r.Context().Err()) {
					return
				}
				logger.Error("Failed to acquire tenant connection",
					zap.String("tenant_id", tenantID.String()),
					zap.Error(err))
				writeScopeError(w, http.StatusServiceUnavailable, "database_unavailable", "Database connection error")
				return
			}
			defer scope.Close()

			next(w, r.WithContext(SetTenantScope(r.Context(), scope)))
		}
	}
}

func writeScopeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}{code, message})
}
