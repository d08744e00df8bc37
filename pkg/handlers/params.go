package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/auth"
)

// ParseSubmissionID extracts and validates the submission ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: sid
func ParseSubmissionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "sid", "invalid_submission_id", "Invalid submission ID format", logger)
}

// ParseGuidelineID extracts and validates the guideline ID from the request path.
// Expects path parameter: gid
func ParseGuidelineID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "gid", "invalid_guideline_id", "Invalid guideline ID format", logger)
}

// ParseRuleID expects path parameter: rid
func ParseRuleID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "rid", "invalid_rule_id", "Invalid rule ID format", logger)
}

// ParseRoutingRuleID expects path parameter: rrid
func ParseRoutingRuleID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "rrid", "invalid_routing_rule_id", "Invalid routing rule ID format", logger)
}

// requireTenantID returns the caller's tenant from the JWT claims.
// Auth middleware guarantees it is present, so a miss is reported as 401.
func requireTenantID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	tenantID, err := auth.RequireTenantIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Tenant ID not found in context", logger)
		return uuid.Nil, false
	}
	return tenantID, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorCode, errorMessage, logger)
		return uuid.Nil, false
	}
	return id, true
}

// TenantMiddleware is a function that wraps a handler with tenant context.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc
