package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/auth"
	"github.com/keystone-uw/underwriting-engine/pkg/services"
	"github.com/keystone-uw/underwriting-engine/pkg/underwriting"
)

// CreateRoutingRuleRequest is the request body for POST /api/routing-rules.
type CreateRoutingRuleRequest struct {
	Name       string             `json:"name" validate:"required,max=200"`
	Priority   int                `json:"priority" validate:"min=0"`
	IsActive   *bool              `json:"is_active,omitempty"` // Defaults to true
	AssignTo   string             `json:"assign_to" validate:"required,max=200"`
	Conditions []ConditionRequest `json:"conditions" validate:"dive"`
}

// RoutingRuleHandler handles routing rule management.
type RoutingRuleHandler struct {
	routing services.RoutingService
	logger  *zap.Logger
}

// NewRoutingRuleHandler creates a new routing rule handler.
func NewRoutingRuleHandler(routing services.RoutingService, logger *zap.Logger) *RoutingRuleHandler {
	return &RoutingRuleHandler{routing: routing, logger: logger}
}

// RegisterRoutes registers the routing rule handler's routes on the given mux.
func (h *RoutingRuleHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/routing-rules"
	admin := authMiddleware.RequireRole(auth.RoleGuidelineAdmin)

	mux.HandleFunc("GET "+base,
		authMiddleware.RequireAuth(tenantMiddleware(h.List)))
	mux.HandleFunc("POST "+base,
		authMiddleware.RequireAuth(admin(tenantMiddleware(h.Create))))
	mux.HandleFunc("DELETE "+base+"/{rrid}",
		authMiddleware.RequireAuth(admin(tenantMiddleware(h.Delete))))
}

// List handles GET /api/routing-rules
func (h *RoutingRuleHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}

	rules, err := h.routing.ListRules(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, err, h.logger, "list_routing_rules_failed")
		return
	}
	if rules == nil {
		rules = []underwriting.RoutingRule{}
	}

	writeData(w, http.StatusOK, rules, h.logger)
}

// Create handles POST /api/routing-rules
func (h *RoutingRuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateRoutingRuleRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}
	conditions, err := toConditions(req.Conditions)
	if err != nil {
		writeServiceError(w, err, h.logger, "create_routing_rule_failed")
		return
	}

	rule := &underwriting.RoutingRule{
		Name:       req.Name,
		Priority:   req.Priority,
		IsActive:   req.IsActive == nil || *req.IsActive,
		AssignTo:   req.AssignTo,
		Conditions: conditions,
	}
	if err := h.routing.CreateRule(r.Context(), tenantID, rule); err != nil {
		writeServiceError(w, err, h.logger, "create_routing_rule_failed")
		return
	}

	writeData(w, http.StatusCreated, rule, h.logger)
}

// Delete handles DELETE /api/routing-rules/{rrid}
func (h *RoutingRuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}
	ruleID, ok := ParseRoutingRuleID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.routing.DeleteRule(r.Context(), tenantID, ruleID); err != nil {
		writeServiceError(w, err, h.logger, "delete_routing_rule_failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
