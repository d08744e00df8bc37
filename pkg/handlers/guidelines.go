package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/apperrors"
	"github.com/keystone-uw/underwriting-engine/pkg/auth"
	"github.com/keystone-uw/underwriting-engine/pkg/services"
	"github.com/keystone-uw/underwriting-engine/pkg/underwriting"
)

const dateLayout = "2006-01-02"

// CreateGuidelineRequest is the request body for POST /api/guidelines.
// Dates are YYYY-MM-DD.
type CreateGuidelineRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	Description    string `json:"description,omitempty" validate:"max=2000"`
	EffectiveDate  string `json:"effective_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ExpirationDate string `json:"expiration_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CoverageTypes  string `json:"coverage_types,omitempty"`
	States         string `json:"states,omitempty"`
	NAICSPrefixes  string `json:"naics_prefixes,omitempty"`
}

// AddRuleRequest is the request body for POST /api/guidelines/{gid}/rules.
type AddRuleRequest struct {
	Name            string             `json:"name" validate:"required,max=200"`
	Description     string             `json:"description,omitempty"`
	Type            string             `json:"type" validate:"required,oneof=appetite eligibility validation pricing decline"`
	Action          string             `json:"action" validate:"required,oneof=accept decline refer adjust_score require_information apply_modifier"`
	Priority        int                `json:"priority" validate:"min=0"`
	ScoreAdjustment *int               `json:"score_adjustment,omitempty" validate:"omitempty,min=-100,max=100"`
	PricingModifier *decimal.Decimal   `json:"pricing_modifier,omitempty"`
	Message         string             `json:"message,omitempty" validate:"max=2000"`
	Conditions      []ConditionRequest `json:"conditions" validate:"dive"`
}

func (req *CreateGuidelineRequest) toParams() (services.GuidelineParams, error) {
	params := services.GuidelineParams{
		Name:          req.Name,
		Description:   req.Description,
		CoverageTypes: req.CoverageTypes,
		States:        req.States,
		NAICSPrefixes: req.NAICSPrefixes,
	}
	var err error
	if params.EffectiveDate, err = parseDate(req.EffectiveDate); err != nil {
		return params, err
	}
	if params.ExpirationDate, err = parseDate(req.ExpirationDate); err != nil {
		return params, err
	}
	return params, nil
}

func (req *AddRuleRequest) toParams() (underwriting.RuleParams, error) {
	conditions, err := toConditions(req.Conditions)
	if err != nil {
		return underwriting.RuleParams{}, err
	}
	return underwriting.RuleParams{
		Name:            req.Name,
		Description:     req.Description,
		Type:            underwriting.RuleType(req.Type),
		Action:          underwriting.RuleAction(req.Action),
		Priority:        req.Priority,
		ScoreAdjustment: req.ScoreAdjustment,
		PricingModifier: req.PricingModifier,
		Message:         req.Message,
		Conditions:      conditions,
	}, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, apperrors.ErrValidation)
	}
	return &t, nil
}

// GuidelineHandler handles guideline management endpoints.
type GuidelineHandler struct {
	guidelines services.GuidelineService
	logger     *zap.Logger
}

// NewGuidelineHandler creates a new guideline handler.
func NewGuidelineHandler(guidelines services.GuidelineService, logger *zap.Logger) *GuidelineHandler {
	return &GuidelineHandler{
		guidelines: guidelines,
		logger:     logger,
	}
}

// RegisterRoutes registers the guideline handler's routes on the given mux.
// Reads need authentication only; changes need the guideline admin role.
func (h *GuidelineHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/guidelines"
	admin := authMiddleware.RequireRole(auth.RoleGuidelineAdmin)

	mux.HandleFunc("GET "+base,
		authMiddleware.RequireAuth(tenantMiddleware(h.List)))
	mux.HandleFunc("POST "+base,
		authMiddleware.RequireAuth(admin(tenantMiddleware(h.Create))))
	mux.HandleFunc("GET "+base+"/{gid}",
		authMiddleware.RequireAuth(tenantMiddleware(h.Get)))
	mux.HandleFunc("POST "+base+"/{gid}/rules",
		authMiddleware.RequireAuth(admin(tenantMiddleware(h.AddRule))))
	mux.HandleFunc("DELETE "+base+"/{gid}/rules/{rid}",
		authMiddleware.RequireAuth(admin(tenantMiddleware(h.RemoveRule))))
	mux.HandleFunc("POST "+base+"/{gid}/activate",
		authMiddleware.RequireAuth(admin(tenantMiddleware(h.Activate))))
	mux.HandleFunc("POST "+base+"/{gid}/deactivate",
		authMiddleware.RequireAuth(admin(tenantMiddleware(h.Deactivate))))
	mux.HandleFunc("POST "+base+"/{gid}/archive",
		authMiddleware.RequireAuth(admin(tenantMiddleware(h.Archive))))
}

// List handles GET /api/guidelines
func (h *GuidelineHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}

	guidelines, err := h.guidelines.List(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, err, h.logger, "list_guidelines_failed")
		return
	}
	if guidelines == nil {
		guidelines = []*underwriting.Guideline{}
	}

	writeData(w, http.StatusOK, guidelines, h.logger)
}

// Create handles POST /api/guidelines
func (h *GuidelineHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateGuidelineRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}
	params, err := req.toParams()
	if err != nil {
		writeServiceError(w, err, h.logger, "create_guideline_failed")
		return
	}

	g, err := h.guidelines.Create(r.Context(), tenantID, params)
	if err != nil {
		writeServiceError(w, err, h.logger, "create_guideline_failed")
		return
	}

	writeData(w, http.StatusCreated, g, h.logger)
}

// Get handles GET /api/guidelines/{gid}
func (h *GuidelineHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}
	guidelineID, ok := ParseGuidelineID(w, r, h.logger)
	if !ok {
		return
	}

	g, err := h.guidelines.Get(r.Context(), tenantID, guidelineID)
	if err != nil {
		writeServiceError(w, err, h.logger, "get_guideline_failed")
		return
	}

	writeData(w, http.StatusOK, g, h.logger)
}

// AddRule handles POST /api/guidelines/{gid}/rules
func (h *GuidelineHandler) AddRule(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}
	guidelineID, ok := ParseGuidelineID(w, r, h.logger)
	if !ok {
		return
	}

	var req AddRuleRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}
	params, err := req.toParams()
	if err != nil {
		writeServiceError(w, err, h.logger, "add_rule_failed")
		return
	}

	g, err := h.guidelines.AddRule(r.Context(), tenantID, guidelineID, params)
	if err != nil {
		writeServiceError(w, err, h.logger, "add_rule_failed")
		return
	}

	writeData(w, http.StatusCreated, g, h.logger)
}

// RemoveRule handles DELETE /api/guidelines/{gid}/rules/{rid}
func (h *GuidelineHandler) RemoveRule(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}
	guidelineID, ok := ParseGuidelineID(w, r, h.logger)
	if !ok {
		return
	}
	ruleID, ok := ParseRuleID(w, r, h.logger)
	if !ok {
		return
	}

	g, err := h.guidelines.RemoveRule(r.Context(), tenantID, guidelineID, ruleID)
	if err != nil {
		writeServiceError(w, err, h.logger, "remove_rule_failed")
		return
	}

	writeData(w, http.StatusOK, g, h.logger)
}

// Activate handles POST /api/guidelines/{gid}/activate
func (h *GuidelineHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.guidelines.Activate, "activate_guideline_failed")
}

// Deactivate handles POST /api/guidelines/{gid}/deactivate
func (h *GuidelineHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.guidelines.Deactivate, "deactivate_guideline_failed")
}

// Archive handles POST /api/guidelines/{gid}/archive
func (h *GuidelineHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.guidelines.Archive, "archive_guideline_failed")
}

type guidelineTransition func(ctx context.Context, tenantID, guidelineID uuid.UUID) (*underwriting.Guideline, error)

func (h *GuidelineHandler) transition(w http.ResponseWriter, r *http.Request, fn guidelineTransition, failureCode string) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}
	guidelineID, ok := ParseGuidelineID(w, r, h.logger)
	if !ok {
		return
	}

	g, err := fn(r.Context(), tenantID, guidelineID)
	if err != nil {
		writeServiceError(w, err, h.logger, failureCode)
		return
	}

	writeData(w, http.StatusOK, g, h.logger)
}
