package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/auth"
	"github.com/keystone-uw/underwriting-engine/pkg/models"
	"github.com/keystone-uw/underwriting-engine/pkg/services"
)

// CreateSubmissionRequest is the request body for POST /api/submissions.
type CreateSubmissionRequest struct {
	SubmissionNumber string                 `json:"submission_number" validate:"required,max=64"`
	Insured          InsuredRequest         `json:"insured"`
	Coverage         models.Coverage        `json:"coverage"`
	LossHistory      models.LossHistory     `json:"loss_history"`
	Property         models.PropertyDetails `json:"property"`
	BrokerName       string                 `json:"broker_name,omitempty" validate:"max=200"`
	BrokerEmail      string                 `json:"broker_email,omitempty" validate:"omitempty,email"`
	ReceivedAt       *time.Time             `json:"received_at,omitempty"`
}

// InsuredRequest describes the applicant business in a create request.
type InsuredRequest struct {
	Name            string           `json:"name" validate:"required,max=500"`
	TaxID           string           `json:"tax_id,omitempty" validate:"max=20"`
	NAICSCode       string           `json:"naics_code,omitempty" validate:"omitempty,numeric,max=6"`
	State           string           `json:"state,omitempty" validate:"omitempty,len=2"`
	YearsInBusiness *int             `json:"years_in_business,omitempty" validate:"omitempty,min=0"`
	AnnualRevenue   *decimal.Decimal `json:"annual_revenue,omitempty"`
	EmployeeCount   *int             `json:"employee_count,omitempty" validate:"omitempty,min=0"`
	MailingAddress  *models.Address  `json:"mailing_address,omitempty"`
}

// OverrideClearanceRequest is the request body for a clearance override.
type OverrideClearanceRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

func (req *CreateSubmissionRequest) toModel() *models.Submission {
	sub := &models.Submission{
		SubmissionNumber: req.SubmissionNumber,
		Insured: models.Insured{
			Name:            req.Insured.Name,
			TaxID:           req.Insured.TaxID,
			NAICSCode:       req.Insured.NAICSCode,
			State:           req.Insured.State,
			YearsInBusiness: req.Insured.YearsInBusiness,
			AnnualRevenue:   req.Insured.AnnualRevenue,
			EmployeeCount:   req.Insured.EmployeeCount,
			MailingAddress:  req.Insured.MailingAddress,
		},
		Coverage:    req.Coverage,
		LossHistory: req.LossHistory,
		Property:    req.Property,
		BrokerName:  req.BrokerName,
		BrokerEmail: req.BrokerEmail,
	}
	if req.ReceivedAt != nil {
		sub.ReceivedAt = *req.ReceivedAt
	}
	return sub
}

// SubmissionHandler handles submission intake, clearance, evaluation and routing.
type SubmissionHandler struct {
	submissions services.SubmissionService
	clearance   services.ClearanceService
	guidelines  services.GuidelineService
	routing     services.RoutingService
	logger      *zap.Logger
}

// NewSubmissionHandler creates a new submission handler.
func NewSubmissionHandler(
	submissions services.SubmissionService,
	clearance services.ClearanceService,
	guidelines services.GuidelineService,
	routing services.RoutingService,
	logger *zap.Logger,
) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		clearance:   clearance,
		guidelines:  guidelines,
		routing:     routing,
		logger:      logger,
	}
}

// RegisterRoutes registers the submission handler's routes on the given mux.
func (h *SubmissionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/submissions"
	clearanceAdmin := authMiddleware.RequireRole(auth.RoleClearanceAdmin)

	mux.HandleFunc("POST "+base,
		authMiddleware.RequireAuth(tenantMiddleware(h.Create)))
	mux.HandleFunc("GET "+base+"/{sid}",
		authMiddleware.RequireAuth(tenantMiddleware(h.Get)))
	mux.HandleFunc("POST "+base+"/{sid}/withdraw",
		authMiddleware.RequireAuth(tenantMiddleware(h.Withdraw)))
	mux.HandleFunc("POST "+base+"/{sid}/clearance",
		authMiddleware.RequireAuth(tenantMiddleware(h.RunClearance)))
	mux.HandleFunc("GET "+base+"/{sid}/clearance/matches",
		authMiddleware.RequireAuth(tenantMiddleware(h.GetMatches)))
	mux.HandleFunc("POST "+base+"/{sid}/clearance/override",
		authMiddleware.RequireAuth(clearanceAdmin(tenantMiddleware(h.OverrideClearance))))
	mux.HandleFunc("POST "+base+"/{sid}/evaluate",
		authMiddleware.RequireAuth(tenantMiddleware(h.Evaluate)))
	mux.HandleFunc("POST "+base+"/{sid}/route",
		authMiddleware.RequireAuth(tenantMiddleware(h.Route)))
	mux.HandleFunc("POST /api/clearance/recheck",
		authMiddleware.RequireAuth(clearanceAdmin(tenantMiddleware(h.RecheckOpen))))
}

// Create handles POST /api/submissions
func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateSubmissionRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	sub := req.toModel()
	if err := h.submissions.Create(r.Context(), tenantID, sub); err != nil {
		writeServiceError(w, err, h.logger, "create_submission_failed")
		return
	}

	writeData(w, http.StatusCreated, sub, h.logger)
}

// Get handles GET /api/submissions/{sid}
func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}
	submissionID, ok := ParseSubmissionID(w, r, h.logger)
	if !ok {
		return
	}

	sub, err := h.submissions.Get(r.Context(), tenantID, submissionID)
	if err != nil {
		writeServiceError(w, err, h.logger, "get_submission_failed")
		return
	}

	writeData(w, http.StatusOK, sub, h.logger)
}

// Withdraw handles POST /api/submissions/{sid}/withdraw
func (h *SubmissionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}
	submissionID, ok := ParseSubmissionID(w, r, h.logger)
	if !ok {
		return
	}

	sub, err := h.submissions.Withdraw(r.Context(), tenantID, submissionID)
	if err != nil {
		writeServiceError(w, err, h.logger, "withdraw_submission_failed")
		return
	}

	writeData(w, http.StatusOK, sub, h.logger)
}

// RunClearance handles POST /api/submissions/{sid}/clearance
func (h *SubmissionHandler) RunClearance(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}
	submissionID, ok := ParseSubmissionID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.clearance.RunClearance(r.Context(), tenantID, submissionID)
	if err != nil {
		writeServiceError(w, err, h.logger, "clearance_failed")
		return
	}

	writeData(w, http.StatusOK, result, h.logger)
}

// GetMatches handles GET /api/submissions/{sid}/clearance/matches
func (h *SubmissionHandler) GetMatches(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}
	submissionID, ok := ParseSubmissionID(w, r, h.logger)
	if !ok {
		return
	}

	matches, err := h.clearance.GetMatches(r.Context(), tenantID, submissionID)
	if err != nil {
		writeServiceError(w, err, h.logger, "get_matches_failed")
		return
	}
	if matches == nil {
		matches = []models.ClearanceMatch{}
	}

	writeData(w, http.StatusOK, matches, h.logger)
}

// OverrideClearance handles POST /api/submissions/{sid}/clearance/override
func (h *SubmissionHandler) OverrideClearance(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}
	submissionID, ok := ParseSubmissionID(w, r, h.logger)
	if !ok {
		return
	}

	var req OverrideClearanceRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	userID := auth.GetUserIDFromContext(r.Context())
	sub, err := h.clearance.OverrideClearance(r.Context(), tenantID, submissionID, userID, req.Reason)
	if err != nil {
		writeServiceError(w, err, h.logger, "override_failed")
		return
	}

	writeData(w, http.StatusOK, sub, h.logger)
}

// RecheckOpen handles POST /api/clearance/recheck
func (h *SubmissionHandler) RecheckOpen(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}

	summary, err := h.clearance.RecheckOpen(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, err, h.logger, "recheck_failed")
		return
	}

	writeData(w, http.StatusOK, summary, h.logger)
}

// Evaluate handles POST /api/submissions/{sid}/evaluate
func (h *SubmissionHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}
	submissionID, ok := ParseSubmissionID(w, r, h.logger)
	if !ok {
		return
	}

	assessment, err := h.guidelines.EvaluateSubmission(r.Context(), tenantID, submissionID)
	if err != nil {
		writeServiceError(w, err, h.logger, "evaluation_failed")
		return
	}

	writeData(w, http.StatusOK, assessment, h.logger)
}

// Route handles POST /api/submissions/{sid}/route
func (h *SubmissionHandler) Route(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r, h.logger)
	if !ok {
		return
	}
	submissionID, ok := ParseSubmissionID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.routing.RouteSubmission(r.Context(), tenantID, submissionID)
	if err != nil {
		writeServiceError(w, err, h.logger, "routing_failed")
		return
	}

	writeData(w, http.StatusOK, result, h.logger)
}
