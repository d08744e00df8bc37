package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/auth"
	"github.com/keystone-uw/underwriting-engine/pkg/models"
	"github.com/keystone-uw/underwriting-engine/pkg/services"
	"github.com/keystone-uw/underwriting-engine/pkg/underwriting"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockAuthService accepts any request carrying a bearer token and returns claims.
type mockAuthService struct {
	claims *auth.Claims
}

func (m *mockAuthService) Authenticate(r *http.Request) (*auth.Claims, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return nil, errors.New("missing token")
	}
	if m.claims.TenantID == "" {
		return nil, auth.ErrMissingTenantID
	}
	return m.claims, nil
}

func (m *mockAuthService) RequireRole(claims *auth.Claims, role string) error {
	if !claims.HasRole(role) {
		return errors.New("missing role")
	}
	return nil
}

var _ auth.AuthService = (*mockAuthService)(nil)

type mockSubmissionService struct {
	created     *models.Submission
	sub         *models.Submission
	createErr   error
	getErr      error
	withdrawErr error
}

func (m *mockSubmissionService) Create(ctx context.Context, tenantID uuid.UUID, sub *models.Submission) error {
	if m.createErr != nil {
		return m.createErr
	}
	sub.ID = uuid.New()
	sub.TenantID = tenantID
	sub.Status = models.SubmissionStatusReceived
	sub.ClearanceStatus = models.ClearanceStatusPending
	m.created = sub
	return nil
}

func (m *mockSubmissionService) Get(ctx context.Context, tenantID, submissionID uuid.UUID) (*models.Submission, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.sub, nil
}

func (m *mockSubmissionService) Withdraw(ctx context.Context, tenantID, submissionID uuid.UUID) (*models.Submission, error) {
	if m.withdrawErr != nil {
		return nil, m.withdrawErr
	}
	m.sub.Status = models.SubmissionStatusWithdrawn
	return m.sub, nil
}

type mockClearanceService struct {
	result       *services.ClearanceResult
	matches      []models.ClearanceMatch
	summary      *services.RecheckSummary
	err          error
	overrideUser string
	overrideWhy  string
}

func (m *mockClearanceService) RunClearance(ctx context.Context, tenantID, submissionID uuid.UUID) (*services.ClearanceResult, error) {
	return m.result, m.err
}

func (m *mockClearanceService) GetMatches(ctx context.Context, tenantID, submissionID uuid.UUID) ([]models.ClearanceMatch, error) {
	return m.matches, m.err
}

func (m *mockClearanceService) OverrideClearance(ctx context.Context, tenantID, submissionID uuid.UUID, userID, reason string) (*models.Submission, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.overrideUser = userID
	m.overrideWhy = reason
	return &models.Submission{ID: submissionID, TenantID: tenantID, ClearanceStatus: models.ClearanceStatusOverridden}, nil
}

func (m *mockClearanceService) RecheckOpen(ctx context.Context, tenantID uuid.UUID) (*services.RecheckSummary, error) {
	return m.summary, m.err
}

type mockGuidelineService struct {
	guideline  *underwriting.Guideline
	guidelines []*underwriting.Guideline
	assessment *services.UnderwritingAssessment
	err        error

	createParams services.GuidelineParams
	ruleParams   underwriting.RuleParams
	transitions  []string
}

func (m *mockGuidelineService) Create(ctx context.Context, tenantID uuid.UUID, params services.GuidelineParams) (*underwriting.Guideline, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.createParams = params
	return underwriting.NewGuideline(tenantID, params.Name)
}

func (m *mockGuidelineService) Get(ctx context.Context, tenantID, guidelineID uuid.UUID) (*underwriting.Guideline, error) {
	return m.guideline, m.err
}

func (m *mockGuidelineService) List(ctx context.Context, tenantID uuid.UUID) ([]*underwriting.Guideline, error) {
	return m.guidelines, m.err
}

func (m *mockGuidelineService) AddRule(ctx context.Context, tenantID, guidelineID uuid.UUID, params underwriting.RuleParams) (*underwriting.Guideline, error) {
	m.ruleParams = params
	return m.guideline, m.err
}

func (m *mockGuidelineService) RemoveRule(ctx context.Context, tenantID, guidelineID, ruleID uuid.UUID) (*underwriting.Guideline, error) {
	return m.guideline, m.err
}

func (m *mockGuidelineService) Activate(ctx context.Context, tenantID, guidelineID uuid.UUID) (*underwriting.Guideline, error) {
	m.transitions = append(m.transitions, "activate")
	return m.guideline, m.err
}

func (m *mockGuidelineService) Deactivate(ctx context.Context, tenantID, guidelineID uuid.UUID) (*underwriting.Guideline, error) {
	m.transitions = append(m.transitions, "deactivate")
	return m.guideline, m.err
}

func (m *mockGuidelineService) Archive(ctx context.Context, tenantID, guidelineID uuid.UUID) (*underwriting.Guideline, error) {
	m.transitions = append(m.transitions, "archive")
	return m.guideline, m.err
}

func (m *mockGuidelineService) EvaluateSubmission(ctx context.Context, tenantID, submissionID uuid.UUID) (*services.UnderwritingAssessment, error) {
	return m.assessment, m.err
}

func (m *mockGuidelineService) ImportSeed(ctx context.Context, tenantID uuid.UUID, path string) (*services.SeedImportResult, error) {
	return &services.SeedImportResult{}, m.err
}

type mockRoutingService struct {
	result  *services.RoutingResult
	rules   []underwriting.RoutingRule
	created *underwriting.RoutingRule
	deleted uuid.UUID
	err     error
}

func (m *mockRoutingService) RouteSubmission(ctx context.Context, tenantID, submissionID uuid.UUID) (*services.RoutingResult, error) {
	return m.result, m.err
}

func (m *mockRoutingService) CreateRule(ctx context.Context, tenantID uuid.UUID, rule *underwriting.RoutingRule) error {
	if m.err != nil {
		return m.err
	}
	rule.ID = uuid.New()
	rule.TenantID = tenantID
	m.created = rule
	return nil
}

func (m *mockRoutingService) ListRules(ctx context.Context, tenantID uuid.UUID) ([]underwriting.RoutingRule, error) {
	return m.rules, m.err
}

func (m *mockRoutingService) DeleteRule(ctx context.Context, tenantID, ruleID uuid.UUID) error {
	m.deleted = ruleID
	return m.err
}

// ============================================================================
// Test harness
// ============================================================================

type testServer struct {
	mux        *http.ServeMux
	tenantID   uuid.UUID
	submission *mockSubmissionService
	clearance  *mockClearanceService
	guideline  *mockGuidelineService
	routing    *mockRoutingService
}

// passthroughTenant stands in for database.WithTenantContext.
func passthroughTenant(next http.HandlerFunc) http.HandlerFunc {
	return next
}

// newTestServer registers every API handler behind auth middleware whose
// caller holds the given roles.
func newTestServer(t *testing.T, roles ...string) *testServer {
	t.Helper()

	ts := &testServer{
		mux:        http.NewServeMux(),
		tenantID:   uuid.New(),
		submission: &mockSubmissionService{},
		clearance:  &mockClearanceService{},
		guideline:  &mockGuidelineService{},
		routing:    &mockRoutingService{},
	}

	authService := &mockAuthService{claims: &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "uw-123"},
		TenantID:         ts.tenantID.String(),
		Roles:            roles,
	}}
	authMiddleware := auth.NewMiddleware(authService, zap.NewNop())
	logger := zap.NewNop()

	NewSubmissionHandler(ts.submission, ts.clearance, ts.guideline, ts.routing, logger).
		RegisterRoutes(ts.mux, authMiddleware, passthroughTenant)
	NewGuidelineHandler(ts.guideline, logger).
		RegisterRoutes(ts.mux, authMiddleware, passthroughTenant)
	NewRoutingRuleHandler(ts.routing, logger).
		RegisterRoutes(ts.mux, authMiddleware, passthroughTenant)

	return ts
}

// do sends an authenticated request through the mux.
func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer test-token")

	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}
