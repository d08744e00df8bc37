package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/apperrors"
	"github.com/keystone-uw/underwriting-engine/pkg/audit"
	"github.com/keystone-uw/underwriting-engine/pkg/cache"
	"github.com/keystone-uw/underwriting-engine/pkg/metrics"
	"github.com/keystone-uw/underwriting-engine/pkg/repositories"
	"github.com/keystone-uw/underwriting-engine/pkg/underwriting"
)

const (
	// BaseAppetiteScore is the score before any rule adjusts it.
	BaseAppetiteScore = 50
	MinAppetiteScore  = 0
	MaxAppetiteScore  = 100
)

// Decision is the recommended outcome of a guideline evaluation.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionRefer   Decision = "refer"
	DecisionDecline Decision = "decline"
)

// UnderwritingAssessment is the combined result of evaluating a submission
// against every applicable guideline.
type UnderwritingAssessment struct {
	SubmissionID        uuid.UUID                           `json:"submission_id"`
	AppetiteScore       int                                 `json:"appetite_score"`
	PricingModifier     decimal.Decimal                     `json:"pricing_modifier"`
	Decision            Decision                            `json:"decision"`
	GuidelinesEvaluated []uuid.UUID                         `json:"guidelines_evaluated"`
	MatchedRules        []underwriting.RuleEvaluationResult `json:"matched_rules"`
	Reasons             []string                            `json:"reasons,omitempty"` // Messages of matched decline, refer and require_information rules
	EvaluatedAt         time.Time                           `json:"evaluated_at"`
}

// GuidelineParams are the inputs for creating a guideline.
type GuidelineParams struct {
	Name           string
	Description    string
	EffectiveDate  *time.Time
	ExpirationDate *time.Time
	CoverageTypes  string
	States         string
	NAICSPrefixes  string
}

// SeedImportResult counts what ImportSeed created and skipped.
type SeedImportResult struct {
	GuidelinesCreated   int `json:"guidelines_created"`
	GuidelinesSkipped   int `json:"guidelines_skipped"`
	RoutingRulesCreated int `json:"routing_rules_created"`
	RoutingRulesSkipped int `json:"routing_rules_skipped"`
}

// GuidelineService manages underwriting guidelines and evaluates submissions against them.
type GuidelineService interface {
	Create(ctx context.Context, tenantID uuid.UUID, params GuidelineParams) (*underwriting.Guideline, error)
	Get(ctx context.Context, tenantID, guidelineID uuid.UUID) (*underwriting.Guideline, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]*underwriting.Guideline, error)
	AddRule(ctx context.Context, tenantID, guidelineID uuid.UUID, params underwriting.RuleParams) (*underwriting.Guideline, error)
	RemoveRule(ctx context.Context, tenantID, guidelineID, ruleID uuid.UUID) (*underwriting.Guideline, error)
	Activate(ctx context.Context, tenantID, guidelineID uuid.UUID) (*underwriting.Guideline, error)
	Deactivate(ctx context.Context, tenantID, guidelineID uuid.UUID) (*underwriting.Guideline, error)
	Archive(ctx context.Context, tenantID, guidelineID uuid.UUID) (*underwriting.Guideline, error)

	// EvaluateSubmission scores a submission against the tenant's applicable
	// guidelines and stores the resulting appetite score on it.
	EvaluateSubmission(ctx context.Context, tenantID, submissionID uuid.UUID) (*UnderwritingAssessment, error)

	// ImportSeed creates the guidelines and routing rules of a YAML seed file.
	// Entries whose name already exists for the tenant are skipped.
	ImportSeed(ctx context.Context, tenantID uuid.UUID, path string) (*SeedImportResult, error)
}

type guidelineService struct {
	guidelines   repositories.GuidelineRepository
	routingRules repositories.RoutingRuleRepository
	submissions  repositories.SubmissionRepository
	cache        cache.GuidelineCache
	auditor      *audit.ClearanceAuditor
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewGuidelineService creates a GuidelineService.
func NewGuidelineService(
	guidelines repositories.GuidelineRepository,
	routingRules repositories.RoutingRuleRepository,
	submissions repositories.SubmissionRepository,
	guidelineCache cache.GuidelineCache,
	auditor *audit.ClearanceAuditor,
	m *metrics.Metrics,
	logger *zap.Logger,
) GuidelineService {
	return &guidelineService{
		guidelines:   guidelines,
		routingRules: routingRules,
		submissions:  submissions,
		cache:        guidelineCache,
		auditor:      auditor,
		metrics:      m,
		logger:       logger.Named("guideline-service"),
		now:          time.Now,
	}
}

var _ GuidelineService = (*guidelineService)(nil)

// ============================================================================
// Guideline management
// ============================================================================

func (s *guidelineService) Create(ctx context.Context, tenantID uuid.UUID, params GuidelineParams) (*underwriting.Guideline, error) {
	g, err := underwriting.NewGuideline(tenantID, params.Name)
	if err != nil {
		return nil, err
	}
	if params.EffectiveDate != nil && params.ExpirationDate != nil && params.ExpirationDate.Before(*params.EffectiveDate) {
		return nil, fmt.Errorf("expiration date is before effective date: %w", apperrors.ErrValidation)
	}
	g.Description = params.Description
	g.EffectiveDate = params.EffectiveDate
	g.ExpirationDate = params.ExpirationDate
	g.CoverageTypes = params.CoverageTypes
	g.States = params.States
	g.NAICSPrefixes = params.NAICSPrefixes

	if err := s.guidelines.Create(ctx, g); err != nil {
		s.logger.Error("Failed to create guideline",
			zap.String("tenant_id", tenantID.String()),
			zap.String("name", g.Name),
			zap.Error(err))
		return nil, err
	}
	return g, nil
}

func (s *guidelineService) Get(ctx context.Context, tenantID, guidelineID uuid.UUID) (*underwriting.Guideline, error) {
	g, err := s.guidelines.GetByID(ctx, tenantID, guidelineID)
	if err != nil {
		return nil, fmt.Errorf("get guideline %s: %w", guidelineID, err)
	}
	return g, nil
}

func (s *guidelineService) List(ctx context.Context, tenantID uuid.UUID) ([]*underwriting.Guideline, error) {
	return s.guidelines.List(ctx, tenantID)
}

func (s *guidelineService) AddRule(ctx context.Context, tenantID, guidelineID uuid.UUID, params underwriting.RuleParams) (*underwriting.Guideline, error) {
	rule, err := underwriting.NewRule(params)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, tenantID, guidelineID, func(g *underwriting.Guideline) error {
		return g.AddRule(rule)
	})
}

func (s *guidelineService) RemoveRule(ctx context.Context, tenantID, guidelineID, ruleID uuid.UUID) (*underwriting.Guideline, error) {
	return s.mutate(ctx, tenantID, guidelineID, func(g *underwriting.Guideline) error {
		return g.RemoveRule(ruleID)
	})
}

func (s *guidelineService) Activate(ctx context.Context, tenantID, guidelineID uuid.UUID) (*underwriting.Guideline, error) {
	return s.transition(ctx, tenantID, guidelineID, (*underwriting.Guideline).Activate)
}

func (s *guidelineService) Deactivate(ctx context.Context, tenantID, guidelineID uuid.UUID) (*underwriting.Guideline, error) {
	return s.transition(ctx, tenantID, guidelineID, (*underwriting.Guideline).Deactivate)
}

func (s *guidelineService) Archive(ctx context.Context, tenantID, guidelineID uuid.UUID) (*underwriting.Guideline, error) {
	return s.transition(ctx, tenantID, guidelineID, (*underwriting.Guideline).Archive)
}

// transition applies a lifecycle change and audits it.
func (s *guidelineService) transition(ctx context.Context, tenantID, guidelineID uuid.UUID, fn func(*underwriting.Guideline) error) (*underwriting.Guideline, error) {
	var from underwriting.GuidelineStatus
	g, err := s.mutate(ctx, tenantID, guidelineID, func(g *underwriting.Guideline) error {
		from = g.Status
		return fn(g)
	})
	if err != nil {
		return nil, err
	}

	s.auditor.LogGuidelineStatusChange(ctx, tenantID, g.ID, audit.StatusChangeDetails{
		GuidelineName: g.Name,
		From:          string(from),
		To:            string(g.Status),
		Version:       g.Version,
	})
	return g, nil
}

// mutate loads a guideline, applies fn and writes it back conditioned on the
// version and status that were read. The tenant's cached guidelines are dropped afterwards.
func (s *guidelineService) mutate(ctx context.Context, tenantID, guidelineID uuid.UUID, fn func(*underwriting.Guideline) error) (*underwriting.Guideline, error) {
	g, err := s.guidelines.GetByID(ctx, tenantID, guidelineID)
	if err != nil {
		return nil, fmt.Errorf("get guideline %s: %w", guidelineID, err)
	}

	expectedVersion, expectedStatus := g.Version, g.Status
	if err := fn(g); err != nil {
		s.logger.Error("Guideline change rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("guideline_id", guidelineID.String()),
			zap.String("status", string(g.Status)),
			zap.Error(err))
		return nil, err
	}

	if err := s.guidelines.Update(ctx, g, expectedVersion, expectedStatus); err != nil {
		return nil, fmt.Errorf("update guideline %s: %w", guidelineID, err)
	}

	s.cache.Invalidate(ctx, tenantID)
	return g, nil
}

// ============================================================================
// Evaluation
// ============================================================================

func (s *guidelineService) EvaluateSubmission(ctx context.Context, tenantID, submissionID uuid.UUID) (*UnderwritingAssessment, error) {
	start := time.Now()

	sub, err := s.submissions.GetByID(ctx, tenantID, submissionID)
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", submissionID, err)
	}

	active, err := s.activeGuidelines(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	state := sub.Insured.State
	if state == "" && sub.Insured.MailingAddress != nil {
		state = sub.Insured.MailingAddress.State
	}
	fields := underwriting.FieldValuesFromSubmission(sub)

	assessment := &UnderwritingAssessment{
		SubmissionID:        sub.ID,
		GuidelinesEvaluated: []uuid.UUID{},
		MatchedRules:        []underwriting.RuleEvaluationResult{},
		EvaluatedAt:         now,
	}
	for _, g := range active {
		if !g.IsApplicable(now, sub.Coverage.Type, state, sub.Insured.NAICSCode) {
			continue
		}
		assessment.GuidelinesEvaluated = append(assessment.GuidelinesEvaluated, g.ID)
		assessment.MatchedRules = append(assessment.MatchedRules, g.Evaluate(fields)...)
	}
	combine(assessment)

	score := assessment.AppetiteScore
	sub.AppetiteScore = &score
	if err := s.submissions.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("store appetite score: %w", err)
	}

	s.metrics.ObserveEvaluation(string(assessment.Decision), time.Since(start))
	s.logger.Info("Submission evaluated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("submission_id", sub.ID.String()),
		zap.Int("guidelines", len(assessment.GuidelinesEvaluated)),
		zap.Int("matched_rules", len(assessment.MatchedRules)),
		zap.Int("appetite_score", assessment.AppetiteScore),
		zap.String("decision", string(assessment.Decision)))

	return assessment, nil
}

// combine folds the matched rules into a score, pricing modifier and decision.
// Score adjustments apply in ascending priority and the running score is kept
// within [MinAppetiteScore, MaxAppetiteScore] after each step.
func combine(a *UnderwritingAssessment) {
	slices.SortStableFunc(a.MatchedRules, func(x, y underwriting.RuleEvaluationResult) int {
		return cmp.Compare(x.Priority, y.Priority)
	})

	score := BaseAppetiteScore
	modifier := decimal.NewFromInt(1)
	var declined, referred bool

	for _, r := range a.MatchedRules {
		if r.ScoreAdjustment != nil {
			score = min(max(score+*r.ScoreAdjustment, MinAppetiteScore), MaxAppetiteScore)
		}
		if r.PricingModifier != nil {
			modifier = modifier.Mul(*r.PricingModifier)
		}

		switch r.Action {
		case underwriting.RuleActionDecline:
			declined = true
		case underwriting.RuleActionRefer, underwriting.RuleActionRequireInformation:
			referred = true
		default:
			continue
		}
		if r.Message != "" {
			a.Reasons = append(a.Reasons, r.Message)
		}
	}

	a.AppetiteScore = score
	a.PricingModifier = modifier
	switch {
	case declined:
		a.Decision = DecisionDecline
	case referred:
		a.Decision = DecisionRefer
	default:
		a.Decision = DecisionAccept
	}
}

// activeGuidelines returns the tenant's Active guidelines, from cache when possible.
func (s *guidelineService) activeGuidelines(ctx context.Context, tenantID uuid.UUID) ([]*underwriting.Guideline, error) {
	if cached, ok := s.cache.GetActive(ctx, tenantID); ok {
		return cached, nil
	}

	active, err := s.guidelines.ListActive(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active guidelines: %w", err)
	}
	s.cache.SetActive(ctx, tenantID, active)
	return active, nil
}

// ============================================================================
// Seed import
// ============================================================================

func (s *guidelineService) ImportSeed(ctx context.Context, tenantID uuid.UUID, path string) (*SeedImportResult, error) {
	seed, err := underwriting.LoadSeedFile(path, tenantID)
	if err != nil {
		return nil, err
	}

	existing, err := s.guidelines.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list guidelines: %w", err)
	}
	existingRules, err := s.routingRules.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list routing rules: %w", err)
	}

	result := &SeedImportResult{}
	for _, g := range seed.Guidelines {
		if slices.ContainsFunc(existing, func(e *underwriting.Guideline) bool { return strings.EqualFold(e.Name, g.Name) }) {
			result.GuidelinesSkipped++
			continue
		}
		if err := s.guidelines.Create(ctx, g); err != nil {
			return nil, fmt.Errorf("create guideline %q: %w", g.Name, err)
		}
		result.GuidelinesCreated++
	}

	for i := range seed.RoutingRules {
		rule := &seed.RoutingRules[i]
		if slices.ContainsFunc(existingRules, func(e underwriting.RoutingRule) bool { return strings.EqualFold(e.Name, rule.Name) }) {
			result.RoutingRulesSkipped++
			continue
		}
		if err := s.routingRules.Create(ctx, rule); err != nil {
			return nil, fmt.Errorf("create routing rule %q: %w", rule.Name, err)
		}
		result.RoutingRulesCreated++
	}

	if result.GuidelinesCreated > 0 {
		s.cache.Invalidate(ctx, tenantID)
	}

	s.logger.Info("Seed imported",
		zap.String("tenant_id", tenantID.String()),
		zap.String("path", path),
		zap.Int("guidelines_created", result.GuidelinesCreated),
		zap.Int("guidelines_skipped", result.GuidelinesSkipped),
		zap.Int("routing_rules_created", result.RoutingRulesCreated))
	return result, nil
}
