package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/models"
	"github.com/keystone-uw/underwriting-engine/pkg/repositories"
	"github.com/keystone-uw/underwriting-engine/pkg/underwriting"
)

// RoutingResult reports where a submission was assigned.
type RoutingResult struct {
	SubmissionID uuid.UUID  `json:"submission_id"`
	Matched      bool       `json:"matched"`
	RuleID       *uuid.UUID `json:"rule_id,omitempty"`
	RuleName     string     `json:"rule_name,omitempty"`
	AssignedTo   string     `json:"assigned_to,omitempty"`
}

// RoutingService assigns submissions to underwriters using the tenant's routing rules.
type RoutingService interface {
	// RouteSubmission stores the assignee of the first matching rule on the
	// submission. When no rule matches the current assignment is left unchanged.
	RouteSubmission(ctx context.Context, tenantID, submissionID uuid.UUID) (*RoutingResult, error)
	CreateRule(ctx context.Context, tenantID uuid.UUID, rule *underwriting.RoutingRule) error
	ListRules(ctx context.Context, tenantID uuid.UUID) ([]underwriting.RoutingRule, error)
	DeleteRule(ctx context.Context, tenantID, ruleID uuid.UUID) error
}

type routingService struct {
	rules       repositories.RoutingRuleRepository
	submissions repositories.SubmissionRepository
	logger      *zap.Logger
}

// NewRoutingService creates a RoutingService.
func NewRoutingService(rules repositories.RoutingRuleRepository, submissions repositories.SubmissionRepository, logger *zap.Logger) RoutingService {
	return &routingService{
		rules:       rules,
		submissions: submissions,
		logger:      logger.Named("routing-service"),
	}
}

var _ RoutingService = (*routingService)(nil)

func (s *routingService) RouteSubmission(ctx context.Context, tenantID, submissionID uuid.UUID) (*RoutingResult, error) {
	sub, err := s.submissions.GetByID(ctx, tenantID, submissionID)
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", submissionID, err)
	}

	rules, err := s.rules.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list routing rules: %w", err)
	}

	result := &RoutingResult{SubmissionID: sub.ID}
	rule, ok := underwriting.Route(rules, underwriting.FieldValuesFromSubmission(sub))
	if !ok {
		s.logger.Info("No routing rule matched",
			zap.String("tenant_id", tenantID.String()),
			zap.String("submission_id", sub.ID.String()),
			zap.Int("rules", len(rules)))
		result.AssignedTo = sub.AssignedUnderwriter
		return result, nil
	}

	sub.AssignedUnderwriter = rule.AssignTo
	if sub.Status == models.SubmissionStatusCleared {
		sub.Status = models.SubmissionStatusInReview
	}
	if err := s.submissions.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("store assignment: %w", err)
	}

	s.logger.Info("Submission routed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("submission_id", sub.ID.String()),
		zap.String("rule", rule.Name),
		zap.String("assigned_to", rule.AssignTo))

	result.Matched = true
	result.RuleID = &rule.ID
	result.RuleName = rule.Name
	result.AssignedTo = rule.AssignTo
	return result, nil
}

func (s *routingService) CreateRule(ctx context.Context, tenantID uuid.UUID, rule *underwriting.RoutingRule) error {
	rule.ID = uuid.New()
	rule.TenantID = tenantID
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		s.logger.Error("Failed to create routing rule",
			zap.String("tenant_id", tenantID.String()),
			zap.String("name", rule.Name),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *routingService) ListRules(ctx context.Context, tenantID uuid.UUID) ([]underwriting.RoutingRule, error) {
	return s.rules.List(ctx, tenantID)
}

func (s *routingService) DeleteRule(ctx context.Context, tenantID, ruleID uuid.UUID) error {
	if err := s.rules.Delete(ctx, tenantID, ruleID); err != nil {
		return fmt.Errorf("delete routing rule %s: %w", ruleID, err)
	}
	return nil
}
