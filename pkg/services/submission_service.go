package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/apperrors"
	"github.com/keystone-uw/underwriting-engine/pkg/logging"
	"github.com/keystone-uw/underwriting-engine/pkg/models"
	"github.com/keystone-uw/underwriting-engine/pkg/repositories"
)

// SubmissionService manages the intake and lifecycle of broker submissions.
type SubmissionService interface {
	// Create stores a new submission in Received status with clearance Pending.
	Create(ctx context.Context, tenantID uuid.UUID, sub *models.Submission) error
	Get(ctx context.Context, tenantID, submissionID uuid.UUID) (*models.Submission, error)
	// Withdraw closes an open submission. Withdrawn submissions are no longer
	// clearance candidates.
	Withdraw(ctx context.Context, tenantID, submissionID uuid.UUID) (*models.Submission, error)
}

type submissionService struct {
	submissions repositories.SubmissionRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubmissionService creates a SubmissionService.
func NewSubmissionService(submissions repositories.SubmissionRepository, logger *zap.Logger) SubmissionService {
	return &submissionService{
		submissions: submissions,
		logger:      logger.Named("submission-service"),
		now:         time.Now,
	}
}

var _ SubmissionService = (*submissionService)(nil)

func (s *submissionService) Create(ctx context.Context, tenantID uuid.UUID, sub *models.Submission) error {
	sub.SubmissionNumber = strings.TrimSpace(sub.SubmissionNumber)
	sub.Insured.Name = strings.TrimSpace(sub.Insured.Name)
	if sub.SubmissionNumber == "" {
		return fmt.Errorf("submission number is required: %w", apperrors.ErrValidation)
	}
	if sub.Insured.Name == "" {
		return fmt.Errorf("insured name is required: %w", apperrors.ErrValidation)
	}

	sub.ID = uuid.New()
	sub.TenantID = tenantID
	sub.Status = models.SubmissionStatusReceived
	sub.ClearanceStatus = models.ClearanceStatusPending
	sub.AssignedUnderwriter = ""
	sub.AppetiteScore = nil
	if sub.ReceivedAt.IsZero() {
		sub.ReceivedAt = s.now().UTC()
	}

	if err := s.submissions.Create(ctx, sub); err != nil {
		s.logger.Error("Failed to create submission",
			zap.String("tenant_id", tenantID.String()),
			zap.String("submission_number", sub.SubmissionNumber),
			zap.Error(err))
		return err
	}

	s.logger.Info("Submission received",
		zap.String("tenant_id", tenantID.String()),
		zap.String("submission_id", sub.ID.String()),
		zap.String("submission_number", sub.SubmissionNumber),
		zap.String("insured_tax_id", logging.MaskTaxID(sub.Insured.TaxID)))
	return nil
}

func (s *submissionService) Get(ctx context.Context, tenantID, submissionID uuid.UUID) (*models.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, tenantID, submissionID)
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", submissionID, err)
	}
	return sub, nil
}

func (s *submissionService) Withdraw(ctx context.Context, tenantID, submissionID uuid.UUID) (*models.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, tenantID, submissionID)
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", submissionID, err)
	}

	switch sub.Status {
	case models.SubmissionStatusBound, models.SubmissionStatusDeclined, models.SubmissionStatusWithdrawn:
		return nil, fmt.Errorf("withdraw submission in status %s: %w", sub.Status, apperrors.ErrInvalidState)
	}

	sub.Status = models.SubmissionStatusWithdrawn
	if err := s.submissions.Update(ctx, sub); err != nil {
		s.logger.Error("Failed to withdraw submission",
			zap.String("submission_id", submissionID.String()),
			zap.Error(err))
		return nil, err
	}
	return sub, nil
}
