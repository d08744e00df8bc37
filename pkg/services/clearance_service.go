package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/keystone-uw/underwriting-engine/pkg/apperrors"
	"github.com/keystone-uw/underwriting-engine/pkg/audit"
	"github.com/keystone-uw/underwriting-engine/pkg/clearance"
	"github.com/keystone-uw/underwriting-engine/pkg/metrics"
	"github.com/keystone-uw/underwriting-engine/pkg/models"
	"github.com/keystone-uw/underwriting-engine/pkg/repositories"
)

// ClearanceResult is the outcome of one clearance check.
type ClearanceResult struct {
	SubmissionID     uuid.UUID               `json:"submission_id"`
	SubmissionNumber string                  `json:"submission_number"`
	Status           models.SubmissionStatus `json:"status"`
	ClearanceStatus  models.ClearanceStatus  `json:"clearance_status"`
	Matches          []models.ClearanceMatch `json:"matches"`
	CandidateCount   int                     `json:"candidate_count"`
	CheckedAt        time.Time               `json:"checked_at"`
}

// RecheckSummary reports a batch re-check over a tenant's open submissions.
type RecheckSummary struct {
	Checked   int `json:"checked"`
	Conflicts int `json:"conflicts"`
	Cleared   int `json:"cleared"`
}

// ClearanceService runs duplicate detection for submissions and records the outcome.
type ClearanceService interface {
	// RunClearance checks the submission against the tenant's other submissions,
	// replaces its stored matches and updates its status.
	RunClearance(ctx context.Context, tenantID, submissionID uuid.UUID) (*ClearanceResult, error)
	// GetMatches returns the stored matches, highest confidence first.
	GetMatches(ctx context.Context, tenantID, submissionID uuid.UUID) ([]models.ClearanceMatch, error)
	// OverrideClearance clears a submission in Conflict. A reason is required.
	OverrideClearance(ctx context.Context, tenantID, submissionID uuid.UUID, userID, reason string) (*models.Submission, error)
	// RecheckOpen re-runs clearance over every Received or InClearance submission.
	RecheckOpen(ctx context.Context, tenantID uuid.UUID) (*RecheckSummary, error)
}

// ClearanceServiceConfig holds the tunables of the clearance service.
type ClearanceServiceConfig struct {
	Engine             clearance.Config
	RecheckConcurrency int
}

type clearanceService struct {
	submissions  repositories.SubmissionRepository
	matches      repositories.ClearanceMatchRepository
	getTenantCtx TenantContextFunc
	auditor      *audit.ClearanceAuditor
	metrics      *metrics.Metrics
	logger       *zap.Logger
	cfg          ClearanceServiceConfig
	engineOpts   []clearance.Option
	now          func() time.Time
}

// NewClearanceService creates a ClearanceService. getTenantCtx supplies a
// separate tenant connection to each RecheckOpen worker.
func NewClearanceService(
	submissions repositories.SubmissionRepository,
	matches repositories.ClearanceMatchRepository,
	getTenantCtx TenantContextFunc,
	auditor *audit.ClearanceAuditor,
	m *metrics.Metrics,
	cfg ClearanceServiceConfig,
	logger *zap.Logger,
	engineOpts ...clearance.Option,
) ClearanceService {
	if cfg.RecheckConcurrency < 1 {
		cfg.RecheckConcurrency = 1
	}
	return &clearanceService{
		submissions:  submissions,
		matches:      matches,
		getTenantCtx: getTenantCtx,
		auditor:      auditor,
		metrics:      m,
		logger:       logger.Named("clearance-service"),
		cfg:          cfg,
		engineOpts:   engineOpts,
		now:          time.Now,
	}
}

var _ ClearanceService = (*clearanceService)(nil)

// countingFinder records how many candidates the engine was given.
type countingFinder struct {
	finder clearance.CandidateFinder
	count  int
}

func (f *countingFinder) FindPotentialDuplicates(ctx context.Context, tenantID, excludeID uuid.UUID) ([]models.SubmissionSnapshot, error) {
	candidates, err := f.finder.FindPotentialDuplicates(ctx, tenantID, excludeID)
	f.count = len(candidates)
	return candidates, err
}

// canRunClearance reports whether clearance may (re)run for a submission in status s.
func canRunClearance(s models.SubmissionStatus) bool {
	switch s {
	case models.SubmissionStatusReceived, models.SubmissionStatusInClearance,
		models.SubmissionStatusCleared, models.SubmissionStatusDuplicate:
		return true
	}
	return false
}

func (s *clearanceService) RunClearance(ctx context.Context, tenantID, submissionID uuid.UUID) (*ClearanceResult, error) {
	sub, err := s.submissions.GetByID(ctx, tenantID, submissionID)
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", submissionID, err)
	}
	return s.runClearance(ctx, sub)
}

func (s *clearanceService) runClearance(ctx context.Context, sub *models.Submission) (*ClearanceResult, error) {
	if !canRunClearance(sub.Status) {
		return nil, fmt.Errorf("run clearance for submission in status %s: %w", sub.Status, apperrors.ErrInvalidState)
	}

	start := time.Now()
	finder := &countingFinder{finder: s.submissions}
	engine := clearance.NewEngine(finder, s.cfg.Engine, append([]clearance.Option{clearance.WithClock(s.now)}, s.engineOpts...)...)

	found, err := engine.Check(ctx, sub.Snapshot())
	if err != nil {
		s.metrics.ObserveClearance("error", finder.count, time.Since(start))
		s.logger.Error("Clearance check failed",
			zap.String("tenant_id", sub.TenantID.String()),
			zap.String("submission_id", sub.ID.String()),
			zap.Error(err))
		return nil, err
	}

	// An override stands until an underwriter revisits it; only the evidence is refreshed.
	if sub.ClearanceStatus != models.ClearanceStatusOverridden {
		if len(found) > 0 {
			sub.ClearanceStatus = models.ClearanceStatusConflict
			sub.Status = models.SubmissionStatusDuplicate
		} else {
			sub.ClearanceStatus = models.ClearanceStatusClear
			sub.Status = models.SubmissionStatusCleared
		}
	}
	if err := s.matches.SaveOutcome(ctx, sub, found); err != nil {
		return nil, fmt.Errorf("store clearance outcome: %w", err)
	}

	outcome := string(models.ClearanceStatusClear)
	if len(found) > 0 {
		outcome = string(models.ClearanceStatusConflict)
	}
	for _, m := range found {
		s.metrics.IncrementMatch(string(m.MatchType))
	}
	s.metrics.ObserveClearance(outcome, finder.count, time.Since(start))

	s.logger.Info("Clearance check completed",
		zap.String("tenant_id", sub.TenantID.String()),
		zap.String("submission_id", sub.ID.String()),
		zap.String("submission_number", sub.SubmissionNumber),
		zap.String("clearance_status", string(sub.ClearanceStatus)),
		zap.Int("candidates", finder.count),
		zap.Int("matches", len(found)),
		zap.Duration("elapsed", time.Since(start)))

	sortMatches(found)
	return &ClearanceResult{
		SubmissionID:     sub.ID,
		SubmissionNumber: sub.SubmissionNumber,
		Status:           sub.Status,
		ClearanceStatus:  sub.ClearanceStatus,
		Matches:          found,
		CandidateCount:   finder.count,
		CheckedAt:        s.now().UTC(),
	}, nil
}

func (s *clearanceService) GetMatches(ctx context.Context, tenantID, submissionID uuid.UUID) ([]models.ClearanceMatch, error) {
	if _, err := s.submissions.GetByID(ctx, tenantID, submissionID); err != nil {
		return nil, fmt.Errorf("get submission %s: %w", submissionID, err)
	}
	matches, err := s.matches.ListBySubmission(ctx, tenantID, submissionID)
	if err != nil {
		s.logger.Error("Failed to list clearance matches",
			zap.String("submission_id", submissionID.String()),
			zap.Error(err))
		return nil, err
	}
	sortMatches(matches)
	return matches, nil
}

func (s *clearanceService) OverrideClearance(ctx context.Context, tenantID, submissionID uuid.UUID, userID, reason string) (*models.Submission, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("override reason is required: %w", apperrors.ErrValidation)
	}

	sub, err := s.submissions.GetByID(ctx, tenantID, submissionID)
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", submissionID, err)
	}
	if sub.ClearanceStatus != models.ClearanceStatusConflict {
		return nil, fmt.Errorf("override clearance in status %s: %w", sub.ClearanceStatus, apperrors.ErrInvalidState)
	}

	matches, err := s.matches.ListBySubmission(ctx, tenantID, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list clearance matches: %w", err)
	}

	previous := sub.ClearanceStatus
	sub.ClearanceStatus = models.ClearanceStatusOverridden
	sub.Status = models.SubmissionStatusCleared
	if err := s.submissions.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("update submission clearance status: %w", err)
	}

	matchedIDs := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		if !slices.Contains(matchedIDs, m.MatchedSubmissionID) {
			matchedIDs = append(matchedIDs, m.MatchedSubmissionID)
		}
	}
	s.auditor.LogOverride(ctx, tenantID, submissionID, userID, audit.OverrideDetails{
		SubmissionNumber: sub.SubmissionNumber,
		PreviousStatus:   string(previous),
		Reason:           reason,
		MatchCount:       len(matches),
		MatchedIDs:       matchedIDs,
	})

	return sub, nil
}

func (s *clearanceService) RecheckOpen(ctx context.Context, tenantID uuid.UUID) (*RecheckSummary, error) {
	open, err := s.submissions.ListOpen(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list open submissions: %w", err)
	}

	var (
		mu      sync.Mutex
		summary RecheckSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.RecheckConcurrency)

	for _, sub := range open {
		g.Go(func() error {
			// A tenant scope wraps a single connection, so every worker needs its own.
			workerCtx, cleanup, err := s.getTenantCtx(gctx, tenantID)
			if err != nil {
				return fmt.Errorf("acquire tenant connection: %w", err)
			}
			defer cleanup()

			result, err := s.runClearance(workerCtx, sub)
			if err != nil {
				return fmt.Errorf("recheck submission %s: %w", sub.SubmissionNumber, err)
			}

			mu.Lock()
			defer mu.Unlock()
			summary.Checked++
			if result.ClearanceStatus == models.ClearanceStatusConflict {
				summary.Conflicts++
			} else {
				summary.Cleared++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("Clearance re-check aborted",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("checked", summary.Checked),
			zap.Int("open", len(open)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Clearance re-check completed",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("checked", summary.Checked),
		zap.Int("conflicts", summary.Conflicts))
	return &summary, nil
}

// sortMatches orders matches by confidence, highest first. Ties are broken by
// matched submission number so results are stable.
func sortMatches(matches []models.ClearanceMatch) {
	slices.SortStableFunc(matches, func(a, b models.ClearanceMatch) int {
		switch {
		case a.ConfidenceScore > b.ConfidenceScore:
			return -1
		case a.ConfidenceScore < b.ConfidenceScore:
			return 1
		}
		return strings.Compare(a.MatchedSubmissionNumber, b.MatchedSubmissionNumber)
	})
}
