package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/keystone-uw/underwriting-engine/pkg/apperrors"
	"github.com/keystone-uw/underwriting-engine/pkg/clearance"
	"github.com/keystone-uw/underwriting-engine/pkg/database"
	"github.com/keystone-uw/underwriting-engine/pkg/models"
)

// SubmissionRepository provides data access for submissions.
// It also supplies clearance candidates.
type SubmissionRepository interface {
	clearance.CandidateFinder

	Create(ctx context.Context, sub *models.Submission) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Submission, error)
	// Update persists the mutable workflow fields: status, clearance status,
	// assigned underwriter and appetite score.
	Update(ctx context.Context, sub *models.Submission) error
	// ListOpen returns submissions still subject to clearance, oldest first.
	ListOpen(ctx context.Context, tenantID uuid.UUID) ([]*models.Submission, error)
}

// CandidateOptions bounds the candidate set returned by FindPotentialDuplicates.
type CandidateOptions struct {
	// LookbackDays limits candidates to submissions received within this many days. 0 disables the limit.
	LookbackDays int
	// MaxCandidates caps the number of candidates returned, most recent first. 0 disables the cap.
	MaxCandidates int
}

type submissionRepository struct {
	opts CandidateOptions
	now  func() time.Time
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(opts CandidateOptions) SubmissionRepository {
	return &submissionRepository{opts: opts, now: time.Now}
}

var _ SubmissionRepository = (*submissionRepository)(nil)

const submissionColumns = `
	id, tenant_id, submission_number, status, clearance_status,
	insured, coverage, loss_history, property,
	broker_name, broker_email, assigned_underwriter, appetite_score,
	received_at, created_at, updated_at`

// ============================================================================
// CRUD Operations
// ============================================================================

func (r *submissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	scope, err := database.RequireTenantScope(ctx, sub.TenantID)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.ReceivedAt.IsZero() {
		sub.ReceivedAt = now
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now

	query := `
		INSERT INTO uw_submissions (
			id, tenant_id, submission_number, status, clearance_status,
			insured_name, insured_tax_id, insured, coverage, loss_history, property,
			broker_name, broker_email, assigned_underwriter, appetite_score,
			received_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = scope.Conn.Exec(ctx, query,
		sub.ID,
		sub.TenantID,
		sub.SubmissionNumber,
		sub.Status,
		sub.ClearanceStatus,
		sub.Insured.Name,
		nullString(sub.Insured.TaxID),
		sub.Insured,
		sub.Coverage,
		sub.LossHistory,
		sub.Property,
		nullString(sub.BrokerName),
		nullString(sub.BrokerEmail),
		nullString(sub.AssignedUnderwriter),
		sub.AppetiteScore,
		sub.ReceivedAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("submission number %s already exists: %w", sub.SubmissionNumber, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}

	return nil
}

func (r *submissionRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Submission, error) {
	scope, err := database.RequireTenantScope(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + submissionColumns + `
		FROM uw_submissions
		WHERE tenant_id = $1 AND id = $2`

	sub, err := scanSubmission(scope.Conn.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (r *submissionRepository) Update(ctx context.Context, sub *models.Submission) error {
	scope, err := database.RequireTenantScope(ctx, sub.TenantID)
	if err != nil {
		return err
	}

	query := `
		UPDATE uw_submissions
		SET status = $3, clearance_status = $4, assigned_underwriter = $5,
		    appetite_score = $6, updated_at = $7
		WHERE tenant_id = $1 AND id = $2`

	now := r.now().UTC()
	result, err := scope.Conn.Exec(ctx, query,
		sub.TenantID,
		sub.ID,
		sub.Status,
		sub.ClearanceStatus,
		nullString(sub.AssignedUnderwriter),
		sub.AppetiteScore,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	sub.UpdatedAt = now
	return nil
}

func (r *submissionRepository) ListOpen(ctx context.Context, tenantID uuid.UUID) ([]*models.Submission, error) {
	scope, err := database.RequireTenantScope(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + submissionColumns + `
		FROM uw_submissions
		WHERE tenant_id = $1 AND status IN ($2, $3)
		ORDER BY received_at, id`

	rows, err := scope.Conn.Query(ctx, query, tenantID,
		models.SubmissionStatusReceived, models.SubmissionStatusInClearance)
	if err != nil {
		return nil, fmt.Errorf("failed to query open submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]*models.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return subs, nil
}

// ============================================================================
// Clearance Candidates
// ============================================================================

// FindPotentialDuplicates returns snapshots of the tenant's other submissions,
// most recently received first. Withdrawn submissions are not candidates.
func (r *submissionRepository) FindPotentialDuplicates(ctx context.Context, tenantID, excludeID uuid.UUID) ([]models.SubmissionSnapshot, error) {
	scope, err := database.RequireTenantScope(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var since *time.Time
	if r.opts.LookbackDays > 0 {
		t := r.now().UTC().AddDate(0, 0, -r.opts.LookbackDays)
		since = &t
	}
	var limit *int
	if r.opts.MaxCandidates > 0 {
		limit = &r.opts.MaxCandidates
	}

	query := `
		SELECT id, tenant_id, submission_number, insured_name, insured_tax_id,
		       insured -> 'mailing_address'
		FROM uw_submissions
		WHERE tenant_id = $1
		  AND id <> $2
		  AND status <> $3
		  AND ($4::timestamptz IS NULL OR received_at >= $4)
		ORDER BY received_at DESC, id
		LIMIT $5`

	rows, err := scope.Conn.Query(ctx, query, tenantID, excludeID,
		models.SubmissionStatusWithdrawn, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query clearance candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]models.SubmissionSnapshot, 0)
	for rows.Next() {
		var (
			snap    models.SubmissionSnapshot
			address []byte
		)
		if err := rows.Scan(&snap.ID, &snap.TenantID, &snap.SubmissionNumber,
			&snap.InsuredName, &snap.InsuredTaxID, &address); err != nil {
			return nil, fmt.Errorf("failed to scan clearance candidate: %w", err)
		}
		if len(address) > 0 && string(address) != "null" {
			snap.MailingAddress = &models.Address{}
			if err := unmarshalJSONB(address, snap.MailingAddress, "mailing_address"); err != nil {
				return nil, err
			}
		}
		candidates = append(candidates, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clearance candidates: %w", err)
	}

	return candidates, nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var s models.Submission
	var insured, coverage, lossHistory, property []byte
	var brokerName, brokerEmail, assignedTo *string

	err := row.Scan(
		&s.ID, &s.TenantID, &s.SubmissionNumber, &s.Status, &s.ClearanceStatus,
		&insured, &coverage, &lossHistory, &property,
		&brokerName, &brokerEmail, &assignedTo, &s.AppetiteScore,
		&s.ReceivedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}

	s.BrokerName = derefString(brokerName)
	s.BrokerEmail = derefString(brokerEmail)
	s.AssignedUnderwriter = derefString(assignedTo)

	if err := unmarshalJSONB(insured, &s.Insured, "insured"); err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(coverage, &s.Coverage, "coverage"); err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(lossHistory, &s.LossHistory, "loss_history"); err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(property, &s.Property, "property"); err != nil {
		return nil, err
	}

	return &s, nil
}
