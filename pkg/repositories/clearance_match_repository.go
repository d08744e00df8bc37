package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/keystone-uw/underwriting-engine/pkg/apperrors"
	"github.com/keystone-uw/underwriting-engine/pkg/database"
	"github.com/keystone-uw/underwriting-engine/pkg/models"
)

// ClearanceMatchRepository provides data access for clearance matches.
type ClearanceMatchRepository interface {
	// SaveOutcome stores the result of a clearance check in one transaction:
	// the submission's status and clearance status are written and its stored
	// matches are swapped for matches.
	SaveOutcome(ctx context.Context, sub *models.Submission, matches []models.ClearanceMatch) error
	// ListBySubmission returns matches ordered by confidence, highest first.
	ListBySubmission(ctx context.Context, tenantID, submissionID uuid.UUID) ([]models.ClearanceMatch, error)
}

type clearanceMatchRepository struct{}

// NewClearanceMatchRepository creates a new ClearanceMatchRepository.
func NewClearanceMatchRepository() ClearanceMatchRepository {
	return &clearanceMatchRepository{}
}

var _ ClearanceMatchRepository = (*clearanceMatchRepository)(nil)

func (r *clearanceMatchRepository) SaveOutcome(ctx context.Context, sub *models.Submission, matches []models.ClearanceMatch) error {
	scope, err := database.RequireTenantScope(ctx, sub.TenantID)
	if err != nil {
		return err
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	now := time.Now().UTC()
	result, err := tx.Exec(ctx, `
		UPDATE uw_submissions
		SET status = $3, clearance_status = $4, updated_at = $5
		WHERE tenant_id = $1 AND id = $2`,
		sub.TenantID, sub.ID, sub.Status, sub.ClearanceStatus, now)
	if err != nil {
		return fmt.Errorf("failed to update submission clearance status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	_, err = tx.Exec(ctx,
		"DELETE FROM uw_clearance_matches WHERE tenant_id = $1 AND submission_id = $2",
		sub.TenantID, sub.ID)
	if err != nil {
		return fmt.Errorf("failed to delete previous clearance matches: %w", err)
	}

	if len(matches) > 0 {
		batch := &pgx.Batch{}
		for _, m := range matches {
			batch.Queue(`
				INSERT INTO uw_clearance_matches (
					id, tenant_id, submission_id, matched_submission_id, matched_submission_number,
					match_type, confidence_score, match_details, detected_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				m.ID, sub.TenantID, m.SubmissionID, m.MatchedSubmissionID, m.MatchedSubmissionNumber,
				m.MatchType, m.ConfidenceScore, m.MatchDetails, m.DetectedAt,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert clearance matches: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	sub.UpdatedAt = now
	return nil
}

func (r *clearanceMatchRepository) ListBySubmission(ctx context.Context, tenantID, submissionID uuid.UUID) ([]models.ClearanceMatch, error) {
	scope, err := database.RequireTenantScope(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, submission_id, matched_submission_id, matched_submission_number,
		       match_type, confidence_score, match_details, detected_at
		FROM uw_clearance_matches
		WHERE tenant_id = $1 AND submission_id = $2
		ORDER BY confidence_score DESC, detected_at, id`

	rows, err := scope.Conn.Query(ctx, query, tenantID, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clearance matches: %w", err)
	}
	defer rows.Close()

	matches := make([]models.ClearanceMatch, 0)
	for rows.Next() {
		var m models.ClearanceMatch
		if err := rows.Scan(&m.ID, &m.SubmissionID, &m.MatchedSubmissionID, &m.MatchedSubmissionNumber,
			&m.MatchType, &m.ConfidenceScore, &m.MatchDetails, &m.DetectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan clearance match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clearance matches: %w", err)
	}

	return matches, nil
}
