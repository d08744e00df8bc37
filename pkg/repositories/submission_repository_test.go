//go:build integration

package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystone-uw/underwriting-engine/pkg/apperrors"
	"github.com/keystone-uw/underwriting-engine/pkg/models"
	"github.com/keystone-uw/underwriting-engine/pkg/testhelpers"
)

// submissionTestContext holds test dependencies for submission repository tests.
type submissionTestContext struct {
	t        *testing.T
	ctx      context.Context
	tenantID uuid.UUID
	repo     SubmissionRepository
}

func setupSubmissionTest(t *testing.T, opts CandidateOptions) *submissionTestContext {
	engineDB := testhelpers.GetEngineDB(t)
	ctx, tenantID, cleanup := testhelpers.CreateTestContext(t, engineDB)
	t.Cleanup(cleanup)
	return &submissionTestContext{
		t:        t,
		ctx:      ctx,
		tenantID: tenantID,
		repo:     NewSubmissionRepository(opts),
	}
}

func (tc *submissionTestContext) createSubmission(number, name, taxID string, receivedAt time.Time) *models.Submission {
	tc.t.Helper()
	sub := &models.Submission{
		TenantID:         tc.tenantID,
		SubmissionNumber: number,
		Status:           models.SubmissionStatusReceived,
		ClearanceStatus:  models.ClearanceStatusPending,
		Insured: models.Insured{
			Name:  name,
			TaxID: taxID,
			MailingAddress: &models.Address{
				Street1: "100 Main Street", City: "Springfield", State: "IL", PostalCode: "62701",
			},
		},
		ReceivedAt: receivedAt,
	}
	require.NoError(tc.t, tc.repo.Create(tc.ctx, sub))
	return sub
}

func TestSubmissionRepository_CreateAndGet(t *testing.T) {
	tc := setupSubmissionTest(t, CandidateOptions{})

	sub := tc.createSubmission("SUB-001", "Acme Holding LLC", "12-3456789", time.Now().UTC())

	got, err := tc.repo.GetByID(tc.ctx, tc.tenantID, sub.ID)
	require.NoError(t, err)

	assert.Equal(t, "SUB-001", got.SubmissionNumber)
	assert.Equal(t, "Acme Holding LLC", got.Insured.Name)
	assert.Equal(t, "12-3456789", got.Insured.TaxID)
	require.NotNil(t, got.Insured.MailingAddress)
	assert.Equal(t, "Springfield", got.Insured.MailingAddress.City)
	assert.Equal(t, models.ClearanceStatusPending, got.ClearanceStatus)
}

func TestSubmissionRepository_Create_DuplicateNumber(t *testing.T) {
	tc := setupSubmissionTest(t, CandidateOptions{})
	tc.createSubmission("SUB-DUP", "Acme", "", time.Now().UTC())

	err := tc.repo.Create(tc.ctx, &models.Submission{
		TenantID:         tc.tenantID,
		SubmissionNumber: "SUB-DUP",
		Status:           models.SubmissionStatusReceived,
		ClearanceStatus:  models.ClearanceStatusPending,
		Insured:          models.Insured{Name: "Other"},
	})
	assert.True(t, errors.Is(err, apperrors.ErrConflict), "expected ErrConflict, got %v", err)
}

func TestSubmissionRepository_GetByID_NotFound(t *testing.T) {
	tc := setupSubmissionTest(t, CandidateOptions{})

	_, err := tc.repo.GetByID(tc.ctx, tc.tenantID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSubmissionRepository_Update(t *testing.T) {
	tc := setupSubmissionTest(t, CandidateOptions{})
	sub := tc.createSubmission("SUB-UPD", "Acme", "", time.Now().UTC())

	score := 65
	sub.Status = models.SubmissionStatusCleared
	sub.ClearanceStatus = models.ClearanceStatusClear
	sub.AssignedUnderwriter = "property-team"
	sub.AppetiteScore = &score
	require.NoError(t, tc.repo.Update(tc.ctx, sub))

	got, err := tc.repo.GetByID(tc.ctx, tc.tenantID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusCleared, got.Status)
	assert.Equal(t, "property-team", got.AssignedUnderwriter)
	require.NotNil(t, got.AppetiteScore)
	assert.Equal(t, 65, *got.AppetiteScore)

	missing := *sub
	missing.ID = uuid.New()
	assert.ErrorIs(t, tc.repo.Update(tc.ctx, &missing), apperrors.ErrNotFound)
}

func TestSubmissionRepository_ListOpen(t *testing.T) {
	tc := setupSubmissionTest(t, CandidateOptions{})
	now := time.Now().UTC()
	open := tc.createSubmission("SUB-OPEN", "Acme", "", now.Add(-time.Hour))
	closed := tc.createSubmission("SUB-CLOSED", "Zeta", "", now)
	closed.Status = models.SubmissionStatusBound
	require.NoError(t, tc.repo.Update(tc.ctx, closed))

	subs, err := tc.repo.ListOpen(tc.ctx, tc.tenantID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, open.ID, subs[0].ID)
}

func TestSubmissionRepository_FindPotentialDuplicates(t *testing.T) {
	tc := setupSubmissionTest(t, CandidateOptions{LookbackDays: 30, MaxCandidates: 2})
	now := time.Now().UTC()

	self := tc.createSubmission("SUB-SELF", "Acme", "12-3456789", now)
	recent := tc.createSubmission("SUB-RECENT", "Acme Inc", "12-3456789", now.Add(-time.Hour))
	older := tc.createSubmission("SUB-OLDER", "Acme Co", "", now.Add(-48*time.Hour))
	tc.createSubmission("SUB-OLDEST", "Acme Corp", "", now.Add(-72*time.Hour))
	tc.createSubmission("SUB-STALE", "Acme Old", "", now.AddDate(0, 0, -60))
	withdrawn := tc.createSubmission("SUB-WITHDRAWN", "Acme W", "", now.Add(-30*time.Minute))
	withdrawn.Status = models.SubmissionStatusWithdrawn
	require.NoError(t, tc.repo.Update(tc.ctx, withdrawn))

	candidates, err := tc.repo.FindPotentialDuplicates(tc.ctx, tc.tenantID, self.ID)
	require.NoError(t, err)

	require.Len(t, candidates, 2, "capped at MaxCandidates, most recent first")
	assert.Equal(t, recent.ID, candidates[0].ID)
	assert.Equal(t, older.ID, candidates[1].ID)
	require.NotNil(t, candidates[0].InsuredTaxID)
	assert.Equal(t, "12-3456789", *candidates[0].InsuredTaxID)
	require.NotNil(t, candidates[0].MailingAddress)
	assert.Equal(t, "62701", candidates[0].MailingAddress.PostalCode)
	assert.Nil(t, candidates[1].InsuredTaxID)
}

func TestSubmissionRepository_NoTenantScope(t *testing.T) {
	repo := NewSubmissionRepository(CandidateOptions{})

	_, err := repo.GetByID(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrTenantRequired)
}

func TestSubmissionRepository_ScopeForOtherTenant(t *testing.T) {
	tc := setupSubmissionTest(t, CandidateOptions{})
	sub := tc.createSubmission("SUB-SCOPE", "Acme", "", time.Now().UTC())

	_, err := tc.repo.GetByID(tc.ctx, uuid.New(), sub.ID)
	assert.ErrorIs(t, err, apperrors.ErrTenantRequired)
}
