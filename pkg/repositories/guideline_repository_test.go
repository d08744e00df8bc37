//go:build integration

package repositories

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystone-uw/underwriting-engine/pkg/apperrors"
	"github.com/keystone-uw/underwriting-engine/pkg/underwriting"
)

func newRepoTestRule(t *testing.T, name string, priority int) *underwriting.Rule {
	t.Helper()
	cond, err := underwriting.NewRuleCondition(underwriting.FieldClaimCount, underwriting.OperatorGreaterThan, "3", nil)
	require.NoError(t, err)
	modifier := decimal.RequireFromString("1.25")
	rule, err := underwriting.NewRule(underwriting.RuleParams{
		Name:            name,
		Type:            underwriting.RuleTypePricing,
		Action:          underwriting.RuleActionApplyModifier,
		Priority:        priority,
		PricingModifier: &modifier,
		Conditions:      []underwriting.RuleCondition{cond},
	})
	require.NoError(t, err)
	return rule
}

func TestGuidelineRepository_CreateAndGet(t *testing.T) {
	tc := setupSubmissionTest(t, CandidateOptions{})
	repo := NewGuidelineRepository()

	g, err := underwriting.NewGuideline(tc.tenantID, "Contractors GL")
	require.NoError(t, err)
	g.States = "CA, NV"
	require.NoError(t, g.AddRule(newRepoTestRule(t, "b", 2)))
	require.NoError(t, g.AddRule(newRepoTestRule(t, "a", 1)))
	require.NoError(t, repo.Create(tc.ctx, g))

	got, err := repo.GetByID(tc.ctx, tc.tenantID, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Contractors GL", got.Name)
	assert.Equal(t, 3, got.Version)
	require.Len(t, got.Rules, 2)
	assert.Equal(t, "b", got.Rules[0].Name, "rules keep insertion order")
	require.NotNil(t, got.Rules[0].PricingModifier)
	assert.True(t, decimal.RequireFromString("1.25").Equal(*got.Rules[0].PricingModifier))
	require.Len(t, got.Rules[0].Conditions, 1)
	assert.Equal(t, underwriting.OperatorGreaterThan, got.Rules[0].Conditions[0].Operator)
}

func TestGuidelineRepository_UpdateOptimisticVersion(t *testing.T) {
	tc := setupSubmissionTest(t, CandidateOptions{})
	repo := NewGuidelineRepository()

	g, err := underwriting.NewGuideline(tc.tenantID, "Property")
	require.NoError(t, err)
	require.NoError(t, repo.Create(tc.ctx, g))

	// Two editors read version 1.
	editorA, err := repo.GetByID(tc.ctx, tc.tenantID, g.ID)
	require.NoError(t, err)
	editorB, err := repo.GetByID(tc.ctx, tc.tenantID, g.ID)
	require.NoError(t, err)

	require.NoError(t, editorA.AddRule(newRepoTestRule(t, "from A", 1)))
	require.NoError(t, repo.Update(tc.ctx, editorA, 1, underwriting.GuidelineStatusDraft))

	require.NoError(t, editorB.AddRule(newRepoTestRule(t, "from B", 1)))
	err = repo.Update(tc.ctx, editorB, 1, underwriting.GuidelineStatusDraft)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	got, err := repo.GetByID(tc.ctx, tc.tenantID, g.ID)
	require.NoError(t, err)
	require.Len(t, got.Rules, 1)
	assert.Equal(t, "from A", got.Rules[0].Name)
	assert.Equal(t, 2, got.Version)
}

func TestGuidelineRepository_UpdateRejectsStaleWriteAfterArchive(t *testing.T) {
	tc := setupSubmissionTest(t, CandidateOptions{})
	repo := NewGuidelineRepository()

	g, err := underwriting.NewGuideline(tc.tenantID, "Umbrella")
	require.NoError(t, err)
	require.NoError(t, g.AddRule(newRepoTestRule(t, "r1", 1)))
	require.NoError(t, repo.Create(tc.ctx, g))

	stale, err := repo.GetByID(tc.ctx, tc.tenantID, g.ID)
	require.NoError(t, err)
	archiver, err := repo.GetByID(tc.ctx, tc.tenantID, g.ID)
	require.NoError(t, err)

	// Archiving leaves the version unchanged.
	require.NoError(t, archiver.Archive())
	require.NoError(t, repo.Update(tc.ctx, archiver, archiver.Version, underwriting.GuidelineStatusDraft))

	expectedVersion := stale.Version
	require.NoError(t, stale.AddRule(newRepoTestRule(t, "r2", 2)))
	err = repo.Update(tc.ctx, stale, expectedVersion, underwriting.GuidelineStatusDraft)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	got, err := repo.GetByID(tc.ctx, tc.tenantID, g.ID)
	require.NoError(t, err)
	assert.Equal(t, underwriting.GuidelineStatusArchived, got.Status)
	assert.Len(t, got.Rules, 1)
}

func TestGuidelineRepository_ListActive(t *testing.T) {
	tc := setupSubmissionTest(t, CandidateOptions{})
	repo := NewGuidelineRepository()

	active, err := underwriting.NewGuideline(tc.tenantID, "Active one")
	require.NoError(t, err)
	require.NoError(t, active.AddRule(newRepoTestRule(t, "r", 1)))
	require.NoError(t, active.Activate())
	require.NoError(t, repo.Create(tc.ctx, active))

	draft, err := underwriting.NewGuideline(tc.tenantID, "Draft one")
	require.NoError(t, err)
	require.NoError(t, repo.Create(tc.ctx, draft))

	all, err := repo.List(tc.ctx, tc.tenantID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyActive, err := repo.ListActive(tc.ctx, tc.tenantID)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, active.ID, onlyActive[0].ID)
	assert.Len(t, onlyActive[0].Rules, 1)
}

func TestGuidelineRepository_UpdateNotFound(t *testing.T) {
	tc := setupSubmissionTest(t, CandidateOptions{})
	repo := NewGuidelineRepository()

	g, err := underwriting.NewGuideline(tc.tenantID, "Never stored")
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Update(tc.ctx, g, 1, underwriting.GuidelineStatusDraft), apperrors.ErrNotFound)
}
