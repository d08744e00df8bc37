package services

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/keystone-uw/underwriting-engine/pkg/apperrors"
	"github.com/keystone-uw/underwriting-engine/pkg/models"
	"github.com/keystone-uw/underwriting-engine/pkg/underwriting"
)

// mockSubmissionRepo implements repositories.SubmissionRepository in memory.
// It is safe for concurrent use so RecheckOpen can be exercised.
type mockSubmissionRepo struct {
	mu          sync.Mutex
	submissions map[uuid.UUID]*models.Submission
	updates     int
	createErr   error
	updateErr   error
	findErr     error
	listOpenErr error
}

func newMockSubmissionRepo(subs ...*models.Submission) *mockSubmissionRepo {
	m := &mockSubmissionRepo{submissions: map[uuid.UUID]*models.Submission{}}
	for _, s := range subs {
		m.submissions[s.ID] = s
	}
	return m
}

func (m *mockSubmissionRepo) Create(_ context.Context, sub *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	c := *sub
	m.submissions[sub.ID] = &c
	return nil
}

func (m *mockSubmissionRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok || s.TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m *mockSubmissionRepo) Update(_ context.Context, sub *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.submissions[sub.ID]; !ok {
		return apperrors.ErrNotFound
	}
	c := *sub
	m.submissions[sub.ID] = &c
	m.updates++
	return nil
}

func (m *mockSubmissionRepo) ListOpen(_ context.Context, tenantID uuid.UUID) ([]*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listOpenErr != nil {
		return nil, m.listOpenErr
	}
	var open []*models.Submission
	for _, s := range m.submissions {
		if s.TenantID == tenantID && s.Status.IsOpen() {
			c := *s
			open = append(open, &c)
		}
	}
	return open, nil
}

func (m *mockSubmissionRepo) FindPotentialDuplicates(_ context.Context, tenantID, excludeID uuid.UUID) ([]models.SubmissionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []models.SubmissionSnapshot
	for _, s := range m.submissions {
		if s.TenantID != tenantID || s.ID == excludeID || s.Status == models.SubmissionStatusWithdrawn {
			continue
		}
		out = append(out, s.Snapshot())
	}
	return out, nil
}

func (m *mockSubmissionRepo) get(id uuid.UUID) *models.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submissions[id]
}

// mockMatchRepo implements repositories.ClearanceMatchRepository. When subs is
// set, SaveOutcome writes the submission there first and stores nothing if
// that write fails.
type mockMatchRepo struct {
	mu      sync.Mutex
	matches map[uuid.UUID][]models.ClearanceMatch
	subs    *mockSubmissionRepo
	saveErr error
}

func newMockMatchRepo() *mockMatchRepo {
	return &mockMatchRepo{matches: map[uuid.UUID][]models.ClearanceMatch{}}
}

func (m *mockMatchRepo) SaveOutcome(ctx context.Context, sub *models.Submission, matches []models.ClearanceMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.subs != nil {
		if err := m.subs.Update(ctx, sub); err != nil {
			return err
		}
	}
	m.matches[sub.ID] = slices.Clone(matches)
	return nil
}

func (m *mockMatchRepo) ListBySubmission(_ context.Context, _, submissionID uuid.UUID) ([]models.ClearanceMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.matches[submissionID]), nil
}

// mockGuidelineRepo implements repositories.GuidelineRepository with version checks.
type mockGuidelineRepo struct {
	guidelines    map[uuid.UUID]*underwriting.Guideline
	listActiveN   int
	updateErr     error
	createErr     error
	storedVersion map[uuid.UUID]int
	// beforeUpdate runs at the start of Update to simulate a concurrent writer.
	beforeUpdate func()
}

func newMockGuidelineRepo(gs ...*underwriting.Guideline) *mockGuidelineRepo {
	m := &mockGuidelineRepo{guidelines: map[uuid.UUID]*underwriting.Guideline{}, storedVersion: map[uuid.UUID]int{}}
	for _, g := range gs {
		m.guidelines[g.ID] = g
		m.storedVersion[g.ID] = g.Version
	}
	return m
}

func cloneGuideline(g *underwriting.Guideline) *underwriting.Guideline {
	c := *g
	c.Rules = slices.Clone(g.Rules)
	return &c
}

func (m *mockGuidelineRepo) Create(_ context.Context, g *underwriting.Guideline) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.guidelines[g.ID] = cloneGuideline(g)
	m.storedVersion[g.ID] = g.Version
	return nil
}

func (m *mockGuidelineRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*underwriting.Guideline, error) {
	g, ok := m.guidelines[id]
	if !ok || g.TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	return cloneGuideline(g), nil
}

func (m *mockGuidelineRepo) List(_ context.Context, tenantID uuid.UUID) ([]*underwriting.Guideline, error) {
	var out []*underwriting.Guideline
	for _, g := range m.guidelines {
		if g.TenantID == tenantID {
			out = append(out, cloneGuideline(g))
		}
	}
	return out, nil
}

func (m *mockGuidelineRepo) ListActive(_ context.Context, tenantID uuid.UUID) ([]*underwriting.Guideline, error) {
	m.listActiveN++
	var out []*underwriting.Guideline
	for _, g := range m.guidelines {
		if g.TenantID == tenantID && g.Status == underwriting.GuidelineStatusActive {
			out = append(out, cloneGuideline(g))
		}
	}
	return out, nil
}

func (m *mockGuidelineRepo) Update(_ context.Context, g *underwriting.Guideline, expectedVersion int, expectedStatus underwriting.GuidelineStatus) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate()
	}
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.guidelines[g.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if m.storedVersion[g.ID] != expectedVersion || stored.Status != expectedStatus {
		return apperrors.ErrConflict
	}
	m.guidelines[g.ID] = cloneGuideline(g)
	m.storedVersion[g.ID] = g.Version
	return nil
}

// mockRoutingRuleRepo implements repositories.RoutingRuleRepository.
type mockRoutingRuleRepo struct {
	rules []underwriting.RoutingRule
}

func (m *mockRoutingRuleRepo) Create(_ context.Context, rule *underwriting.RoutingRule) error {
	m.rules = append(m.rules, *rule)
	return nil
}

func (m *mockRoutingRuleRepo) List(_ context.Context, tenantID uuid.UUID) ([]underwriting.RoutingRule, error) {
	var out []underwriting.RoutingRule
	for _, r := range m.rules {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRoutingRuleRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	idx := slices.IndexFunc(m.rules, func(r underwriting.RoutingRule) bool { return r.ID == id && r.TenantID == tenantID })
	if idx < 0 {
		return apperrors.ErrNotFound
	}
	m.rules = slices.Delete(m.rules, idx, idx+1)
	return nil
}

// mockGuidelineCache implements cache.GuidelineCache in memory.
type mockGuidelineCache struct {
	entries       map[uuid.UUID][]*underwriting.Guideline
	invalidations int
}

func newMockGuidelineCache() *mockGuidelineCache {
	return &mockGuidelineCache{entries: map[uuid.UUID][]*underwriting.Guideline{}}
}

func (c *mockGuidelineCache) GetActive(_ context.Context, tenantID uuid.UUID) ([]*underwriting.Guideline, bool) {
	g, ok := c.entries[tenantID]
	return g, ok
}

func (c *mockGuidelineCache) SetActive(_ context.Context, tenantID uuid.UUID, guidelines []*underwriting.Guideline) {
	c.entries[tenantID] = guidelines
}

func (c *mockGuidelineCache) Invalidate(_ context.Context, tenantID uuid.UUID) {
	delete(c.entries, tenantID)
	c.invalidations++
}

// noTenantCtx is a TenantContextFunc that returns the incoming context unchanged.
func noTenantCtx(ctx context.Context, _ uuid.UUID) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

func newSubmission(tenantID uuid.UUID, number, name, taxID string) *models.Submission {
	return &models.Submission{
		ID:               uuid.New(),
		TenantID:         tenantID,
		SubmissionNumber: number,
		Status:           models.SubmissionStatusReceived,
		ClearanceStatus:  models.ClearanceStatusPending,
		Insured:          models.Insured{Name: name, TaxID: taxID},
	}
}
