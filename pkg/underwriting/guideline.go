// Package underwriting evaluates underwriting guidelines against submission data.
//
// A Guideline owns an ordered set of Rules; each Rule owns its conditions.
// Evaluation is pure and safe for concurrent use. Mutation methods on
// Guideline are not synchronized: the repository serializes concurrent edits
// by conditioning every update on the previously read Version.
package underwriting

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/keystone-uw/underwriting-engine/pkg/apperrors"
)

// GuidelineStatus is the lifecycle state of a guideline.
type GuidelineStatus string

const (
	GuidelineStatusDraft    GuidelineStatus = "draft"
	GuidelineStatusActive   GuidelineStatus = "active"
	GuidelineStatusInactive GuidelineStatus = "inactive"
	GuidelineStatusArchived GuidelineStatus = "archived"
)

// Guideline is a tenant's named, versioned bundle of underwriting rules.
// Stored in uw_guidelines with rules in uw_guideline_rules.
type Guideline struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Status         GuidelineStatus `json:"status"`
	EffectiveDate  *time.Time      `json:"effective_date,omitempty"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
	Version        int             `json:"version"`

	// Comma-separated allow-lists. Empty applies to all.
	CoverageTypes string `json:"coverage_types,omitempty"`
	States        string `json:"states,omitempty"`
	NAICSPrefixes string `json:"naics_prefixes,omitempty"`

	Rules     []*Rule   `json:"rules"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGuideline creates a Draft guideline with version 1 and no rules.
func NewGuideline(tenantID uuid.UUID, name string) (*Guideline, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("name", "guideline name is required")
	}
	if tenantID == uuid.Nil {
		return nil, validationError("tenant_id", "tenant ID is required")
	}
	return &Guideline{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     name,
		Status:   GuidelineStatusDraft,
		Version:  1,
		Rules:    []*Rule{},
	}, nil
}

// RuleEvaluationResult describes one rule that matched during Evaluate.
type RuleEvaluationResult struct {
	GuidelineID     uuid.UUID        `json:"guideline_id"`
	RuleID          uuid.UUID        `json:"rule_id"`
	RuleName        string           `json:"rule_name"`
	RuleType        RuleType         `json:"rule_type"`
	Action          RuleAction       `json:"action"`
	Priority        int              `json:"priority"`
	ScoreAdjustment *int             `json:"score_adjustment,omitempty"`
	PricingModifier *decimal.Decimal `json:"pricing_modifier,omitempty"`
	Message         string           `json:"message,omitempty"`
}

// AddRule appends a rule and increments Version.
func (g *Guideline) AddRule(r *Rule) error {
	if r == nil {
		return fmt.Errorf("add rule to guideline %s: nil rule: %w", g.ID, apperrors.ErrInvalidState)
	}
	if g.Status == GuidelineStatusArchived {
		return fmt.Errorf("add rule to archived guideline %s: %w", g.ID, apperrors.ErrInvalidState)
	}
	g.Rules = append(g.Rules, r)
	g.Version++
	return nil
}

// RemoveRule deletes the rule with ruleID and increments Version.
func (g *Guideline) RemoveRule(ruleID uuid.UUID) error {
	if g.Status == GuidelineStatusArchived {
		return fmt.Errorf("remove rule from archived guideline %s: %w", g.ID, apperrors.ErrInvalidState)
	}
	idx := slices.IndexFunc(g.Rules, func(r *Rule) bool { return r.ID == ruleID })
	if idx < 0 {
		return fmt.Errorf("rule %s: %w", ruleID, apperrors.ErrNotFound)
	}
	g.Rules = slices.Delete(g.Rules, idx, idx+1)
	g.Version++
	return nil
}

// Activate moves a Draft or Inactive guideline to Active. It requires at least one rule.
func (g *Guideline) Activate() error {
	if g.Status == GuidelineStatusArchived {
		return fmt.Errorf("activate archived guideline %s: %w", g.ID, apperrors.ErrInvalidState)
	}
	if len(g.Rules) == 0 {
		return fmt.Errorf("activate guideline %s with no rules: %w", g.ID, apperrors.ErrInvalidState)
	}
	g.Status = GuidelineStatusActive
	return nil
}

// Deactivate moves an Active guideline to Inactive.
func (g *Guideline) Deactivate() error {
	if g.Status != GuidelineStatusActive {
		return fmt.Errorf("deactivate guideline %s in status %s: %w", g.ID, g.Status, apperrors.ErrInvalidState)
	}
	g.Status = GuidelineStatusInactive
	return nil
}

// Archive makes the guideline permanently read-only.
func (g *Guideline) Archive() error {
	if g.Status == GuidelineStatusArchived {
		return fmt.Errorf("guideline %s is already archived: %w", g.ID, apperrors.ErrInvalidState)
	}
	g.Status = GuidelineStatusArchived
	return nil
}

// IsApplicable reports whether the guideline should be evaluated for a
// submission at time now. It requires Active status, now inside the
// effective window, and every non-empty filter to match: coverage type and
// state exactly (case-insensitive), NAICS code by prefix.
func (g *Guideline) IsApplicable(now time.Time, coverageType, state, naicsCode string) bool {
	if g.Status != GuidelineStatusActive {
		return false
	}
	if g.EffectiveDate != nil && now.Before(*g.EffectiveDate) {
		return false
	}
	if g.ExpirationDate != nil && now.After(*g.ExpirationDate) {
		return false
	}

	if coverages := splitList(g.CoverageTypes); len(coverages) > 0 {
		if !slices.ContainsFunc(coverages, func(c string) bool { return strings.EqualFold(c, strings.TrimSpace(coverageType)) }) {
			return false
		}
	}
	if states := splitList(g.States); len(states) > 0 {
		if !slices.ContainsFunc(states, func(s string) bool { return strings.EqualFold(s, strings.TrimSpace(state)) }) {
			return false
		}
	}
	if prefixes := splitList(g.NAICSPrefixes); len(prefixes) > 0 {
		code := strings.TrimSpace(naicsCode)
		if code == "" || !slices.ContainsFunc(prefixes, func(p string) bool { return strings.HasPrefix(code, p) }) {
			return false
		}
	}
	return true
}

// ActiveRules returns the active rules in ascending priority. Rules with equal
// priority keep their insertion order.
func (g *Guideline) ActiveRules() []*Rule {
	active := make([]*Rule, 0, len(g.Rules))
	for _, r := range g.Rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	slices.SortStableFunc(active, func(a, b *Rule) int { return cmp.Compare(a.Priority, b.Priority) })
	return active
}

// Evaluate returns a result for every active rule that matches fields, in
// ascending priority order. It does not combine score adjustments.
func (g *Guideline) Evaluate(fields FieldValues) []RuleEvaluationResult {
	results := make([]RuleEvaluationResult, 0)
	for _, r := range g.ActiveRules() {
		if !r.Evaluate(fields) {
			continue
		}
		results = append(results, RuleEvaluationResult{
			GuidelineID:     g.ID,
			RuleID:          r.ID,
			RuleName:        r.Name,
			RuleType:        r.Type,
			Action:          r.Action,
			Priority:        r.Priority,
			ScoreAdjustment: r.ScoreAdjustment,
			PricingModifier: r.PricingModifier,
			Message:         r.Message,
		})
	}
	return results
}

func splitList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
