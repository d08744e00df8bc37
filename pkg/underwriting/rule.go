package underwriting

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleType classifies what a rule checks.
type RuleType string

const (
	RuleTypeAppetite    RuleType = "appetite"
	RuleTypeEligibility RuleType = "eligibility"
	RuleTypeValidation  RuleType = "validation"
	RuleTypePricing     RuleType = "pricing"
	RuleTypeDecline     RuleType = "decline"
)

// RuleAction is what a matching rule prescribes.
type RuleAction string

const (
	RuleActionAccept             RuleAction = "accept"
	RuleActionDecline            RuleAction = "decline"
	RuleActionRefer              RuleAction = "refer"
	RuleActionAdjustScore        RuleAction = "adjust_score"
	RuleActionRequireInformation RuleAction = "require_information"
	RuleActionApplyModifier      RuleAction = "apply_modifier"
)

func (t RuleType) valid() bool {
	switch t {
	case RuleTypeAppetite, RuleTypeEligibility, RuleTypeValidation, RuleTypePricing, RuleTypeDecline:
		return true
	}
	return false
}

func (a RuleAction) valid() bool {
	switch a {
	case RuleActionAccept, RuleActionDecline, RuleActionRefer, RuleActionAdjustScore,
		RuleActionRequireInformation, RuleActionApplyModifier:
		return true
	}
	return false
}

const (
	MinScoreAdjustment = -100
	MaxScoreAdjustment = 100
)

// Rule is a named set of conditions plus the action taken when all of them hold.
// Rules are owned by a Guideline.
type Rule struct {
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"name"`
	Description     string           `json:"description,omitempty"`
	Type            RuleType         `json:"type"`
	Action          RuleAction       `json:"action"`
	Priority        int              `json:"priority"`
	IsActive        bool             `json:"is_active"`
	ScoreAdjustment *int             `json:"score_adjustment,omitempty"`
	PricingModifier *decimal.Decimal `json:"pricing_modifier,omitempty"`
	Message         string           `json:"message,omitempty"`
	Conditions      []RuleCondition  `json:"conditions"`
}

// RuleParams are the inputs to NewRule.
type RuleParams struct {
	Name            string
	Description     string
	Type            RuleType
	Action          RuleAction
	Priority        int
	ScoreAdjustment *int
	PricingModifier *decimal.Decimal
	Message         string
	Conditions      []RuleCondition
}

// NewRule validates p and returns an active rule with a fresh ID.
func NewRule(p RuleParams) (*Rule, error) {
	r := &Rule{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(p.Name),
		Description:     p.Description,
		Type:            p.Type,
		Action:          p.Action,
		Priority:        p.Priority,
		IsActive:        true,
		ScoreAdjustment: p.ScoreAdjustment,
		PricingModifier: p.PricingModifier,
		Message:         p.Message,
		Conditions:      append([]RuleCondition(nil), p.Conditions...),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the rule's invariants. It is used for rules loaded from storage
// or decoded from requests as well as by NewRule.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return validationError("name", "rule name is required")
	}
	if !r.Type.valid() {
		return validationError("type", "unknown rule type %q", r.Type)
	}
	if !r.Action.valid() {
		return validationError("action", "unknown rule action %q", r.Action)
	}
	if r.ScoreAdjustment != nil && (*r.ScoreAdjustment < MinScoreAdjustment || *r.ScoreAdjustment > MaxScoreAdjustment) {
		return validationError("score_adjustment", "score adjustment must be between %d and %d", MinScoreAdjustment, MaxScoreAdjustment)
	}
	if r.PricingModifier != nil && !r.PricingModifier.IsPositive() {
		return validationError("pricing_modifier", "pricing modifier must be greater than zero")
	}
	for _, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate reports whether the rule is active and every condition holds for
// fields. A rule with no conditions always matches.
func (r *Rule) Evaluate(fields FieldValues) bool {
	if !r.IsActive {
		return false
	}
	for _, c := range r.Conditions {
		if !EvaluateCondition(c, fields.Lookup(c.Field)) {
			return false
		}
	}
	return true
}
