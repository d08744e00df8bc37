package underwriting

import (
	"cmp"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// RoutingRule assigns matching submissions to an underwriter or queue.
// Stored in uw_routing_rules table.
type RoutingRule struct {
	ID         uuid.UUID          `json:"id"`
	TenantID   uuid.UUID          `json:"tenant_id"`
	Name       string             `json:"name"`
	Priority   int                `json:"priority"`
	IsActive   bool               `json:"is_active"`
	Conditions []RoutingCondition `json:"conditions"`
	AssignTo   string             `json:"assign_to"`
}

// Validate checks that the routing rule has a name, an assignee and valid conditions.
func (r *RoutingRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return validationError("name", "routing rule name is required")
	}
	if strings.TrimSpace(r.AssignTo) == "" {
		return validationError("assign_to", "assignee is required")
	}
	for _, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Matches reports whether the rule is active and all its conditions hold.
func (r *RoutingRule) Matches(fields FieldValues) bool {
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

// Route returns the first active rule, by ascending priority, whose
// conditions hold for fields. Ties keep the order of rules.
func Route(rules []RoutingRule, fields FieldValues) (RoutingRule, bool) {
	ordered := slices.Clone(rules)
	slices.SortStableFunc(ordered, func(a, b RoutingRule) int { return cmp.Compare(a.Priority, b.Priority) })

	for _, r := range ordered {
		if r.Matches(fields) {
			return r, true
		}
	}
	return RoutingRule{}, false
}
