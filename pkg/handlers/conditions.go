package handlers

import (
	"github.com/keystone-uw/underwriting-engine/pkg/underwriting"
)

// ConditionRequest is a single field/operator/value comparison in a request body.
type ConditionRequest struct {
	Field          string  `json:"field" validate:"required"`
	Operator       string  `json:"operator" validate:"required"`
	Value          string  `json:"value,omitempty"`
	SecondaryValue *string `json:"secondary_value,omitempty"`
}

// toConditions builds validated conditions. Errors wrap apperrors.ErrValidation.
func toConditions(reqs []ConditionRequest) ([]underwriting.RuleCondition, error) {
	conditions := make([]underwriting.RuleCondition, 0, len(reqs))
	for _, c := range reqs {
		cond, err := underwriting.NewRuleCondition(underwriting.Field(c.Field), underwriting.Operator(c.Operator), c.Value, c.SecondaryValue)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}
	return conditions, nil
}
