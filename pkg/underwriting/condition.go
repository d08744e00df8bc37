package underwriting

import (
	"fmt"
	"strings"

	"github.com/keystone-uw/underwriting-engine/pkg/apperrors"
)

// ValidationError reports an invalid value passed to a constructor.
// errors.Is(err, apperrors.ErrValidation) holds for every ValidationError.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrValidation
}

func validationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RuleCondition is a single field/operator/value comparison.
// Construct with NewRuleCondition; the zero value is not a valid condition.
type RuleCondition struct {
	Field          Field    `json:"field" yaml:"field"`
	Operator       Operator `json:"operator" yaml:"operator"`
	Value          string   `json:"value,omitempty" yaml:"value,omitempty"`
	SecondaryValue *string  `json:"secondary_value,omitempty" yaml:"secondary_value,omitempty"`
}

// RoutingCondition has the same shape and semantics as RuleCondition.
type RoutingCondition = RuleCondition

// NewRuleCondition validates and builds a condition. Value is required unless
// op is IsEmpty or IsNotEmpty; secondary is required exactly when op is Between.
func NewRuleCondition(field Field, op Operator, value string, secondary *string) (RuleCondition, error) {
	if !field.Valid() {
		return RuleCondition{}, validationError("field", "unknown field %q", field)
	}
	if !op.Valid() {
		return RuleCondition{}, validationError("operator", "unknown operator %q", op)
	}
	if op.RequiresValue() && strings.TrimSpace(value) == "" {
		return RuleCondition{}, validationError("value", "value is required for operator %s", op)
	}

	hasSecondary := secondary != nil && strings.TrimSpace(*secondary) != ""
	if op == OperatorBetween && !hasSecondary {
		return RuleCondition{}, validationError("secondary_value", "secondary value is required for operator %s", op)
	}
	if op != OperatorBetween && hasSecondary {
		return RuleCondition{}, validationError("secondary_value", "secondary value is only allowed for operator %s", OperatorBetween)
	}

	c := RuleCondition{Field: field, Operator: op, Value: value}
	if op == OperatorBetween {
		s := *secondary
		c.SecondaryValue = &s
	}
	return c, nil
}

// NewRoutingCondition validates and builds a routing condition.
func NewRoutingCondition(field Field, op Operator, value string, secondary *string) (RoutingCondition, error) {
	return NewRuleCondition(field, op, value, secondary)
}

// Validate re-checks a condition that was decoded rather than constructed.
func (c RuleCondition) Validate() error {
	_, err := NewRuleCondition(c.Field, c.Operator, c.Value, c.SecondaryValue)
	return err
}

// Equal reports whether two conditions have the same field, operator and values.
func (c RuleCondition) Equal(other RuleCondition) bool {
	if c.Field != other.Field || c.Operator != other.Operator || c.Value != other.Value {
		return false
	}
	if c.SecondaryValue == nil || other.SecondaryValue == nil {
		return c.SecondaryValue == nil && other.SecondaryValue == nil
	}
	return *c.SecondaryValue == *other.SecondaryValue
}
