package underwriting

// Operator is a comparison applied by a condition.
type Operator string

const (
	OperatorEquals             Operator = "equals"
	OperatorNotEquals          Operator = "not_equals"
	OperatorGreaterThan        Operator = "greater_than"
	OperatorGreaterThanOrEqual Operator = "greater_than_or_equal"
	OperatorLessThan           Operator = "less_than"
	OperatorLessThanOrEqual    Operator = "less_than_or_equal"
	OperatorIn                 Operator = "in"
	OperatorNotIn              Operator = "not_in"
	OperatorContains           Operator = "contains"
	OperatorStartsWith         Operator = "starts_with"
	OperatorEndsWith           Operator = "ends_with"
	OperatorBetween            Operator = "between"
	OperatorIsEmpty            Operator = "is_empty"
	OperatorIsNotEmpty         Operator = "is_not_empty"
)

var knownOperators = map[Operator]struct{}{
	OperatorEquals:             {},
	OperatorNotEquals:          {},
	OperatorGreaterThan:        {},
	OperatorGreaterThanOrEqual: {},
	OperatorLessThan:           {},
	OperatorLessThanOrEqual:    {},
	OperatorIn:                 {},
	OperatorNotIn:              {},
	OperatorContains:           {},
	OperatorStartsWith:         {},
	OperatorEndsWith:           {},
	OperatorBetween:            {},
	OperatorIsEmpty:            {},
	OperatorIsNotEmpty:         {},
}

// Valid reports whether op is one of the known operators.
func (op Operator) Valid() bool {
	_, ok := knownOperators[op]
	return ok
}

// RequiresValue reports whether conditions using op need a primary value.
func (op Operator) RequiresValue() bool {
	return op != OperatorIsEmpty && op != OperatorIsNotEmpty
}
